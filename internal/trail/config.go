package trail

// Config sizes a trail. Lengths are world units; SegmentLifetime is in
// ticks and zero disables age-based retirement.
type Config struct {
	SegmentLength   float64 `mapstructure:"segmentLength"`
	Width           float64 `mapstructure:"width"`
	Height          float64 `mapstructure:"height"`
	ColliderWidth   float64 `mapstructure:"colliderWidth"`
	MaxMeshSegments int     `mapstructure:"maxMeshSegments"`
	MaxSegments     int     `mapstructure:"maxSegments"`
	DesyncDistance  float64 `mapstructure:"desyncDistance"`
	SegmentLifetime uint64  `mapstructure:"segmentLifetime"`
}

// DefaultConfig returns the stock trail dimensions.
func DefaultConfig() Config {
	return Config{
		SegmentLength:   0.5,
		Width:           1.4,
		Height:          1.2,
		ColliderWidth:   1.4,
		MaxMeshSegments: 200,
		MaxSegments:     200,
		DesyncDistance:  8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SegmentLength <= 0 {
		c.SegmentLength = d.SegmentLength
	}
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.ColliderWidth <= 0 {
		c.ColliderWidth = c.Width
	}
	if c.MaxMeshSegments <= 0 {
		c.MaxMeshSegments = d.MaxMeshSegments
	}
	if c.MaxSegments <= 0 {
		c.MaxSegments = d.MaxSegments
	}
	if c.DesyncDistance < c.SegmentLength*2 {
		c.DesyncDistance = max(d.DesyncDistance, c.SegmentLength*2)
	}
	return c
}
