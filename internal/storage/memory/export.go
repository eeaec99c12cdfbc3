package memory

import (
	"cmp"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phaseline/lightcycle/pkg/core"
)

// MatchExport is the root JSON structure
type MatchExport struct {
	MatchID   uint          `json:"matchId"`
	Name      string        `json:"name"`
	WorldName string        `json:"worldName"`
	Tag       string        `json:"tag"`
	TickRate  int           `json:"tickRate"`
	StartTime time.Time     `json:"startTime"`
	EndTick   uint64        `json:"endTick"`
	Vehicles  []VehicleJSON `json:"vehicles"`
	Events    [][]any       `json:"events"`
}

// VehicleJSON represents one vehicle and its recorded history
type VehicleJSON struct {
	ID        uint16  `json:"id"`
	Name      string  `json:"name"`
	IsBot     int     `json:"isBot"`
	JoinTick  uint64  `json:"joinTick"`
	Positions [][]any `json:"positions"`
	Trails    [][]any `json:"trails"`
}

// exportJSON writes the match data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	name := strings.ReplaceAll(b.match.Name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	timestamp := b.match.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() MatchExport {
	export := MatchExport{
		MatchID:   b.match.ID,
		Name:      b.match.Name,
		WorldName: b.match.WorldName,
		Tag:       b.match.Tag,
		TickRate:  b.match.TickRate,
		StartTime: b.match.StartTime,
		EndTick:   b.lastTick,
		Vehicles:  make([]VehicleJSON, 0, len(b.vehicles)),
		Events:    make([][]any, 0, len(b.deaths)+len(b.teleports)+len(b.powerUps)),
	}

	ids := make([]core.VehicleID, 0, len(b.vehicles))
	for id := range b.vehicles {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	// Positions: [tick, [x, y, z], speed, alive]
	// Trails: [tick, [[x, y, z], ...]]
	for _, id := range ids {
		record := b.vehicles[id]
		v := VehicleJSON{
			ID:        uint16(record.Vehicle.ID),
			Name:      record.Vehicle.Name,
			IsBot:     boolToInt(record.Vehicle.IsBot),
			JoinTick:  record.Vehicle.JoinTick,
			Positions: make([][]any, 0, len(record.Samples)),
			Trails:    make([][]any, 0, len(record.Runs)),
		}
		for _, s := range record.Samples {
			v.Positions = append(v.Positions, []any{
				s.Tick,
				vec(s.State.Position),
				s.State.Speed(),
				boolToInt(s.IsAlive),
			})
		}
		for _, r := range record.Runs {
			points := make([][]float64, len(r.Points))
			for i, p := range r.Points {
				points[i] = vec(p)
			}
			v.Trails = append(v.Trails, []any{r.Tick, points})
		}
		export.Vehicles = append(export.Vehicles, v)
	}

	// Events: [tick, "type", vehicleId, ...details]
	for _, e := range b.deaths {
		var killer any = -1
		if e.KillerID != nil {
			killer = uint16(*e.KillerID)
		}
		export.Events = append(export.Events, []any{
			e.Tick, "killed", uint16(e.VehicleID), killer, string(e.Cause), vec(e.Position),
		})
	}
	for _, e := range b.teleports {
		export.Events = append(export.Events, []any{
			e.Tick, "teleported", uint16(e.VehicleID), string(e.Reason), vec(e.From), vec(e.To),
		})
	}
	for _, e := range b.powerUps {
		export.Events = append(export.Events, []any{
			e.Tick, "powerup", uint16(e.VehicleID), string(e.Kind), e.PickupID,
		})
	}
	slices.SortStableFunc(export.Events, func(a, b []any) int {
		return cmp.Compare(a[0].(uint64), b[0].(uint64))
	})

	return export
}

func writeJSON(path string, data MatchExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data MatchExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}

func vec(v mgl64.Vec3) []float64 {
	return []float64{v[0], v[1], v[2]}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
