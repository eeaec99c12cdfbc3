package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/phaseline/lightcycle/internal/match"
	"github.com/phaseline/lightcycle/internal/physics"
	"github.com/phaseline/lightcycle/internal/trail"
)

// FileName is the config file looked up next to the binary.
const FileName = "lightcycle.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. LIGHTCYCLE_SERVER_LISTEN.
const EnvPrefix = "LIGHTCYCLE"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds connection settings for the Postgres backend.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN returns the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// StorageConfig selects and configures the match recording backend.
type StorageConfig struct {
	Type          string         `json:"type" mapstructure:"type"` // memory, sqlite, postgres or none
	FlushInterval time.Duration  `json:"flushInterval" mapstructure:"flushInterval"`
	Memory        MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres      PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// InfluxConfig holds the tick metrics sink settings.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// URL returns the server address of the InfluxDB instance.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// ServerConfig holds the authority process settings.
type ServerConfig struct {
	Listen        string        `json:"listen" mapstructure:"listen"`
	Path          string        `json:"path" mapstructure:"path"`
	Codec         string        `json:"codec" mapstructure:"codec"`
	WorldFile     string        `json:"worldFile" mapstructure:"worldFile"`
	ArenaSize     float64       `json:"arenaSize" mapstructure:"arenaSize"`
	MatchName     string        `json:"matchName" mapstructure:"matchName"`
	StatusPeriod  time.Duration `json:"statusPeriod" mapstructure:"statusPeriod"`
	ShutdownGrace time.Duration `json:"shutdownGrace" mapstructure:"shutdownGrace"`
}

// ClientConfig holds the client process settings.
type ClientConfig struct {
	URL   string `json:"url" mapstructure:"url"`
	Name  string `json:"name" mapstructure:"name"`
	Codec string `json:"codec" mapstructure:"codec"`
	Bot   bool   `json:"bot" mapstructure:"bot"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file
// is not an error; defaults and environment overrides still apply.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("defaultTag", "FFA")

	viper.SetDefault("server.listen", ":7777")
	viper.SetDefault("server.path", "/ws")
	viper.SetDefault("server.codec", "msgpack")
	viper.SetDefault("server.worldFile", "")
	viper.SetDefault("server.arenaSize", 100.0)
	viper.SetDefault("server.matchName", "Arena")
	viper.SetDefault("server.statusPeriod", "10s")
	viper.SetDefault("server.shutdownGrace", "5s")

	viper.SetDefault("client.url", "ws://localhost:7777/ws")
	viper.SetDefault("client.name", "rider")
	viper.SetDefault("client.codec", "msgpack")
	viper.SetDefault("client.bot", false)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "lightcycle")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "lightcycle")
	viper.SetDefault("influx.bucket", "match_metrics")
	viper.SetDefault("influx.backupPath", "./logs/influx_backup.log.gz")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "lightcycle")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	// match.* keys overlay match.DefaultConfig in GetMatchConfig
	viper.SetDefault("match.tickRate", 60)
	viper.SetDefault("match.maxVehicles", 16)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the recording backend configuration.
func GetStorageConfig() (StorageConfig, error) {
	var cfg StorageConfig
	if err := viper.UnmarshalKey("storage", &cfg); err != nil {
		return StorageConfig{}, fmt.Errorf("failed to read storage config: %w", err)
	}
	return cfg, nil
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() (InfluxConfig, error) {
	var cfg InfluxConfig
	if err := viper.UnmarshalKey("influx", &cfg); err != nil {
		return InfluxConfig{}, fmt.Errorf("failed to read influx config: %w", err)
	}
	return cfg, nil
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() (OTelConfig, error) {
	var cfg OTelConfig
	if err := viper.UnmarshalKey("otel", &cfg); err != nil {
		return OTelConfig{}, fmt.Errorf("failed to read otel config: %w", err)
	}
	return cfg, nil
}

// GetServerConfig returns the authority process configuration.
func GetServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := viper.UnmarshalKey("server", &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to read server config: %w", err)
	}
	return cfg, nil
}

// GetClientConfig returns the client process configuration.
func GetClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := viper.UnmarshalKey("client", &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("failed to read client config: %w", err)
	}
	return cfg, nil
}

// GetMatchConfig returns match.DefaultConfig overlaid with the match.* keys.
func GetMatchConfig() (match.Config, error) {
	cfg := match.DefaultConfig()
	if err := viper.UnmarshalKey("match", &cfg); err != nil {
		return match.Config{}, fmt.Errorf("failed to read match config: %w", err)
	}
	return cfg, nil
}

// GetPhysicsConfig returns the vehicle tuning of the match config.
func GetPhysicsConfig() (physics.Tuning, error) {
	cfg, err := GetMatchConfig()
	if err != nil {
		return physics.Tuning{}, err
	}
	return cfg.Physics, nil
}

// GetTrailConfig returns the trail settings of the match config.
func GetTrailConfig() (trail.Config, error) {
	cfg, err := GetMatchConfig()
	if err != nil {
		return trail.Config{}, err
	}
	return cfg.Trail, nil
}
