package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phaseline/lightcycle/internal/match"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"server": { "listen": ":9000", "codec": "json" },
		"storage": { "type": "sqlite", "postgres": { "host": "10.0.0.1", "port": "5433" } }
	}`)

	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, ":9000", viper.GetString("server.listen"))
	assert.Equal(t, "json", viper.GetString("server.codec"))
	assert.Equal(t, "sqlite", viper.GetString("storage.type"))
	assert.Equal(t, "10.0.0.1", viper.GetString("storage.postgres.host"))
	assert.Equal(t, "5433", viper.GetString("storage.postgres.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, ":7777", viper.GetString("server.listen"))
	assert.Equal(t, "/ws", viper.GetString("server.path"))
	assert.Equal(t, "msgpack", viper.GetString("server.codec"))
	assert.Equal(t, "ws://localhost:7777/ws", viper.GetString("client.url"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./recordings", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, "lightcycle", viper.GetString("storage.postgres.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "lightcycle", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(t.TempDir()))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(writeConfig(t, `{"logLevel": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("LIGHTCYCLE_SERVER_LISTEN", ":8123")

	require.NoError(t, Load(writeConfig(t, `{"server": {"listen": ":9000"}}`)))

	assert.Equal(t, ":8123", viper.GetString("server.listen"))
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.True(t, GetBool("testBool"))
}

func TestGetStorageConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": { "type": "postgres", "sqlite": { "dumpPath": "/tmp/m.db" } }
	}`)))

	cfg, err := GetStorageConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Type)
	assert.Equal(t, 2*time.Second, cfg.FlushInterval)
	assert.Equal(t, "/tmp/m.db", cfg.SQLite.DumpPath)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "./recordings", cfg.Memory.OutputDir)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=lightcycle sslmode=disable",
		cfg.Postgres.DSN())
}

func TestGetServerAndClientConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"client": {"name": "neo", "bot": true}}`)))

	srv, err := GetServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":7777", srv.Listen)
	assert.Equal(t, 100.0, srv.ArenaSize)
	assert.Equal(t, 10*time.Second, srv.StatusPeriod)

	cli, err := GetClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "neo", cli.Name)
	assert.True(t, cli.Bot)
	assert.Equal(t, "msgpack", cli.Codec)
}

func TestGetInfluxAndOTelConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"influx": {"enabled": true, "host": "metrics"}}`)))

	influx, err := GetInfluxConfig()
	require.NoError(t, err)
	assert.True(t, influx.Enabled)
	assert.Equal(t, "http://metrics:8086", influx.URL())
	assert.Equal(t, "match_metrics", influx.Bucket)

	otel, err := GetOTelConfig()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, otel.BatchTimeout)
	assert.Empty(t, otel.Endpoint)
}

func TestGetMatchConfig_OverlaysDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"match": {
			"tickRate": 30,
			"physics": { "maxSpeed": 45 },
			"trail": { "segmentLength": 1.0 }
		}
	}`)))

	cfg, err := GetMatchConfig()
	require.NoError(t, err)
	def := match.DefaultConfig()

	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, def.PredictionLead, cfg.PredictionLead)
	assert.Equal(t, 45.0, cfg.Physics.MaxSpeed)
	assert.Equal(t, def.Physics.Acceleration, cfg.Physics.Acceleration)

	phys, err := GetPhysicsConfig()
	require.NoError(t, err)
	assert.Equal(t, 45.0, phys.MaxSpeed)

	tr, err := GetTrailConfig()
	require.NoError(t, err)
	assert.Equal(t, 1.0, tr.SegmentLength)
	assert.Equal(t, def.Trail.Width, tr.Width)
}
