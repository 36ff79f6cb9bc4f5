package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpavault/internal/gpa/models"
)

// chdirTemp runs the test from an empty directory so a developer's .env
// never leaks into it.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, StoreMongo, cfg.Store)
	assert.Equal(t, "results", cfg.Mongo.Collection)
	assert.Equal(t, models.PolicyMerge, cfg.UpsertPolicy())
	assert.Equal(t, AuditLog, cfg.Audit.Publisher)
	assert.Zero(t, cfg.CacheTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GPA_STORE", "redis")
	t.Setenv("GPA_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("GPA_UPSERT_POLICY", "replace")
	t.Setenv("GPA_CACHE_TTL", "15s")
	t.Setenv("GPA_SERVER_ROUTE_PREFIX", "/api")
	t.Setenv("GPA_AUDIT_PUBLISHER", "kafka")
	t.Setenv("GPA_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, models.PolicyReplace, cfg.UpsertPolicy())
	assert.Equal(t, 15*time.Second, cfg.CacheTTL)
	assert.Equal(t, "/api", cfg.Server.RoutePrefix)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadHonoursLegacyVariables(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "8081")
	t.Setenv("MONGODB_URI", "mongodb+srv://cluster.example.net/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, "mongodb+srv://cluster.example.net/", cfg.Mongo.URI)
}

func TestLoadReadsDotEnvAndConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GPA_LOG_LEVEL=debug\n"), 0o600))
	configPath := filepath.Join(dir, "gpavault.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("store: memory\nmongo:\n  collection: gpas\n"), 0o600))
	t.Setenv("GPA_CONFIG_FILE", configPath)
	t.Cleanup(func() { os.Unsetenv("GPA_LOG_LEVEL") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "gpas", cfg.Mongo.Collection)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Store: StoreMemory, Policy: "merge", Audit: AuditConfig{Publisher: AuditLog}}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown store", func(c *Config) { c.Store = "dynamo" }, "unknown store"},
		{"unknown policy", func(c *Config) { c.Policy = "overwrite" }, "unknown upsert policy"},
		{"postgres without dsn", func(c *Config) { c.Store = StorePostgres }, "postgres.dsn"},
		{"redis without url", func(c *Config) { c.Store = StoreRedis }, "redis.url"},
		{"firestore without project", func(c *Config) { c.Store = StoreFirestore }, "firestore.project_id"},
		{"kafka without brokers", func(c *Config) { c.Audit.Publisher = AuditKafka }, "kafka.brokers"},
		{"negative cache ttl", func(c *Config) { c.CacheTTL = -time.Second }, "cache_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
