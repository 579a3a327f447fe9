package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.HttpPort)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "storage/backups", cfg.Backup.DefaultPath)
	assert.Equal(t, "mysqldump", cfg.Backup.DefaultDumpTool)
	assert.Equal(t, "30 3 * * *", cfg.Maintenance.HistoryPurgeCron)
	assert.True(t, cfg.Tracer.Enabled)

	assert.Zero(t, cfg.DumpTimeout())
	assert.Zero(t, cfg.StaleRunGrace())
	assert.Equal(t, 30*time.Second, cfg.FinalizeTimeout())
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout())
	assert.Zero(t, cfg.MinFreeBytes())
}

func TestParseConfig_Overrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
server:
  http-port: ":8080"
log:
  production: false
backup:
  max-concurrent: 2
  dump-timeout: 2h
  stale-run-grace: 1d
  min-free-bytes: 1GB
tracer:
  enabled: false
`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HttpPort)
	assert.False(t, cfg.Log.Production)
	assert.False(t, cfg.Tracer.Enabled)
	assert.Equal(t, int64(2), cfg.Backup.MaxConcurrent)
	assert.Equal(t, 2*time.Hour, cfg.DumpTimeout())
	assert.Equal(t, 24*time.Hour, cfg.StaleRunGrace())
	assert.Equal(t, uint64(1000*1000*1000), cfg.MinFreeBytes())
	// 未出现的字段保留默认值
	assert.Equal(t, "storage/backups", cfg.Backup.DefaultPath)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig([]byte("backup:\n  dump-timeout: soon\n"))
	assert.ErrorContains(t, err, "backup.dump-timeout")

	_, err = ParseConfig([]byte("backup:\n  min-free-bytes: lots\n"))
	assert.ErrorContains(t, err, "backup.min-free-bytes")

	_, err = ParseConfig([]byte("server: [1, 2"))
	assert.Error(t, err)
}

func TestLoadConfig_FileAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0600))

	cfg, realpath, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, realpath)
	assert.Equal(t, "debug", cfg.Log.Level)

	cfg.Log.Level = "warn"
	require.NoError(t, cfg.Save())

	again, _, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", again.Log.Level)

	_, _, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAppConfig_ComponentConfigs(t *testing.T) {
	cfg, err := ParseConfig([]byte("app:\n  worker-pool-workers: 4\n  write-queue-timeout: 10s\n"))
	require.NoError(t, err)

	wp := cfg.GetWorkerPoolConfig()
	assert.Equal(t, 4, wp.Workers)
	assert.Equal(t, 64, wp.QueueSize)

	wq := cfg.GetWriteQueueConfig()
	assert.Equal(t, 256, wq.QueueCapacity)
	assert.Equal(t, 10*time.Second, wq.WriteTimeout)

	db := cfg.GetDatabaseConfig()
	assert.Equal(t, "sqlite", db.Type)
	assert.Equal(t, cfg.Server.RunMode, db.RunMode)
}
