package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "leaflet", cfg.Storage.Bucket)
	assert.Equal(t, "leaflet:ingest", cfg.Redis.Stream)
	assert.Equal(t, 10*time.Minute, cfg.Ingest.TaskTimeout)
	assert.Equal(t, int64(100), cfg.Ingest.MaxUploadMB)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  host: db
  port: 5433
  user: leaflet
  password: secret
  dbname: books
ingest:
  workers: 3
  task_timeout: 90s
`)
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("INGEST_UPLOAD_CONCURRENCY", "16")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Ingest.Workers)
	assert.Equal(t, 16, cfg.Ingest.UploadConcurrency)
	assert.Equal(t, 90*time.Second, cfg.Ingest.TaskTimeout)
	assert.Equal(t, "host=db port=5433 user=leaflet password=secret dbname=books sslmode=disable", cfg.Database.DSN())
}

func TestLoadDatabaseURL(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: postgres\n")
	t.Setenv("DATABASE_URL", "postgres://u:p@h/db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h/db", cfg.Database.DSN())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: "ingest:\n  workers: 1\n"},
		{name: "unknown driver", body: "database:\n  driver: mysql\n", wantErr: true},
		{name: "no workers", body: "ingest:\n  workers: 0\n", wantErr: true},
		{name: "memory storage without bucket", body: "storage:\n  type: memory\n  bucket: \"\"\n"},
		{name: "minio without bucket", body: "storage:\n  type: minio\n  bucket: \"\"\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
