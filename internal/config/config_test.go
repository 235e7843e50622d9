package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMetaserver_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadMetaserver(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3453, cfg.UserdPort)
	assert.Equal(t, 3455, cfg.RoomPort)
	assert.Equal(t, 3454, cfg.WebPort)
	assert.Equal(t, 48*time.Hour, cfg.TokenLifetime)
	assert.Equal(t, 3, cfg.MaxLoginAttempts)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
}

func TestLoadMetaserver_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mythmeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
userd_port: 4000
motd: "hello"
storage:
  backend: flatfile
  data_dir: /var/lib/mythmeta
database:
  host: db.example.net
  user: meta
`), 0o644))

	cfg, err := LoadMetaserver(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.UserdPort)
	assert.Equal(t, 3455, cfg.RoomPort, "unset fields keep defaults")
	assert.Equal(t, "hello", cfg.MOTD)
	assert.Equal(t, "flatfile", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/mythmeta", cfg.Storage.DataDir)
	assert.Contains(t, cfg.Database.DSN(), "db.example.net")
	assert.Contains(t, cfg.Database.DSN(), "meta")
}

func TestLoadMetaserver_RejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "backend.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("storage:\n  backend: redis\n"), 0o644))
	_, err := LoadMetaserver(bad)
	assert.ErrorContains(t, err, "storage backend")

	bad = filepath.Join(dir, "port.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("web_port: 99999\n"), 0o644))
	_, err = LoadMetaserver(bad)
	assert.ErrorContains(t, err, "out of range")

	bad = filepath.Join(dir, "garbage.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("{not yaml"), 0o644))
	_, err = LoadMetaserver(bad)
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/etc/meta.yaml", Path("/etc/meta.yaml"))

	t.Setenv(EnvConfigPath, "/env/meta.yaml")
	assert.Equal(t, "/env/meta.yaml", Path(""))

	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, "mythmeta.yaml", Path(""))
}
