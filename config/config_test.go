package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-course-auth/config"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.GetSigningKey())
	assert.Equal(t, "7d", cfg.GetTokenTTL())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Database.GetDriver())
	assert.Equal(t, 5*time.Second, cfg.Database.GetPingTimeout())
	assert.False(t, cfg.Database.GetDebug())
	assert.Equal(t, 10*time.Second, cfg.Realtime.HandshakeTimeout)
	assert.Equal(t, "/ws", cfg.Realtime.Path)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "course-auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auth:
  signing_key: from-file
  token_ttl: 12h
http:
  addr: ":9000"
realtime:
  handshake_timeout: 3s
`), 0o600))

	t.Setenv("COURSEAUTH_AUTH_SIGNING_KEY", "from-env")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.GetSigningKey())
	assert.Equal(t, "12h", cfg.GetTokenTTL())
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.Realtime.HandshakeTimeout)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_AdminNeedsPassword(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("COURSEAUTH_ADMIN_EMAIL", "root@example.com")

	_, err := config.Load("")
	assert.Error(t, err)
}
