package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "keyfob", c.AppID)
	assert.Equal(t, BackendEnvelope, c.Backend)
	assert.Equal(t, 250*time.Millisecond, c.FrameInterval)
	assert.Equal(t, 2, c.Workers)
}

func TestLoadConfig_NoArgsUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, BackendEnvelope, cfg.Backend)
	assert.Equal(t, "keyfob", cfg.AppID)
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	cfg, err := LoadConfig([]string{"-b", "keyring", "-d", "/tmp/kf"})
	require.NoError(t, err)

	assert.Equal(t, BackendKeyring, cfg.Backend)
	assert.Equal(t, "/tmp/kf", cfg.StateDir)
}

func TestLoadConfig_UnknownBackend(t *testing.T) {
	_, err := LoadConfig([]string{"-b", "cloud"})
	assert.Error(t, err)
}

func TestLoadConfig_JsonOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	body := `{"backend":"keyring","frame_interval":"100ms","workers":4}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig([]string{"-c", path})
	require.NoError(t, err)

	assert.Equal(t, BackendKeyring, cfg.Backend)
	assert.Equal(t, 100*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 4, cfg.Workers)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "keyfob", cfg.AppID)
}

func TestLoadConfig_FlagsBeatJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backend":"envelope"}`), 0o600))

	cfg, err := LoadConfig([]string{"-c", path, "-b", "keyring"})
	require.NoError(t, err)

	assert.Equal(t, BackendKeyring, cfg.Backend)
}

func TestLoadConfig_MissingJsonFile(t *testing.T) {
	_, err := LoadConfig([]string{"-c", filepath.Join(t.TempDir(), "nope.json")})
	assert.Error(t, err)
}
