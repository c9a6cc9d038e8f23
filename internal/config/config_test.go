package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Vector.EmbedDims)
	assert.True(t, cfg.Proactive.Enabled)
	assert.Equal(t, "balanced", cfg.Proactive.Aggressiveness)

	// The default file landed on disk.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoad_ExpandsEnvAndTilde(t *testing.T) {
	t.Setenv("MEM_TEST_DIR", "/srv/memdata")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"data_dir": "${MEM_TEST_DIR}/root",
		"storage": {"path": "~/store/memory.db"}
	}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/memdata/root", cfg.DataDir)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "store", "memory.db"), cfg.Storage.Path)
}

func TestLoad_RejectsUnknownVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"storage": {"force_variant": "quantum"}
	}`), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"storage": {},
		"proactive": {"trigger_threshold": 1.5}
	}`), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestThresholds_GetSet(t *testing.T) {
	th := NewThresholds(ProactiveConfig{
		Enabled:          true,
		TriggerThreshold: 0.3,
	})

	assert.Equal(t, 0.3, th.Get().TriggerThreshold)

	th.SetTriggerThreshold(0.5)
	assert.Equal(t, 0.5, th.Get().TriggerThreshold)

	th.Set(ProactiveConfig{Enabled: false, Aggressiveness: "conservative"})
	got := th.Get()
	assert.False(t, got.Enabled)
	assert.Equal(t, "conservative", got.Aggressiveness)
}
