package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsWithNoFileOrEnv(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.HitQueueRetryInterval)
	require.Equal(t, 0, cfg.HitQueueBatchLimit)
	require.Equal(t, "optUnknown", cfg.DefaultPrivacyStatus)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("COREHUB_HITQUEUE_BATCHLIMIT", "25")
	t.Setenv("COREHUB_PRIVACY_DEFAULT", "optedOut")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 25, cfg.HitQueueBatchLimit)
	require.Equal(t, "optedOut", cfg.DefaultPrivacyStatus)
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/corehub.yaml"
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  cachedir: /tmp/custom-cache\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-cache", cfg.RulesCacheDir)
}

func TestMissingConfigFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/corehub.yaml")
	require.NoError(t, err)
	require.Equal(t, "./corehub-rules-cache", cfg.RulesCacheDir)
}
