package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/fixedtree/pkg/config"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".fixedtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Files(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg *config.Config)
		errText string
	}{
		{
			name:    "malformed",
			content: "tree:\n  capacity: [4\n",
			errText: "read config",
		},
		{
			name:    "unknown sections are ignored",
			content: "plugins:\n  enabled: true\ntree:\n  capacity: 4\n",
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, 4, cfg.Tree.Capacity)
			},
		},
		{
			name:    "partial tree keeps defaults",
			content: "tree:\n  layout: packed\n",
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "packed", cfg.Tree.Layout)
				assert.Equal(t, config.DefaultTreePool, cfg.Tree.Pool)
				assert.Equal(t, config.DefaultTreeCapacity, cfg.Tree.Capacity)
				assert.Equal(t, config.DefaultBenchSizes(), cfg.Bench.Sizes)
			},
		},
		{
			name:    "snapshot limit",
			content: "snapshot:\n  max_size: 2KiB\n",
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()

				limit, err := cfg.Snapshot.MaxBytes()
				require.NoError(t, err)
				assert.Equal(t, int64(2048), limit)
			},
		},
		{
			name:    "invalid values fail validation",
			content: "tree:\n  pool: arena\n",
			errText: "pool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.LoadConfig(writeYAML(t, tt.content))
			if tt.errText != "" {
				require.ErrorContains(t, err, tt.errText)
				assert.Nil(t, cfg)

				return
			}

			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeYAML(t, "tree:\n  capacity: 16\ncheck:\n  policy: return\n")

	t.Setenv("FIXEDTREE_TREE_CAPACITY", "300")
	t.Setenv("FIXEDTREE_CHECK_POLICY", "log")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Tree.Capacity)
	assert.Equal(t, "log", cfg.Check.Policy)
}

func TestLoadConfig_MissingExplicitPath(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Nil(t, cfg)
}
