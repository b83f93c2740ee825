package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestDefaultCapCacheTTLMatchesSpecOneHour(t *testing.T) {
	require.Equal(t, time.Hour, Default().CapCacheTTL)
}

func TestLoadExpandsEnvVarsInStorePath(t *testing.T) {
	t.Setenv("MODELGATE_DATA_DIR", "/var/lib/modelgate")
	path := writeConfig(t, `store_path = "${MODELGATE_DATA_DIR}/store.db"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/modelgate/store.db", cfg.StorePath)
}

func TestLoadLeavesUnresolvedEnvVarsAsIs(t *testing.T) {
	path := writeConfig(t, `store_path = "${DOES_NOT_EXIST}/store.db"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "${DOES_NOT_EXIST}/store.db", cfg.StorePath)
}

func TestLoadParsesDurationFields(t *testing.T) {
	path := writeConfig(t, `
cap_cache_ttl = "5m"
async_overall_timeout = "45s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.CapCacheTTL)
	require.Equal(t, 45*time.Second, cfg.AsyncOverallTimeout)
}

func TestLoadParsesConcurrencyOverrides(t *testing.T) {
	path := writeConfig(t, `
[concurrency]
openai = 16
anthropic = 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, int64(16), cfg.Concurrency["openai"])
	require.Equal(t, int64(2), cfg.Concurrency["anthropic"])
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
