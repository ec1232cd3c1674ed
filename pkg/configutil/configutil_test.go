package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string `json:"name"`
	Workers int    `json:"workers"`
	Nested  struct {
		Endpoint string `json:"endpoint"`
	} `json:"nested"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.json5"), `{
		// comments are allowed
		name: "base",
		workers: 4,
		nested: { endpoint: "http://a" },
	}`)
	writeFile(t, filepath.Join(dir, "app.local.json5"), `{ workers: 8 }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.Equal(t, "base", cfg.Name)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, "http://a", cfg.Nested.Endpoint)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.json5"), `{ name: `)
	_, err := ReadConfig[testConfig](filepath.Join(dir, "bad.json5"))
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

func TestWithDefaults(t *testing.T) {
	defaults := testConfig{Name: "default", Workers: 6}
	merged, err := WithDefaults(defaults, testConfig{Workers: 2})
	require.NoError(t, err)
	require.Equal(t, "default", merged.Name)
	require.Equal(t, 2, merged.Workers)
}
