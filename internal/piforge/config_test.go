package piforge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piforge.conf")
	content := `# build settings
PIFORGE_PREFIX = "arm-custom-"
PIFORGE_JOBS=12

PIFORGE_WITH_HDMI='1'
malformed line without equals
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "arm-custom-", cfg.Values["PIFORGE_PREFIX"])
	assert.Equal(t, "12", cfg.Values["PIFORGE_JOBS"])
	assert.Equal(t, "1", cfg.Values["PIFORGE_WITH_HDMI"])
	assert.Equal(t, path, cfg.Path)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.conf"))
	require.NoError(t, err, "a missing config file is not an error")
	assert.Empty(t, cfg.Path)
}

func TestMergeEnvOverrides(t *testing.T) {
	t.Setenv("PIFORGE_PREFIX64", "env-aarch64-")
	t.Setenv("WITH_HDMI", "1")

	cfg := &Config{Values: map[string]string{"PIFORGE_PREFIX64": "file-aarch64-"}}
	mergeEnvOverrides(cfg)

	assert.Equal(t, "env-aarch64-", cfg.Values["PIFORGE_PREFIX64"], "environment wins over file")
	assert.Equal(t, "1", cfg.Values["PIFORGE_WITH_HDMI"], "bare WITH_HDMI is honoured")
}

func TestInitConfigDefaults(t *testing.T) {
	cfg := &Config{Values: map[string]string{}}
	initConfig(cfg)

	assert.Equal(t, ".", SourceDir)
	assert.Equal(t, "arm-none-eabi-", Prefix32)
	assert.Equal(t, "aarch64-none-elf-", Prefix64)
	assert.False(t, WithHDMI)
	assert.Greater(t, MakeJobs, 0)
}

func TestInitConfigOverrides(t *testing.T) {
	cfg := &Config{Values: map[string]string{
		"PIFORGE_SRC":       "/src/firmware",
		"PIFORGE_WITH_HDMI": "1",
		"PIFORGE_JOBS":      "3",
	}}
	initConfig(cfg)

	assert.Equal(t, "/src/firmware", SourceDir)
	assert.True(t, WithHDMI)
	assert.Equal(t, 3, MakeJobs)
	assert.Equal(t, filepath.Join("/src/firmware", "sdcard"), StageDir)
	assert.Equal(t, filepath.Join("/src/firmware", "dist"), DistDir)
}

func TestSetConfigValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piforge.conf")
	require.NoError(t, os.WriteFile(path, []byte("# keep me\nPIFORGE_JOBS=4\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	require.NoError(t, setConfigValue(cfg, "PIFORGE_JOBS", "8"))
	require.NoError(t, setConfigValue(cfg, "PIFORGE_WITH_HDMI", "1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# keep me", "comments survive the rewrite")
	assert.Contains(t, text, "PIFORGE_JOBS=8")
	assert.Contains(t, text, "PIFORGE_WITH_HDMI=1")
	assert.NotContains(t, text, "PIFORGE_JOBS=4")
}
