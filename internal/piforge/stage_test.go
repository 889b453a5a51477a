package piforge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStageDirs(t *testing.T) {
	t.Helper()
	oldSrc, oldCache, oldStage := SourceDir, CacheDir, StageDir
	oldDist, oldLog, oldHDMI := DistDir, LogDir, WithHDMI
	t.Cleanup(func() {
		SourceDir, CacheDir, StageDir = oldSrc, oldCache, oldStage
		DistDir, LogDir, WithHDMI = oldDist, oldLog, oldHDMI
	})
	root := t.TempDir()
	SourceDir = filepath.Join(root, "src")
	CacheDir = filepath.Join(root, "cache")
	StageDir = filepath.Join(root, "sdcard")
	DistDir = filepath.Join(root, "dist")
	LogDir = filepath.Join(root, "logs")
	WithHDMI = false
	require.NoError(t, os.MkdirAll(SourceDir, 0o755))
}

// populateFirmware fills the cache and source tree with every required
// file so staging can succeed.
func populateFirmware(t *testing.T) {
	t.Helper()
	for _, name := range bootFiles {
		writeTestFile(t, filepath.Join(bootCacheDir(), name), "boot blob "+name)
	}
	for _, name := range wlanFiles {
		writeTestFile(t, filepath.Join(wlanCacheDir(), name), "wlan blob "+name)
	}
	for _, name := range projectFiles {
		writeTestFile(t, filepath.Join(SourceDir, name), "project file "+name)
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestVerifyStagePrereqsReportsAllMissing(t *testing.T) {
	setupStageDirs(t)

	err := verifyStagePrereqs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootcode.bin")
	assert.Contains(t, err.Error(), "brcmfmac43455-sdio.bin")
	assert.Contains(t, err.Error(), "config.txt")
}

func TestVerifyStagePrereqsSingleMissingFile(t *testing.T) {
	setupStageDirs(t)
	populateFirmware(t)
	require.NoError(t, os.Remove(filepath.Join(wlanCacheDir(), "brcmfmac43436-sdio.clm_blob")))

	err := verifyStagePrereqs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brcmfmac43436-sdio.clm_blob")
}

func TestStageFirmware(t *testing.T) {
	setupStageDirs(t)
	populateFirmware(t)

	require.NoError(t, stageFirmware())

	assert.FileExists(t, filepath.Join(StageDir, "bootcode.bin"))
	assert.FileExists(t, filepath.Join(StageDir, "start4.elf"))
	assert.FileExists(t, filepath.Join(StageDir, "config.txt"))
	assert.FileExists(t, filepath.Join(StageDir, "firmware", "brcmfmac43430-sdio.txt"))

	data, err := os.ReadFile(filepath.Join(StageDir, "bootcode.bin"))
	require.NoError(t, err)
	assert.Equal(t, "boot blob bootcode.bin", string(data))
}

func TestVerifyStagedKernels(t *testing.T) {
	setupStageDirs(t)

	boards, err := ParseBoards([]string{"pi2", "pi4-64"})
	require.NoError(t, err)

	err = verifyStagedKernels(boards)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel7.img")
	assert.Contains(t, err.Error(), "kernel8-rpi4.img")

	writeTestFile(t, filepath.Join(StageDir, "kernel7.img"), "k7")
	writeTestFile(t, filepath.Join(StageDir, "kernel8-rpi4.img"), "k8")
	require.NoError(t, verifyStagedKernels(boards))

	// The HDMI variant doubles the expected set.
	WithHDMI = true
	err = verifyStagedKernels(boards)
	require.Error(t, err)
	assert.Contains(t, err.Error(), filepath.Join("hdmi", "kernel7.img"))
}

func TestPackageFailsBeforeArchivingOnBrokenStage(t *testing.T) {
	setupStageDirs(t)
	populateFirmware(t)
	require.NoError(t, os.Remove(filepath.Join(bootCacheDir(), "start.elf")))

	boards, err := ParseBoards([]string{"pi2"})
	require.NoError(t, err)

	err = packageRelease(boards, "zip", testExecutor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start.elf")

	// Packaging must not have started: no dist output exists.
	assert.NoDirExists(t, DistDir)
}

func TestPackageFailsWithoutKernels(t *testing.T) {
	setupStageDirs(t)
	populateFirmware(t)
	require.NoError(t, stageFirmware())

	boards, err := ParseBoards([]string{"pi3"})
	require.NoError(t, err)

	err = packageRelease(boards, "zip", testExecutor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel8-32.img")
	assert.NoDirExists(t, DistDir)
}

func TestInstallToCardRejectsMissingMount(t *testing.T) {
	setupStageDirs(t)

	err := installToCard(filepath.Join(t.TempDir(), "nope"), testExecutor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestInstallToCardCopiesStage(t *testing.T) {
	setupStageDirs(t)
	populateFirmware(t)
	require.NoError(t, stageFirmware())
	writeTestFile(t, filepath.Join(StageDir, "kernel7.img"), "k7")

	mount := t.TempDir()
	require.NoError(t, installToCard(mount, testExecutor()))

	assert.FileExists(t, filepath.Join(mount, "kernel7.img"))
	assert.FileExists(t, filepath.Join(mount, "bootcode.bin"))
	assert.FileExists(t, filepath.Join(mount, "firmware", "brcmfmac43456-sdio.bin"))
}
