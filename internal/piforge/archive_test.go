package piforge

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func TestReleaseName(t *testing.T) {
	assert.Equal(t, "piforge-sdcard-dev.zip", releaseName("zip"))
	assert.Equal(t, "piforge-sdcard-dev.tar.gz", releaseName("tar.gz"))
}

func TestCreateTarGz(t *testing.T) {
	setupStageDirs(t)
	writeTestFile(t, filepath.Join(StageDir, "kernel7.img"), "k7")
	writeTestFile(t, filepath.Join(StageDir, "firmware", "brcmfmac43430-sdio.bin"), "fw")

	tarPath, err := createTarGz()
	require.NoError(t, err)
	require.FileExists(t, tarPath)

	f, err := os.Open(tarPath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	names := make(map[string]bool)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names[hdr.Name] = true
		assert.Equal(t, 0, hdr.Uid, "entries are root-owned")
	}

	assert.True(t, names["kernel7.img"])
	assert.True(t, names["firmware/brcmfmac43430-sdio.bin"])
}

func TestCreateZip(t *testing.T) {
	setupStageDirs(t)
	writeTestFile(t, filepath.Join(StageDir, "kernel8.img"), "k8")
	writeTestFile(t, filepath.Join(StageDir, "hdmi", "kernel8.img"), "k8h")

	zipPath, err := createZip(testExecutor())
	require.NoError(t, err)
	require.FileExists(t, zipPath)

	r, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer r.Close()

	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}
	assert.True(t, names["kernel8.img"])
	assert.True(t, names["hdmi/kernel8.img"])
}

func TestPackageReleaseWritesArchiveAndManifest(t *testing.T) {
	setupStageDirs(t)
	populateFirmware(t)
	require.NoError(t, stageFirmware())

	boards, err := ParseBoards([]string{"pi2"})
	require.NoError(t, err)
	writeTestFile(t, filepath.Join(StageDir, "kernel7.img"), "k7")

	require.NoError(t, packageRelease(boards, "tar.gz", testExecutor()))

	assert.FileExists(t, filepath.Join(DistDir, releaseName("tar.gz")))
	assert.FileExists(t, filepath.Join(DistDir, "checksums"))

	bad, err := verifyChecksums(filepath.Join(DistDir, "checksums"))
	require.NoError(t, err)
	assert.Empty(t, bad)
}

func TestPackageReleaseUnknownFormat(t *testing.T) {
	setupStageDirs(t)
	populateFirmware(t)
	require.NoError(t, stageFirmware())

	boards, err := ParseBoards([]string{"pi2"})
	require.NoError(t, err)
	writeTestFile(t, filepath.Join(StageDir, "kernel7.img"), "k7")

	err = packageRelease(boards, "rar", testExecutor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown archive format")
}

func TestCompressXZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pi2.log")
	content := "make output line one\nmake output line two\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, compressXZ(path))

	assert.NoFileExists(t, path, "the plain log is replaced")

	f, err := os.Open(path + ".xz")
	require.NoError(t, err)
	defer f.Close()

	xr, err := xz.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(xr)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestCompressOldLogs(t *testing.T) {
	setupStageDirs(t)
	writeTestFile(t, filepath.Join(LogDir, "pi3.log"), "old log")
	writeTestFile(t, filepath.Join(LogDir, "pi4.log.xz"), "already compressed")

	require.NoError(t, compressOldLogs())

	assert.NoFileExists(t, filepath.Join(LogDir, "pi3.log"))
	assert.FileExists(t, filepath.Join(LogDir, "pi3.log.xz"))
	assert.FileExists(t, filepath.Join(LogDir, "pi4.log.xz"))
}
