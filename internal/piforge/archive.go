package piforge

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// releaseName returns the basename of the distributable archive for the
// given extension, e.g. piforge-sdcard-v1.2.0.zip.
func releaseName(ext string) string {
	return fmt.Sprintf("piforge-sdcard-%s.%s", version, ext)
}

// createZip packs the stage directory into a zip under DistDir. System
// zip is tried first; otherwise the pure-Go writer takes over.
func createZip(execCtx *Executor) (string, error) {
	if err := os.MkdirAll(DistDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dist directory: %w", err)
	}

	zipPath, err := filepath.Abs(filepath.Join(DistDir, releaseName("zip")))
	if err != nil {
		return "", err
	}
	_ = os.Remove(zipPath)

	// --- Try system zip first ---
	if _, err := exec.LookPath("zip"); err == nil {
		cmd := exec.Command("zip", "-r", "-q", zipPath, ".")
		cmd.Dir = StageDir
		debugf("Creating release zip with system zip: %s\n", zipPath)
		if err := execCtx.Run(cmd); err == nil {
			return zipPath, nil
		}
		// fall through to internal if zip fails
	}

	debugf("System zip not available, falling back to internal writer for %s\n", zipPath)

	outFile, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create zip file: %w", err)
	}
	defer outFile.Close()

	zw := zip.NewWriter(outFile)
	defer zw.Close()

	err = filepath.Walk(StageDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(StageDir, path)
		if err != nil {
			return err
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to add files to zip: %w", err)
	}
	return zipPath, nil
}

// createTarGz packs the stage directory into a .tar.gz under DistDir
// using parallel gzip.
func createTarGz() (string, error) {
	if err := os.MkdirAll(DistDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dist directory: %w", err)
	}

	tarPath := filepath.Join(DistDir, releaseName("tar.gz"))
	outFile, err := os.Create(tarPath)
	if err != nil {
		return "", fmt.Errorf("failed to create tarball file: %w", err)
	}
	defer outFile.Close()

	gz := pgzip.NewWriter(outFile)
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	err = filepath.Walk(StageDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(StageDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		// Shipped archives are portably root-owned.
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "root", "root"

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			if _, err := io.Copy(tw, f); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to add files to tarball: %w", err)
	}
	return tarPath, nil
}

// packageRelease verifies the stage, writes the archive in the requested
// format and drops a checksums manifest next to it.
func packageRelease(boards []Board, format string, execCtx *Executor) error {
	// Nothing gets packaged from a broken stage.
	if err := verifyStagePrereqs(); err != nil {
		return err
	}
	if err := verifyStagedKernels(boards); err != nil {
		return err
	}

	var archivePath string
	var err error
	switch format {
	case "zip":
		archivePath, err = createZip(execCtx)
	case "tar.gz", "tgz":
		archivePath, err = createTarGz()
	default:
		return fmt.Errorf("unknown archive format %q (zip, tar.gz)", format)
	}
	if err != nil {
		return err
	}

	manifest, err := writeChecksums(DistDir, []string{archivePath})
	if err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Release ready: %s (+ %s)\n", archivePath, manifest)
	return nil
}

// compressXZ compresses a build log in place, replacing path with
// path.xz.
func compressXZ(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(path + ".xz")
	if err != nil {
		return err
	}
	defer dest.Close()

	xzWriter, err := xz.NewWriter(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(xzWriter, src); err != nil {
		xzWriter.Close()
		return err
	}
	if err := xzWriter.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// compressOldLogs xz-compresses every plain .log file in LogDir.
func compressOldLogs() error {
	entries, err := os.ReadDir(LogDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		if err := compressXZ(filepath.Join(LogDir, entry.Name())); err != nil {
			return fmt.Errorf("failed to compress %s: %w", entry.Name(), err)
		}
	}
	return nil
}
