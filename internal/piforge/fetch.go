package piforge

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
)

func newHttpClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Default is 10s; GitHub's raw endpoints are occasionally slow to
	// complete the handshake from CI runners.
	transport.TLSHandshakeTimeout = 30 * time.Second

	return &http.Client{
		Transport: transport,
		Timeout:   300 * time.Second, // 5 min total timeout for large downloads
	}
}

// downloadFile fetches url into destFile, guarded by a flock so two
// piforge processes sharing a cache never clobber each other. curl is
// preferred when present; the pure-Go fallback draws its own progress
// bar.
func downloadFile(url, destFile string) error {
	if err := os.MkdirAll(filepath.Dir(destFile), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", destFile, err)
	}

	lockPath := destFile + ".lock"
	lFile, err := os.Create(lockPath)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer lFile.Close()

	// Blocks while another process downloads the same file.
	if err := unix.Flock(int(lFile.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock for download: %w", err)
	}
	defer unix.Flock(int(lFile.Fd()), unix.LOCK_UN)

	// Double check now that we hold the lock: the other process may
	// have finished the download while we waited.
	if fileExists(destFile) {
		debugf("File %s appeared after acquiring lock, skipping download.\n", destFile)
		_ = os.Remove(lockPath)
		return nil
	}

	defer func() {
		if fileExists(destFile) {
			_ = os.Remove(lockPath)
		}
	}()

	debugf("Downloading %s -> %s\n", url, destFile)

	// --- Primary choice: curl ---
	if _, err := exec.LookPath("curl"); err == nil {
		args := []string{"-L", "--fail", "-o", destFile}
		if Verbose {
			args = append(args, "-#")
		} else {
			args = append(args, "-sS")
		}
		args = append(args, url)
		cmd := exec.Command("curl", args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err == nil {
			return nil
		}
		debugf("curl failed, falling back to Go HTTP client\n")
	}

	// --- Fallback: pure-Go HTTP with a progress bar ---
	client := newHttpClient()
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: HTTP %s", url, resp.Status)
	}

	tmpPath := destFile + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(destFile))
	_, err = io.Copy(io.MultiWriter(out, bar), resp.Body)
	out.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", destFile, err)
	}

	return os.Rename(tmpPath, destFile)
}

// fetchFirmware downloads every missing boot and WLAN firmware blob into
// the cache. Files already cached are left alone.
func fetchFirmware() error {
	fetched := 0

	for _, name := range bootFiles {
		dest := filepath.Join(bootCacheDir(), name)
		if fileExists(dest) {
			continue
		}
		if err := downloadFile(firmwareBootURL+"/"+name, dest); err != nil {
			return err
		}
		fetched++
	}

	for _, name := range wlanFiles {
		dest := filepath.Join(wlanCacheDir(), name)
		if fileExists(dest) {
			continue
		}
		if err := downloadFile(firmwareWlanURL+"/"+name, dest); err != nil {
			return err
		}
		fetched++
	}

	colArrow.Print("-> ")
	if fetched == 0 {
		colSuccess.Println("Firmware cache is complete")
	} else {
		colSuccess.Printf("Fetched %d firmware files into %s\n", fetched, CacheDir)
	}
	return nil
}
