package piforge

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"
)

// check if b3sum is installed on system
func hasB3sum() bool {
	_, err := exec.LookPath("b3sum")
	return err == nil
}

// hashFile returns the BLAKE3 hex digest of a file. System b3sum is
// preferred; the pure-Go implementation gives the same digest.
func hashFile(path string) (string, error) {
	if hasB3sum() {
		cmd := exec.Command("b3sum", "--no-names", path)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = io.Discard
		if err := cmd.Run(); err == nil {
			fields := strings.Fields(out.String())
			if len(fields) > 0 {
				return fields[0], nil
			}
		}
		debugf("b3sum failed for %s, falling back to internal BLAKE3\n", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// writeChecksums writes a `checksums` manifest into dir, one
// "<hash>  <basename>" line per artifact, and returns the manifest path.
func writeChecksums(dir string, artifacts []string) (string, error) {
	manifestPath := filepath.Join(dir, "checksums")

	var sb strings.Builder
	for _, artifact := range artifacts {
		sum, err := hashFile(artifact)
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", artifact, err)
		}
		sb.WriteString(fmt.Sprintf("%s  %s\n", sum, filepath.Base(artifact)))
	}

	if err := os.WriteFile(manifestPath, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write checksums manifest: %w", err)
	}
	return manifestPath, nil
}

// verifyChecksums re-hashes every entry of a manifest against the files
// next to it and returns the names that mismatch or are missing.
func verifyChecksums(manifestPath string) ([]string, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dir := filepath.Dir(manifestPath)
	var bad []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) < 2 {
			continue
		}
		want := fields[0]
		name := strings.Join(fields[1:], " ")

		got, err := hashFile(filepath.Join(dir, name))
		if err != nil || got != want {
			bad = append(bad, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return bad, nil
}
