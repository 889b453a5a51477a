package piforge

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// bootFiles are the Broadcom boot-loader blobs the GPU needs before any
// kernel of ours runs. They come from the Raspberry Pi firmware
// repository and are cached under CacheDir/boot.
var bootFiles = []string{
	"bootcode.bin",
	"start.elf",
	"fixup.dat",
	"start4.elf",
	"fixup4.dat",
	"bcm2711-rpi-4-b.dtb",
	"LICENCE.broadcom",
}

// wlanFiles are the WLAN firmware blobs staged under firmware/ on the
// card, one set per radio chip generation.
var wlanFiles = []string{
	"brcmfmac43430-sdio.bin",
	"brcmfmac43430-sdio.txt",
	"brcmfmac43436-sdio.bin",
	"brcmfmac43436-sdio.txt",
	"brcmfmac43436-sdio.clm_blob",
	"brcmfmac43455-sdio.bin",
	"brcmfmac43455-sdio.txt",
	"brcmfmac43455-sdio.clm_blob",
	"brcmfmac43456-sdio.bin",
	"brcmfmac43456-sdio.txt",
	"brcmfmac43456-sdio.clm_blob",
}

// projectFiles are provided by the firmware source tree itself, not
// downloaded.
var projectFiles = []string{
	"config.txt",
}

func bootCacheDir() string { return filepath.Join(CacheDir, "boot") }
func wlanCacheDir() string { return filepath.Join(CacheDir, "wlan") }

// verifyStagePrereqs checks that every required file exists BEFORE any
// copying or packaging starts. It reports all missing files at once so
// one run is enough to see the full damage.
func verifyStagePrereqs() error {
	var missing []string

	for _, name := range bootFiles {
		if !fileExists(filepath.Join(bootCacheDir(), name)) {
			missing = append(missing, filepath.Join(bootCacheDir(), name))
		}
	}
	for _, name := range wlanFiles {
		if !fileExists(filepath.Join(wlanCacheDir(), name)) {
			missing = append(missing, filepath.Join(wlanCacheDir(), name))
		}
	}
	for _, name := range projectFiles {
		if !fileExists(filepath.Join(SourceDir, name)) {
			missing = append(missing, filepath.Join(SourceDir, name))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required files (run 'piforge fetch' for firmware blobs):\n  %s",
			strings.Join(missing, "\n  "))
	}
	return nil
}

// stageFirmware copies the boot blobs, WLAN firmware and project files
// into the stage directory. Kernels are staged by buildAndStage as each
// build pass finishes.
func stageFirmware() error {
	if err := verifyStagePrereqs(); err != nil {
		return err
	}

	if err := os.MkdirAll(StageDir, 0o755); err != nil {
		return fmt.Errorf("failed to create stage directory: %w", err)
	}

	for _, name := range bootFiles {
		if err := copyFile(filepath.Join(bootCacheDir(), name), filepath.Join(StageDir, name)); err != nil {
			return fmt.Errorf("failed to stage %s: %w", name, err)
		}
	}

	fwDir := filepath.Join(StageDir, "firmware")
	for _, name := range wlanFiles {
		if err := copyFile(filepath.Join(wlanCacheDir(), name), filepath.Join(fwDir, name)); err != nil {
			return fmt.Errorf("failed to stage %s: %w", name, err)
		}
	}

	for _, name := range projectFiles {
		if err := copyFile(filepath.Join(SourceDir, name), filepath.Join(StageDir, name)); err != nil {
			return fmt.Errorf("failed to stage %s: %w", name, err)
		}
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Staged boot firmware into %s\n", StageDir)
	return nil
}

// verifyStagedKernels checks that every selected board (and variant) has
// its kernel image in the stage directory. Runs before packaging.
func verifyStagedKernels(boards []Board) error {
	var missing []string
	for _, b := range boards {
		for _, pass := range buildPasses(WithHDMI) {
			path := kernelStagePath(b, pass)
			if !fileExists(path) {
				missing = append(missing, path)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("kernel images missing from stage (run 'piforge build' first):\n  %s",
			strings.Join(missing, "\n  "))
	}
	return nil
}

// installToCard copies the staged tree onto a mounted SD card. The
// mountpoint must already exist; this never partitions or formats.
func installToCard(mount string, rootExec *Executor) error {
	if !dirExists(mount) {
		return fmt.Errorf("mountpoint %s does not exist or is not a directory", mount)
	}
	if !dirExists(StageDir) {
		return fmt.Errorf("stage directory %s does not exist (run 'piforge stage' first)", StageDir)
	}

	need, err := dirSize(StageDir)
	if err != nil {
		return fmt.Errorf("failed to measure stage directory: %w", err)
	}
	free, err := freeSpace(mount)
	if err != nil {
		return err
	}
	if uint64(need) > free {
		return fmt.Errorf("not enough space on %s: need %d bytes, have %d", mount, need, free)
	}

	// Copying onto a card is the one step we refuse to interrupt
	// half-way; a second Ctrl+C still forces exit.
	isCriticalAtomic.Store(1)
	defer isCriticalAtomic.Store(0)

	if err := copyDir(StageDir, mount); err != nil {
		// Card mounted root-owned: retry the copy with elevation.
		debugf("direct copy failed (%v), retrying as root\n", err)
		cpCmd := exec.Command("cp", "-a", StageDir+"/.", mount+"/")
		if err := rootExec.Run(cpCmd); err != nil {
			return fmt.Errorf("failed to copy onto %s: %w", mount, err)
		}
	}

	// Flush before the user yanks the card.
	syncCmd := exec.Command("sync")
	if err := rootExec.Run(syncCmd); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Installed SD-card image onto %s\n", mount)
	return nil
}
