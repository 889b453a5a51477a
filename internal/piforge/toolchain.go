package piforge

import (
	"fmt"
	"os/exec"
	"strings"
)

// checkToolchain verifies that make and every cross compiler needed for
// the selected boards resolve on PATH. It runs before the first build so
// a missing toolchain never wastes a partial matrix pass.
func checkToolchain(boards []Board) error {
	if _, err := exec.LookPath("make"); err != nil {
		return fmt.Errorf("make not found on PATH: %w", err)
	}

	checked := make(map[string]bool)
	for _, b := range boards {
		gcc := b.ToolPrefix + "gcc"
		if checked[gcc] {
			continue
		}
		checked[gcc] = true
		if _, err := exec.LookPath(gcc); err != nil {
			return fmt.Errorf("cross compiler %s not found on PATH (needed for %s): %w", gcc, b.Name, err)
		}
	}
	return nil
}

// toolVersion returns the first line of `tool --version`, or an empty
// string when the tool is missing or unwilling to answer.
func toolVersion(tool string) string {
	out, err := exec.Command(tool, "--version").Output()
	if err != nil {
		return ""
	}
	lines := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)
	return lines[0]
}

// doctor prints the resolved toolchain state for every board.
func doctor(boards []Board) error {
	colArrow.Print("-> ")
	colSuccess.Println("Toolchain check")

	if v := toolVersion("make"); v != "" {
		fmt.Printf("  %-24s %s\n", "make", v)
	} else {
		colError.Println("  make: NOT FOUND")
	}

	seen := make(map[string]bool)
	missing := false
	for _, b := range boards {
		gcc := b.ToolPrefix + "gcc"
		if seen[gcc] {
			continue
		}
		seen[gcc] = true
		if v := toolVersion(gcc); v != "" {
			fmt.Printf("  %-24s %s\n", gcc, v)
		} else {
			colError.Printf("  %s: NOT FOUND\n", gcc)
			missing = true
		}
	}

	if missing {
		return fmt.Errorf("toolchain incomplete")
	}
	return nil
}
