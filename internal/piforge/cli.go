package piforge

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
)

// printHelp prints the commands table
func printHelp() {
	// General Usage Header
	colSuccess.Println("Usage: piforge <command> [arguments]")
	colSuccess.Println("Run 'piforge <command> -h' for command options")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"version", "", "Version information"},
		{"boards", "", "List the board matrix and kernel image names"},
		{"doctor", "", "Verify make and the cross toolchains are on PATH"},
		{"fetch", "", "Download missing boot and WLAN firmware into the cache"},
		{"build", "[-par N] [board...]", "Cross-compile kernels (all boards when none given)"},
		{"stage", "", "Copy boot and WLAN firmware into the SD-card directory"},
		{"package", "[-format zip|tar.gz]", "Archive the SD-card directory and write checksums"},
		{"release", "", "fetch + build + stage + package in one pass"},
		{"verify", "", "Re-check the checksums manifest against the archives"},
		{"install", "<mountpoint>", "Copy the staged SD-card layout onto a mounted card"},
		{"upload", "[-list] [-prune]", "Publish the release archive to the R2 bucket"},
		{"logs", "[board]", "Show the tail of the most recent build log"},
		{"clean", "", "Remove stage and dist output, compress old logs"},
		{"set", "<key> <value>", "Persist a configuration value"},
	}

	// Find the longest usage string to size the first column.
	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		color.Info.Println(c.Desc)
	}

	fmt.Println()
}

// fatal prints an error and exits. Only the CLI layer may exit.
func fatal(err error) {
	colArrow.Print("-> ")
	colError.Printf("Error: %v\n", err)
	os.Exit(1)
}

// Main is the CLI entrypoint.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	// Signal handling: graceful cancel on the first signal, forced exit
	// on the second. Card installation latches the critical flag so one
	// Ctrl+C cannot leave a half-copied card.
	go func() {
		for {
			select {
			case sig := <-sigs:
				if isCriticalAtomic.Load() == 1 {
					colArrow.Print("\n-> ")
					colError.Println("Critical operation in progress (card install). Press Ctrl+C AGAIN to force exit NOW.")
					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						colError.Println("Forced immediate exit.")
						os.Exit(130)
					case <-time.After(5 * time.Second):
						continue
					case <-ctx.Done():
						return
					}
				} else {
					colArrow.Print("\n-> ")
					color.Danger.Printf("Received %v. Cancelling process gracefully\n", sig)
					cancel()

					// Give the command a moment to die and flush its buffers
					time.Sleep(100 * time.Millisecond)

					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						color.Danger.Println("Second interrupt received. Forcing immediate exit.")
						os.Exit(130)
					case <-time.After(2 * time.Second):
						colArrow.Print("\n-> ")
						color.Danger.Println("Graceful shutdown timeout. Exiting.")
						os.Exit(0)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if ctx.Err() != nil {
		return
	}

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		fatal(fmt.Errorf("failed to load configuration: %w", err))
	}
	initConfig(cfg)

	UserExec = &Executor{
		Context:         ctx,
		ShouldRunAsRoot: false,
	}
	RootExec = &Executor{
		Context:         ctx,
		ShouldRunAsRoot: true,
	}

	switch os.Args[1] {
	case "version", "--version":
		fmt.Printf("piforge %s (built %s)\n", version, buildDate)

	case "help", "-h", "--help":
		printHelp()

	case "boards":
		for _, b := range AllBoards() {
			fmt.Printf("  %-8s RASPPI=%d AARCH=%d %-20s %s\n",
				b.Name, b.RaspPi, b.Bits, b.ToolPrefix+"gcc", b.Kernel)
		}

	case "doctor":
		if err := doctor(AllBoards()); err != nil {
			os.Exit(1)
		}

	case "fetch":
		if err := fetchFirmware(); err != nil {
			fatal(err)
		}

	case "build":
		fs := flag.NewFlagSet("build", flag.ExitOnError)
		par := fs.Int("par", 1, "number of boards to build concurrently")
		fs.Parse(os.Args[2:])

		boards, err := selectBoards(fs.Args())
		if err != nil {
			fatal(err)
		}
		if len(boards) == 0 {
			return
		}

		if *par > 1 {
			err = RunParallelBuilds(boards, *par, UserExec)
		} else {
			err = RunMatrix(boards, UserExec)
		}
		if err != nil {
			fatal(err)
		}

	case "stage":
		if err := stageFirmware(); err != nil {
			fatal(err)
		}

	case "package":
		fs := flag.NewFlagSet("package", flag.ExitOnError)
		format := fs.String("format", "zip", "archive format: zip or tar.gz")
		fs.Parse(os.Args[2:])

		boards, err := ParseBoards(fs.Args())
		if err != nil {
			fatal(err)
		}
		if err := packageRelease(boards, *format, UserExec); err != nil {
			fatal(err)
		}

	case "release":
		boards, err := ParseBoards(os.Args[2:])
		if err != nil {
			fatal(err)
		}
		if err := fetchFirmware(); err != nil {
			fatal(err)
		}
		// Stage firmware before building so a missing blob aborts the
		// run before the first (expensive) compile.
		if err := stageFirmware(); err != nil {
			fatal(err)
		}
		if err := RunMatrix(boards, UserExec); err != nil {
			fatal(err)
		}
		if err := packageRelease(boards, "zip", UserExec); err != nil {
			fatal(err)
		}

	case "verify":
		bad, err := verifyChecksums(filepath.Join(DistDir, "checksums"))
		if err != nil {
			fatal(err)
		}
		if len(bad) > 0 {
			fatal(fmt.Errorf("checksum mismatch: %s", strings.Join(bad, ", ")))
		}
		colArrow.Print("-> ")
		colSuccess.Println("All checksums match")

	case "install":
		if len(os.Args) < 3 {
			fmt.Println("Usage: piforge install <mountpoint>")
			os.Exit(1)
		}
		if err := installToCard(os.Args[2], RootExec); err != nil {
			fatal(err)
		}

	case "upload":
		fs := flag.NewFlagSet("upload", flag.ExitOnError)
		list := fs.Bool("list", false, "list published release objects")
		prune := fs.Bool("prune", false, "delete releases other than the current version")
		fs.Parse(os.Args[2:])

		switch {
		case *list:
			err = listReleases(ctx, cfg)
		case *prune:
			err = pruneReleases(ctx, cfg)
		default:
			err = uploadRelease(ctx, cfg)
		}
		if err != nil {
			fatal(err)
		}

	case "logs":
		board := ""
		if len(os.Args) >= 3 {
			board = os.Args[2]
		}
		if err := showLogs(board); err != nil {
			fatal(err)
		}

	case "clean":
		if err := cleanOutputs(); err != nil {
			fatal(err)
		}

	case "set":
		if len(os.Args) < 4 {
			fmt.Println("Usage: piforge set <key> <value>")
			os.Exit(1)
		}
		if err := setConfigValue(cfg, os.Args[2], os.Args[3]); err != nil {
			fatal(err)
		}
		colArrow.Print("-> ")
		colSuccess.Printf("%s=%s saved\n", os.Args[2], os.Args[3])

	default:
		fmt.Println("Unknown command:", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

// selectBoards resolves the build target list: explicit args win, an
// interactive TTY gets the picker, anything else builds the full matrix.
func selectBoards(args []string) ([]Board, error) {
	if len(args) > 0 {
		return ParseBoards(args)
	}
	if stdinIsTerminal() {
		boards, err := runBoardPicker()
		if err != nil {
			return nil, err
		}
		if boards == nil {
			colArrow.Print("-> ")
			colWarn.Println("No boards selected")
		}
		return boards, nil
	}
	return AllBoards(), nil
}

// showLogs prints the tail of a board's most recent build log, or the
// newest log overall when no board was named.
func showLogs(board string) error {
	entries, err := os.ReadDir(LogDir)
	if err != nil {
		return fmt.Errorf("no build logs in %s: %w", LogDir, err)
	}

	var newest string
	var newestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		if board != "" && !strings.HasPrefix(entry.Name(), board) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestTime) {
			newestTime = info.ModTime()
			newest = entry.Name()
		}
	}
	if newest == "" {
		return fmt.Errorf("no matching build log in %s", LogDir)
	}

	path := filepath.Join(LogDir, newest)
	lines, err := tailFile(path, 40)
	if err != nil {
		return err
	}
	colArrow.Print("-> ")
	colSuccess.Printf("%s:\n", path)
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

// cleanOutputs removes the stage and dist directories and compresses any
// remaining plain-text build logs.
func cleanOutputs() error {
	for _, dir := range []string{StageDir, DistDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}
	if err := compressOldLogs(); err != nil {
		return err
	}
	colArrow.Print("-> ")
	colSuccess.Println("Cleaned stage and dist outputs")
	return nil
}
