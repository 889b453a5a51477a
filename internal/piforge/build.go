package piforge

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// buildPass is one invocation of the external build for a board. The
// HDMI variant rebuilds the same board with an extra compile-time flag
// in the make environment.
type buildPass struct {
	Variant  string // "" for the plain build, "hdmi" for the HDMI console build
	ExtraEnv []string
}

// buildPasses returns the passes to run per board: exactly one when HDMI
// support is off, exactly two when it is on.
func buildPasses(hdmi bool) []buildPass {
	passes := []buildPass{{}}
	if hdmi {
		passes = append(passes, buildPass{
			Variant:  "hdmi",
			ExtraEnv: []string{"HDMI_CONSOLE=1"},
		})
	}
	return passes
}

// BuildOptions carries per-invocation knobs for buildBoard.
type BuildOptions struct {
	CurrentIndex int
	TotalCount   int
	Quiet        bool   // suppress the elapsed-time status line (parallel mode)
	SourceDir    string // overrides the global source tree (parallel scratch builds)
}

func (o BuildOptions) sourceDir() string {
	if o.SourceDir != "" {
		return o.SourceDir
	}
	return SourceDir
}

// makeEnv assembles the environment for a make invocation: the process
// environment plus the board selectors and the pass extras.
func makeEnv(board Board, pass buildPass) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env,
		fmt.Sprintf("RASPPI=%d", board.RaspPi),
		fmt.Sprintf("AARCH=%d", board.Bits),
		fmt.Sprintf("PREFIX=%s", board.ToolPrefix),
	)
	env = append(env, pass.ExtraEnv...)
	return env
}

// makeClean runs `make clean` in the firmware tree. The external build
// is only idempotent from a clean tree, so this runs before every pass.
func makeClean(board Board, srcDir string, execCtx *Executor, logger io.Writer) error {
	cmd := exec.Command("make", "clean", fmt.Sprintf("BOARD=%s", board.Name))
	cmd.Dir = srcDir
	cmd.Env = makeEnv(board, buildPass{})
	cmd.Stdout = logger
	cmd.Stderr = logger
	if err := execCtx.Run(cmd); err != nil {
		return fmt.Errorf("make clean failed for %s: %w", board.Name, err)
	}
	return nil
}

// buildBoard runs one build pass for one board: make clean, make
// BOARD=<name>, then verifies the expected kernel image exists. The
// kernel is left in the source tree; staging copies it out.
func buildBoard(board Board, pass buildPass, execCtx *Executor, opts BuildOptions) (time.Duration, error) {
	startTime := time.Now()

	if err := os.MkdirAll(LogDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create log directory: %w", err)
	}

	label := board.Name
	if pass.Variant != "" {
		label = board.Name + "-" + pass.Variant
	}

	logPath := filepath.Join(LogDir, label+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	var output io.Writer = logFile
	if Verbose || Debug {
		output = io.MultiWriter(os.Stdout, logFile)
	}

	srcDir := opts.sourceDir()
	if err := makeClean(board, srcDir, execCtx, output); err != nil {
		return 0, err
	}

	debugf("Building %s (kernel %s) in %s\n", label, board.Kernel, srcDir)

	cmd := exec.Command("make",
		fmt.Sprintf("-j%d", MakeJobs),
		fmt.Sprintf("BOARD=%s", board.Name),
	)
	cmd.Dir = srcDir
	cmd.Env = makeEnv(board, pass)
	cmd.Stdout = output
	cmd.Stderr = output

	// Elapsed-time ticker on the console while the build output goes to
	// the log file.
	doneCh := make(chan struct{})
	var tickWg sync.WaitGroup
	if !Verbose && !opts.Quiet {
		setTerminalTitle(fmt.Sprintf("Starting %s", label))
		tickWg.Add(1)
		go func() {
			defer tickWg.Done()
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					elapsed := time.Since(startTime).Truncate(time.Second)
					setTerminalTitle(fmt.Sprintf("Building: %s (%d/%d) elapsed: %s",
						label, opts.CurrentIndex, opts.TotalCount, elapsed))
					colArrow.Print("-> ")
					colSuccess.Printf("Building %s elapsed: %s\r", label, elapsed)
				case <-doneCh:
					fmt.Print("\r\033[K")
					return
				case <-execCtx.Context.Done():
					return
				}
			}
		}()
	}

	runErr := execCtx.Run(cmd)
	close(doneCh)
	tickWg.Wait()

	elapsed := time.Since(startTime)
	if runErr != nil {
		return elapsed, fmt.Errorf("make BOARD=%s failed (log: %s): %w", board.Name, logPath, runErr)
	}

	// The whole point of the pass: the expected kernel image must exist.
	kernelPath := filepath.Join(srcDir, board.Kernel)
	if !fileExists(kernelPath) {
		return elapsed, fmt.Errorf("build for %s reported success but %s is missing", label, kernelPath)
	}

	return elapsed, nil
}

// kernelStagePath is where a built kernel lands inside the stage
// directory. HDMI variants go under hdmi/ so both variants ship in one
// archive.
func kernelStagePath(board Board, pass buildPass) string {
	if pass.Variant == "hdmi" {
		return filepath.Join(StageDir, "hdmi", board.Kernel)
	}
	return filepath.Join(StageDir, board.Kernel)
}

// buildAndStage runs every pass for one board and copies each resulting
// kernel into the stage directory.
func buildAndStage(board Board, execCtx *Executor, opts BuildOptions) error {
	for _, pass := range buildPasses(WithHDMI) {
		elapsed, err := buildBoard(board, pass, execCtx, opts)
		if err != nil {
			return err
		}

		src := filepath.Join(opts.sourceDir(), board.Kernel)
		dst := kernelStagePath(board, pass)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("failed to stage %s: %w", board.Kernel, err)
		}

		label := board.Name
		if pass.Variant != "" {
			label += " (" + pass.Variant + ")"
		}
		if !opts.Quiet {
			colArrow.Print("-> ")
			colSuccess.Printf("Built %s -> %s in %s\n", label, dst, elapsed.Truncate(time.Second))
		}
	}
	return nil
}

// RunMatrix builds every selected board sequentially, in matrix order,
// in a single linear pass without retries.
func RunMatrix(boards []Board, execCtx *Executor) error {
	if err := checkToolchain(boards); err != nil {
		return err
	}

	for i, board := range boards {
		opts := BuildOptions{CurrentIndex: i + 1, TotalCount: len(boards)}
		if err := buildAndStage(board, execCtx, opts); err != nil {
			return err
		}
	}
	return nil
}
