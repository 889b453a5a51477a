package piforge

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ParallelManager runs independent board builds concurrently. Every
// worker builds in its own scratch copy of the source tree; the external
// build cannot share one tree between boards.
type ParallelManager struct {
	MaxJobs int
	Exec    *Executor

	// State
	mu        sync.Mutex
	Running   map[string]time.Time // board name -> start time
	Completed map[string]time.Duration
	Failed    map[string]error

	// Dep injection for testing
	Builder func(Board, *Executor, BuildOptions) error
}

type boardResult struct {
	board    string
	err      error
	duration time.Duration
}

// buildInScratch copies the source tree into a temp directory and runs
// the full pass set for one board there. Staging still lands in the
// shared stage directory.
func buildInScratch(board Board, execCtx *Executor, opts BuildOptions) error {
	scratch, err := os.MkdirTemp("", "piforge-"+board.Name+"-")
	if err != nil {
		return fmt.Errorf("failed to create scratch tree: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := copyDir(SourceDir, scratch); err != nil {
		return fmt.Errorf("failed to populate scratch tree for %s: %w", board.Name, err)
	}

	opts.SourceDir = scratch
	opts.Quiet = true
	return buildAndStage(board, execCtx, opts)
}

// RunParallelBuilds executes the board matrix with up to maxJobs
// concurrent builds. Any failure is reported after all started builds
// finish; nothing new is scheduled once a build has failed.
func RunParallelBuilds(boards []Board, maxJobs int, execCtx *Executor) error {
	if maxJobs < 1 {
		maxJobs = 1
	}
	if err := checkToolchain(boards); err != nil {
		return err
	}

	pm := &ParallelManager{
		MaxJobs:   maxJobs,
		Exec:      execCtx,
		Running:   make(map[string]time.Time),
		Completed: make(map[string]time.Duration),
		Failed:    make(map[string]error),
		Builder:   buildInScratch,
	}
	return pm.Run(boards)
}

// Run drives the worker pool and the status line.
func (pm *ParallelManager) Run(boards []Board) error {
	sem := make(chan struct{}, pm.MaxJobs)
	results := make(chan boardResult, len(boards))
	abort := make(chan struct{})
	var wg sync.WaitGroup

	// Status line ticker
	uiDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pm.printStatus()
			case <-uiDone:
				fmt.Print("\r\033[K")
				return
			}
		}
	}()

	total := len(boards)
	for i, board := range boards {
		wg.Add(1)
		go func(idx int, b Board) {
			defer wg.Done()
			select {
			case <-abort:
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()

			pm.mu.Lock()
			pm.Running[b.Name] = time.Now()
			pm.mu.Unlock()

			start := time.Now()
			err := pm.Builder(b, pm.Exec, BuildOptions{CurrentIndex: idx + 1, TotalCount: total})
			results <- boardResult{board: b.Name, err: err, duration: time.Since(start)}
		}(i, board)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	aborted := false
	for res := range results {
		pm.mu.Lock()
		delete(pm.Running, res.board)
		if res.err != nil {
			pm.Failed[res.board] = res.err
		} else {
			pm.Completed[res.board] = res.duration
		}
		pm.mu.Unlock()

		if res.err != nil && !aborted {
			aborted = true
			close(abort)
		}
	}
	close(uiDone)

	for board, dur := range pm.Completed {
		colArrow.Print("-> ")
		colSuccess.Printf("Built %s in %s\n", board, dur.Truncate(time.Second))
	}

	if len(pm.Failed) > 0 {
		colArrow.Print("-> ")
		colError.Println("Failed boards:")
		names := make([]string, 0, len(pm.Failed))
		for board := range pm.Failed {
			names = append(names, board)
		}
		sort.Strings(names)
		for _, board := range names {
			fmt.Printf("  - %-10s: %v\n", board, pm.Failed[board])
		}
		return fmt.Errorf("%d of %d boards failed", len(pm.Failed), len(boards))
	}
	return nil
}

// printStatus draws a single-line summary of the running builds.
func (pm *ParallelManager) printStatus() {
	pm.mu.Lock()
	parts := make([]string, 0, len(pm.Running))
	for board, start := range pm.Running {
		parts = append(parts, fmt.Sprintf("%s %s", board, time.Since(start).Truncate(time.Second)))
	}
	done := len(pm.Completed)
	failed := len(pm.Failed)
	pm.mu.Unlock()

	if len(parts) == 0 {
		return
	}
	sort.Strings(parts)
	colArrow.Print("-> ")
	colSuccess.Printf("Building [%s] done: %d failed: %d\r", strings.Join(parts, ", "), done, failed)
}
