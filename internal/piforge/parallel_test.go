package piforge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelManagerAllSucceed(t *testing.T) {
	var mu sync.Mutex
	var built []string

	pm := &ParallelManager{
		MaxJobs:   2,
		Exec:      testExecutor(),
		Running:   make(map[string]time.Time),
		Completed: make(map[string]time.Duration),
		Failed:    make(map[string]error),
		Builder: func(b Board, _ *Executor, _ BuildOptions) error {
			mu.Lock()
			built = append(built, b.Name)
			mu.Unlock()
			return nil
		},
	}

	boards, err := ParseBoards([]string{"pi2", "pi3", "pi4"})
	require.NoError(t, err)

	require.NoError(t, pm.Run(boards))
	assert.Len(t, built, 3)
	assert.Len(t, pm.Completed, 3)
	assert.Empty(t, pm.Failed)
}

func TestParallelManagerReportsFailure(t *testing.T) {
	pm := &ParallelManager{
		MaxJobs:   2,
		Exec:      testExecutor(),
		Running:   make(map[string]time.Time),
		Completed: make(map[string]time.Duration),
		Failed:    make(map[string]error),
		Builder: func(b Board, _ *Executor, _ BuildOptions) error {
			if b.Name == "pi3" {
				return errors.New("linker exploded")
			}
			return nil
		},
	}

	boards, err := ParseBoards([]string{"pi2", "pi3"})
	require.NoError(t, err)

	err = pm.Run(boards)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 boards failed")
	require.Contains(t, pm.Failed, "pi3")
	assert.Contains(t, pm.Failed["pi3"].Error(), "linker exploded")
}
