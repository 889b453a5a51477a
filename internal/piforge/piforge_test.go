package piforge

import "context"

// testExecutor returns an unprivileged executor for tests.
func testExecutor() *Executor {
	return &Executor{Context: context.Background()}
}
