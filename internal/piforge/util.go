package piforge

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// debugf prints debug messages when Debug is true
func debugf(format string, args ...any) {
	if Debug {
		fmt.Printf(format, args...)
	}
}

// setTerminalTitle updates the terminal window title via the xterm OSC
// sequence. Harmless when the terminal ignores it.
func setTerminalTitle(title string) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("\033]0;%s\007", title)
	}
}

// stdinIsTerminal reports whether an interactive prompt or TUI can run.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// askYesNo prompts the user and returns true for an explicit yes.
func askYesNo(question string) bool {
	colArrow.Print("-> ")
	colSuccess.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
