package piforge

import (
	"fmt"
	"strings"
)

// Board describes one hardware target of the build matrix. The kernel
// filename is what the firmware Makefile produces for that target and is
// also the filename the bootloader looks for on the SD card.
type Board struct {
	Name       string
	Kernel     string // kernel image filename produced by make
	RaspPi     int    // RASPPI make variable
	Bits       int    // 32 or 64
	ToolPrefix string // cross toolchain prefix for this board
}

// boardOrder fixes the matrix iteration order.
var boardOrder = []string{"pi2", "pi3", "pi3-64", "pi4", "pi4-64"}

var boardTable = map[string]Board{
	"pi2":    {Name: "pi2", Kernel: "kernel7.img", RaspPi: 2, Bits: 32},
	"pi3":    {Name: "pi3", Kernel: "kernel8-32.img", RaspPi: 3, Bits: 32},
	"pi3-64": {Name: "pi3-64", Kernel: "kernel8.img", RaspPi: 3, Bits: 64},
	"pi4":    {Name: "pi4", Kernel: "kernel7l.img", RaspPi: 4, Bits: 32},
	"pi4-64": {Name: "pi4-64", Kernel: "kernel8-rpi4.img", RaspPi: 4, Bits: 64},
}

// LookupBoard resolves a board name to its full description. Unknown
// names fail immediately so a typo can never reach the build loop.
func LookupBoard(name string) (Board, error) {
	b, ok := boardTable[name]
	if !ok {
		return Board{}, fmt.Errorf("unknown board %q (valid boards: %s)", name, strings.Join(boardOrder, ", "))
	}
	// The toolchain prefix depends on the architecture width, which in
	// turn comes from the configuration, so it is filled in at lookup.
	if b.Bits == 64 {
		b.ToolPrefix = Prefix64
	} else {
		b.ToolPrefix = Prefix32
	}
	return b, nil
}

// AllBoards returns every board in matrix order.
func AllBoards() []Board {
	boards := make([]Board, 0, len(boardOrder))
	for _, name := range boardOrder {
		b, _ := LookupBoard(name)
		boards = append(boards, b)
	}
	return boards
}

// ParseBoards maps CLI arguments to boards, or the full matrix when no
// arguments were given.
func ParseBoards(args []string) ([]Board, error) {
	if len(args) == 0 {
		return AllBoards(), nil
	}
	var boards []Board
	seen := make(map[string]bool)
	for _, arg := range args {
		b, err := LookupBoard(arg)
		if err != nil {
			return nil, err
		}
		if seen[b.Name] {
			continue
		}
		seen[b.Name] = true
		boards = append(boards, b)
	}
	return boards, nil
}
