package piforge

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// runBoardPicker opens a terminal UI where boards are toggled with
// Space/Enter and the build starts with 'b'. Returns the selection, or
// nil when the user aborted.
func runBoardPicker() ([]Board, error) {
	boards := AllBoards()
	selected := make([]bool, len(boards))

	app := tview.NewApplication()

	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true)
	list.SetTitle(" piforge — select boards (space: toggle, a: all, b: build, q: quit) ")

	itemText := func(i int) string {
		mark := " "
		if selected[i] {
			mark = "x"
		}
		return fmt.Sprintf("[%s] %-8s -> %s", mark, boards[i].Name, boards[i].Kernel)
	}

	for i := range boards {
		list.AddItem(itemText(i), "", 0, nil)
	}

	refresh := func() {
		for i := range boards {
			list.SetItemText(i, itemText(i), "")
		}
	}

	aborted := true
	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			app.Stop()
			return nil
		case tcell.KeyEnter:
			idx := list.GetCurrentItem()
			selected[idx] = !selected[idx]
			refresh()
			return nil
		}

		switch event.Rune() {
		case ' ':
			idx := list.GetCurrentItem()
			selected[idx] = !selected[idx]
			refresh()
			return nil
		case 'a':
			for i := range selected {
				selected[i] = true
			}
			refresh()
			return nil
		case 'b':
			aborted = false
			app.Stop()
			return nil
		case 'q':
			app.Stop()
			return nil
		}
		return event
	})

	if err := app.SetRoot(list, true).Run(); err != nil {
		return nil, fmt.Errorf("board picker failed: %w", err)
	}

	if aborted {
		return nil, nil
	}

	var picked []Board
	for i, on := range selected {
		if on {
			picked = append(picked, boards[i])
		}
	}
	return picked, nil
}
