package picker

import (
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ErrCancelled reports that the user closed the picker without confirming.
var ErrCancelled = errors.New("model selection cancelled")

// PickModels shows a full-screen list of discovered mart models. Space
// toggles a model, Enter confirms, Esc or q cancels. With nothing toggled,
// Enter audits the highlighted model.
func PickModels(models []string) ([]string, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("no models available to pick from")
	}

	app := tview.NewApplication()
	list := tview.NewList().ShowSecondaryText(false)

	selected := make(map[int]bool, len(models))
	for _, model := range models {
		list.AddItem("[ ] "+model, "", 0, nil)
	}

	confirmed := false
	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyRune && event.Rune() == ' ':
			idx := list.GetCurrentItem()
			selected[idx] = !selected[idx]
			marker := "[ ] "
			if selected[idx] {
				marker = "[x] "
			}
			list.SetItemText(idx, marker+models[idx], "")
			return nil
		case event.Key() == tcell.KeyEnter:
			confirmed = true
			app.Stop()
			return nil
		case event.Key() == tcell.KeyEscape,
			event.Key() == tcell.KeyRune && event.Rune() == 'q':
			app.Stop()
			return nil
		}
		return event
	})

	list.SetBorder(true).SetTitle(" Select models to audit (space toggles, enter runs, q quits) ")

	if err := app.SetRoot(list, true).Run(); err != nil {
		return nil, fmt.Errorf("model picker failed: %w", err)
	}

	if !confirmed {
		return nil, ErrCancelled
	}

	var picked []string
	for i, model := range models {
		if selected[i] {
			picked = append(picked, model)
		}
	}
	if len(picked) == 0 {
		picked = []string{models[list.GetCurrentItem()]}
	}

	return picked, nil
}
