// Package patterntui is a read-only tview/tcell terminal browser over
// a MachineState's loaded patterns: a list on the left, the selected
// pattern's rendered stitch grid on the right. Grounded on the
// teacher's debugger/tui.go panel-composition idiom, stripped down to
// the parts that fit a read-only viewer (no command input, no
// execution control).
package patterntui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/mhallin/knitty-gritty/memimage"
)

// TUI is the pattern browser's application state.
type TUI struct {
	State *memimage.MachineState

	App        *tview.Application
	MainLayout *tview.Flex
	ListView   *tview.List
	DetailView *tview.TextView
}

// New builds a TUI over state's patterns.
func New(state *memimage.MachineState) *TUI {
	t := &TUI{
		State: state,
		App:   tview.NewApplication(),
	}

	t.initializeViews()
	t.buildLayout()
	t.setupKeyBindings()

	return t
}

func (t *TUI) initializeViews() {
	t.ListView = tview.NewList().ShowSecondaryText(false)
	t.ListView.SetBorder(true).SetTitle(" Patterns ")

	for _, p := range t.State.Patterns {
		label := fmt.Sprintf("#%03d (%dx%d)", p.Number, p.Width, p.Height)
		t.ListView.AddItem(label, "", 0, nil)
	}
	t.ListView.SetChangedFunc(func(index int, _, _ string, _ rune) {
		t.updateDetail(index)
	})

	t.DetailView = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetWrap(false)
	t.DetailView.SetBorder(true).SetTitle(" Pattern ")

	if len(t.State.Patterns) > 0 {
		t.updateDetail(0)
	} else {
		t.DetailView.SetText("no patterns loaded")
	}
}

func (t *TUI) buildLayout() {
	t.MainLayout = tview.NewFlex().
		AddItem(t.ListView, 24, 0, true).
		AddItem(t.DetailView, 0, 1, false)
}

func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		}
		switch event.Rune() {
		case 'q':
			t.App.Stop()
			return nil
		}
		return event
	})
}

func (t *TUI) updateDetail(index int) {
	if index < 0 || index >= len(t.State.Patterns) {
		return
	}
	p := t.State.Patterns[index]
	t.DetailView.SetText(fmt.Sprintf("#%03d %dx%d\n\n%s", p.Number, p.Width, p.Height, p.Render()))
}

// Run starts the TUI application. Blocks until the user quits.
func (t *TUI) Run() error {
	return t.App.SetRoot(t.MainLayout, true).SetFocus(t.ListView).Run()
}

// Stop stops the TUI application.
func (t *TUI) Stop() {
	t.App.Stop()
}
