// Package patterngui is a minimal fyne window that renders one of a
// MachineState's patterns as a grid of black/white stitch squares,
// with toolbar buttons to step through the loaded patterns. Grounded
// on the teacher's debugger/gui.go: a GUI struct holding the fyne App
// and Window plus view widgets, built in initializeViews/buildLayout/
// setupToolbar stages.
package patterngui

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/mhallin/knitty-gritty/memimage"
)

const cellSize = 12

var (
	stitchColor = color.Black
	plainColor  = color.White
)

// GUI is the pattern viewer window's state.
type GUI struct {
	State *memimage.MachineState

	App    fyne.App
	Window fyne.Window

	Grid        *fyne.Container
	StatusLabel *widget.Label
	Toolbar     *widget.Toolbar

	patternIndex int
}

// New builds a pattern viewer window over state's patterns.
func New(state *memimage.MachineState) *GUI {
	myApp := app.New()
	myWindow := myApp.NewWindow("Knitting Pattern Viewer")

	g := &GUI{
		State:  state,
		App:    myApp,
		Window: myWindow,
	}

	g.initializeViews()
	g.setupToolbar()
	g.buildLayout()

	myWindow.Resize(fyne.NewSize(640, 480))

	return g
}

func (g *GUI) initializeViews() {
	g.StatusLabel = widget.NewLabel("")
	g.Grid = container.NewWithoutLayout()
	g.refresh()
}

func (g *GUI) buildLayout() {
	content := container.NewBorder(
		g.Toolbar,
		g.StatusLabel,
		nil, nil,
		container.NewScroll(g.Grid),
	)
	g.Window.SetContent(content)
}

func (g *GUI) setupToolbar() {
	g.Toolbar = widget.NewToolbar(
		widget.NewToolbarAction(theme.NavigateBackIcon(), g.previousPattern),
		widget.NewToolbarAction(theme.NavigateNextIcon(), g.nextPattern),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), g.refresh),
	)
}

func (g *GUI) previousPattern() {
	if len(g.State.Patterns) == 0 {
		return
	}
	g.patternIndex = (g.patternIndex - 1 + len(g.State.Patterns)) % len(g.State.Patterns)
	g.refresh()
}

func (g *GUI) nextPattern() {
	if len(g.State.Patterns) == 0 {
		return
	}
	g.patternIndex = (g.patternIndex + 1) % len(g.State.Patterns)
	g.refresh()
}

// refresh redraws the grid for the currently selected pattern.
func (g *GUI) refresh() {
	g.Grid.Objects = nil

	if len(g.State.Patterns) == 0 {
		g.StatusLabel.SetText("no patterns loaded")
		g.Grid.Refresh()
		return
	}

	p := g.State.Patterns[g.patternIndex]
	for y, row := range p.Rows {
		for x, stitch := range row {
			rect := canvas.NewRectangle(plainColor)
			if stitch {
				rect.FillColor = stitchColor
			}
			rect.Resize(fyne.NewSize(cellSize, cellSize))
			rect.Move(fyne.NewPos(float32(x*cellSize), float32(y*cellSize)))
			g.Grid.Add(rect)
		}
	}
	g.Grid.Resize(fyne.NewSize(float32(p.Width*cellSize), float32(p.Height*cellSize)))

	g.StatusLabel.SetText(fmt.Sprintf("pattern #%03d (%d of %d), %dx%d",
		p.Number, g.patternIndex+1, len(g.State.Patterns), p.Width, p.Height))

	g.Grid.Refresh()
}

// Run shows the window and blocks until it is closed.
func (g *GUI) Run() {
	g.Window.ShowAndRun()
}
