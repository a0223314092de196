package patterngui

import (
	"testing"

	_ "fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhallin/knitty-gritty/memimage"
	"github.com/mhallin/knitty-gritty/pattern"
)

func TestNewInitializesComponents(t *testing.T) {
	p1, err := pattern.New(1, [][]bool{{true, false}}, nil)
	require.NoError(t, err)
	state := memimage.WithPatterns([]*pattern.Pattern{p1})

	g := New(state)
	require.NotNil(t, g)
	assert.NotNil(t, g.Toolbar)
	assert.NotNil(t, g.Grid)
	assert.NotNil(t, g.StatusLabel)

	g.App.Quit()
}

func TestRefreshShowsPlaceholderWithNoPatterns(t *testing.T) {
	g := New(memimage.Empty())
	defer g.App.Quit()

	assert.Equal(t, "no patterns loaded", g.StatusLabel.Text)
}

func TestNextAndPreviousPatternWrapAround(t *testing.T) {
	p1, err := pattern.New(1, [][]bool{{true}}, nil)
	require.NoError(t, err)
	p2, err := pattern.New(2, [][]bool{{false}}, nil)
	require.NoError(t, err)
	state := memimage.WithPatterns([]*pattern.Pattern{p1, p2})

	g := New(state)
	defer g.App.Quit()

	assert.Equal(t, 0, g.patternIndex)

	g.nextPattern()
	assert.Equal(t, 1, g.patternIndex)

	g.nextPattern()
	assert.Equal(t, 0, g.patternIndex)

	g.previousPattern()
	assert.Equal(t, 1, g.patternIndex)
}

func TestRefreshPopulatesGridWithOneRectanglePerStitch(t *testing.T) {
	p1, err := pattern.New(1, [][]bool{{true, false, true}, {false, true, false}}, nil)
	require.NoError(t, err)
	state := memimage.WithPatterns([]*pattern.Pattern{p1})

	g := New(state)
	defer g.App.Quit()

	assert.Len(t, g.Grid.Objects, 6)
}
