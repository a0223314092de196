package patterntui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhallin/knitty-gritty/memimage"
	"github.com/mhallin/knitty-gritty/pattern"
)

func TestNewPopulatesListFromState(t *testing.T) {
	p1, err := pattern.New(1, [][]bool{{true, false}}, nil)
	require.NoError(t, err)
	p2, err := pattern.New(2, [][]bool{{false, true}}, nil)
	require.NoError(t, err)

	state := memimage.WithPatterns([]*pattern.Pattern{p1, p2})
	tui := New(state)

	assert.Equal(t, 2, tui.ListView.GetItemCount())
}

func TestNewWithNoPatternsShowsPlaceholder(t *testing.T) {
	tui := New(memimage.Empty())
	assert.Equal(t, "no patterns loaded", tui.DetailView.GetText(true))
}

func TestUpdateDetailRendersSelectedPattern(t *testing.T) {
	p1, err := pattern.New(1, [][]bool{{true, false}}, nil)
	require.NoError(t, err)
	state := memimage.WithPatterns([]*pattern.Pattern{p1})
	tui := New(state)

	tui.updateDetail(0)
	text := tui.DetailView.GetText(true)
	assert.Contains(t, text, "#001")
	assert.Contains(t, text, "█")
}

func TestUpdateDetailIgnoresOutOfRangeIndex(t *testing.T) {
	p1, err := pattern.New(1, [][]bool{{true, false}}, nil)
	require.NoError(t, err)
	state := memimage.WithPatterns([]*pattern.Pattern{p1})
	tui := New(state)

	before := tui.DetailView.GetText(true)
	tui.updateDetail(5)
	assert.Equal(t, before, tui.DetailView.GetText(true))
}
