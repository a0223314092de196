// Package knittylint validates the structural invariants of a Disk and
// MachineState pair outside of the strict validation memimage.Serialize
// and pattern.New already perform at construction time — useful for
// checking data that was built by hand or recovered from a damaged
// disk image. Grounded on the teacher's tools/lint.go: a severity-typed
// issue list accumulated by a Linter across independent check passes.
package knittylint

import (
	"fmt"
	"sort"

	"github.com/mhallin/knitty-gritty/disk"
	"github.com/mhallin/knitty-gritty/memimage"
)

// LintLevel is the severity of a lint finding.
type LintLevel int

const (
	LintError LintLevel = iota
	LintWarning
	LintInfo
)

func (l LintLevel) String() string {
	switch l {
	case LintError:
		return "error"
	case LintWarning:
		return "warning"
	case LintInfo:
		return "info"
	default:
		return "unknown"
	}
}

// LintIssue is a single finding.
type LintIssue struct {
	Level   LintLevel
	Message string
	Code    string
}

func (i *LintIssue) String() string {
	return fmt.Sprintf("%s: %s [%s]", i.Level, i.Message, i.Code)
}

// LintOptions controls which checks run.
type LintOptions struct {
	CheckDuplicateSectorIDs bool
	CheckPatternShapes      bool
	CheckLoadedPattern      bool
}

// DefaultLintOptions enables every check.
func DefaultLintOptions() *LintOptions {
	return &LintOptions{
		CheckDuplicateSectorIDs: true,
		CheckPatternShapes:      true,
		CheckLoadedPattern:      true,
	}
}

// Linter accumulates issues across its check passes.
type Linter struct {
	options *LintOptions
	issues  []*LintIssue
}

// NewLinter creates a Linter with the given options, or
// DefaultLintOptions if nil.
func NewLinter(options *LintOptions) *Linter {
	if options == nil {
		options = DefaultLintOptions()
	}
	return &Linter{options: options, issues: make([]*LintIssue, 0)}
}

// LintDisk checks a Disk's sector table for structural issues.
func (l *Linter) LintDisk(d *disk.Disk) []*LintIssue {
	if l.options.CheckDuplicateSectorIDs {
		l.checkDuplicateSectorIDs(d)
	}
	l.sortIssues()
	return l.issues
}

// LintMachineState checks a MachineState's pattern table for
// structural issues.
func (l *Linter) LintMachineState(s *memimage.MachineState) []*LintIssue {
	if l.options.CheckPatternShapes {
		l.checkPatternShapes(s)
	}
	if l.options.CheckLoadedPattern {
		l.checkLoadedPattern(s)
	}
	l.sortIssues()
	return l.issues
}

func (l *Linter) checkDuplicateSectorIDs(d *disk.Disk) {
	var zero [disk.SectorIDLength]byte
	seen := make(map[[disk.SectorIDLength]byte][]int)

	for i, s := range d.Sectors {
		if s.ID == zero {
			continue
		}
		seen[s.ID] = append(seen[s.ID], i)
	}

	for id, indexes := range seen {
		if len(indexes) > 1 {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintWarning,
				Message: fmt.Sprintf("sector id %q used by %d sectors (%v)", string(id[:]), len(indexes), indexes),
				Code:    "DUPLICATE_SECTOR_ID",
			})
		}
	}
}

func (l *Linter) checkPatternShapes(s *memimage.MachineState) {
	seen := make(map[int]bool, len(s.Patterns))

	for _, p := range s.Patterns {
		if p.Number < 1 || p.Number > 999 {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintError,
				Message: fmt.Sprintf("pattern number %d out of range", p.Number),
				Code:    "PATTERN_NUMBER_RANGE",
			})
		}
		if seen[p.Number] {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintError,
				Message: fmt.Sprintf("duplicate pattern number %d", p.Number),
				Code:    "DUPLICATE_PATTERN_NUMBER",
			})
		}
		seen[p.Number] = true

		if p.Width <= 0 || p.Height <= 0 {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintError,
				Message: fmt.Sprintf("pattern %d has non-positive dimensions %dx%d", p.Number, p.Width, p.Height),
				Code:    "PATTERN_BAD_DIMENSIONS",
			})
			continue
		}
		if len(p.Rows) != p.Height {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintError,
				Message: fmt.Sprintf("pattern %d declares height %d but has %d rows", p.Number, p.Height, len(p.Rows)),
				Code:    "PATTERN_ROW_COUNT_MISMATCH",
			})
		}
		for y, row := range p.Rows {
			if len(row) != p.Width {
				l.issues = append(l.issues, &LintIssue{
					Level:   LintError,
					Message: fmt.Sprintf("pattern %d row %d has width %d, want %d", p.Number, y, len(row), p.Width),
					Code:    "PATTERN_ROW_WIDTH_MISMATCH",
				})
			}
		}
	}

	if len(s.Patterns) > memimage.PatternCount {
		l.issues = append(l.issues, &LintIssue{
			Level:   LintError,
			Message: fmt.Sprintf("%d patterns exceeds the %d header slots available", len(s.Patterns), memimage.PatternCount),
			Code:    "TOO_MANY_PATTERNS",
		})
	}
}

func (l *Linter) checkLoadedPattern(s *memimage.MachineState) {
	if s.LoadedPattern == 0 {
		return
	}
	if s.PatternWithNumber(s.LoadedPattern) == nil {
		l.issues = append(l.issues, &LintIssue{
			Level:   LintError,
			Message: fmt.Sprintf("loaded pattern %d is not present in the pattern table", s.LoadedPattern),
			Code:    "LOADED_PATTERN_MISSING",
		})
	}
}

func (l *Linter) sortIssues() {
	sort.SliceStable(l.issues, func(i, j int) bool {
		return l.issues[i].Level < l.issues[j].Level
	})
}
