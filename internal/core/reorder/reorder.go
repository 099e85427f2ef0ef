// Package reorder orders appliance command batches so that every object is
// created before it is modified, bound or toggled.
//
// This is part of the functional core: all functions are pure and safe to
// call concurrently. The output is always a permutation of the input's
// surviving lines (blank lines and '#' comments are dropped).
package reorder

import (
	"cmp"
	"slices"
	"strings"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/command"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/tier"
)

// =============================================================================
// Engine
// =============================================================================

// Engine reorders command text using a tier table.
type Engine struct {
	table *tier.Table
}

// New creates an engine backed by the given table. A nil table selects
// tier.Default().
func New(table *tier.Table) *Engine {
	if table == nil {
		table = tier.Default()
	}
	return &Engine{table: table}
}

var defaultEngine = New(nil)

// Parse classifies the surviving lines of text and assigns each a tier.
// Commands are returned in input order.
func (e *Engine) Parse(text string) []command.Command {
	cmds := command.Parse(text)
	for i := range cmds {
		cmds[i].Tier = e.table.Tier(cmds[i].Action, cmds[i].Object)
	}
	return cmds
}

// Order returns the commands stable-sorted by (tier, index).
// The input slice is not modified.
//
// Example:
//
//	// bind, add lb vserver, add service, add server
//	ordered := e.Order(e.Parse(text))
//	// Result: add server, add service, add lb vserver, bind
func (e *Engine) Order(cmds []command.Command) []command.Command {
	ordered := slices.Clone(cmds)
	slices.SortStableFunc(ordered, func(a, b command.Command) int {
		if c := cmp.Compare(a.Tier, b.Tier); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return ordered
}

// Reorder returns text's commands in dependency order joined by single
// newlines. Input with no surviving commands yields the empty string.
func (e *Engine) Reorder(text string) string {
	return Join(e.Order(e.Parse(text)))
}

// Join renders commands back to batch text, one raw line per command.
func Join(cmds []command.Command) string {
	if len(cmds) == 0 {
		return ""
	}
	lines := make([]string, len(cmds))
	for i, cmd := range cmds {
		lines[i] = cmd.Raw
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// Package-level helpers using the default table
// =============================================================================

// Reorder reorders text with the default tier table.
func Reorder(text string) string {
	return defaultEngine.Reorder(text)
}

// Parse classifies text with the default tier table.
func Parse(text string) []command.Command {
	return defaultEngine.Parse(text)
}
