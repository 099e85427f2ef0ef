// Package plan explains a reordering: which tier each command landed in and
// how the emitted order differs from the input order.
package plan

import (
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/command"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/reorder"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/tier"
	"github.com/pmezard/go-difflib/difflib"
)

// Step is one command in emission order.
type Step struct {
	Position      int    `json:"position"`
	OriginalIndex int    `json:"original_index"`
	Tier          int    `json:"tier"`
	TierName      string `json:"tier_name"`
	Action        string `json:"action"`
	Object        string `json:"object"`
	Command       string `json:"command"`
}

// Moved reports whether the step was emitted at a different position than it
// appeared in the input.
func (s Step) Moved() bool {
	return s.Position != s.OriginalIndex
}

// Plan is the ordered set of steps for a batch.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Moved returns how many steps changed position.
func (p Plan) Moved() int {
	n := 0
	for _, s := range p.Steps {
		if s.Moved() {
			n++
		}
	}
	return n
}

// Build orders text with the given engine and describes every step.
func Build(e *reorder.Engine, text string) Plan {
	ordered := e.Order(e.Parse(text))

	steps := make([]Step, len(ordered))
	for i, cmd := range ordered {
		steps[i] = stepFor(i, cmd)
	}
	return Plan{Steps: steps}
}

func stepFor(position int, cmd command.Command) Step {
	return Step{
		Position:      position,
		OriginalIndex: cmd.Index,
		Tier:          cmd.Tier,
		TierName:      tier.Name(cmd.Tier),
		Action:        cmd.Action.String(),
		Object:        cmd.Object.String(),
		Command:       cmd.Raw,
	}
}

// Diff returns a unified diff from the surviving input lines to the reordered
// batch. It is empty when the input is already in dependency order.
func Diff(e *reorder.Engine, text string) (string, error) {
	before := command.Lines(text)
	after := command.Lines(e.Reorder(text))

	diff := difflib.UnifiedDiff{
		A:        withNewlines(before),
		B:        withNewlines(after),
		FromFile: "original",
		ToFile:   "reordered",
		Context:  2,
	}
	return difflib.GetUnifiedDiffString(diff)
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = line + "\n"
	}
	return out
}
