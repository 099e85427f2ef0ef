package plan

import (
	"strings"
	"testing"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/reorder"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Steps(t *testing.T) {
	input := "# plan\nbind lb vserver web_vip svc_web1\nadd server web1 10.0.0.1"
	p := Build(reorder.New(nil), input)

	require.Len(t, p.Steps, 2)

	assert.Equal(t, Step{
		Position:      0,
		OriginalIndex: 1,
		Tier:          tier.CreateServer,
		TierName:      "create-server",
		Action:        "create",
		Object:        "server",
		Command:       "add server web1 10.0.0.1",
	}, p.Steps[0])

	assert.Equal(t, 1, p.Steps[1].Position)
	assert.Equal(t, 0, p.Steps[1].OriginalIndex)
	assert.Equal(t, "bind", p.Steps[1].TierName)
	assert.Equal(t, 2, p.Moved())
}

func TestBuild_AlreadyOrdered(t *testing.T) {
	p := Build(reorder.New(nil), "add server a 1.1.1.1\nadd service s a HTTP 80")
	assert.Equal(t, 0, p.Moved())
}

func TestBuild_Empty(t *testing.T) {
	p := Build(reorder.New(nil), "")
	assert.Empty(t, p.Steps)
}

func TestDiff_ShowsMovedLines(t *testing.T) {
	input := "bind lb vserver v s\nadd server s 1.1.1.1"
	diff, err := Diff(reorder.New(nil), input)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(diff, "--- original\n+++ reordered\n"), diff)
	assert.Contains(t, diff, "+add server s 1.1.1.1\n")
	assert.Contains(t, diff, "-add server s 1.1.1.1\n")
}

func TestDiff_NoChange(t *testing.T) {
	diff, err := Diff(reorder.New(nil), "# comment\nadd server s 1.1.1.1\n\nbind lb vserver v s\n")
	require.NoError(t, err)
	assert.Equal(t, "", diff)
}
