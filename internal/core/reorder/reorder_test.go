package reorder

import (
	"math/rand"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/command"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func lines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func indexOf(t *testing.T, out []string, line string) int {
	t.Helper()
	idx := slices.Index(out, line)
	require.NotEqual(t, -1, idx, "line %q missing from output", line)
	return idx
}

// sampleLines is a pool of realistic commands used to build shuffled batches.
var sampleLines = []string{
	"enable ns feature LB CS SSL REWRITE RESPONDER",
	"add ssl certKey my_cert -cert my.crt -key my.key",
	"add lb monitor mon_http HTTP -respCode 200",
	"add server web_server1 192.168.1.10",
	"add server web_server2 192.168.1.11",
	"add serviceGroup sg_web HTTP",
	"add service svc_web1 web_server1 HTTP 80",
	"add gslb vserver gslb_web HTTP",
	"add lb vserver web_vip HTTP 10.1.1.100 80",
	"add rewrite action rw_act insert_http_header X-Env \"prod\"",
	"add rewrite policy rw_pol true rw_act",
	"add responder action rsp_act redirect \"https://example.com\"",
	"add responder policy rsp_pol true rsp_act",
	"add cs action cs_act -targetLBVserver web_vip",
	"add cs policy cs_pol -rule true -action cs_act",
	"add cs vserver cs_vip HTTP 10.1.1.200 80",
	"add gslb service gsvc1 10.0.0.1 HTTP 80",
	"set lb vserver web_vip -lbmethod LEASTCONNECTION",
	"set ns param -timezone UTC",
	"unset server web_server1 -comment",
	"bind lb vserver web_vip svc_web1",
	"bind serviceGroup sg_web web_server2 80",
	"bind ssl vserver web_vip -certkeyName my_cert",
	"unbind lb vserver web_vip svc_old",
	"enable server web_server2",
	"disable lb vserver old_vip",
	"rm server legacy",
	"something entirely unknown",
	"  add server indented 10.9.9.9",
	"# a comment",
	"",
	"   ",
}

func randomBatch(r *rand.Rand, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = sampleLines[r.Intn(len(sampleLines))]
	}
	return strings.Join(out, "\n")
}

// =============================================================================
// Literal Scenarios
// =============================================================================

func TestReorder_DependencyOrdering(t *testing.T) {
	input := strings.Join([]string{
		"bind lb vserver web_vip svc_web1",
		"add lb vserver web_vip HTTP 10.1.1.100 80",
		"add service svc_web1 web_server1 HTTP 80",
		"add server web_server1 192.168.1.10",
	}, "\n")

	expected := strings.Join([]string{
		"add server web_server1 192.168.1.10",
		"add service svc_web1 web_server1 HTTP 80",
		"add lb vserver web_vip HTTP 10.1.1.100 80",
		"bind lb vserver web_vip svc_web1",
	}, "\n")

	assert.Equal(t, expected, Reorder(input))
}

func TestReorder_SetAfterAdd(t *testing.T) {
	input := "set lb vserver web_vip -lbmethod LEASTCONNECTION\nadd lb vserver web_vip HTTP 10.1.1.100 80"
	out := lines(Reorder(input))

	assert.Less(t,
		indexOf(t, out, "add lb vserver web_vip HTTP 10.1.1.100 80"),
		indexOf(t, out, "set lb vserver web_vip -lbmethod LEASTCONNECTION"))
}

func TestReorder_FeatureFirstDisableLast(t *testing.T) {
	input := "disable lb vserver old_vip\nadd server web1 192.168.1.10\nenable ns feature LB"

	assert.Equal(t, "enable ns feature LB\nadd server web1 192.168.1.10\ndisable lb vserver old_vip", Reorder(input))
}

func TestReorder_SSLOrdering(t *testing.T) {
	input := strings.Join([]string{
		"bind ssl vserver web_vip -certkeyName my_cert",
		"add lb vserver web_vip SSL 10.1.1.100 443",
		"add ssl certKey my_cert -cert my.crt -key my.key",
	}, "\n")
	out := lines(Reorder(input))

	cert := indexOf(t, out, "add ssl certKey my_cert -cert my.crt -key my.key")
	vip := indexOf(t, out, "add lb vserver web_vip SSL 10.1.1.100 443")
	bind := indexOf(t, out, "bind ssl vserver web_vip -certkeyName my_cert")
	assert.Less(t, cert, vip)
	assert.Less(t, vip, bind)
}

func TestReorder_UnknownCreationAvailableToBinds(t *testing.T) {
	input := "bind gslb vserver gslb_web -serviceName gsvc1\nset gslb service gsvc1 -comment x\nadd gslb service gsvc1 10.0.0.1 HTTP 80"
	out := lines(Reorder(input))

	add := indexOf(t, out, "add gslb service gsvc1 10.0.0.1 HTTP 80")
	assert.Less(t, add, indexOf(t, out, "set gslb service gsvc1 -comment x"))
	assert.Less(t, add, indexOf(t, out, "bind gslb vserver gslb_web -serviceName gsvc1"))
}

// =============================================================================
// Empty Input
// =============================================================================

func TestReorder_EmptyInput(t *testing.T) {
	assert.Equal(t, "", Reorder(""))
}

func TestReorder_CommentAndBlankOnly(t *testing.T) {
	assert.Equal(t, "", Reorder("# backup taken 2024-01-01\n\n   \n\t# nothing else\n"))
}

// =============================================================================
// Stability
// =============================================================================

func TestReorder_StableWithinTier(t *testing.T) {
	input := "add server c 3.3.3.3\nadd server a 1.1.1.1\nadd server b 2.2.2.2"
	assert.Equal(t, input, Reorder(input))
}

func TestReorder_PreservesLineContent(t *testing.T) {
	input := "bind lb vserver v s\n\t add server   s   1.1.1.1  "
	assert.Equal(t, "\t add server   s   1.1.1.1  \nbind lb vserver v s", Reorder(input))
}

func TestReorder_NoTrailingNewline(t *testing.T) {
	out := Reorder("add server a 1.1.1.1\n")
	assert.Equal(t, "add server a 1.1.1.1", out)
}

// =============================================================================
// Properties
// =============================================================================

func TestReorder_IsPermutation(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		input := randomBatch(r, r.Intn(40))

		want := command.Lines(input)
		got := command.Lines(Reorder(input))

		slices.Sort(want)
		slices.Sort(got)
		assert.Equal(t, want, got, "input:\n%s", input)
	}
}

func TestReorder_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		input := randomBatch(r, r.Intn(40))
		once := Reorder(input)
		assert.Equal(t, once, Reorder(once), "input:\n%s", input)
	}
}

func TestReorder_TiersAreNonDecreasing(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	for i := 0; i < 50; i++ {
		ordered := Parse(Reorder(randomBatch(r, 30)))
		for j := 1; j < len(ordered); j++ {
			assert.LessOrEqual(t, ordered[j-1].Tier, ordered[j].Tier)
		}
	}
}

// =============================================================================
// Engine
// =============================================================================

func TestEngine_ParseAssignsTiers(t *testing.T) {
	cmds := New(nil).Parse("bind lb vserver v s\nadd server s 1.1.1.1\nfoo bar")
	require.Len(t, cmds, 3)

	assert.Equal(t, tier.Binding, cmds[0].Tier)
	assert.Equal(t, tier.CreateServer, cmds[1].Tier)
	assert.Equal(t, tier.CatchAll, cmds[2].Tier)
	assert.Equal(t, []int{0, 1, 2}, []int{cmds[0].Index, cmds[1].Index, cmds[2].Index})
}

func TestEngine_OrderDoesNotMutateInput(t *testing.T) {
	e := New(nil)
	cmds := e.Parse("bind lb vserver v s\nadd server s 1.1.1.1")
	_ = e.Order(cmds)

	assert.Equal(t, command.ActionBind, cmds[0].Action)
}

func TestEngine_CustomTable(t *testing.T) {
	// Put binds before everything to prove the engine uses its table.
	table := tier.NewTable([]tier.Rule{
		{Action: command.ActionBind, AnyObject: true, Tier: 0},
		{Action: command.ActionCreate, AnyObject: true, Tier: 1},
	})
	out := New(table).Reorder("add server s 1.1.1.1\nbind lb vserver v s")

	assert.Equal(t, "bind lb vserver v s\nadd server s 1.1.1.1", out)
}

func TestJoin_Empty(t *testing.T) {
	assert.Equal(t, "", Join(nil))
}

// =============================================================================
// Concurrency
// =============================================================================

func TestReorder_ConcurrentCallsOnSharedDefaults(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	batches := make([]string, 16)
	want := make([]string, len(batches))
	for i := range batches {
		batches[i] = randomBatch(r, 60)
		want[i] = Reorder(batches[i])
	}

	const workers = 8
	got := make([][]string, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			out := make([]string, len(batches))
			for i, b := range batches {
				out[i] = Reorder(b)
			}
			got[w] = out
		}(w)
	}
	wg.Wait()

	for w := range got {
		assert.Equal(t, want, got[w], "worker %d", w)
	}
}
