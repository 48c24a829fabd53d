package node

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bazukachain/bazuka/chain"
	"github.com/bazukachain/bazuka/kv"
)

func newTestContextWithParams(t *testing.T, params chain.Params) *Context {
	t.Helper()
	store := kv.NewRamKvStore()
	bc, err := chain.New(store, nil, params, nil)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewContext(PeerAddress{Host: "127.0.0.1", Port: 6001}, nil, bc, NewOutgoingSender(0), metrics, nil)
}

func TestMinerPuzzleBeforeRefreshErrors(t *testing.T) {
	m := NewMiner(0, nil)
	if _, err := m.Puzzle(); err == nil {
		t.Fatal("expected error before any refreshDraft call")
	}
}

func TestMinerRefreshAndSolveWithZeroDifficulty(t *testing.T) {
	params := chain.DefaultParams()
	c := newTestContextWithParams(t, params)
	m := NewMiner(0, nil) // Bits == 0: every hash meets the (trivial) target.

	changed, err := m.refreshDraft(c)
	if err != nil {
		t.Fatalf("refreshDraft: %v", err)
	}
	if !changed {
		t.Fatal("expected first refresh to report a change")
	}

	puzzle, err := m.Puzzle()
	if err != nil {
		t.Fatal(err)
	}
	if puzzle.Target != 0 {
		t.Fatalf("target = %d, want 0", puzzle.Target)
	}

	accepted, err := m.SubmitSolution(c, 0)
	if err != nil {
		t.Fatalf("SubmitSolution: %v", err)
	}
	if !accepted {
		t.Fatal("expected solution to be accepted at zero difficulty")
	}

	height, err := c.chain.GetHeight()
	if err != nil {
		t.Fatal(err)
	}
	if height != 1 {
		t.Fatalf("height = %d, want 1", height)
	}

	if _, err := m.Puzzle(); err == nil {
		t.Fatal("expected puzzle to be cleared after an accepted solution")
	}
}

func TestMinerRejectsSolutionNotMeetingDifficulty(t *testing.T) {
	params := chain.DefaultParams()
	params.PoWEnabled = true
	c := newTestContextWithParams(t, params)
	m := NewMiner(200, nil) // effectively unreachable in a test-sized nonce space

	if _, err := m.refreshDraft(c); err != nil {
		t.Fatal(err)
	}

	accepted, err := m.SubmitSolution(c, 1)
	if err != nil {
		t.Fatal(err)
	}
	if accepted {
		t.Fatal("solution should not meet an unreachable difficulty target")
	}
}

func TestMinerWebhookRegistrationDeduplicates(t *testing.T) {
	m := NewMiner(0, nil)
	m.RegisterWebhook("http://example.invalid/hook")
	m.RegisterWebhook("http://example.invalid/hook")
	if len(m.webhooks) != 1 {
		t.Fatalf("webhooks = %d, want 1 (deduplicated)", len(m.webhooks))
	}
}
