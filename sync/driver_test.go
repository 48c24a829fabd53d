package sync_test

import (
	"context"
	"testing"

	"github.com/bazukachain/bazuka/chain"
	"github.com/bazukachain/bazuka/core"
	"github.com/bazukachain/bazuka/kv"
	"github.com/bazukachain/bazuka/sync"
)

// directPeerClient drives a remote chain.Blockchain in-process, standing
// in for the node package's real HTTP-backed PeerClient.
type directPeerClient struct {
	remote chain.Blockchain
}

func (d directPeerClient) GetHeaders(_ context.Context, _ string, since uint64, until *uint64) ([]core.Header, error) {
	count := uint64(1 << 32)
	if until != nil {
		count = *until - since
	}
	return d.remote.GetHeaders(since, count)
}

func (d directPeerClient) GetBlocks(_ context.Context, _ string, since uint64, until *uint64) ([]core.Block, error) {
	count := uint64(1 << 32)
	if until != nil {
		count = *until - since
	}
	return d.remote.GetBlocks(since, count)
}

type fakeView struct {
	bc        chain.Blockchain
	peers     []sync.Peer
	punished  []sync.Peer
}

func (v *fakeView) Blockchain() chain.Blockchain   { return v.bc }
func (v *fakeView) ActivePeers() []sync.Peer       { return v.peers }
func (v *fakeView) Punish(p sync.Peer, reason string) { v.punished = append(v.punished, p) }

func buildChain(t *testing.T, extraBlocks int) *chain.KvStoreChain {
	t.Helper()
	store := kv.NewRamKvStore()
	c, err := chain.New(store, nil, chain.DefaultParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	var dst core.Address
	dst[0] = 0x42
	for i := 0; i < extraBlocks; i++ {
		tx := core.Transaction{Src: core.Treasury, Data: core.TxData{Kind: core.TxRegularSend, Dst: dst, Amount: 1}}
		block, err := c.DraftBlock(uint32(100+i), []core.Transaction{tx}, dst)
		if err != nil {
			t.Fatal(err)
		}
		height, err := c.GetHeight()
		if err != nil {
			t.Fatal(err)
		}
		if err := c.Extend(height, []core.Block{block}); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func TestDriverSyncsToHeavierPeer(t *testing.T) {
	local := buildChain(t, 0)
	remote := buildChain(t, 3)

	remotePower, err := remote.GetPower()
	if err != nil {
		t.Fatal(err)
	}
	remoteHeight, err := remote.GetHeight()
	if err != nil {
		t.Fatal(err)
	}

	view := &fakeView{bc: local, peers: []sync.Peer{{Address: "peer1", Power: remotePower, Height: remoteHeight}}}
	driver := sync.NewDriver(view, directPeerClient{remote: remote}, nil)

	if err := driver.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	localHeight, err := local.GetHeight()
	if err != nil {
		t.Fatal(err)
	}
	if localHeight != remoteHeight {
		t.Fatalf("local height = %d, want %d", localHeight, remoteHeight)
	}
}

func TestDriverSkipsWhenNoPeerIsHeavier(t *testing.T) {
	local := buildChain(t, 2)
	remote := buildChain(t, 0)

	remotePower, err := remote.GetPower()
	if err != nil {
		t.Fatal(err)
	}
	view := &fakeView{bc: local, peers: []sync.Peer{{Address: "peer1", Power: remotePower, Height: 0}}}
	driver := sync.NewDriver(view, directPeerClient{remote: remote}, nil)

	if err := driver.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	localHeight, err := local.GetHeight()
	if err != nil {
		t.Fatal(err)
	}
	if localHeight != 2 {
		t.Fatalf("local height changed to %d, want unchanged 2", localHeight)
	}
	if len(view.punished) != 0 {
		t.Fatalf("no network call should have been attempted")
	}
}
