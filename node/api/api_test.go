package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bazukachain/bazuka/chain"
	"github.com/bazukachain/bazuka/core"
	"github.com/bazukachain/bazuka/kv"
	"github.com/bazukachain/bazuka/node"
)

func newTestContext(t *testing.T) *node.Context {
	t.Helper()
	store := kv.NewRamKvStore()
	bc, err := chain.New(store, nil, chain.DefaultParams(), nil)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	self := node.PeerAddress{Host: "127.0.0.1", Port: 7777}
	reg := prometheus.NewRegistry()
	metrics := node.NewMetrics(reg)
	return node.NewContext(self, nil, bc, node.NewOutgoingSender(0), metrics, nil)
}

func TestStatsRoute(t *testing.T) {
	nodeCtx := newTestContext(t)
	router := NewRouter(nodeCtx, prometheus.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats node.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.Height != 0 {
		t.Fatalf("height = %d, want 0", stats.Height)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	nodeCtx := newTestContext(t)
	router := NewRouter(nodeCtx, nil)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestTransactSpamGuardRejectsZeroBalanceSender(t *testing.T) {
	nodeCtx := newTestContext(t)
	router := NewRouter(nodeCtx, nil)

	var pub [32]byte
	tx := core.Transaction{
		Src:  core.Address{0x09},
		Data: core.TxData{Kind: core.TxRegularSend, Dst: core.Address{0x01}, Amount: 1},
		Sig:  core.Signature{PublicKey: pub},
	}
	body, err := json.Marshal(node.TransactRequest{Tx: tx})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/bincode/transact", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (ack regardless of admission)", rec.Code)
	}
	if nodeCtx.MempoolSize() != 0 {
		t.Fatalf("mempool size = %d, want 0", nodeCtx.MempoolSize())
	}
}

func TestGetHeadersRoundTrip(t *testing.T) {
	nodeCtx := newTestContext(t)
	router := NewRouter(nodeCtx, nil)

	req := httptest.NewRequest(http.MethodGet, "/bincode/headers?since=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp node.GetHeadersResponse
	if err := rlp.DecodeBytes(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding RLP response: %v", err)
	}
	if len(resp.Headers) != 1 {
		t.Fatalf("headers = %d, want 1 (genesis only)", len(resp.Headers))
	}
}

func TestPostPeersReturnsSelfAck(t *testing.T) {
	nodeCtx := newTestContext(t)
	router := NewRouter(nodeCtx, nil)

	announce := node.PeerInfoRequest{
		Address:   node.PeerAddress{Host: "10.0.0.5", Port: 9999},
		Info:      node.PeerInfo{Height: 3, Power: 8},
		Timestamp: 100,
	}
	body, err := json.Marshal(announce)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/peers", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var ack node.PeerInfoRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decoding ack: %v", err)
	}
	if ack.Address != nodeCtx.Self() {
		t.Fatalf("ack address = %+v, want %+v", ack.Address, nodeCtx.Self())
	}

	peers := nodeCtx.Peers()
	found := false
	for _, p := range peers {
		if p.Address == announce.Address {
			found = true
		}
	}
	if !found {
		t.Fatal("announced peer was not recorded")
	}
}
