package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"github.com/bazukachain/bazuka/core"
)

// puzzleRefreshInterval bounds how often the miner re-drafts its
// candidate block against the latest tip and mempool contents, and how
// often it re-announces the puzzle to registered webhooks.
const puzzleRefreshInterval = 2 * time.Second

// Miner holds the external-miner integration surface spec.md §6 exposes
// as /miner/puzzle, /miner/solution and /miner: this node never mines
// itself (no in-process hashing loop); it drafts unfinished blocks and
// lets outside miner software search the nonce space, matching
// spec.md §4.8's external-collaborator framing of PoW.
type Miner struct {
	mu       sync.Mutex
	bits     uint8
	draft    *core.Block
	webhooks []string
	client   *http.Client
	log      *logrus.Entry
}

// NewMiner builds a Miner targeting the given difficulty (leading zero
// bits a solved header's hash must have).
func NewMiner(bits uint8, log *logrus.Logger) *Miner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Miner{bits: bits, client: &http.Client{Timeout: 5 * time.Second}, log: log.WithField("component", "miner")}
}

// Run refreshes the candidate block on a fixed tick and notifies
// registered webhooks whenever that refresh produces a new puzzle.
func (m *Miner) Run(ctx context.Context, nodeCtx *Context) error {
	ticker := time.NewTicker(puzzleRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, err := m.refreshDraft(nodeCtx)
			if err != nil {
				m.log.WithField("error", err).Warn("drafting candidate block")
				continue
			}
			if changed {
				m.notifyWebhooks(ctx)
			}
		}
	}
}

// refreshDraft drafts a fresh candidate atop the current tip from the
// mempool's current contents. It reports whether the draft actually
// changed (a new tip or a different transaction set), so Run only wakes
// registered webhooks when there is genuinely new work.
func (m *Miner) refreshDraft(nodeCtx *Context) (bool, error) {
	txs := nodeCtx.SelectForDraft()
	// DraftBlock's producer parameter goes unused: block propagation
	// carries no producer field, so there is nothing for it to label.
	block, err := nodeCtx.chain.DraftBlock(uint32(nodeCtx.NetworkTimestamp()), txs, core.Address{})
	if err != nil {
		return false, err
	}
	block.Header.Bits = m.bits

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft != nil && m.draft.Header.ParentHash == block.Header.ParentHash && m.draft.Header.BodyMerkleRoot == block.Header.BodyMerkleRoot {
		return false, nil
	}
	m.draft = &block
	return true, nil
}

// Puzzle returns the current candidate header (nonce left at zero) and
// its target difficulty for GET /miner/puzzle.
func (m *Miner) Puzzle() (MinerPuzzleResponse, error) {
	m.mu.Lock()
	draft := m.draft
	m.mu.Unlock()
	if draft == nil {
		return MinerPuzzleResponse{}, fmt.Errorf("node: no candidate block drafted yet")
	}
	blob, err := rlp.EncodeToBytes(draft.Header)
	if err != nil {
		return MinerPuzzleResponse{}, err
	}
	return MinerPuzzleResponse{HeaderBlob: blob, Target: m.bits}, nil
}

// SubmitSolution reconstructs the candidate header with nonce, checks it
// meets the declared difficulty, and, if so, commits it via Extend and
// drops its transactions from the mempool. A false, nil result means the
// nonce did not solve the puzzle, not that anything failed.
func (m *Miner) SubmitSolution(nodeCtx *Context, nonce uint64) (bool, error) {
	m.mu.Lock()
	draft := m.draft
	m.mu.Unlock()
	if draft == nil {
		return false, fmt.Errorf("node: no candidate block drafted yet")
	}

	block := *draft
	block.Header.Nonce = nonce
	if !block.Header.MeetsDifficulty() {
		return false, nil
	}

	at, err := nodeCtx.chain.GetHeight()
	if err != nil {
		return false, err
	}
	if err := nodeCtx.chain.Extend(at, []core.Block{block}); err != nil {
		return false, err
	}

	hashes := make([]core.Hash, 0, len(block.Body))
	for _, tx := range block.Body {
		h, err := tx.Hash()
		if err != nil {
			continue
		}
		hashes = append(hashes, h)
	}
	nodeCtx.DiscardFromMempool(hashes)

	m.mu.Lock()
	m.draft = nil
	m.mu.Unlock()
	return true, nil
}

// RegisterWebhook records url as a destination for puzzle-available
// notifications (POST /miner). Duplicate registrations are ignored.
func (m *Miner) RegisterWebhook(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.webhooks {
		if existing == url {
			return
		}
	}
	m.webhooks = append(m.webhooks, url)
}

func (m *Miner) notifyWebhooks(ctx context.Context) {
	puzzle, err := m.Puzzle()
	if err != nil {
		return
	}
	payload, err := json.Marshal(puzzle)
	if err != nil {
		return
	}

	m.mu.Lock()
	webhooks := append([]string(nil), m.webhooks...)
	m.mu.Unlock()

	for _, url := range webhooks {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := m.client.Do(req)
		if err != nil {
			m.log.WithFields(logrus.Fields{"webhook": url, "error": err}).Debug("miner webhook unreachable")
			continue
		}
		resp.Body.Close()
	}
}
