package node

import (
	"sort"

	"github.com/bazukachain/bazuka/core"
)

// TransactionStats is the bookkeeping the mempool keeps alongside each
// pending transaction.
type TransactionStats struct {
	FirstSeen Timestamp `json:"first_seen"`
}

type mempoolEntry struct {
	Tx    core.Transaction
	Stats TransactionStats
}

// SelectForDraft orders the mempool's contents for block drafting: per
// sender, transactions must appear in nonce order (a later nonce only
// applies once its predecessor has), so each sender is first sorted by
// nonce; across senders, the next eligible transaction from whichever
// sender currently offers the highest fee is taken next. The result is a
// single ordering that is fee-descending among currently eligible heads
// while never violating a sender's own nonce sequence.
func (c *Context) SelectForDraft() []core.Transaction {
	c.mu.RLock()
	bySender := make(map[core.Address][]core.Transaction)
	for _, e := range c.mempool {
		bySender[e.Tx.Src] = append(bySender[e.Tx.Src], e.Tx)
	}
	c.mu.RUnlock()

	for addr := range bySender {
		txs := bySender[addr]
		sort.Slice(txs, func(i, j int) bool { return txs[i].Nonce < txs[j].Nonce })
		bySender[addr] = txs
	}

	idx := make(map[core.Address]int, len(bySender))
	out := make([]core.Transaction, 0, len(bySender))
	for {
		var bestAddr core.Address
		var bestFee core.Money
		found := false
		for addr, txs := range bySender {
			i := idx[addr]
			if i >= len(txs) {
				continue
			}
			if !found || txs[i].Fee > bestFee {
				bestAddr, bestFee, found = addr, txs[i].Fee, true
			}
		}
		if !found {
			break
		}
		out = append(out, bySender[bestAddr][idx[bestAddr]])
		idx[bestAddr]++
	}
	return out
}
