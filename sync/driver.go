package sync

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bazukachain/bazuka/chainerr"
	"github.com/bazukachain/bazuka/core"
)

// Driver runs one synchronization pass at a time; the node's Heartbeat
// calls Tick on a fixed cadence.
type Driver struct {
	view   ChainView
	client PeerClient
	log    *logrus.Entry
}

// NewDriver builds a Driver over view, fetching from peers through
// client.
func NewDriver(view ChainView, client PeerClient, log *logrus.Logger) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Driver{view: view, client: client, log: log.WithField("component", "sync")}
}

// Tick selects the peer claiming the highest power, and if it is heavier
// than the local chain, walks back to the common ancestor and attempts to
// extend onto the peer's chain from there. It returns chainerr.ErrNoPeers
// when no active peer is known, nil when no peer beats the local chain,
// and an error when reading the local chain failed, a peer request
// failed, or the peer's chain turned out to be invalid.
func (d *Driver) Tick(ctx context.Context) error {
	bc := d.view.Blockchain()

	localPower, err := bc.GetPower()
	if err != nil {
		return err
	}
	localHeight, err := bc.GetHeight()
	if err != nil {
		return err
	}

	peers := d.view.ActivePeers()
	if len(peers) == 0 {
		return chainerr.ErrNoPeers
	}
	best := peers[0]
	for _, p := range peers[1:] {
		if p.Power > best.Power {
			best = p
		}
	}
	if best.Power <= localPower {
		return nil
	}

	startHeight := localHeight
	if best.Height < startHeight {
		startHeight = best.Height
	}

	headers, err := d.client.GetHeaders(ctx, best.Address, startHeight, nil)
	if err != nil {
		d.view.Punish(best, "did not answer headers request")
		return fmt.Errorf("%w: %v", chainerr.ErrNotAnswering, err)
	}
	if len(headers) == 0 {
		return nil
	}

	localAtStart, ok, err := bc.GetHeader(startHeight)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing local header at %d", chainerr.ErrInvalidChain, startHeight)
	}

	var at uint64
	if headers[0].Hash() == localAtStart.Hash() {
		// The peer agrees with us as far as startHeight; everything after
		// it in this batch is genuinely new.
		headers = headers[1:]
		at = startHeight
	} else {
		// Walk backward comparing header hashes until we find the height
		// both chains still agree on (or run out of shared history).
		at = 0
		found := false
		for index := int64(startHeight) - 1; index >= 0; index-- {
			until := uint64(index) + 1
			peerHeaders, err := d.client.GetHeaders(ctx, best.Address, uint64(index), &until)
			if err != nil || len(peerHeaders) == 0 {
				d.view.Punish(best, "did not answer ancestor probe")
				return fmt.Errorf("%w: %v", chainerr.ErrNotAnswering, err)
			}
			peerHeader := peerHeaders[0]

			localHeaders, err := bc.GetHeaders(uint64(index), 1)
			if err != nil || len(localHeaders) == 0 {
				return err
			}

			if localHeaders[0].Hash() != peerHeader.Hash() {
				headers = append([]core.Header{peerHeader}, headers...)
				continue
			}
			at = uint64(index)
			found = true
			break
		}
		if !found {
			// Disagrees all the way back to genesis: a different network
			// entirely, not a fork worth reconciling.
			return nil
		}
	}

	if len(headers) == 0 {
		return nil
	}

	willExtend, err := bc.WillExtend(at, headers)
	if err != nil {
		return err
	}
	if !willExtend {
		return nil
	}

	blocks, err := d.client.GetBlocks(ctx, best.Address, headers[0].Number, nil)
	if err != nil {
		d.view.Punish(best, "did not answer blocks request")
		return fmt.Errorf("%w: %v", chainerr.ErrNotAnswering, err)
	}
	if err := bc.Extend(at, blocks); err != nil {
		d.view.Punish(best, "offered an invalid chain")
		return fmt.Errorf("%w: %v", chainerr.ErrPeerMisbehaved, err)
	}
	return nil
}
