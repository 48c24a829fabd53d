package node

import (
	"fmt"
	"net"
	"strconv"

	"github.com/bazukachain/bazuka/config"
)

// Timestamp mirrors the wire-level unix-second timestamp used throughout
// headers, peer info and mempool stats.
type Timestamp = uint32

// PeerAddress is a peer's dial address: ip/host plus port. Display
// renders it as the URL the node's outgoing HTTP client actually dials,
// matching original_source/src/node/mod.rs's PeerAddress Display impl.
type PeerAddress struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

func (a PeerAddress) String() string {
	return "http://" + net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// ParsePeerAddress parses a "host:port" string, the form accepted by the
// --bootstrap CLI flag.
func ParsePeerAddress(s string) (PeerAddress, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return PeerAddress{}, fmt.Errorf("node: invalid peer address %q: %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return PeerAddress{}, fmt.Errorf("node: invalid peer port %q: %w", s, err)
	}
	return PeerAddress{Host: host, Port: uint16(port)}, nil
}

// PeerInfo is the self-reported state a peer exchanges during a ping:
// its height and, when PoW is enabled, its accumulated power.
type PeerInfo struct {
	Height uint64 `json:"height"`
	Power  uint64 `json:"power"`
}

// Peer is one entry of the node's peer table.
type Peer struct {
	Address       PeerAddress `json:"address"`
	PunishedUntil Timestamp   `json:"punished_until"`
	Info          *PeerInfo   `json:"info"`
}

// IsPunished reports whether now still falls inside this peer's
// punishment window.
func (p *Peer) IsPunished(now Timestamp) bool {
	return now < p.PunishedUntil
}

// Punish extends this peer's punishment window by secs, never beyond
// config.MaxPunish seconds into the future from now: spec.md §7's
// punished_until = min(max(punished_until, now)+secs, now+MAX_PUNISH).
func (p *Peer) Punish(now Timestamp, secs uint32) {
	extended := now
	if p.PunishedUntil > extended {
		extended = p.PunishedUntil
	}
	extended += secs
	ceiling := now + config.MaxPunish
	if extended > ceiling {
		extended = ceiling
	}
	p.PunishedUntil = extended
}
