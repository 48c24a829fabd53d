package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/bazukachain/bazuka/chainerr"
	"github.com/bazukachain/bazuka/core"
)

// OutgoingSender is this node's HTTP client toward the rest of the
// network. Unlike the source's OutgoingSender (a channel-based actor
// wrapping hyper, needed there to avoid Send/Sync friction across
// task boundaries), a direct *http.Client is the idiomatic Go
// equivalent: no indirection is needed to call out from a goroutine.
type OutgoingSender struct {
	client *http.Client
}

// NewOutgoingSender builds an OutgoingSender with a bounded per-request
// timeout, so one unresponsive peer never stalls a heartbeat tick
// indefinitely.
func NewOutgoingSender(timeout time.Duration) *OutgoingSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OutgoingSender{client: &http.Client{Timeout: timeout}}
}

func (s *OutgoingSender) do(ctx context.Context, method, url string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerr.ErrNotAnswering, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerr.ErrNotAnswering, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerr.ErrNotAnswering, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: peer responded %d", chainerr.ErrNotAnswering, resp.StatusCode)
	}
	return respBody, nil
}

func rangeQuery(since uint64, until *uint64) string {
	q := url.Values{}
	q.Set("since", strconv.FormatUint(since, 10))
	if until != nil {
		q.Set("until", strconv.FormatUint(*until, 10))
	}
	return q.Encode()
}

// GetHeaders implements sync.PeerClient over /bincode/headers.
func (s *OutgoingSender) GetHeaders(ctx context.Context, addr string, since uint64, until *uint64) ([]core.Header, error) {
	body, err := s.do(ctx, http.MethodGet, addr+"/bincode/headers?"+rangeQuery(since, until), nil, "")
	if err != nil {
		return nil, err
	}
	var resp GetHeadersResponse
	if err := rlp.DecodeBytes(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding headers response: %v", chainerr.ErrNotAnswering, err)
	}
	return resp.Headers, nil
}

// GetBlocks implements sync.PeerClient over /bincode/blocks.
func (s *OutgoingSender) GetBlocks(ctx context.Context, addr string, since uint64, until *uint64) ([]core.Block, error) {
	body, err := s.do(ctx, http.MethodGet, addr+"/bincode/blocks?"+rangeQuery(since, until), nil, "")
	if err != nil {
		return nil, err
	}
	var resp GetBlocksResponse
	if err := rlp.DecodeBytes(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding blocks response: %v", chainerr.ErrNotAnswering, err)
	}
	return resp.Blocks, nil
}

// PostPeerInfo announces selfInfo to the peer at addr and returns its
// reported info and timestamp, for the ping loop to fold into the local
// peer table and clock-skew estimate.
func (s *OutgoingSender) PostPeerInfo(ctx context.Context, addr string, req PeerInfoRequest) (PeerInfoRequest, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return PeerInfoRequest{}, err
	}
	body, err := s.do(ctx, http.MethodPost, addr+"/peers", bytes.NewReader(payload), "application/json")
	if err != nil {
		return PeerInfoRequest{}, err
	}
	var resp PeerInfoRequest
	if err := json.Unmarshal(body, &resp); err != nil {
		return PeerInfoRequest{}, fmt.Errorf("%w: decoding peer ack: %v", chainerr.ErrNotAnswering, err)
	}
	return resp, nil
}
