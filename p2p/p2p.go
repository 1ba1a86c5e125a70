package p2p

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/alecthomas/units"
	"github.com/canopy-network/votechain/lib"
	"golang.org/x/sync/errgroup"
)

/*
	P2P delivers consensus messages to the static replica set over the peers' rpc endpoints.
	- Broadcast is fire-and-forget: each send gets a timeout and no retry
	- An unreachable peer is logged, counted and skipped
	- The protocol provides no liveness guarantee under partial connectivity
*/

const (
	contentType          = "application/json"
	maxResponseBodyBytes = int64(units.KiB) * 64
)

// P2P is the outbound transport of a replica
type P2P struct {
	selfID  uint64            // excluded from every broadcast
	peers   map[uint64]string // replica id -> base url
	timeout time.Duration     // per send timeout
	client  *http.Client      // shared keep-alive client
	metrics *lib.Metrics      // telemetry
	log     lib.LoggerI       // logging
	wg      sync.WaitGroup    // in-flight broadcasts
}

// New() creates the transport from the peer configuration
func New(c lib.Config, m *lib.Metrics, l lib.LoggerI) *P2P {
	peers := make(map[uint64]string, len(c.Peers))
	for id, url := range c.Peers {
		peers[id] = url
	}
	timeout := time.Duration(c.BroadcastTimeoutMS) * time.Millisecond
	return &P2P{
		selfID:  c.NodeID,
		peers:   peers,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
		log:     l,
	}
}

// Broadcast() sends msg to every peer but self in the background
func (p *P2P) Broadcast(route string, msg any) {
	bz, err := lib.MarshalJSON(msg)
	if err != nil {
		p.log.Errorf("Unable to encode broadcast for %s: %s", route, err.Error())
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if e := p.broadcast(route, bz); e != nil {
			p.log.Debugf("Broadcast to %s incomplete: %s", route, e.Error())
		}
	}()
}

// broadcast() fans out concurrently and waits for every send to finish or time out
func (p *P2P) broadcast(route string, bz []byte) error {
	var g errgroup.Group
	for id, url := range p.peers {
		if id == p.selfID {
			continue
		}
		id, url := id, url
		g.Go(func() error {
			if err := p.send(url, route, bz); err != nil {
				p.log.Warnf("Skipping peer %d for %s: %s", id, route, err.Error())
				p.metrics.IncBroadcastFailure(id)
				return ErrBroadcast(id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// SendTo() delivers msg to a single peer and waits for the result
func (p *P2P) SendTo(peerID uint64, route string, msg any) lib.ErrorI {
	url, ok := p.peers[peerID]
	if !ok {
		return ErrUnknownPeer(peerID)
	}
	bz, err := lib.MarshalJSON(msg)
	if err != nil {
		return err
	}
	if e := p.send(url, route, bz); e != nil {
		p.metrics.IncBroadcastFailure(peerID)
		return ErrBroadcast(peerID, e)
	}
	return nil
}

// send() posts bz to url+route, any non 2xx answer is an error
func (p *P2P) send(url, route string, bz []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+route, bytes.NewReader(bz))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// Peers() returns a copy of the peer set
func (p *P2P) Peers() map[uint64]string {
	out := make(map[uint64]string, len(p.peers))
	for id, url := range p.peers {
		out[id] = url
	}
	return out
}

// Wait() blocks until every in-flight broadcast finished
func (p *P2P) Wait() { p.wg.Wait() }

// Stop() drains in-flight broadcasts and releases idle connections
func (p *P2P) Stop() {
	p.Wait()
	p.client.CloseIdleConnections()
}
