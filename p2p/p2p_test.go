package p2p

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/canopy-network/votechain/lib"
	"github.com/go-zeromq/zmq4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// testServer records every request body received by a peer
type testServer struct {
	*httptest.Server
	mu       sync.Mutex
	received map[string][]string
}

func newTestServer(t *testing.T, status int) *testServer {
	s := &testServer{received: make(map[string][]string)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bz, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, contentType, r.Header.Get("Content-Type"))
		s.mu.Lock()
		s.received[r.URL.Path] = append(s.received[r.URL.Path], string(bz))
		s.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) Received(route string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received[route]...)
}

func newTestP2P(peers map[uint64]string, m *lib.Metrics) *P2P {
	c := lib.DefaultConfig()
	c.NodeID, c.Peers, c.BroadcastTimeoutMS = 1, peers, 200
	return New(c, m, lib.NewNullLogger())
}

func TestBroadcastSkipsSelf(t *testing.T) {
	servers := make(map[uint64]*testServer)
	peers := make(map[uint64]string)
	for id := uint64(1); id <= 4; id++ {
		servers[id] = newTestServer(t, http.StatusOK)
		peers[id] = servers[id].URL
	}
	p := newTestP2P(peers, nil)
	p.Broadcast("/prepare", map[string]any{"type": "PREPARE"})
	p.Wait()
	require.Empty(t, servers[1].Received("/prepare"))
	for id := uint64(2); id <= 4; id++ {
		require.Equal(t, []string{`{"type":"PREPARE"}`}, servers[id].Received("/prepare"), "peer %d", id)
	}
}

func TestBroadcastSkipsUnreachablePeer(t *testing.T) {
	reachable := newTestServer(t, http.StatusOK)
	rejecting := newTestServer(t, http.StatusConflict)
	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	// a peer that never answers within the timeout
	hang := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-hang:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() { close(hang); slow.Close() })
	c := lib.DefaultMetricsConfig()
	m := lib.NewMetricsServer(c, 1, lib.NewNullLogger())
	p := newTestP2P(map[uint64]string{1: "http://unused", 2: reachable.URL, 3: rejecting.URL, 4: closed.URL, 5: slow.URL}, m)
	start := time.Now()
	p.Broadcast("/commit", map[string]any{"type": "COMMIT"})
	p.Wait()
	require.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, reachable.Received("/commit"), 1)
	require.Len(t, rejecting.Received("/commit"), 1)
	require.Zero(t, testutil.ToFloat64(m.BroadcastFailures.WithLabelValues("2")))
	for _, peer := range []string{"3", "4", "5"} {
		require.Equal(t, float64(1), testutil.ToFloat64(m.BroadcastFailures.WithLabelValues(peer)), "peer %s", peer)
	}
}

func TestSendTo(t *testing.T) {
	ok := newTestServer(t, http.StatusOK)
	bad := newTestServer(t, http.StatusBadRequest)
	p := newTestP2P(map[uint64]string{1: "http://unused", 2: ok.URL, 3: bad.URL}, nil)
	tests := []struct {
		name   string
		detail string
		peerID uint64
		code   lib.ErrorCode
	}{
		{name: "delivered", detail: "a 2xx answer is a successful send", peerID: 2},
		{name: "rejected", detail: "a 4xx answer is a failed send", peerID: 3, code: lib.CodeBroadcast},
		{name: "unknown", detail: "the peer is not configured", peerID: 9, code: lib.CodeUnknownPeer},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := p.SendTo(test.peerID, "/pre-prepare", map[string]string{"type": "PRE-PREPARE"})
			if test.code == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, test.code, err.Code())
			require.Equal(t, lib.P2PModule, err.Module())
		})
	}
}

func TestPeersIsCopy(t *testing.T) {
	p := newTestP2P(map[uint64]string{1: "a", 2: "b"}, nil)
	peers := p.Peers()
	peers[3] = "c"
	require.Len(t, p.Peers(), 2)
}

func TestPublisherDisabled(t *testing.T) {
	p, err := NewPublisher(lib.DefaultEventsConfig(), lib.NewNullLogger())
	require.NoError(t, err)
	require.Nil(t, p)
	// a nil publisher is a no-op
	require.NoError(t, p.PublishBlock(lib.NewGenesisBlock(0)))
	require.Empty(t, p.Addr())
	p.Close()
}

func TestPublishBlock(t *testing.T) {
	p, err := NewPublisher(lib.EventsConfig{EventsEnabled: true, PublishAddress: "tcp://127.0.0.1:0"}, lib.NewNullLogger())
	require.NoError(t, err)
	defer p.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub := zmq4.NewSub(ctx)
	defer sub.Close()
	require.NoError(t, sub.Dial("tcp://"+p.Addr()))
	require.NoError(t, sub.SetOption(zmq4.OptionSubscribe, BlockTopic))
	block := lib.NewBlock(1, []lib.Vote{{VoterID: "alice", CandidateID: "bob", Timestamp: 1}}, 2, lib.NewGenesisBlock(0).Hash, 3)
	received := make(chan zmq4.Msg, 1)
	go func() {
		msg, e := sub.Recv()
		if e == nil {
			received <- msg
		}
	}()
	// subscriptions propagate asynchronously so keep publishing until one arrives
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case msg := <-received:
			require.Len(t, msg.Frames, 2)
			require.Equal(t, BlockTopic, string(msg.Frames[0]))
			got := new(lib.Block)
			require.NoError(t, lib.UnmarshalJSON(msg.Frames[1], got))
			require.Equal(t, block, got)
			return
		case <-ticker.C:
			require.NoError(t, p.PublishBlock(block))
		case <-ctx.Done():
			t.Fatal("timed out waiting for the published block")
		}
	}
}
