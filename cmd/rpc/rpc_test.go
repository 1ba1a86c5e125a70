package rpc

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/canopy-network/votechain/bft"
	"github.com/canopy-network/votechain/controller"
	"github.com/canopy-network/votechain/lib"
	"github.com/stretchr/testify/require"
)

// recordingP2P captures broadcasts instead of sending them
type recordingP2P struct {
	mu     sync.Mutex
	routes []string
}

func (r *recordingP2P) Broadcast(route string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *recordingP2P) Routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.routes...)
}

type testServers struct {
	rpc    *httptest.Server
	admin  *httptest.Server
	client *Client
	p2p    *recordingP2P
	ctrl   *controller.Controller
}

func newTestServers(t *testing.T, nodeID uint64, primary bool) *testServers {
	c := lib.DefaultConfig()
	c.ApplyNodeID(nodeID)
	c.Primary = primary
	c.DataDirPath = t.TempDir()
	p := new(recordingP2P)
	ctrl, err := controller.New(c, p, nil, nil, lib.NewNullLogger())
	require.NoError(t, err)
	s := NewServer(ctrl, c, lib.NewNullLogger())
	ts := &testServers{
		rpc:   httptest.NewServer(s.handler(createRouter(s))),
		admin: httptest.NewServer(s.handler(createAdminRouter(s))),
		p2p:   p,
		ctrl:  ctrl,
	}
	t.Cleanup(ts.rpc.Close)
	t.Cleanup(ts.admin.Close)
	ts.client = NewClient(ts.rpc.URL, ts.admin.URL)
	return ts
}

func (ts *testServers) post(t *testing.T, path string, body []byte) (int, string) {
	resp, err := http.Post(ts.rpc.URL+path, ApplicationJSON, bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.String()
}

func (ts *testServers) postMessage(t *testing.T, msg bft.Message) (int, string) {
	bz, err := lib.MarshalJSON(msg)
	require.NoError(t, err)
	return ts.post(t, msg.Type().Route(), bz)
}

func TestRoutesMatchMessageTypes(t *testing.T) {
	require.Equal(t, bft.PrePrepare.Route(), PrePrepareRoutePath)
	require.Equal(t, bft.Prepare.Route(), PrepareRoutePath)
	require.Equal(t, bft.Commit.Route(), CommitRoutePath)
}

func TestVote(t *testing.T) {
	ts := newTestServers(t, 2, false)
	tests := []struct {
		name   string
		detail string
		body   string
		code   int
	}{
		{name: "accepted", detail: "both values present", body: `{"voter_id":"alice","candidate_id":"bob"}`, code: http.StatusCreated},
		{name: "missing candidate", detail: "candidate_id absent", body: `{"voter_id":"alice"}`, code: http.StatusBadRequest},
		{name: "missing voter", detail: "voter_id absent", body: `{"candidate_id":"bob"}`, code: http.StatusBadRequest},
		{name: "not json", detail: "the body can't be parsed", body: `voter=alice`, code: http.StatusBadRequest},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			code, body := ts.post(t, VoteRoutePath, []byte(test.body))
			require.Equal(t, test.code, code, body)
			if code == http.StatusCreated {
				require.JSONEq(t, `{"message":"Vote has been received"}`, body)
			}
		})
	}
	require.Equal(t, 1, ts.ctrl.Mempool.Len())
	// the missing values message is carried in the error
	code, body := ts.post(t, VoteRoutePath, []byte(`{}`))
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body, "Missing values")
}

func TestConsensusRound(t *testing.T) {
	ts := newTestServers(t, 2, false)
	genesis := lib.NewGenesisBlock(0)
	block := lib.NewBlock(1, []lib.Vote{{VoterID: "alice", CandidateID: "bob", Timestamp: 1700000000.25}}, 1700000001.5, genesis.Hash, 0)
	steps := []struct {
		name   string
		detail string
		msg    bft.Message
		status bft.Status
	}{
		{name: "pre-prepare", detail: "block stored as pending, own PREPARE sent", msg: bft.NewPrePrepare(0, block, 1), status: bft.StatusPrepareBroadcasted},
		{name: "prepare", detail: "second PREPARE crosses 2f", msg: bft.NewPrepare(0, block.Hash, 3), status: bft.StatusCommitBroadcasted},
		{name: "commit 1", detail: "own COMMIT plus this one", msg: bft.NewCommit(0, block.Hash, 1), status: bft.StatusWaitingForMoreCommits},
		{name: "commit 3", detail: "third COMMIT crosses 2f+1", msg: bft.NewCommit(0, block.Hash, 3), status: bft.StatusBlockAdded},
		{name: "late commit", detail: "votes for a committed block are dropped", msg: bft.NewCommit(0, block.Hash, 4), status: bft.StatusWaitingForMoreCommits},
	}
	for _, step := range steps {
		code, body := ts.postMessage(t, step.msg)
		require.Equal(t, http.StatusOK, code, step.name)
		require.JSONEq(t, `{"status":"`+string(step.status)+`"}`, body, step.name)
	}
	require.Equal(t, []string{PrepareRoutePath, CommitRoutePath}, ts.p2p.Routes())
	chain, err := ts.client.Chain()
	require.NoError(t, err)
	require.Equal(t, 2, chain.Length)
	require.Equal(t, block, chain.Chain[1])
	height, err := ts.client.Height()
	require.NoError(t, err)
	require.Equal(t, 2, height.Height)
	got, err := ts.client.BlockByHash(block.Hash)
	require.NoError(t, err)
	require.Equal(t, block, got)
	got, err = ts.client.BlockByHeight(0)
	require.NoError(t, err)
	require.Equal(t, genesis, got)
	_, err = ts.client.BlockByHeight(9)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
	// re-proposing the committed block is a conflict
	code, _ := ts.postMessage(t, bft.NewPrePrepare(0, block, 1))
	require.Equal(t, http.StatusConflict, code)
}

func TestConsensusRejections(t *testing.T) {
	ts := newTestServers(t, 2, false)
	hash := strings.Repeat("ab", 32)
	wrongView, _ := lib.MarshalJSON(bft.NewPrepare(7, hash, 3))
	commit, _ := lib.MarshalJSON(bft.NewCommit(0, hash, 3))
	tests := []struct {
		name   string
		detail string
		path   string
		body   string
		code   int
	}{
		{name: "not json", detail: "undecodable body", path: PrepareRoutePath, body: `{`, code: http.StatusBadRequest},
		{name: "missing fields", detail: "sender_id absent", path: PrepareRoutePath, body: `{"type":"PREPARE","view":0,"block_data":{"hash":"` + hash + `"}}`, code: http.StatusBadRequest},
		{name: "wrong route", detail: "a COMMIT posted to the prepare route", path: PrepareRoutePath, body: string(commit), code: http.StatusBadRequest},
		{name: "wrong view", detail: "the replica runs view 0", path: PrepareRoutePath, body: string(wrongView), code: http.StatusConflict},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			code, body := ts.post(t, test.path, []byte(test.body))
			require.Equal(t, test.code, code, body)
		})
	}
	require.Empty(t, ts.p2p.Routes())
}

func TestPrimaryProposesOverRPC(t *testing.T) {
	ts := newTestServers(t, 1, true)
	for _, voter := range []string{"alice", "carol"} {
		resp, err := ts.client.SubmitVote(voter, "bob")
		require.NoError(t, err)
		require.Equal(t, VoteReceivedMessage, resp.Message)
	}
	// the batch became a PRE-PREPARE followed by the primary's own PREPARE
	require.Equal(t, []string{PrePrepareRoutePath, PrepareRoutePath}, ts.p2p.Routes())
	pending, err := ts.client.Pending()
	require.NoError(t, err)
	require.NotNil(t, pending.Block)
	require.Len(t, pending.Block.Transactions, 2)
	require.Empty(t, pending.Votes)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServers(t, 3, false)
	version, err := ts.client.Version()
	require.NoError(t, err)
	require.Equal(t, SoftwareVersion, *version)
	info, err := ts.client.ConsensusInfo()
	require.NoError(t, err)
	require.EqualValues(t, 3, info.NodeID)
	require.False(t, info.Primary)
	require.Equal(t, bft.Idle.String(), info.Phase)
	require.Equal(t, 2, info.PrepareThreshold)
	require.Equal(t, 3, info.CommitThreshold)
	config, err := ts.client.Config()
	require.NoError(t, err)
	require.EqualValues(t, 3, config.NodeID)
	require.Len(t, config.Peers, 4)
	peers, err := ts.client.PeerInfo()
	require.NoError(t, err)
	require.Equal(t, 4, peers.NumPeers)
	usage, err := ts.client.ResourceUsage()
	require.NoError(t, err)
	require.NotZero(t, usage.System.TotalRAM)
	require.NotEmpty(t, usage.Process.Name)
}

func TestLogsRoute(t *testing.T) {
	ts := newTestServers(t, 2, false)
	resp, err := http.Get(ts.admin.URL + LogsRoutePath)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	c, err := ts.client.Config()
	require.NoError(t, err)
	dir := filepath.Join(c.DataDirPath, lib.LogDirectory)
	require.NoError(t, os.MkdirAll(dir, os.ModePerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, lib.LogFileName), []byte("first\nsecond\n"), 0644))
	resp, err = http.Get(ts.admin.URL + LogsRoutePath)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "second\nfirst\n", buf.String())
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  lib.ErrorI
		code int
	}{
		{name: "nil", code: http.StatusOK},
		{name: "decode", err: bft.ErrMessageDecode("bad"), code: http.StatusBadRequest},
		{name: "missing vote", err: lib.ErrMissingVoteValues(), code: http.StatusBadRequest},
		{name: "wrong view", err: bft.ErrWrongView(1, 0), code: http.StatusConflict},
		{name: "already committed", err: bft.ErrBlockAlreadyCommitted("h"), code: http.StatusConflict},
		{name: "unexpected", err: lib.ErrWriteFile(os.ErrClosed), code: http.StatusInternalServerError},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.code, statusCode(test.err))
		})
	}
}
