package bft

import (
	"fmt"
	"sync"
	"time"

	"github.com/canopy-network/votechain/lib"
	"github.com/canopy-network/votechain/store"
)

// Status is the outcome of handling a consensus message, it tells the caller what to broadcast next
type Status string

const (
	StatusPrepareBroadcasted     Status = "PREPARE_BROADCASTED"       // the PRE-PREPARE was accepted, broadcast PREPARE
	StatusWaitingForMorePrepares Status = "WAITING_FOR_MORE_PREPARES" // the prepare threshold hasn't been crossed
	StatusCommitBroadcasted      Status = "COMMIT_BROADCASTED"        // the prepare threshold was crossed, broadcast COMMIT
	StatusWaitingForMoreCommits  Status = "WAITING_FOR_MORE_COMMITS"  // the commit threshold or the block body is missing
	StatusBlockAdded             Status = "BLOCK_ADDED"               // the pending block was appended to the ledger
)

// NodePhase is the position of the replica in the round of its pending block
type NodePhase int

const (
	Idle NodePhase = iota
	PrePrepared
	Prepared
)

// String() implements fmt.Stringer
func (p NodePhase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case PrePrepared:
		return "PRE_PREPARED"
	case Prepared:
		return "PREPARED"
	}
	return fmt.Sprintf("NodePhase(%d)", int(p))
}

// Result is what a handler returns to the transport layer
type Result struct {
	Status Status     `json:"status"`
	Next   *Message   `json:"-"` // the message to broadcast, nil if nothing
	Block  *lib.Block `json:"-"` // the block appended by this call, nil if none
}

// BFT is the consensus state machine of a single replica
// every handler runs under one lock: pendingBlock, quorum and ledger are only mutated while it is held
type BFT struct {
	nodeID       uint64         // self id within the peer set
	isPrimary    bool           // static for the run, no leader rotation
	view         uint64         // the current round identifier
	pendingBlock *lib.Block     // at most one in-flight block body
	pendingSince time.Time      // when the pending block was received
	phase        NodePhase      // position in the round of the pending block
	quorum       *QuorumTracker // votes by hash
	ledger       *store.Ledger  // the committed chain
	config       lib.Config     // self configuration
	metrics      *lib.Metrics   // telemetry
	log          lib.LoggerI    // logging
	mu           *sync.Mutex    // serializes every handler
}

// New() creates the state machine and its ledger seeded with the configured genesis block
func New(c lib.Config, m *lib.Metrics, l lib.LoggerI) (*BFT, lib.ErrorI) {
	ledger, err := store.NewLedger(lib.NewGenesisBlock(c.GenesisTimestamp), l)
	if err != nil {
		return nil, err
	}
	m.UpdateBFTMetrics(ledger.Height())
	return &BFT{
		nodeID:    c.NodeID,
		isPrimary: c.Primary,
		view:      c.View,
		phase:     Idle,
		quorum:    NewQuorumTracker(c.FaultTolerance),
		ledger:    ledger,
		config:    c,
		metrics:   m,
		log:       l,
		mu:        &sync.Mutex{},
	}, nil
}

// Handle() routes a message to the handler of its type
func (b *BFT) Handle(msg Message) (Result, lib.ErrorI) {
	switch msg.Type() {
	case PrePrepare:
		return b.HandlePrePrepare(msg)
	case Prepare:
		return b.HandlePrepare(msg)
	case Commit:
		return b.HandleCommit(msg)
	}
	return Result{}, ErrUnknownMessageType(string(msg.Type()))
}

// HandlePrePrepare() stores the proposed block as pending and asks for a PREPARE broadcast
// if the commit quorum for the block was already reached, the block is appended right away
func (b *BFT) HandlePrePrepare(msg Message) (Result, lib.ErrorI) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkMessage(msg, PrePrepare); err != nil {
		return Result{}, err
	}
	block, hash := msg.Block(), msg.BlockHash()
	if block == nil {
		return Result{}, ErrMessageDecode("PRE-PREPARE without a block")
	}
	if b.ledger.Contains(hash) {
		return Result{}, ErrBlockAlreadyCommitted(hash)
	}
	if b.pendingBlock != nil && b.pendingBlock.Hash != hash {
		b.log.Warnf("Replacing pending block %s with %s", b.pendingBlock.ShortHash(), block.ShortHash())
	}
	b.log.Infof("Received PRE-PREPARE for block %d (%s) from %d", block.Index, block.ShortHash(), msg.SenderID())
	b.pendingBlock, b.pendingSince, b.phase = block, time.Now(), PrePrepared
	// votes may have arrived before the block body
	if b.quorum.IsPrepared(hash) {
		b.phase = Prepared
	}
	if b.quorum.IsCommitted(hash) {
		b.log.Infof("Commit quorum for %s was already reached, appending", block.ShortHash())
		res, err := b.commitPending()
		if err != nil {
			return Result{}, err
		}
		return b.result(res, msg), nil
	}
	next := NewPrepare(b.view, hash, b.nodeID)
	return b.result(Result{Status: StatusPrepareBroadcasted, Next: &next}, msg), nil
}

// HandlePrepare() records a PREPARE vote and asks for a COMMIT broadcast the first time 2f voters agree
// votes are keyed by hash only so they count even if the PRE-PREPARE hasn't arrived yet
func (b *BFT) HandlePrepare(msg Message) (Result, lib.ErrorI) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkMessage(msg, Prepare); err != nil {
		return Result{}, err
	}
	hash := msg.BlockHash()
	if b.ledger.Contains(hash) {
		b.log.Debugf("Dropping late PREPARE for committed block %s from %d", lib.ShortHashString(hash), msg.SenderID())
		return b.result(Result{Status: StatusWaitingForMorePrepares}, msg), nil
	}
	count := b.quorum.RecordVote(PhasePrepare, hash, msg.SenderID())
	b.log.Debugf("PREPARE %d/%d for %s from %d", count, b.quorum.PrepareThreshold(), lib.ShortHashString(hash), msg.SenderID())
	if !b.quorum.CrossedFirstTime(PhasePrepare, hash) {
		return b.result(Result{Status: StatusWaitingForMorePrepares}, msg), nil
	}
	if b.pendingMatches(hash) {
		b.phase = Prepared
	}
	b.log.Infof("Prepared %s with %d votes", lib.ShortHashString(hash), count)
	next := NewCommit(b.view, hash, b.nodeID)
	return b.result(Result{Status: StatusCommitBroadcasted, Next: &next}, msg), nil
}

// HandleCommit() records a COMMIT vote and appends the pending block once 2f+1 voters agree
// a quorum without the block body keeps the votes until the PRE-PREPARE arrives
func (b *BFT) HandleCommit(msg Message) (Result, lib.ErrorI) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkMessage(msg, Commit); err != nil {
		return Result{}, err
	}
	hash := msg.BlockHash()
	if b.ledger.Contains(hash) {
		b.log.Debugf("Dropping late COMMIT for committed block %s from %d", lib.ShortHashString(hash), msg.SenderID())
		return b.result(Result{Status: StatusWaitingForMoreCommits}, msg), nil
	}
	count := b.quorum.RecordVote(PhaseCommit, hash, msg.SenderID())
	b.log.Debugf("COMMIT %d/%d for %s from %d", count, b.quorum.CommitThreshold(), lib.ShortHashString(hash), msg.SenderID())
	if count < b.quorum.CommitThreshold() {
		return b.result(Result{Status: StatusWaitingForMoreCommits}, msg), nil
	}
	if !b.pendingMatches(hash) {
		if b.quorum.CrossedFirstTime(PhaseCommit, hash) {
			b.log.Warnf("Commit quorum reached, awaiting block body for %s", lib.ShortHashString(hash))
		}
		return b.result(Result{Status: StatusWaitingForMoreCommits}, msg), nil
	}
	res, err := b.commitPending()
	if err != nil {
		return Result{}, err
	}
	return b.result(res, msg), nil
}

// CreateBlock() builds the next block from a batch of votes, only the primary proposes
func (b *BFT) CreateBlock(votes []lib.Vote) (*lib.Block, lib.ErrorI) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isPrimary {
		return nil, ErrNotPrimary()
	}
	if len(votes) == 0 {
		return nil, ErrEmptyBlock()
	}
	last, err := b.ledger.LastBlock()
	if err != nil {
		return nil, err
	}
	txs := make([]lib.Vote, len(votes))
	copy(txs, votes)
	block := lib.NewBlock(last.Index+1, txs, lib.UnixSeconds(time.Now()), last.Hash, 0)
	b.log.Infof("Created block %d (%s) with %d votes", block.Index, block.ShortHash(), len(txs))
	return block, nil
}

// GetChain() returns a copy of the committed chain
func (b *BFT) GetChain() []*lib.Block { return b.ledger.Blocks() }

// Ledger() exposes the committed chain for read only queries
func (b *BFT) Ledger() *store.Ledger { return b.ledger }

// HasPendingBlock() reports whether a block is in flight
func (b *BFT) HasPendingBlock() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingBlock != nil
}

// PendingBlock() returns a copy of the in-flight block, nil if none
func (b *BFT) PendingBlock() *lib.Block {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingBlock.Copy()
}

// Phase() returns the position of the replica in the current round
func (b *BFT) Phase() NodePhase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// NodeID() returns self id
func (b *BFT) NodeID() uint64 { return b.nodeID }

// IsPrimary() reports whether this replica proposes blocks
func (b *BFT) IsPrimary() bool { return b.isPrimary }

// View() returns the current round identifier
func (b *BFT) View() uint64 { return b.view }

// ConsensusInfo is a snapshot of the replica state for inspection
type ConsensusInfo struct {
	NodeID           uint64   `json:"nodeID"`
	Primary          bool     `json:"primary"`
	View             uint64   `json:"view"`
	FaultTolerance   uint64   `json:"faultTolerance"`
	PrepareThreshold int      `json:"prepareThreshold"`
	CommitThreshold  int      `json:"commitThreshold"`
	Phase            string   `json:"phase"`
	PendingHash      string   `json:"pendingHash,omitempty"`
	PendingIndex     uint64   `json:"pendingIndex,omitempty"`
	PrepareVoters    []uint64 `json:"prepareVoters,omitempty"`
	CommitVoters     []uint64 `json:"commitVoters,omitempty"`
	TrackedHashes    int      `json:"trackedHashes"`
	Height           int      `json:"height"`
	LastHash         string   `json:"lastHash"`
}

// Info() returns a snapshot of the replica state
func (b *BFT) Info() ConsensusInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	info := ConsensusInfo{
		NodeID:           b.nodeID,
		Primary:          b.isPrimary,
		View:             b.view,
		FaultTolerance:   b.config.FaultTolerance,
		PrepareThreshold: b.quorum.PrepareThreshold(),
		CommitThreshold:  b.quorum.CommitThreshold(),
		Phase:            b.phase.String(),
		TrackedHashes:    b.quorum.Len(),
		Height:           b.ledger.Height(),
	}
	if last, err := b.ledger.LastBlock(); err == nil {
		info.LastHash = last.Hash
	}
	if b.pendingBlock != nil {
		info.PendingHash, info.PendingIndex = b.pendingBlock.Hash, b.pendingBlock.Index
		info.PrepareVoters = b.quorum.Voters(PhasePrepare, b.pendingBlock.Hash)
		info.CommitVoters = b.quorum.Voters(PhaseCommit, b.pendingBlock.Hash)
	}
	return info
}

// commitPending() appends the pending block and ends the round
// a linkage failure abandons the round rather than retrying it
// NOTE: requires the lock
func (b *BFT) commitPending() (Result, lib.ErrorI) {
	block, since := b.pendingBlock, b.pendingSince
	b.pendingBlock, b.phase = nil, Idle
	b.quorum.Reset(block.Hash)
	if err := b.ledger.Append(block); err != nil {
		b.log.Errorf("Abandoning round for block %d (%s): %s", block.Index, block.ShortHash(), err.Error())
		return Result{}, err
	}
	b.log.Infof("Committed block %d (%s) with %d votes", block.Index, block.ShortHash(), len(block.Transactions))
	b.metrics.UpdateBlockMetrics(b.ledger.Height(), time.Since(since))
	return Result{Status: StatusBlockAdded, Block: block.Copy()}, nil
}

// checkMessage() validates the type and view of msg
func (b *BFT) checkMessage(msg Message, expected MessageType) lib.ErrorI {
	var err lib.ErrorI
	switch {
	case msg.Type() != expected:
		err = ErrMismatchMessageType(msg.Type(), expected)
	case msg.View() != b.view:
		err = ErrWrongView(msg.View(), b.view)
	}
	if err != nil {
		b.log.Warnf("Rejected %s: %s", msg, err.Error())
		b.metrics.IncRejected(err)
	}
	return err
}

// pendingMatches() reports whether the pending block has hash
func (b *BFT) pendingMatches(hash string) bool {
	return b.pendingBlock != nil && b.pendingBlock.Hash == hash
}

// result() records telemetry for a handled message
func (b *BFT) result(r Result, msg Message) Result {
	b.metrics.UpdateMessageMetrics(string(msg.Type()), string(r.Status))
	return r
}
