package controller

import (
	"strings"
	"sync"

	"github.com/canopy-network/votechain/bft"
	"github.com/canopy-network/votechain/lib"
)

// P2P delivers a consensus message to every other replica without waiting for acknowledgement
type P2P interface {
	Broadcast(route string, msg any)
}

// Publisher announces committed blocks to external subscribers
type Publisher interface {
	PublishBlock(block *lib.Block) lib.ErrorI
}

// Controller acts as the 'manager' of the modules of a replica
// it is the single per process context the rpc handlers are given
type Controller struct {
	Consensus *bft.BFT     // the state machine and its ledger
	Mempool   *Mempool     // votes waiting for a block
	P2P       P2P          // outbound message fan-out
	Publisher Publisher    // optional committed block feed
	Config    lib.Config   // self configuration
	Metrics   *lib.Metrics // telemetry
	log       lib.LoggerI  // logging
	proposeMu sync.Mutex   // one proposal at a time
}

// New() creates a new instance of a Controller
func New(c lib.Config, p2p P2P, publisher Publisher, m *lib.Metrics, l lib.LoggerI) (*Controller, lib.ErrorI) {
	consensus, err := bft.New(c, m, l)
	if err != nil {
		return nil, err
	}
	m.UpdatePeerMetrics(len(c.Peers))
	return &Controller{
		Consensus: consensus,
		Mempool:   NewMempool(m),
		P2P:       p2p,
		Publisher: publisher,
		Config:    c,
		Metrics:   m,
		log:       l,
	}, nil
}

// SubmitVote() buffers a vote and, on the primary, proposes a block once a batch is full
func (c *Controller) SubmitVote(voterID, candidateID string) (lib.Vote, lib.ErrorI) {
	voterID, candidateID = strings.TrimSpace(voterID), strings.TrimSpace(candidateID)
	if voterID == "" || candidateID == "" {
		return lib.Vote{}, lib.ErrMissingVoteValues()
	}
	vote := lib.NewVote(voterID, candidateID)
	size := c.Mempool.Add(vote)
	c.log.Debugf("Buffered vote from %s, %d pending", voterID, size)
	if c.Consensus.IsPrimary() && size >= c.Config.BatchSize {
		if _, err := c.Propose(); err != nil {
			c.log.Errorf("Proposal failed with err: %s", err.Error())
		}
	}
	return vote, nil
}

// Propose() turns the buffered votes into a block and starts a round
// while a block is in flight the votes stay buffered and nil is returned
func (c *Controller) Propose() (*lib.Block, lib.ErrorI) {
	c.proposeMu.Lock()
	defer c.proposeMu.Unlock()
	if c.Consensus.HasPendingBlock() {
		c.log.Debugf("Block in flight, keeping %d votes buffered", c.Mempool.Len())
		return nil, nil
	}
	votes := c.Mempool.Drain()
	if len(votes) == 0 {
		return nil, nil
	}
	block, err := c.Consensus.CreateBlock(votes)
	if err != nil {
		c.Mempool.Restore(votes)
		return nil, err
	}
	c.Metrics.IncProposals()
	msg := bft.NewPrePrepare(c.Consensus.View(), block, c.Consensus.NodeID())
	c.log.Infof("Proposing block %d (%s) with %d votes", block.Index, block.ShortHash(), len(votes))
	c.P2P.Broadcast(msg.Type().Route(), msg)
	if _, err = c.HandleMessage(msg); err != nil {
		return nil, err
	}
	return block, nil
}

// HandlePrePrepare() handles a proposal received from the transport
func (c *Controller) HandlePrePrepare(msg bft.Message) (bft.Result, lib.ErrorI) {
	return c.handleTyped(msg, bft.PrePrepare)
}

// HandlePrepare() handles a PREPARE vote received from the transport
func (c *Controller) HandlePrepare(msg bft.Message) (bft.Result, lib.ErrorI) {
	return c.handleTyped(msg, bft.Prepare)
}

// HandleCommit() handles a COMMIT vote received from the transport
func (c *Controller) HandleCommit(msg bft.Message) (bft.Result, lib.ErrorI) {
	return c.handleTyped(msg, bft.Commit)
}

// HandleMessage() feeds a message into the state machine and acts on the returned status:
// the next message goes to the peers fire-and-forget and to self synchronously,
// an appended block is published and may free the primary to propose the next batch
func (c *Controller) HandleMessage(msg bft.Message) (bft.Result, lib.ErrorI) {
	res, err := c.Consensus.Handle(msg)
	if err != nil {
		return res, err
	}
	if res.Next != nil {
		c.gossip(*res.Next)
	}
	if res.Block != nil {
		c.onBlockAdded(res.Block)
	}
	return res, nil
}

// ConsensusInfo() returns a snapshot of the state machine
func (c *Controller) ConsensusInfo() bft.ConsensusInfo { return c.Consensus.Info() }

// Chain() returns the committed chain
func (c *Controller) Chain() []*lib.Block { return c.Consensus.GetChain() }

func (c *Controller) handleTyped(msg bft.Message, expected bft.MessageType) (bft.Result, lib.ErrorI) {
	if msg.Type() != expected {
		return bft.Result{}, bft.ErrMismatchMessageType(msg.Type(), expected)
	}
	return c.HandleMessage(msg)
}

// gossip() sends msg to the other replicas and delivers it to self
func (c *Controller) gossip(msg bft.Message) {
	c.log.Debugf("Broadcasting %s", msg)
	c.P2P.Broadcast(msg.Type().Route(), msg)
	if _, err := c.HandleMessage(msg); err != nil {
		c.log.Errorf("Self delivery of %s failed with err: %s", msg, err.Error())
	}
}

// onBlockAdded() runs after a block is appended to the ledger
func (c *Controller) onBlockAdded(block *lib.Block) {
	if c.Publisher != nil {
		if err := c.Publisher.PublishBlock(block); err != nil {
			c.log.Warnf("Publishing block %d failed with err: %s", block.Index, err.Error())
		}
	}
	if c.Consensus.IsPrimary() && c.Mempool.Len() >= c.Config.BatchSize {
		go func() {
			if _, err := c.Propose(); err != nil {
				c.log.Errorf("Proposal failed with err: %s", err.Error())
			}
		}()
	}
}
