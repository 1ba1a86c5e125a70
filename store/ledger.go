package store

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/canopy-network/votechain/lib"
)

/*
	The Ledger is the append-only, hash-linked sequence of committed blocks.
	It lives in memory for the lifetime of the process and always contains at least the genesis block.
	Every appended block must reference the hash of the current tail and sit at the next index.
*/

// Ledger is guarded by its own lock so read only queries don't need the consensus lock
type Ledger struct {
	blocks []*lib.Block      // the chain in index order
	byHash map[string]uint64 // block hash -> index
	log    lib.LoggerI       // logger
	mu     *sync.RWMutex     // guards blocks and byHash
}

// NewLedger() creates a ledger seeded with a genesis block
func NewLedger(genesis *lib.Block, log lib.LoggerI) (*Ledger, lib.ErrorI) {
	if genesis == nil {
		return nil, ErrInvalidGenesis("nil block")
	}
	if !genesis.IsGenesis() {
		return nil, ErrInvalidGenesis(fmt.Sprintf("index %d previous hash %q", genesis.Index, genesis.PreviousHash))
	}
	if err := genesis.Check(); err != nil {
		return nil, ErrInvalidGenesis(err.Error())
	}
	g := genesis.Copy()
	return &Ledger{
		blocks: []*lib.Block{g},
		byHash: map[string]uint64{g.Hash: 0},
		log:    log,
		mu:     &sync.RWMutex{},
	}, nil
}

// Append() adds a block to the tail of the chain
// the caller guarantees consensus was reached; the ledger only enforces linkage and hash consistency
func (l *Ledger) Append(block *lib.Block) lib.ErrorI {
	if block == nil {
		return lib.ErrNilBlock()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	last := l.blocks[len(l.blocks)-1]
	if block.PreviousHash != last.Hash {
		return ErrChainLinkage(fmt.Sprintf("previous hash %s != last hash %s",
			lib.ShortHashString(block.PreviousHash), last.ShortHash()))
	}
	if block.Index != last.Index+1 {
		return ErrChainLinkage(fmt.Sprintf("index %d != last index %d + 1", block.Index, last.Index))
	}
	if err := block.Check(); err != nil {
		return ErrChainLinkage(err.Error())
	}
	b := block.Copy()
	l.blocks = append(l.blocks, b)
	l.byHash[b.Hash] = b.Index
	l.log.Debugf("Appended block %d (%s) with %d votes", b.Index, b.ShortHash(), len(b.Transactions))
	return nil
}

// LastBlock() returns a copy of the tail block
func (l *Ledger) LastBlock() (*lib.Block, lib.ErrorI) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.blocks) == 0 {
		return nil, ErrEmptyChain()
	}
	return l.blocks[len(l.blocks)-1].Copy(), nil
}

// Blocks() returns a copy of the chain in index order
func (l *Ledger) Blocks() []*lib.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*lib.Block, len(l.blocks))
	for i, b := range l.blocks {
		out[i] = b.Copy()
	}
	return out
}

// Height() returns the number of blocks including genesis
func (l *Ledger) Height() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// BlockByIndex() returns a copy of the block at index
func (l *Ledger) BlockByIndex(index uint64) (*lib.Block, lib.ErrorI) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.blocks)) {
		return nil, ErrBlockNotFound(strconv.FormatUint(index, 10))
	}
	return l.blocks[index].Copy(), nil
}

// BlockByHash() returns a copy of the block with hash
func (l *Ledger) BlockByHash(hash string) (*lib.Block, lib.ErrorI) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	index, ok := l.byHash[hash]
	if !ok {
		return nil, ErrBlockNotFound(hash)
	}
	return l.blocks[index].Copy(), nil
}

// Contains() reports whether a block with hash was committed
func (l *Ledger) Contains(hash string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byHash[hash]
	return ok
}

// Verify() walks the whole chain checking the genesis shape, every hash and every link
func (l *Ledger) Verify() lib.ErrorI {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return VerifyChain(l.blocks)
}

// VerifyChain() validates an ordered sequence of blocks, e.g. one fetched from a peer
func VerifyChain(chain []*lib.Block) lib.ErrorI {
	if len(chain) == 0 {
		return ErrEmptyChain()
	}
	if !chain[0].IsGenesis() {
		return ErrInvalidGenesis(fmt.Sprintf("index %d previous hash %q", chain[0].Index, chain[0].PreviousHash))
	}
	for i, b := range chain {
		if err := b.Check(); err != nil {
			return ErrCorruptedChainData(uint64(i), err)
		}
		if i == 0 {
			continue
		}
		prev := chain[i-1]
		if b.PreviousHash != prev.Hash {
			return ErrChainLinkage(fmt.Sprintf("block %d previous hash %s != %s", b.Index, lib.ShortHashString(b.PreviousHash), prev.ShortHash()))
		}
		if b.Index != prev.Index+1 {
			return ErrChainLinkage(fmt.Sprintf("block index %d follows %d", b.Index, prev.Index))
		}
	}
	return nil
}
