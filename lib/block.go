package lib

import (
	"time"

	"github.com/canopy-network/votechain/lib/crypto"
)

// GenesisPreviousHash is the previous hash placeholder of the first block in the chain
const GenesisPreviousHash = "0"

// Vote is a single ballot cast by a voter, blocks carry them as opaque ordered records
type Vote struct {
	VoterID     string  `json:"voter_id"`     // who voted
	CandidateID string  `json:"candidate_id"` // who was voted for
	Timestamp   float64 `json:"timestamp"`    // unix seconds of ingestion
}

// NewVote() creates a vote stamped with the current time
func NewVote(voterID, candidateID string) Vote {
	return Vote{VoterID: voterID, CandidateID: candidateID, Timestamp: UnixSeconds(time.Now())}
}

// CanonicalFields() implements CanonicalEncodable
func (v Vote) CanonicalFields() []CanonicalField {
	return []CanonicalField{
		{Key: "voter_id", Value: v.VoterID},
		{Key: "candidate_id", Value: v.CandidateID},
		{Key: "timestamp", Value: v.Timestamp},
	}
}

// Block is an immutable, content hashed ledger entry
// NOTE: Hash is computed once by NewBlock() and must never be reassigned after
type Block struct {
	Index        uint64  `json:"index"`         // position in the chain, genesis is 0
	Transactions []Vote  `json:"transactions"`  // ordered vote records, empty only for genesis
	Timestamp    float64 `json:"timestamp"`     // unix seconds of creation, informational only
	PreviousHash string  `json:"previous_hash"` // hash of the block at Index-1, "0" for genesis
	Nonce        uint64  `json:"nonce"`         // unused by validation but part of the hashed payload
	Hash         string  `json:"hash"`          // derived from every other field
}

// NewBlock() constructs a block and computes its hash
func NewBlock(index uint64, transactions []Vote, timestamp float64, previousHash string, nonce uint64) *Block {
	if transactions == nil {
		transactions = []Vote{}
	}
	b := &Block{
		Index:        index,
		Transactions: transactions,
		Timestamp:    timestamp,
		PreviousHash: previousHash,
		Nonce:        nonce,
	}
	b.Hash = ComputeHash(b)
	return b
}

// NewGenesisBlock() creates the first block of the chain
// every replica must use the same timestamp in order to agree on the genesis hash
func NewGenesisBlock(timestamp float64) *Block {
	return NewBlock(0, []Vote{}, timestamp, GenesisPreviousHash, 0)
}

// CanonicalFields() implements CanonicalEncodable, the hash itself is excluded
func (x *Block) CanonicalFields() []CanonicalField {
	txs := make([]any, len(x.Transactions))
	for i, tx := range x.Transactions {
		txs[i] = tx
	}
	return []CanonicalField{
		{Key: "index", Value: x.Index},
		{Key: "transactions", Value: txs},
		{Key: "timestamp", Value: x.Timestamp},
		{Key: "previous_hash", Value: x.PreviousHash},
		{Key: "nonce", Value: x.Nonce},
	}
}

// ComputeHash() is the sha256 hex digest of the canonical encoding of every field but the hash
func ComputeHash(x *Block) string {
	return crypto.HashString(CanonicalBytes(x))
}

// IsGenesis() reports whether the block has the genesis shape
func (x *Block) IsGenesis() bool {
	return x.Index == 0 && x.PreviousHash == GenesisPreviousHash
}

// Check() validates the block is self consistent
func (x *Block) Check() ErrorI {
	if x == nil {
		return ErrNilBlock()
	}
	if len(x.Transactions) == 0 && !x.IsGenesis() {
		return ErrEmptyTransactions()
	}
	if expected := ComputeHash(x); expected != x.Hash {
		return ErrInvalidBlockHash(expected, x.Hash)
	}
	return nil
}

// Copy() returns a deep copy of the block
func (x *Block) Copy() *Block {
	if x == nil {
		return nil
	}
	cp := *x
	cp.Transactions = make([]Vote, len(x.Transactions))
	copy(cp.Transactions, x.Transactions)
	return &cp
}

// ShortHash() returns a truncated hash for logging
func (x *Block) ShortHash() string { return ShortHashString(x.Hash) }

// ShortHashString() truncates a hex hash for logging
func ShortHashString(hash string) string {
	if len(hash) > 6 {
		return hash[:6]
	}
	return hash
}

// UnixSeconds() converts a time to fractional unix seconds
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
