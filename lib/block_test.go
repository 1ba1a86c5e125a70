package lib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name     string
		detail   string
		block    *Block
		expected string
	}{
		{
			name:     "genesis",
			detail:   "the genesis block with a zero timestamp has a fixed hash",
			block:    NewGenesisBlock(0),
			expected: "f2e5a9550fb6716f239fdeba8f8b7aa1188d808286642e7828e5add618e73613",
		},
		{
			name:   "block with a vote",
			detail: "a block with fractional timestamps hashes the same as a sorted key json encoder",
			block: NewBlock(1, []Vote{{
				VoterID:     "alice",
				CandidateID: "bob",
				Timestamp:   1700000000.25,
			}}, 1700000001.5, "abc", 7),
			expected: "65b8a3c9fe6e9b76c8dbeef300221415367ca2366be8dd057bbacabe9cba10c8",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, test.block.Hash)
			require.Equal(t, test.expected, ComputeHash(test.block))
		})
	}
}

func TestComputeHashDeterministic(t *testing.T) {
	votes := []Vote{{VoterID: "v1", CandidateID: "c1", Timestamp: 1.5}, {VoterID: "v2", CandidateID: "c2", Timestamp: 2.5}}
	a := NewBlock(3, votes, 10, "prev", 0)
	b := NewBlock(3, votes, 10, "prev", 0)
	require.Equal(t, a.Hash, b.Hash)
	// reordering the transactions changes the hash
	c := NewBlock(3, []Vote{votes[1], votes[0]}, 10, "prev", 0)
	require.NotEqual(t, a.Hash, c.Hash)
	// so does changing any other field
	require.NotEqual(t, a.Hash, NewBlock(3, votes, 10, "prev", 1).Hash)
	require.NotEqual(t, a.Hash, NewBlock(4, votes, 10, "prev", 0).Hash)
	require.NotEqual(t, a.Hash, NewBlock(3, votes, 11, "prev", 0).Hash)
	require.NotEqual(t, a.Hash, NewBlock(3, votes, 10, "other", 0).Hash)
}

func TestBlockCheck(t *testing.T) {
	valid := NewBlock(1, []Vote{{VoterID: "a", CandidateID: "b", Timestamp: 1}}, 2, "prev", 0)
	tampered := valid.Copy()
	tampered.Transactions[0].CandidateID = "c"
	empty := NewBlock(1, nil, 2, "prev", 0)
	tests := []struct {
		name   string
		detail string
		block  *Block
		code   ErrorCode
	}{
		{
			name:   "nil",
			detail: "a nil block is rejected",
			block:  nil,
			code:   CodeNilBlock,
		},
		{
			name:   "tampered",
			detail: "modifying a transaction invalidates the stored hash",
			block:  tampered,
			code:   CodeInvalidBlockHash,
		},
		{
			name:   "empty",
			detail: "only the genesis block may carry no transactions",
			block:  empty,
			code:   CodeEmptyTransactions,
		},
		{
			name:   "valid",
			detail: "a block built by NewBlock is self consistent",
			block:  valid,
		},
		{
			name:   "genesis",
			detail: "the genesis block is self consistent",
			block:  NewGenesisBlock(1700000000),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.block.Check()
			if test.code == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, test.code, err.Code())
		})
	}
}

func TestBlockCopy(t *testing.T) {
	b := NewBlock(1, []Vote{{VoterID: "a", CandidateID: "b", Timestamp: 1}}, 2, "prev", 0)
	cp := b.Copy()
	require.Equal(t, b, cp)
	cp.Transactions[0].VoterID = "z"
	require.Equal(t, "a", b.Transactions[0].VoterID)
}

func TestBlockJSON(t *testing.T) {
	b := NewBlock(1, []Vote{{VoterID: "a", CandidateID: "b", Timestamp: 1}}, 2, "prev", 0)
	bz, err := MarshalJSON(b)
	require.NoError(t, err)
	require.JSONEq(t, `{"index":1,"transactions":[{"voter_id":"a","candidate_id":"b","timestamp":1}],
		"timestamp":2,"previous_hash":"prev","nonce":0,"hash":"`+b.Hash+`"}`, string(bz))
	got := new(Block)
	require.NoError(t, UnmarshalJSON(bz, got))
	require.NoError(t, got.Check())
}

func TestShortHashString(t *testing.T) {
	require.Equal(t, "abcdef", ShortHashString("abcdef0123"))
	require.Equal(t, "0", ShortHashString("0"))
}
