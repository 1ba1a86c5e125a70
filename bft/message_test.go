package bft

import (
	"strings"
	"testing"

	"github.com/canopy-network/votechain/lib"
	"github.com/stretchr/testify/require"
)

func newTestBlock(index uint64, previousHash string) *lib.Block {
	return lib.NewBlock(index, []lib.Vote{
		{VoterID: "alice", CandidateID: "bob", Timestamp: 1700000000.25},
		{VoterID: "carol", CandidateID: "bob", Timestamp: 1700000000.5},
	}, 1700000001.5, previousHash, 0)
}

func TestMessageRoundTrip(t *testing.T) {
	block := newTestBlock(1, lib.NewGenesisBlock(0).Hash)
	tests := []struct {
		name string
		msg  Message
	}{
		{name: "pre-prepare", msg: NewPrePrepare(0, block, 1)},
		{name: "prepare", msg: NewPrepare(0, block.Hash, 2)},
		{name: "commit", msg: NewCommit(3, block.Hash, 4)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bz, err := lib.MarshalJSON(test.msg)
			require.NoError(t, err)
			got, err := DecodeMessage(bz, test.msg.Type())
			require.NoError(t, err)
			require.Equal(t, test.msg, got)
			require.Equal(t, block.Hash, got.BlockHash())
		})
	}
}

func TestMessageWireFormat(t *testing.T) {
	hash := strings.Repeat("ab", 32)
	bz, err := lib.MarshalJSON(NewPrepare(0, hash, 2))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"PREPARE","view":0,"block_data":{"hash":"`+hash+`"},"sender_id":2}`, string(bz))
	// PRE-PREPARE carries the full block under block_data
	block := newTestBlock(1, "prev")
	bz, err = lib.MarshalJSON(NewPrePrepare(0, block, 1))
	require.NoError(t, err)
	blockBz, err := lib.MarshalJSON(block)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"PRE-PREPARE","view":0,"block_data":`+string(blockBz)+`,"sender_id":1}`, string(bz))
}

func TestMessageImmutable(t *testing.T) {
	block := newTestBlock(1, "prev")
	msg := NewPrePrepare(0, block, 1)
	// mutating the constructor argument or the accessor result doesn't change the message
	block.Transactions[0].VoterID = "mallory"
	got := msg.Block()
	require.Equal(t, "alice", got.Transactions[0].VoterID)
	got.Transactions[0].VoterID = "mallory"
	require.Equal(t, "alice", msg.Block().Transactions[0].VoterID)
	require.Nil(t, NewPrepare(0, block.Hash, 1).Block())
}

func TestDecodeMessageErrors(t *testing.T) {
	hash := strings.Repeat("0f", 32)
	block := newTestBlock(1, "prev")
	blockBz, _ := lib.MarshalJSON(block)
	tampered := strings.Replace(string(blockBz), `"carol"`, `"mallory"`, 1)
	empty, _ := lib.MarshalJSON(lib.NewBlock(1, nil, 1, "prev", 0))
	tests := []struct {
		name     string
		detail   string
		input    string
		expected []MessageType
		code     lib.ErrorCode
	}{
		{
			name:   "not json",
			detail: "a body that isn't json is rejected",
			input:  `{"type":`,
			code:   lib.CodeMessageDecode,
		},
		{
			name:   "unknown field",
			detail: "fields outside of the schema are rejected",
			input:  `{"type":"PREPARE","view":0,"block_data":{"hash":"` + hash + `"},"sender_id":2,"extra":true}`,
			code:   lib.CodeMessageDecode,
		},
		{
			name:   "missing sender",
			detail: "every field is required",
			input:  `{"type":"PREPARE","view":0,"block_data":{"hash":"` + hash + `"}}`,
			code:   lib.CodeMessageDecode,
		},
		{
			name:   "missing view",
			detail: "a zero view must be explicit",
			input:  `{"type":"PREPARE","block_data":{"hash":"` + hash + `"},"sender_id":2}`,
			code:   lib.CodeMessageDecode,
		},
		{
			name:   "null block data",
			detail: "block_data can't be null",
			input:  `{"type":"COMMIT","view":0,"block_data":null,"sender_id":2}`,
			code:   lib.CodeMessageDecode,
		},
		{
			name:   "negative view",
			detail: "view is a non negative integer",
			input:  `{"type":"PREPARE","view":-1,"block_data":{"hash":"` + hash + `"},"sender_id":2}`,
			code:   lib.CodeMessageDecode,
		},
		{
			name:   "unknown type",
			detail: "only the three protocol types are accepted",
			input:  `{"type":"VIEW-CHANGE","view":0,"block_data":{"hash":"` + hash + `"},"sender_id":2}`,
			code:   lib.CodeUnknownMessageType,
		},
		{
			name:     "wrong endpoint",
			detail:   "a PREPARE delivered where a COMMIT is expected is rejected",
			input:    `{"type":"PREPARE","view":0,"block_data":{"hash":"` + hash + `"},"sender_id":2}`,
			expected: []MessageType{Commit},
			code:     lib.CodeMismatchMessageType,
		},
		{
			name:   "malformed hash",
			detail: "the referenced hash must be a sha256 hex digest",
			input:  `{"type":"COMMIT","view":0,"block_data":{"hash":"XYZ"},"sender_id":2}`,
			code:   lib.CodeMessageDecode,
		},
		{
			name:   "hash ref with extra field",
			detail: "the hash reference only has a hash",
			input:  `{"type":"COMMIT","view":0,"block_data":{"hash":"` + hash + `","index":1},"sender_id":2}`,
			code:   lib.CodeMessageDecode,
		},
		{
			name:   "tampered block",
			detail: "a block whose contents don't match its hash is rejected",
			input:  `{"type":"PRE-PREPARE","view":0,"block_data":` + tampered + `,"sender_id":1}`,
			code:   lib.CodeMessageDecode,
		},
		{
			name:   "block missing fields",
			detail: "every block field is required",
			input:  `{"type":"PRE-PREPARE","view":0,"block_data":{"index":1},"sender_id":1}`,
			code:   lib.CodeMessageDecode,
		},
		{
			name:   "empty block",
			detail: "only genesis may have no transactions",
			input:  `{"type":"PRE-PREPARE","view":0,"block_data":` + string(empty) + `,"sender_id":1}`,
			code:   lib.CodeMessageDecode,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(test.input), test.expected...)
			require.Error(t, err)
			require.Equal(t, test.code, err.Code())
			require.True(t, IsDecodeError(err))
		})
	}
}

func TestDecodeMessageAcceptsForeignEncoding(t *testing.T) {
	// a sorted key encoding with spaces, as produced by other replica implementations
	block := lib.NewBlock(1, []lib.Vote{{VoterID: "alice", CandidateID: "bob", Timestamp: 1700000000.25}}, 1700000001.5, "abc", 7)
	input := `{"block_data": {"hash": "65b8a3c9fe6e9b76c8dbeef300221415367ca2366be8dd057bbacabe9cba10c8", "index": 1, ` +
		`"nonce": 7, "previous_hash": "abc", "timestamp": 1700000001.5, "transactions": [{"candidate_id": "bob", ` +
		`"timestamp": 1700000000.25, "voter_id": "alice"}]}, "sender_id": 1, "type": "PRE-PREPARE", "view": 0}`
	msg, err := DecodeMessage([]byte(input), PrePrepare)
	require.NoError(t, err)
	require.Equal(t, block, msg.Block())
	require.EqualValues(t, 1, msg.SenderID())
}

func TestMessageTypeRoute(t *testing.T) {
	require.Equal(t, "/pre-prepare", PrePrepare.Route())
	require.Equal(t, "/prepare", Prepare.Route())
	require.Equal(t, "/commit", Commit.Route())
	require.False(t, MessageType("OTHER").Valid())
}
