package bft

import (
	"encoding/json"
	"fmt"

	"github.com/canopy-network/votechain/lib"
	"github.com/canopy-network/votechain/lib/crypto"
)

// MessageType is the closed set of consensus message kinds
type MessageType string

const (
	PrePrepare MessageType = "PRE-PREPARE" // primary -> replicas, carries the full block
	Prepare    MessageType = "PREPARE"     // replica -> replicas, acknowledges the proposal by hash
	Commit     MessageType = "COMMIT"      // replica -> replicas, ready to finalize the hash
)

// MessageTypes is every valid MessageType in protocol order
var MessageTypes = []MessageType{PrePrepare, Prepare, Commit}

// Valid() reports whether t is a known message type
func (t MessageType) Valid() bool {
	switch t {
	case PrePrepare, Prepare, Commit:
		return true
	}
	return false
}

// Route() is the rpc path the message type is delivered to
func (t MessageType) Route() string {
	switch t {
	case PrePrepare:
		return "/pre-prepare"
	case Prepare:
		return "/prepare"
	case Commit:
		return "/commit"
	}
	return ""
}

// Message is an immutable consensus message
// PRE-PREPARE carries a block, PREPARE and COMMIT reference a block by hash
type Message struct {
	msgType  MessageType
	view     uint64
	senderID uint64
	block    *lib.Block
	hash     string
}

// NewPrePrepare() creates a proposal message for block
func NewPrePrepare(view uint64, block *lib.Block, senderID uint64) Message {
	m := Message{msgType: PrePrepare, view: view, senderID: senderID, block: block.Copy()}
	if block != nil {
		m.hash = block.Hash
	}
	return m
}

// NewPrepare() creates a PREPARE vote for hash
func NewPrepare(view uint64, hash string, senderID uint64) Message {
	return Message{msgType: Prepare, view: view, senderID: senderID, hash: hash}
}

// NewCommit() creates a COMMIT vote for hash
func NewCommit(view uint64, hash string, senderID uint64) Message {
	return Message{msgType: Commit, view: view, senderID: senderID, hash: hash}
}

func (m Message) Type() MessageType { return m.msgType }
func (m Message) View() uint64      { return m.view }
func (m Message) SenderID() uint64  { return m.senderID }

// Block() returns a copy of the proposed block, nil for anything but PRE-PREPARE
func (m Message) Block() *lib.Block { return m.block.Copy() }

// BlockHash() returns the hash the message refers to
func (m Message) BlockHash() string { return m.hash }

// String() is a short description for logging
func (m Message) String() string {
	return fmt.Sprintf("%s{view: %d, hash: %s, sender: %d}", m.msgType, m.view, lib.ShortHashString(m.hash), m.senderID)
}

// WIRE FORMAT BELOW

// wireMessage is the json shape of a message, pointers detect missing fields
type wireMessage struct {
	Type      *string         `json:"type"`
	View      *uint64         `json:"view"`
	BlockData json.RawMessage `json:"block_data"`
	SenderID  *uint64         `json:"sender_id"`
}

type wireHashRef struct {
	Hash *string `json:"hash"`
}

type wireBlock struct {
	Index        *uint64     `json:"index"`
	Transactions *[]wireVote `json:"transactions"`
	Timestamp    *float64    `json:"timestamp"`
	PreviousHash *string     `json:"previous_hash"`
	Nonce        *uint64     `json:"nonce"`
	Hash         *string     `json:"hash"`
}

type wireVote struct {
	VoterID     *string  `json:"voter_id"`
	CandidateID *string  `json:"candidate_id"`
	Timestamp   *float64 `json:"timestamp"`
}

// MarshalJSON() implements json.Marshaler
func (m Message) MarshalJSON() ([]byte, error) {
	var blockData any
	if m.msgType == PrePrepare {
		blockData = m.block
	} else {
		blockData = struct {
			Hash string `json:"hash"`
		}{m.hash}
	}
	return json.Marshal(struct {
		Type      MessageType `json:"type"`
		View      uint64      `json:"view"`
		BlockData any         `json:"block_data"`
		SenderID  uint64      `json:"sender_id"`
	}{m.msgType, m.view, blockData, m.senderID})
}

// DecodeMessage() parses and validates a wire message
// if any expected types are given, a message of another type is rejected
func DecodeMessage(bz []byte, expected ...MessageType) (Message, lib.ErrorI) {
	w := new(wireMessage)
	if err := lib.UnmarshalJSONStrict(bz, w); err != nil {
		return Message{}, ErrMessageDecode(err.Error())
	}
	if w.Type == nil || w.View == nil || w.SenderID == nil || len(w.BlockData) == 0 || string(w.BlockData) == "null" {
		return Message{}, ErrMessageDecode("missing fields: type, view, block_data and sender_id are required")
	}
	msgType := MessageType(*w.Type)
	if !msgType.Valid() {
		return Message{}, ErrUnknownMessageType(*w.Type)
	}
	if len(expected) != 0 && !containsType(expected, msgType) {
		return Message{}, ErrMismatchMessageType(msgType, expected[0])
	}
	switch msgType {
	case PrePrepare:
		block, err := decodeBlock(w.BlockData)
		if err != nil {
			return Message{}, err
		}
		return Message{msgType: msgType, view: *w.View, senderID: *w.SenderID, block: block, hash: block.Hash}, nil
	default:
		ref := new(wireHashRef)
		if err := lib.UnmarshalJSONStrict(w.BlockData, ref); err != nil {
			return Message{}, ErrMessageDecode(err.Error())
		}
		if ref.Hash == nil || !crypto.IsHashString(*ref.Hash) {
			return Message{}, ErrMessageDecode("block_data.hash must be a lowercase hex sha256 digest")
		}
		return Message{msgType: msgType, view: *w.View, senderID: *w.SenderID, hash: *ref.Hash}, nil
	}
}

// decodeBlock() parses a full block and checks the claimed hash against its contents
func decodeBlock(bz []byte) (*lib.Block, lib.ErrorI) {
	w := new(wireBlock)
	if err := lib.UnmarshalJSONStrict(bz, w); err != nil {
		return nil, ErrMessageDecode(err.Error())
	}
	if w.Index == nil || w.Transactions == nil || w.Timestamp == nil || w.PreviousHash == nil || w.Nonce == nil || w.Hash == nil {
		return nil, ErrMessageDecode("block is missing fields")
	}
	votes := make([]lib.Vote, 0, len(*w.Transactions))
	for i, v := range *w.Transactions {
		if v.VoterID == nil || v.CandidateID == nil || v.Timestamp == nil {
			return nil, ErrMessageDecode(fmt.Sprintf("transaction %d is missing fields", i))
		}
		votes = append(votes, lib.Vote{VoterID: *v.VoterID, CandidateID: *v.CandidateID, Timestamp: *v.Timestamp})
	}
	block := lib.NewBlock(*w.Index, votes, *w.Timestamp, *w.PreviousHash, *w.Nonce)
	if block.Hash != *w.Hash {
		return nil, ErrMessageDecode(fmt.Sprintf("block hash %s doesn't match contents %s", lib.ShortHashString(*w.Hash), block.ShortHash()))
	}
	if len(votes) == 0 && !block.IsGenesis() {
		return nil, ErrMessageDecode("block has no transactions")
	}
	return block, nil
}

func containsType(types []MessageType, t MessageType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
