package rpc

import (
	"github.com/canopy-network/votechain/bft"
	"github.com/canopy-network/votechain/lib"
)

// VoteReceivedMessage acknowledges a buffered vote
const VoteReceivedMessage = "Vote has been received"

type voteRequest struct {
	VoterID     string `json:"voter_id"`
	CandidateID string `json:"candidate_id"`
}

type heightRequest struct {
	Height uint64 `json:"height"`
}

type hashRequest struct {
	Hash string `json:"hash"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type StatusResponse struct {
	Status bft.Status `json:"status"`
}

type ChainResponse struct {
	Length int          `json:"length"`
	Chain  []*lib.Block `json:"chain"`
}

type HeightResponse struct {
	Height int `json:"height"`
}

type PendingResponse struct {
	Block *lib.Block `json:"block,omitempty"` // the block of the round in flight
	Votes []lib.Vote `json:"votes"`           // votes buffered for the next block
}

type PeerInfoResponse struct {
	ID       uint64            `json:"id"`
	NumPeers int               `json:"numPeers"`
	Peers    map[uint64]string `json:"peers"`
}

type ProcessResourceUsage struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	CreateTime    string  `json:"createTime"`
	FDCount       uint64  `json:"fdCount"`
	ThreadCount   uint64  `json:"threadCount"`
	MemoryPercent float64 `json:"usedMemoryPercent"`
	CPUPercent    float64 `json:"usedCPUPercent"`
}

type SystemResourceUsage struct {
	// ram
	TotalRAM       uint64  `json:"totalRAM"`
	AvailableRAM   uint64  `json:"availableRAM"`
	UsedRAM        uint64  `json:"usedRAM"`
	UsedRAMPercent float64 `json:"usedRAMPercent"`
	FreeRAM        uint64  `json:"freeRAM"`
	// CPU
	UsedCPUPercent float64 `json:"usedCPUPercent"`
	UserCPU        float64 `json:"userCPU"`
	SystemCPU      float64 `json:"systemCPU"`
	IdleCPU        float64 `json:"idleCPU"`
	// disk
	TotalDisk       uint64  `json:"totalDisk"`
	UsedDisk        uint64  `json:"usedDisk"`
	UsedDiskPercent float64 `json:"usedDiskPercent"`
	FreeDisk        uint64  `json:"freeDisk"`
	// io
	ReceivedBytesIO uint64 `json:"ReceivedBytesIO"`
	WrittenBytesIO  uint64 `json:"WrittenBytesIO"`
}

type ResourceUsageResponse struct {
	Process ProcessResourceUsage `json:"process"`
	System  SystemResourceUsage  `json:"system"`
}
