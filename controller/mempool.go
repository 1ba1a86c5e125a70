package controller

import (
	"sync"

	"github.com/canopy-network/votechain/lib"
)

// Mempool buffers ingested votes until the primary batches them into a block
type Mempool struct {
	votes   []lib.Vote   // ingestion order
	metrics *lib.Metrics // telemetry
	mu      sync.Mutex
}

// NewMempool() creates an empty vote buffer
func NewMempool(m *lib.Metrics) *Mempool {
	return &Mempool{votes: make([]lib.Vote, 0), metrics: m}
}

// Add() appends a vote and returns the buffer size
func (m *Mempool) Add(v lib.Vote) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes = append(m.votes, v)
	m.metrics.UpdateMempoolMetrics(len(m.votes), 1)
	return len(m.votes)
}

// Len() returns the number of buffered votes
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.votes)
}

// Votes() returns a copy of the buffered votes
func (m *Mempool) Votes() []lib.Vote {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]lib.Vote, len(m.votes))
	copy(out, m.votes)
	return out
}

// Drain() removes and returns every buffered vote
func (m *Mempool) Drain() []lib.Vote {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.votes
	m.votes = make([]lib.Vote, 0)
	m.metrics.UpdateMempoolMetrics(0, 0)
	return out
}

// Restore() puts votes back at the front of the buffer, e.g. after a failed proposal
func (m *Mempool) Restore(votes []lib.Vote) {
	if len(votes) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes = append(append(make([]lib.Vote, 0, len(votes)+len(m.votes)), votes...), m.votes...)
	m.metrics.UpdateMempoolMetrics(len(m.votes), 0)
}
