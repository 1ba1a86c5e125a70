package bft

import "sort"

/*
	The QuorumTracker accumulates PREPARE and COMMIT votes per block hash.
	Each sender counts once per phase per hash: voting is idempotent.
	With a fault tolerance f among 3f+1 replicas:
	- prepared  when 2f   distinct senders sent PREPARE
	- committed when 2f+1 distinct senders sent COMMIT
	Any two quorums of these sizes intersect in at least one honest replica.
*/

// Phase selects the vote set of a QuorumRecord
type Phase int

const (
	PhasePrepare Phase = iota
	PhaseCommit
)

// String() implements fmt.Stringer
func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseCommit:
		return "commit"
	}
	return "unknown"
}

// QuorumRecord holds the distinct voters for a single block hash
type QuorumRecord struct {
	PrepareVoters map[uint64]struct{} // senders of PREPARE
	CommitVoters  map[uint64]struct{} // senders of COMMIT
	prepared      bool                // the prepare threshold was crossed once already
	committed     bool                // the commit threshold was crossed once already
}

func newQuorumRecord() *QuorumRecord {
	return &QuorumRecord{PrepareVoters: make(map[uint64]struct{}), CommitVoters: make(map[uint64]struct{})}
}

func (r *QuorumRecord) voters(phase Phase) map[uint64]struct{} {
	if phase == PhaseCommit {
		return r.CommitVoters
	}
	return r.PrepareVoters
}

// QuorumTracker maps block hash to QuorumRecord
// NOTE: not safe for concurrent use, the owning BFT serializes access
type QuorumTracker struct {
	faultTolerance uint64
	records        map[string]*QuorumRecord
}

// NewQuorumTracker() creates a tracker for f tolerated byzantine replicas
func NewQuorumTracker(faultTolerance uint64) *QuorumTracker {
	return &QuorumTracker{faultTolerance: faultTolerance, records: make(map[string]*QuorumRecord)}
}

// RecordVote() adds sender to the phase set of hash and returns the set size, duplicates are no-ops
func (q *QuorumTracker) RecordVote(phase Phase, hash string, senderID uint64) int {
	r, ok := q.records[hash]
	if !ok {
		r = newQuorumRecord()
		q.records[hash] = r
	}
	set := r.voters(phase)
	set[senderID] = struct{}{}
	return len(set)
}

// CountFor() returns the number of distinct voters of phase for hash, 0 if unseen
func (q *QuorumTracker) CountFor(phase Phase, hash string) int {
	r, ok := q.records[hash]
	if !ok {
		return 0
	}
	return len(r.voters(phase))
}

// Voters() returns the sorted voter ids of phase for hash
func (q *QuorumTracker) Voters(phase Phase, hash string) (ids []uint64) {
	r, ok := q.records[hash]
	if !ok {
		return nil
	}
	for id := range r.voters(phase) {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return
}

// Reset() discards both vote sets for hash
func (q *QuorumTracker) Reset(hash string) { delete(q.records, hash) }

// Len() returns the number of hashes being tracked
func (q *QuorumTracker) Len() int { return len(q.records) }

// PrepareThreshold() is 2f
func (q *QuorumTracker) PrepareThreshold() int { return int(2 * q.faultTolerance) }

// CommitThreshold() is 2f+1
func (q *QuorumTracker) CommitThreshold() int { return int(2*q.faultTolerance + 1) }

// Threshold() returns the threshold of phase
func (q *QuorumTracker) Threshold(phase Phase) int {
	if phase == PhaseCommit {
		return q.CommitThreshold()
	}
	return q.PrepareThreshold()
}

// IsPrepared() reports whether hash has at least 2f PREPARE voters
func (q *QuorumTracker) IsPrepared(hash string) bool {
	return q.CountFor(PhasePrepare, hash) >= q.PrepareThreshold()
}

// IsCommitted() reports whether hash has at least 2f+1 COMMIT voters
func (q *QuorumTracker) IsCommitted(hash string) bool {
	return q.CountFor(PhaseCommit, hash) >= q.CommitThreshold()
}

// CrossedFirstTime() reports true exactly once per hash and phase: the first call after the threshold is met
func (q *QuorumTracker) CrossedFirstTime(phase Phase, hash string) bool {
	r, ok := q.records[hash]
	if !ok || len(r.voters(phase)) < q.Threshold(phase) {
		return false
	}
	flag := &r.prepared
	if phase == PhaseCommit {
		flag = &r.committed
	}
	if *flag {
		return false
	}
	*flag = true
	return true
}
