package bft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThresholds(t *testing.T) {
	tests := []struct {
		name            string
		faultTolerance  uint64
		prepareExpected int
		commitExpected  int
	}{
		{name: "f=0", faultTolerance: 0, prepareExpected: 0, commitExpected: 1},
		{name: "f=1", faultTolerance: 1, prepareExpected: 2, commitExpected: 3},
		{name: "f=3", faultTolerance: 3, prepareExpected: 6, commitExpected: 7},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			q := NewQuorumTracker(test.faultTolerance)
			require.Equal(t, test.prepareExpected, q.PrepareThreshold())
			require.Equal(t, test.commitExpected, q.CommitThreshold())
			require.Equal(t, test.prepareExpected, q.Threshold(PhasePrepare))
			require.Equal(t, test.commitExpected, q.Threshold(PhaseCommit))
		})
	}
}

func TestRecordVote(t *testing.T) {
	tests := []struct {
		name          string
		detail        string
		phase         Phase
		senders       []uint64
		expectedCount int
	}{
		{
			name:          "distinct prepares",
			detail:        "every distinct sender counts once",
			phase:         PhasePrepare,
			senders:       []uint64{1, 2, 3},
			expectedCount: 3,
		},
		{
			name:          "duplicate prepares",
			detail:        "repeated votes from the same sender never count twice",
			phase:         PhasePrepare,
			senders:       []uint64{2, 2, 2, 3, 3},
			expectedCount: 2,
		},
		{
			name:          "duplicate commits",
			detail:        "commit votes are deduplicated the same way",
			phase:         PhaseCommit,
			senders:       []uint64{1, 1, 4},
			expectedCount: 2,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			q := NewQuorumTracker(1)
			var last int
			for _, s := range test.senders {
				last = q.RecordVote(test.phase, "hash", s)
			}
			require.Equal(t, test.expectedCount, last)
			require.Equal(t, test.expectedCount, q.CountFor(test.phase, "hash"))
			// the other phase is unaffected
			other := PhaseCommit
			if test.phase == PhaseCommit {
				other = PhasePrepare
			}
			require.Zero(t, q.CountFor(other, "hash"))
		})
	}
}

func TestQuorumPerHash(t *testing.T) {
	q := NewQuorumTracker(1)
	q.RecordVote(PhasePrepare, "a", 1)
	q.RecordVote(PhasePrepare, "a", 2)
	q.RecordVote(PhasePrepare, "b", 1)
	require.Equal(t, 2, q.CountFor(PhasePrepare, "a"))
	require.Equal(t, 1, q.CountFor(PhasePrepare, "b"))
	require.Zero(t, q.CountFor(PhasePrepare, "c"))
	require.True(t, q.IsPrepared("a"))
	require.False(t, q.IsPrepared("b"))
	require.Equal(t, []uint64{1, 2}, q.Voters(PhasePrepare, "a"))
	require.Nil(t, q.Voters(PhaseCommit, "c"))
	require.Equal(t, 2, q.Len())
	q.Reset("a")
	require.Zero(t, q.CountFor(PhasePrepare, "a"))
	require.Equal(t, 1, q.Len())
}

func TestIsCommitted(t *testing.T) {
	// for every f the commit threshold is exactly 2f+1 distinct senders
	for f := uint64(0); f <= 4; f++ {
		q := NewQuorumTracker(f)
		for sender := uint64(1); sender <= 2*f; sender++ {
			q.RecordVote(PhaseCommit, "h", sender)
			q.RecordVote(PhaseCommit, "h", sender)
			require.False(t, q.IsCommitted("h"), "f=%d sender=%d", f, sender)
		}
		q.RecordVote(PhaseCommit, "h", 2*f+1)
		require.True(t, q.IsCommitted("h"), "f=%d", f)
	}
}

func TestCrossedFirstTime(t *testing.T) {
	q := NewQuorumTracker(1)
	require.False(t, q.CrossedFirstTime(PhasePrepare, "h"))
	q.RecordVote(PhasePrepare, "h", 1)
	require.False(t, q.CrossedFirstTime(PhasePrepare, "h"))
	q.RecordVote(PhasePrepare, "h", 2)
	require.True(t, q.CrossedFirstTime(PhasePrepare, "h"))
	q.RecordVote(PhasePrepare, "h", 3)
	require.False(t, q.CrossedFirstTime(PhasePrepare, "h"))
	// the commit flag is independent
	for s := uint64(1); s <= 3; s++ {
		q.RecordVote(PhaseCommit, "h", s)
	}
	require.True(t, q.CrossedFirstTime(PhaseCommit, "h"))
	require.False(t, q.CrossedFirstTime(PhaseCommit, "h"))
	// a reset starts over
	q.Reset("h")
	q.RecordVote(PhasePrepare, "h", 1)
	q.RecordVote(PhasePrepare, "h", 2)
	require.True(t, q.CrossedFirstTime(PhasePrepare, "h"))
}
