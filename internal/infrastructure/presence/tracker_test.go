package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

func entry(id string) monitoring.ConnectedParticipant {
	return monitoring.ConnectedParticipant{ParticipantID: shared.ParticipantID(id), DisplayName: "p-" + id}
}

func TestJoinLeave(t *testing.T) {
	tr := NewTracker()

	tr.Join("c1", "session-a", entry("s1"))
	tr.Join("c2", "session-a", entry("s2"))
	tr.Join("c3", "session-b", entry("s3"))

	assert.Equal(t, 2, tr.CountFor("session-a"))
	assert.Equal(t, 1, tr.CountFor("session-b"))

	p, sessionID, ok := tr.Leave("c1")
	require.True(t, ok)
	assert.Equal(t, shared.SessionID("session-a"), sessionID)
	assert.Equal(t, shared.ParticipantID("s1"), p.ParticipantID)
	assert.Equal(t, 1, tr.CountFor("session-a"))
}

func TestLeaveUntracked(t *testing.T) {
	tr := NewTracker()
	_, _, ok := tr.Leave("ghost")
	assert.False(t, ok)
}

func TestRejoinSameConnection(t *testing.T) {
	tr := NewTracker()

	tr.Join("c1", "session-a", entry("s1"))
	// Same connection re-joins the same session: count stays at one.
	tr.Join("c1", "session-a", entry("s1"))
	assert.Equal(t, 1, tr.CountFor("session-a"))

	// Same connection moves to another session: the old one empties.
	tr.Join("c1", "session-b", entry("s1"))
	assert.Equal(t, 0, tr.CountFor("session-a"))
	assert.Equal(t, 1, tr.CountFor("session-b"))

	_, sessionID, ok := tr.Leave("c1")
	require.True(t, ok)
	assert.Equal(t, shared.SessionID("session-b"), sessionID)
}

func TestListFor(t *testing.T) {
	tr := NewTracker()
	assert.Empty(t, tr.ListFor("session-a"))

	tr.Join("c1", "session-a", entry("s1"))
	tr.Join("c2", "session-a", entry("s2"))

	listed := tr.ListFor("session-a")
	require.Len(t, listed, 2)
	ids := []shared.ParticipantID{listed[0].ParticipantID, listed[1].ParticipantID}
	assert.ElementsMatch(t, []shared.ParticipantID{"s1", "s2"}, ids)
}

func TestConcurrentJoinLeave(t *testing.T) {
	tr := NewTracker()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := shared.ConnectionID(fmt.Sprintf("conn-%d", i))
			tr.Join(connID, "session-a", entry(fmt.Sprintf("s%d", i)))
			if i%2 == 0 {
				tr.Leave(connID)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n/2, tr.CountFor("session-a"))
	assert.Len(t, tr.ListFor("session-a"), n/2)
}
