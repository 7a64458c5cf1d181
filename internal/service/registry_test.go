package service

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(timeout time.Duration) *ConnectionRegistry {
	return NewConnectionRegistry(timeout, time.Second, zap.NewNop())
}

func TestAdmitFreshJoin(t *testing.T) {
	r := newTestRegistry(time.Minute)
	workspaceID := uuid.New()
	userID := uuid.New()

	result := r.Admit(uuid.New(), userID, workspaceID, nil)

	assert.True(t, result.Fresh)
	assert.Equal(t, uuid.Nil, result.Evicted)
}

func TestAdmitEvictsOlderConnection(t *testing.T) {
	r := newTestRegistry(time.Minute)
	workspaceID := uuid.New()
	userID := uuid.New()
	oldConn := uuid.New()
	newConn := uuid.New()

	closed := false
	r.Admit(oldConn, userID, workspaceID, func() { closed = true })
	result := r.Admit(newConn, userID, workspaceID, nil)

	assert.False(t, result.Fresh, "reconnect is not a fresh join")
	assert.Equal(t, oldConn, result.Evicted)
	assert.True(t, closed, "older connection must be force-closed")

	// The evicted connection is gone; removing it is a no-op.
	effect := r.Remove(oldConn)
	assert.False(t, effect.Removed)

	// The new connection is now the user's last one.
	effect = r.Remove(newConn)
	require.True(t, effect.Removed)
	assert.True(t, effect.LastInWorkspace)
}

func TestHeartbeatUnknownConnectionIsNoop(t *testing.T) {
	r := newTestRegistry(time.Minute)

	assert.False(t, r.Heartbeat(uuid.New()))
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := newTestRegistry(time.Minute)
	connID := uuid.New()
	r.Admit(connID, uuid.New(), uuid.New(), nil)

	first := r.Remove(connID)
	second := r.Remove(connID)

	assert.True(t, first.Removed)
	assert.False(t, second.Removed)
	assert.False(t, second.LastInWorkspace)
}

func TestRemoveReportsOfficeMembership(t *testing.T) {
	r := newTestRegistry(time.Minute)
	workspaceID := uuid.New()
	userID := uuid.New()
	connID := uuid.New()

	r.Admit(connID, userID, workspaceID, nil)
	require.True(t, r.MarkOfficeJoined(connID, true))

	effect := r.Remove(connID)
	require.True(t, effect.Removed)
	assert.True(t, effect.LastInOffice)
	assert.True(t, effect.LastInWorkspace)
	assert.Equal(t, userID, effect.UserID)
	assert.Equal(t, workspaceID, effect.WorkspaceID)
}

func TestConnectionsFor(t *testing.T) {
	r := newTestRegistry(time.Minute)
	workspaceID := uuid.New()
	c1 := uuid.New()
	c2 := uuid.New()

	r.Admit(c1, uuid.New(), workspaceID, nil)
	r.Admit(c2, uuid.New(), workspaceID, nil)
	r.Admit(uuid.New(), uuid.New(), uuid.New(), nil)

	conns := r.ConnectionsFor(workspaceID)
	assert.ElementsMatch(t, []uuid.UUID{c1, c2}, conns)
}

func TestSweepEvictsStaleConnections(t *testing.T) {
	r := newTestRegistry(100 * time.Millisecond)

	base := time.Now()
	now := base
	var nowMu sync.Mutex
	r.now = func() time.Time {
		nowMu.Lock()
		defer nowMu.Unlock()
		return now
	}
	setNow := func(t time.Time) {
		nowMu.Lock()
		now = t
		nowMu.Unlock()
	}

	workspaceID := uuid.New()
	staleConn := uuid.New()
	liveConn := uuid.New()

	var evicted []uuid.UUID
	r.SetEvictionHandler(func(connID uuid.UUID, effect RemovalEffect) {
		evicted = append(evicted, connID)
	})

	r.Admit(staleConn, uuid.New(), workspaceID, nil)
	r.Admit(liveConn, uuid.New(), workspaceID, nil)

	// The live connection heartbeats just before the sweep.
	setNow(base.Add(90 * time.Millisecond))
	require.True(t, r.Heartbeat(liveConn))

	r.sweep(base.Add(150 * time.Millisecond))

	assert.Equal(t, []uuid.UUID{staleConn}, evicted)
	assert.ElementsMatch(t, []uuid.UUID{liveConn}, r.ConnectionsFor(workspaceID))

	// A second sweep over the same window evicts nothing new.
	r.sweep(base.Add(160 * time.Millisecond))
	assert.Len(t, evicted, 1)
}

func TestSweepNeverEvictsHeartbeatingConnection(t *testing.T) {
	r := newTestRegistry(100 * time.Millisecond)

	base := time.Now()
	now := base
	r.now = func() time.Time { return now }

	connID := uuid.New()
	r.SetEvictionHandler(func(uuid.UUID, RemovalEffect) {
		t.Fatal("heartbeating connection must never be evicted")
	})
	r.Admit(connID, uuid.New(), uuid.New(), nil)

	// Heartbeat every 50ms against a 100ms timeout, over many sweeps.
	for i := 1; i <= 20; i++ {
		now = base.Add(time.Duration(i) * 50 * time.Millisecond)
		require.True(t, r.Heartbeat(connID))
		r.sweep(now)
	}
}

func TestConcurrentAdmitAndRemove(t *testing.T) {
	r := newTestRegistry(time.Minute)
	workspaceID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			connID := uuid.New()
			r.Admit(connID, uuid.New(), workspaceID, nil)
			r.Heartbeat(connID)
			r.Remove(connID)
		}()
	}
	wg.Wait()

	assert.Empty(t, r.ConnectionsFor(workspaceID))
}
