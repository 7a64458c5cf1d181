package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdmissionResult reports how an Admit call resolved.
type AdmissionResult struct {
	// Fresh is true when the user had no live connection in the workspace
	// before this one.
	Fresh bool
	// Evicted is the connection replaced by a reconnect race, uuid.Nil when
	// none. Its close function has already been invoked.
	Evicted uuid.UUID
}

// RemovalEffect reports what a Remove call tore down.
type RemovalEffect struct {
	// Removed is false when the connection was already gone (idempotent
	// removal, e.g. clean close racing the sweeper).
	Removed bool
	// LastInWorkspace is true when the user has no remaining connection in
	// the workspace; the caller owes the presence tracker an offline event.
	LastInWorkspace bool
	// LastInOffice is true when no remaining connection of the user holds
	// office-room membership; the caller owes the room a leave.
	LastInOffice bool
	UserID       uuid.UUID
	WorkspaceID  uuid.UUID
}

type connection struct {
	id            uuid.UUID
	userID        uuid.UUID
	workspaceID   uuid.UUID
	joinedAt      time.Time
	lastHeartbeat time.Time
	inOffice      bool
	close         func()
}

// workspaceConns shards the registry so unrelated workspaces never contend
// on one lock.
type workspaceConns struct {
	mu     sync.Mutex
	conns  map[uuid.UUID]*connection
	byUser map[uuid.UUID]map[uuid.UUID]*connection // userID -> connID -> conn
}

// ConnectionRegistry owns the mapping from live socket connections to
// (user, workspace) pairs and drives heartbeat-based eviction.
type ConnectionRegistry struct {
	mu         sync.RWMutex
	workspaces map[uuid.UUID]*workspaceConns
	index      map[uuid.UUID]uuid.UUID // connID -> workspaceID

	timeout       time.Duration
	sweepInterval time.Duration
	logger        *zap.Logger

	evictMu sync.RWMutex
	onEvict func(connID uuid.UUID, effect RemovalEffect)

	now func() time.Time
}

func NewConnectionRegistry(timeout, sweepInterval time.Duration, logger *zap.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		workspaces:    make(map[uuid.UUID]*workspaceConns),
		index:         make(map[uuid.UUID]uuid.UUID),
		timeout:       timeout,
		sweepInterval: sweepInterval,
		logger:        logger,
		now:           time.Now,
	}
}

// SetEvictionHandler registers the callback invoked for every sweep-driven
// eviction. The handler runs outside registry locks.
func (r *ConnectionRegistry) SetEvictionHandler(fn func(connID uuid.UUID, effect RemovalEffect)) {
	r.evictMu.Lock()
	r.onEvict = fn
	r.evictMu.Unlock()
}

func (r *ConnectionRegistry) workspace(workspaceID uuid.UUID) *workspaceConns {
	r.mu.RLock()
	ws, ok := r.workspaces[workspaceID]
	r.mu.RUnlock()
	if ok {
		return ws
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok = r.workspaces[workspaceID]; ok {
		return ws
	}
	ws = &workspaceConns{
		conns:  make(map[uuid.UUID]*connection),
		byUser: make(map[uuid.UUID]map[uuid.UUID]*connection),
	}
	r.workspaces[workspaceID] = ws
	return ws
}

// Admit registers a connection. Any pre-existing connection for the same
// (user, workspace) is force-closed first: the newest connection always
// wins a reconnect race.
func (r *ConnectionRegistry) Admit(connID, userID, workspaceID uuid.UUID, close func()) AdmissionResult {
	ws := r.workspace(workspaceID)
	now := r.now()

	var evicted *connection

	ws.mu.Lock()
	existing := ws.byUser[userID]
	fresh := len(existing) == 0
	for _, old := range existing {
		// Steady state holds at most one; tolerate transient duplicates.
		evicted = old
		delete(ws.conns, old.id)
		delete(existing, old.id)
	}
	conn := &connection{
		id:            connID,
		userID:        userID,
		workspaceID:   workspaceID,
		joinedAt:      now,
		lastHeartbeat: now,
		close:         close,
	}
	ws.conns[connID] = conn
	if ws.byUser[userID] == nil {
		ws.byUser[userID] = make(map[uuid.UUID]*connection)
	}
	ws.byUser[userID][connID] = conn
	ws.mu.Unlock()

	r.mu.Lock()
	if evicted != nil {
		delete(r.index, evicted.id)
	}
	r.index[connID] = workspaceID
	r.mu.Unlock()

	result := AdmissionResult{Fresh: fresh}
	if evicted != nil {
		result.Evicted = evicted.id
		if evicted.close != nil {
			evicted.close()
		}
		r.logger.Info("evicted older connection on reconnect",
			zap.String("userId", userID.String()),
			zap.String("workspaceId", workspaceID.String()),
			zap.String("oldConnId", evicted.id.String()),
			zap.String("newConnId", connID.String()))
	}
	return result
}

// Heartbeat refreshes a connection's liveness. Unknown connections are a
// no-op; the client was already evicted and should rejoin.
func (r *ConnectionRegistry) Heartbeat(connID uuid.UUID) bool {
	ws := r.lookup(connID)
	if ws == nil {
		return false
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	conn, ok := ws.conns[connID]
	if !ok {
		return false
	}
	conn.lastHeartbeat = r.now()
	return true
}

// MarkOfficeJoined flags whether the connection currently holds office-room
// membership, which Remove folds into its LastInOffice report.
func (r *ConnectionRegistry) MarkOfficeJoined(connID uuid.UUID, joined bool) bool {
	ws := r.lookup(connID)
	if ws == nil {
		return false
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	conn, ok := ws.conns[connID]
	if !ok {
		return false
	}
	conn.inOffice = joined
	return true
}

// Remove deregisters a connection. Safe to call more than once and
// concurrently with any other registry operation.
func (r *ConnectionRegistry) Remove(connID uuid.UUID) RemovalEffect {
	ws := r.lookup(connID)
	if ws == nil {
		return RemovalEffect{}
	}

	ws.mu.Lock()
	conn, ok := ws.conns[connID]
	if !ok {
		ws.mu.Unlock()
		return RemovalEffect{}
	}
	delete(ws.conns, connID)
	remaining := ws.byUser[conn.userID]
	delete(remaining, connID)
	if len(remaining) == 0 {
		delete(ws.byUser, conn.userID)
	}

	effect := RemovalEffect{
		Removed:         true,
		LastInWorkspace: len(remaining) == 0,
		LastInOffice:    conn.inOffice,
		UserID:          conn.userID,
		WorkspaceID:     conn.workspaceID,
	}
	if conn.inOffice {
		for _, other := range remaining {
			if other.inOffice {
				effect.LastInOffice = false
				break
			}
		}
	}
	ws.mu.Unlock()

	r.mu.Lock()
	delete(r.index, connID)
	r.mu.Unlock()

	return effect
}

// ConnectionsFor returns the live connection IDs of a workspace.
func (r *ConnectionRegistry) ConnectionsFor(workspaceID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	ws, ok := r.workspaces[workspaceID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(ws.conns))
	for id := range ws.conns {
		ids = append(ids, id)
	}
	return ids
}

func (r *ConnectionRegistry) lookup(connID uuid.UUID) *workspaceConns {
	r.mu.RLock()
	defer r.mu.RUnlock()
	workspaceID, ok := r.index[connID]
	if !ok {
		return nil
	}
	return r.workspaces[workspaceID]
}

// StartSweeper runs the eviction loop until stop closes. This is the only
// detector for silent disconnects.
func (r *ConnectionRegistry) StartSweeper(stop <-chan struct{}) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

func (r *ConnectionRegistry) sweep(now time.Time) {
	r.mu.RLock()
	shards := make([]*workspaceConns, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		shards = append(shards, ws)
	}
	r.mu.RUnlock()

	var stale []*connection
	for _, ws := range shards {
		ws.mu.Lock()
		for _, conn := range ws.conns {
			if now.Sub(conn.lastHeartbeat) > r.timeout {
				stale = append(stale, conn)
			}
		}
		ws.mu.Unlock()
	}

	if len(stale) == 0 {
		return
	}

	r.evictMu.RLock()
	onEvict := r.onEvict
	r.evictMu.RUnlock()

	for _, conn := range stale {
		effect := r.Remove(conn.id)
		if !effect.Removed {
			continue
		}
		r.logger.Info("evicting connection after heartbeat timeout",
			zap.String("connId", conn.id.String()),
			zap.String("userId", conn.userID.String()),
			zap.String("workspaceId", conn.workspaceID.String()))
		if onEvict != nil {
			onEvict(conn.id, effect)
		}
		if conn.close != nil {
			conn.close()
		}
	}
}
