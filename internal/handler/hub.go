package handler

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"office-service/internal/metrics"
	"office-service/internal/model"
	"office-service/internal/service"
)

// Hub is the fan-out layer: it tracks which clients belong to which
// workspace presence channel and office room, and routes broadcasts and
// unicasts to their send buffers. State mutation happens in the service
// layer; the hub never blocks a lock on a socket write.
type Hub struct {
	mu               sync.RWMutex
	workspaceClients map[uuid.UUID]map[*Client]bool
	officeClients    map[uuid.UUID]map[*Client]bool
	byConn           map[uuid.UUID]*Client

	registry *service.ConnectionRegistry
	office   *service.OfficeService
	presence *service.PresenceService
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewHub(
	registry *service.ConnectionRegistry,
	office *service.OfficeService,
	presence *service.PresenceService,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Hub {
	h := &Hub{
		workspaceClients: make(map[uuid.UUID]map[*Client]bool),
		officeClients:    make(map[uuid.UUID]map[*Client]bool),
		byConn:           make(map[uuid.UUID]*Client),
		registry:         registry,
		office:           office,
		presence:         presence,
		metrics:          m,
		logger:           logger,
	}
	registry.SetEvictionHandler(h.handleEviction)
	return h
}

// register subscribes an admitted client to its workspace presence channel
// and queues the online:users snapshot. The snapshot is read inside the same
// critical section that inserts the client: any later transition must wait
// for the hub lock to broadcast, so its delta reaches the client.
func (h *Hub) register(client *Client) {
	h.mu.Lock()
	if h.workspaceClients[client.workspaceID] == nil {
		h.workspaceClients[client.workspaceID] = make(map[*Client]bool)
	}
	h.workspaceClients[client.workspaceID][client] = true
	h.byConn[client.id] = client
	h.enqueueLocked(client, model.NewEvent(model.EventOnlineUsers, model.OnlineUsersPayload{
		Users: h.presence.Snapshot(client.workspaceID),
	}))
	h.mu.Unlock()

	h.logger.Info("Client registered",
		zap.String("connId", client.id.String()),
		zap.String("workspaceId", client.workspaceID.String()),
		zap.String("userId", client.userID.String()))
}

// markInOffice adds the client to the office room's fan-out set.
func (h *Hub) markInOffice(client *Client) {
	h.mu.Lock()
	if h.officeClients[client.workspaceID] == nil {
		h.officeClients[client.workspaceID] = make(map[*Client]bool)
	}
	h.officeClients[client.workspaceID][client] = true
	h.mu.Unlock()
}

func (h *Hub) clearOffice(client *Client) {
	h.mu.Lock()
	if clients, ok := h.officeClients[client.workspaceID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.officeClients, client.workspaceID)
		}
	}
	h.mu.Unlock()
}

// teardown deregisters a client exactly once. effect is non-nil when the
// registry already removed the connection (sweeper eviction); nil on the
// read-pump exit path, where the removal happens here, synchronously,
// before any further broadcast could reference the connection.
func (h *Hub) teardown(client *Client, effect *service.RemovalEffect) {
	client.teardownOnce.Do(func() {
		h.mu.Lock()
		delete(h.byConn, client.id)
		if clients, ok := h.workspaceClients[client.workspaceID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.workspaceClients, client.workspaceID)
			}
		}
		if clients, ok := h.officeClients[client.workspaceID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.officeClients, client.workspaceID)
			}
		}
		close(client.send)
		h.mu.Unlock()

		if effect == nil {
			e := h.registry.Remove(client.id)
			effect = &e
		}
		if !effect.Removed {
			return
		}

		// LastInOffice covers the common path; the InRoom check also clears
		// state inherited from a connection the admission race evicted.
		if effect.LastInOffice ||
			(effect.LastInWorkspace && h.office.InRoom(effect.WorkspaceID, effect.UserID)) {
			h.leaveOffice(effect.WorkspaceID, effect.UserID)
		}

		if effect.LastInWorkspace {
			if h.presence.OnDisconnect(context.Background(), effect.WorkspaceID, effect.UserID) {
				h.broadcastToWorkspace(effect.WorkspaceID,
					model.NewEvent(model.EventUserOffline, model.UserStatusPayload{UserID: effect.UserID}), nil)
			}
			h.metrics.OnlineUsers.Set(float64(h.presence.OnlineCount()))
		}

		h.logger.Info("Client deregistered",
			zap.String("connId", client.id.String()),
			zap.String("userId", effect.UserID.String()),
			zap.Bool("lastInWorkspace", effect.LastInWorkspace),
			zap.Bool("lastInOffice", effect.LastInOffice))
	})
}

// leaveOffice drops the user's player state and tells the room. Shared by
// the explicit office:leave path and disconnect/eviction teardown.
func (h *Hub) leaveOffice(workspaceID, userID uuid.UUID) {
	notices, ok := h.office.Leave(workspaceID, userID)
	if !ok {
		return
	}

	h.broadcastToOffice(workspaceID,
		model.NewEvent(model.EventPlayerLeft, model.PlayerLeftPayload{UserID: userID}), nil)
	h.sendProximityNotices(workspaceID, notices)
}

func (h *Hub) sendProximityNotices(workspaceID uuid.UUID, notices []service.ProximityNotice) {
	if len(notices) > 0 {
		h.metrics.ProximityPairs.Set(float64(h.office.TotalPairs()))
	}
	for _, notice := range notices {
		h.sendToUser(workspaceID, notice.Recipient,
			model.NewEvent(model.EventProximity, model.ProximityPayload{
				PlayerID:      notice.PlayerID,
				NearbyPlayers: notice.Nearby,
				Type:          notice.Type,
			}))
	}
}

// handleEviction is the sweeper's callback: the registry entry is already
// gone, so finish the client-side teardown and close the socket.
func (h *Hub) handleEviction(connID uuid.UUID, effect service.RemovalEffect) {
	h.mu.RLock()
	client := h.byConn[connID]
	h.mu.RUnlock()

	h.metrics.EvictionsTotal.Inc()

	if client == nil {
		return
	}
	h.teardown(client, &effect)
	client.forceClose()
}

// broadcastToWorkspace fans an event out to every connection subscribed to
// the workspace presence channel, optionally excluding one.
func (h *Hub) broadcastToWorkspace(workspaceID uuid.UUID, data []byte, exclude *Client) {
	h.broadcast(h.workspaceClients, workspaceID, data, exclude)
}

// broadcastToOffice fans an event out to the workspace's office room.
func (h *Hub) broadcastToOffice(workspaceID uuid.UUID, data []byte, exclude *Client) {
	h.broadcast(h.officeClients, workspaceID, data, exclude)
}

func (h *Hub) broadcast(set map[uuid.UUID]map[*Client]bool, workspaceID uuid.UUID, data []byte, exclude *Client) {
	if data == nil {
		return
	}

	h.mu.RLock()
	for client := range set[workspaceID] {
		if client == exclude {
			continue
		}
		h.enqueueLocked(client, data)
	}
	h.mu.RUnlock()

	h.metrics.WSBroadcastsTotal.Inc()
}

// sendToUser unicasts to every connection the user holds in the workspace.
func (h *Hub) sendToUser(workspaceID, userID uuid.UUID, data []byte) {
	if data == nil {
		return
	}

	h.mu.RLock()
	for client := range h.workspaceClients[workspaceID] {
		if client.userID == userID {
			h.enqueueLocked(client, data)
		}
	}
	h.mu.RUnlock()
}

func (h *Hub) sendTo(client *Client, data []byte) {
	if data == nil {
		return
	}

	h.mu.RLock()
	if _, ok := h.byConn[client.id]; ok {
		h.enqueueLocked(client, data)
	}
	h.mu.RUnlock()
}

// enqueueLocked drops the message when the client's buffer is full instead
// of blocking the caller; a slow peer never stalls delivery to the others.
// Callers hold h.mu in at least read mode.
func (h *Hub) enqueueLocked(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.metrics.WSDroppedMessages.Inc()
		h.logger.Warn("Dropping message for slow client",
			zap.String("connId", client.id.String()),
			zap.String("userId", client.userID.String()))
	}
}
