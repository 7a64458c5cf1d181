// internal/handler/ws_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"office-service/internal/metrics"
	"office-service/internal/middleware"
	"office-service/internal/model"
	"office-service/internal/repository"
	"office-service/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WSHandler owns the office websocket endpoint: upgrade, admission and the
// per-event dispatch of the realtime protocol.
type WSHandler struct {
	logger    *zap.Logger
	validator middleware.TokenValidator
	members   repository.MemberChecker
	hub       *Hub
	registry  *service.ConnectionRegistry
	office    *service.OfficeService
	presence  *service.PresenceService
	metrics   *metrics.Metrics
}

func NewWSHandler(
	logger *zap.Logger,
	validator middleware.TokenValidator,
	members repository.MemberChecker,
	hub *Hub,
	registry *service.ConnectionRegistry,
	office *service.OfficeService,
	presence *service.PresenceService,
	m *metrics.Metrics,
) *WSHandler {
	return &WSHandler{
		logger:    logger,
		validator: validator,
		members:   members,
		hub:       hub,
		registry:  registry,
		office:    office,
		presence:  presence,
		metrics:   m,
	}
}

// HandleOfficeWebSocket upgrades the connection. The socket stays pending
// until its first user:connect event admits it into a workspace.
func (h *WSHandler) HandleOfficeWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	tokenUserID, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		h.logger.Warn("Invalid token for office websocket", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(conn, h.hub, tokenUserID)
	h.metrics.WSConnectionsActive.Inc()

	go client.writePump()
	go func() {
		defer h.metrics.WSConnectionsActive.Dec()
		client.readPump(h)
	}()
}

func (h *WSHandler) handleEvent(client *Client, envelope *model.Envelope) {
	h.metrics.WSEventsTotal.WithLabelValues(envelope.Type).Inc()

	switch envelope.Type {
	case model.EventUserConnect:
		h.handleConnect(client, envelope.Payload)
	case model.EventUserHeartbeat:
		h.handleHeartbeat(client, envelope.Payload)
	case model.EventOfficeJoin:
		h.handleJoin(client, envelope.Payload)
	case model.EventOfficeMove:
		h.handleMove(client, envelope.Payload)
	case model.EventOfficeStatus:
		h.handleStatus(client, envelope.Payload)
	case model.EventOfficeChat:
		h.handleChat(client, envelope.Payload)
	case model.EventOfficeInteraction:
		h.handleInteraction(client, envelope.Payload)
	case model.EventOfficeLeave:
		h.handleLeave(client, envelope.Payload)
	default:
		h.logger.Warn("Unknown event type", zap.String("type", envelope.Type))
	}
}

// protocolViolation logs and drops a bad event. The connection stays open;
// nothing here is fatal.
func (h *WSHandler) protocolViolation(client *Client, event, reason string) {
	h.metrics.WSProtocolErrors.Inc()
	h.logger.Warn("Protocol violation",
		zap.String("event", event),
		zap.String("reason", reason),
		zap.String("connId", client.id.String()),
		zap.String("userId", client.tokenUserID.String()))
}

func (h *WSHandler) handleConnect(client *Client, raw json.RawMessage) {
	if client.admitted {
		h.protocolViolation(client, model.EventUserConnect, "connection already admitted")
		return
	}

	var payload model.ConnectPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.protocolViolation(client, model.EventUserConnect, "malformed payload")
		return
	}
	if payload.UserID != client.tokenUserID {
		h.protocolViolation(client, model.EventUserConnect, "userId does not match token subject")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	isMember, err := h.members.IsMember(ctx, payload.WorkspaceID, payload.UserID)
	if err != nil {
		h.logger.Error("Membership check failed", zap.Error(err))
		return
	}
	if !isMember {
		h.protocolViolation(client, model.EventUserConnect, "user is not a workspace member")
		client.forceClose()
		return
	}

	client.userID = payload.UserID
	client.workspaceID = payload.WorkspaceID
	client.admitted = true

	// Admission force-closes any older connection of this user; the newest
	// connection always wins the reconnect race.
	result := h.registry.Admit(client.id, payload.UserID, payload.WorkspaceID, client.forceClose)

	wentOnline := h.presence.OnConnect(ctx, payload.WorkspaceID, payload.UserID)
	h.hub.register(client)

	if result.Fresh && wentOnline {
		h.hub.broadcastToWorkspace(payload.WorkspaceID,
			model.NewEvent(model.EventUserOnline, model.UserStatusPayload{UserID: payload.UserID}), client)
	}
	h.metrics.OnlineUsers.Set(float64(h.presence.OnlineCount()))
}

func (h *WSHandler) handleHeartbeat(client *Client, raw json.RawMessage) {
	if !client.admitted {
		h.protocolViolation(client, model.EventUserHeartbeat, "connection not admitted")
		return
	}

	var payload model.HeartbeatPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.protocolViolation(client, model.EventUserHeartbeat, "malformed payload")
		return
	}
	if payload.UserID != client.userID {
		h.protocolViolation(client, model.EventUserHeartbeat, "identity mismatch")
		return
	}

	if !h.registry.Heartbeat(client.id) {
		// Already evicted; the client should reconnect and rejoin.
		h.logger.Debug("Heartbeat for unknown connection",
			zap.String("connId", client.id.String()))
	}
}

func (h *WSHandler) handleJoin(client *Client, raw json.RawMessage) {
	if !client.admitted {
		h.protocolViolation(client, model.EventOfficeJoin, "connection not admitted")
		return
	}

	var payload model.JoinPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.protocolViolation(client, model.EventOfficeJoin, "malformed payload")
		return
	}
	if payload.WorkspaceID != client.workspaceID || payload.UserID != client.userID {
		h.protocolViolation(client, model.EventOfficeJoin, "identity mismatch")
		return
	}

	snapshot, fresh := h.office.Join(client.workspaceID, client.userID, model.PlayerState{
		Name:        payload.Name,
		Email:       payload.Email,
		AvatarColor: payload.AvatarColor,
	})

	client.inOffice = true
	h.registry.MarkOfficeJoined(client.id, true)
	h.hub.markInOffice(client)

	// Snapshot first so the joiner renders existing players without waiting
	// for individual join broadcasts, then the buffered room chat.
	h.hub.sendTo(client, model.NewEvent(model.EventOfficePlayers, model.PlayersPayload{Players: snapshot}))
	for _, msg := range h.office.ChatHistory(client.workspaceID) {
		h.hub.sendTo(client, model.NewEvent(model.EventChatMessage, model.ChatMessagePayload{
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Message:    msg.Message,
			Position:   msg.Position,
			Timestamp:  msg.Timestamp,
		}))
	}

	// A duplicate join re-sends the snapshot but never re-broadcasts.
	if fresh {
		if state, ok := h.office.Player(client.workspaceID, client.userID); ok {
			h.hub.broadcastToOffice(client.workspaceID,
				model.NewEvent(model.EventPlayerJoined, state), client)
		}
	}
}

func (h *WSHandler) handleMove(client *Client, raw json.RawMessage) {
	if !client.admitted {
		h.protocolViolation(client, model.EventOfficeMove, "connection not admitted")
		return
	}

	var payload model.MovePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.protocolViolation(client, model.EventOfficeMove, "malformed payload")
		return
	}
	if payload.WorkspaceID != client.workspaceID || payload.UserID != client.userID {
		h.protocolViolation(client, model.EventOfficeMove, "identity mismatch")
		return
	}

	notices, ok := h.office.UpdatePosition(client.workspaceID, client.userID, payload.Position, payload.Direction)
	if !ok {
		h.protocolViolation(client, model.EventOfficeMove, "move before office:join")
		return
	}

	// Sender keeps authoritative local state; everyone else gets the delta.
	h.hub.broadcastToOffice(client.workspaceID,
		model.NewEvent(model.EventPlayerMoved, model.PlayerMovedPayload{
			PlayerID:  client.userID,
			Position:  payload.Position,
			Direction: payload.Direction,
		}), client)
	h.hub.sendProximityNotices(client.workspaceID, notices)
}

func (h *WSHandler) handleStatus(client *Client, raw json.RawMessage) {
	if !client.admitted {
		h.protocolViolation(client, model.EventOfficeStatus, "connection not admitted")
		return
	}

	var payload model.StatusPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.protocolViolation(client, model.EventOfficeStatus, "malformed payload")
		return
	}
	if payload.WorkspaceID != client.workspaceID || payload.UserID != client.userID {
		h.protocolViolation(client, model.EventOfficeStatus, "identity mismatch")
		return
	}

	if !h.office.UpdateStatus(client.workspaceID, client.userID, payload.Status) {
		h.protocolViolation(client, model.EventOfficeStatus, "status before office:join")
		return
	}

	h.hub.broadcastToOffice(client.workspaceID,
		model.NewEvent(model.EventPlayerStatus, model.PlayerStatusPayload{
			PlayerID: client.userID,
			Status:   payload.Status,
		}), client)
}

func (h *WSHandler) handleChat(client *Client, raw json.RawMessage) {
	if !client.admitted {
		h.protocolViolation(client, model.EventOfficeChat, "connection not admitted")
		return
	}

	var payload model.ChatPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.protocolViolation(client, model.EventOfficeChat, "malformed payload")
		return
	}
	if payload.WorkspaceID != client.workspaceID || payload.UserID != client.userID {
		h.protocolViolation(client, model.EventOfficeChat, "identity mismatch")
		return
	}

	sender, ok := h.office.Player(client.workspaceID, client.userID)
	if !ok {
		h.protocolViolation(client, model.EventOfficeChat, "chat before office:join")
		return
	}

	msg := model.ChatMessage{
		SenderID:   client.userID,
		SenderName: sender.Name,
		Message:    payload.Message,
		Position:   sender.Position,
		TargetID:   payload.TargetUserID,
		Timestamp:  time.Now(),
	}
	event := model.NewEvent(model.EventChatMessage, model.ChatMessagePayload{
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Message:    msg.Message,
		Position:   msg.Position,
		Timestamp:  msg.Timestamp,
	})

	if payload.TargetUserID == nil {
		h.office.AppendChat(client.workspaceID, msg)
		h.hub.broadcastToOffice(client.workspaceID, event, nil)
		return
	}

	h.hub.sendToUser(client.workspaceID, *payload.TargetUserID, event)
}

func (h *WSHandler) handleInteraction(client *Client, raw json.RawMessage) {
	if !client.admitted {
		h.protocolViolation(client, model.EventOfficeInteraction, "connection not admitted")
		return
	}

	var payload model.InteractionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.protocolViolation(client, model.EventOfficeInteraction, "malformed payload")
		return
	}
	if payload.WorkspaceID != client.workspaceID || payload.UserID != client.userID {
		h.protocolViolation(client, model.EventOfficeInteraction, "identity mismatch")
		return
	}
	if payload.TargetUserID == uuid.Nil {
		h.protocolViolation(client, model.EventOfficeInteraction, "targetUserId required")
		return
	}

	sender, ok := h.office.Player(client.workspaceID, client.userID)
	if !ok {
		h.protocolViolation(client, model.EventOfficeInteraction, "interaction before office:join")
		return
	}

	// Always unicast; repeated interactions are not deduplicated here, the
	// receiving client owns any rate-limiting policy.
	h.hub.sendToUser(client.workspaceID, payload.TargetUserID,
		model.NewEvent(model.EventInteractionReceived, model.InteractionReceivedPayload{
			SenderID:   client.userID,
			SenderName: sender.Name,
			Type:       payload.Type,
			Timestamp:  time.Now(),
		}))
}

func (h *WSHandler) handleLeave(client *Client, raw json.RawMessage) {
	if !client.admitted {
		h.protocolViolation(client, model.EventOfficeLeave, "connection not admitted")
		return
	}

	var payload model.LeavePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.protocolViolation(client, model.EventOfficeLeave, "malformed payload")
		return
	}
	if payload.WorkspaceID != client.workspaceID || payload.UserID != client.userID {
		h.protocolViolation(client, model.EventOfficeLeave, "identity mismatch")
		return
	}

	if !client.inOffice {
		h.protocolViolation(client, model.EventOfficeLeave, "leave before office:join")
		return
	}

	client.inOffice = false
	h.registry.MarkOfficeJoined(client.id, false)
	h.hub.clearOffice(client)
	h.hub.leaveOffice(client.workspaceID, client.userID)
}
