package service

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"office-service/internal/config"
	"office-service/internal/model"
)

// ProximityNotice is one office:proximity event addressed to a single user.
type ProximityNotice struct {
	Recipient uuid.UUID
	PlayerID  uuid.UUID
	Nearby    []uuid.UUID
	Type      model.ProximityType
}

// room is the mutable office state of one workspace. Each room has its own
// lock so unrelated workspaces never serialize on each other.
type room struct {
	mu        sync.RWMutex
	players   map[uuid.UUID]*model.PlayerState
	proximity *ProximityEngine
	chat      []model.ChatMessage
	chatCap   int
}

// OfficeService is the player state store: per-workspace avatar positions,
// statuses and display attributes, plus each room's proximity set and chat
// ring buffer.
type OfficeService struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]*room
	cfg    config.OfficeConfig
	logger *zap.Logger
}

func NewOfficeService(cfg config.OfficeConfig, logger *zap.Logger) *OfficeService {
	return &OfficeService{
		rooms:  make(map[uuid.UUID]*room),
		cfg:    cfg,
		logger: logger,
	}
}

func (s *OfficeService) room(workspaceID uuid.UUID) *room {
	s.mu.RLock()
	rm, ok := s.rooms[workspaceID]
	s.mu.RUnlock()
	if ok {
		return rm
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rm, ok = s.rooms[workspaceID]; ok {
		return rm
	}
	rm = &room{
		players:   make(map[uuid.UUID]*model.PlayerState),
		proximity: NewProximityEngine(s.cfg.ProximityThreshold, s.cfg.ProximityHysteresis),
		chatCap:   s.cfg.ChatHistorySize,
	}
	s.rooms[workspaceID] = rm
	return rm
}

// Join seeds the user's player state and returns the room snapshot. A
// duplicate join (reconnect race) is idempotent: the existing state is kept
// and fresh=false tells the caller to skip the joined broadcast.
func (s *OfficeService) Join(workspaceID, userID uuid.UUID, attrs model.PlayerState) (snapshot []model.PlayerState, fresh bool) {
	rm := s.room(workspaceID)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.players[userID]; !exists {
		state := attrs
		state.UserID = userID
		if state.Direction == "" {
			state.Direction = model.DirectionDown
		}
		if state.Status == "" {
			state.Status = model.PlayerStatusAvailable
		}
		rm.players[userID] = &state
		fresh = true
	} else {
		s.logger.Debug("duplicate office join, returning existing snapshot",
			zap.String("workspaceId", workspaceID.String()),
			zap.String("userId", userID.String()))
	}

	return rm.snapshotLocked(), fresh
}

// UpdatePosition moves the user's avatar and recomputes the affected
// proximity pairs. Updates from users who never joined the room are
// rejected; that is a client state-machine bug, not a fatal error.
func (s *OfficeService) UpdatePosition(workspaceID, userID uuid.UUID, pos model.Position, dir model.Direction) (notices []ProximityNotice, ok bool) {
	rm := s.room(workspaceID)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	state, exists := rm.players[userID]
	if !exists {
		return nil, false
	}

	state.Position = pos
	if dir != "" {
		state.Direction = dir
	}

	delta := rm.proximity.OnPositionChanged(userID, rm.players)
	return rm.noticesLocked(delta), true
}

// UpdateStatus changes the user's availability status.
func (s *OfficeService) UpdateStatus(workspaceID, userID uuid.UUID, status model.PlayerStatus) bool {
	rm := s.room(workspaceID)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	state, exists := rm.players[userID]
	if !exists {
		return false
	}
	state.Status = status
	return true
}

// Leave removes the user's state and synthesizes an exit for every pair
// that included them.
func (s *OfficeService) Leave(workspaceID, userID uuid.UUID) (notices []ProximityNotice, ok bool) {
	rm := s.room(workspaceID)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.players[userID]; !exists {
		return nil, false
	}

	exited := rm.proximity.RemoveUser(userID)
	notices = rm.noticesLocked(ProximityDelta{Exited: exited})
	delete(rm.players, userID)
	return notices, true
}

// Snapshot returns the current player list of a workspace office.
func (s *OfficeService) Snapshot(workspaceID uuid.UUID) []model.PlayerState {
	rm := s.room(workspaceID)

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.snapshotLocked()
}

// InRoom reports whether the user currently has player state in the room.
func (s *OfficeService) InRoom(workspaceID, userID uuid.UUID) bool {
	rm := s.room(workspaceID)

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, ok := rm.players[userID]
	return ok
}

// Player returns a copy of one player's state.
func (s *OfficeService) Player(workspaceID, userID uuid.UUID) (model.PlayerState, bool) {
	rm := s.room(workspaceID)

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	state, ok := rm.players[userID]
	if !ok {
		return model.PlayerState{}, false
	}
	return *state, true
}

// AppendChat records a message in the room's ring buffer. Best effort for
// late joiners, not a delivery guarantee.
func (s *OfficeService) AppendChat(workspaceID uuid.UUID, msg model.ChatMessage) {
	rm := s.room(workspaceID)

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.chatCap == 0 {
		return
	}
	rm.chat = append(rm.chat, msg)
	if len(rm.chat) > rm.chatCap {
		rm.chat = rm.chat[len(rm.chat)-rm.chatCap:]
	}
}

// ChatHistory returns the buffered room messages, oldest first. Targeted
// messages are excluded; they were never room-wide.
func (s *OfficeService) ChatHistory(workspaceID uuid.UUID) []model.ChatMessage {
	rm := s.room(workspaceID)

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	history := make([]model.ChatMessage, 0, len(rm.chat))
	for _, msg := range rm.chat {
		if msg.TargetID == nil {
			history = append(history, msg)
		}
	}
	return history
}

// PairCount reports the room's current nearby-set size, for metrics.
func (s *OfficeService) PairCount(workspaceID uuid.UUID) int {
	rm := s.room(workspaceID)

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.proximity.PairCount()
}

// TotalPairs sums the nearby-set sizes of every room, for the pairs gauge.
func (s *OfficeService) TotalPairs() int {
	s.mu.RLock()
	rooms := make([]*room, 0, len(s.rooms))
	for _, rm := range s.rooms {
		rooms = append(rooms, rm)
	}
	s.mu.RUnlock()

	total := 0
	for _, rm := range rooms {
		rm.mu.RLock()
		total += rm.proximity.PairCount()
		rm.mu.RUnlock()
	}
	return total
}

func (rm *room) snapshotLocked() []model.PlayerState {
	players := make([]model.PlayerState, 0, len(rm.players))
	for _, state := range rm.players {
		players = append(players, *state)
	}
	return players
}

// noticesLocked expands pair transitions into one notice per pair member,
// each carrying the recipient's full current nearby list.
func (rm *room) noticesLocked(delta ProximityDelta) []ProximityNotice {
	var notices []ProximityNotice
	add := func(pairs []Pair, kind model.ProximityType) {
		for _, pair := range pairs {
			notices = append(notices,
				ProximityNotice{
					Recipient: pair.A,
					PlayerID:  pair.B,
					Nearby:    rm.proximity.Nearby(pair.A),
					Type:      kind,
				},
				ProximityNotice{
					Recipient: pair.B,
					PlayerID:  pair.A,
					Nearby:    rm.proximity.Nearby(pair.B),
					Type:      kind,
				})
		}
	}
	add(delta.Entered, model.ProximityEnter)
	add(delta.Exited, model.ProximityExit)
	return notices
}
