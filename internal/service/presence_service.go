package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"office-service/internal/model"
	"office-service/internal/repository"
)

// PresenceService derives the workspace-wide online set from connection
// lifecycle events. It is independent of office-room semantics; the team
// roster and dashboard consume it through the REST handlers and the redis
// mirror.
type PresenceService struct {
	mu         sync.RWMutex
	workspaces map[uuid.UUID]*workspacePresence

	repo   *repository.PresenceRepository
	redis  *redis.Client
	logger *zap.Logger
}

type workspacePresence struct {
	mu    sync.Mutex
	users map[uuid.UUID]struct{}
}

func NewPresenceService(
	repo *repository.PresenceRepository,
	redisClient *redis.Client,
	logger *zap.Logger,
) *PresenceService {
	return &PresenceService{
		workspaces: make(map[uuid.UUID]*workspacePresence),
		repo:       repo,
		redis:      redisClient,
		logger:     logger,
	}
}

func (s *PresenceService) workspace(workspaceID uuid.UUID) *workspacePresence {
	s.mu.RLock()
	ws, ok := s.workspaces[workspaceID]
	s.mu.RUnlock()
	if ok {
		return ws
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok = s.workspaces[workspaceID]; ok {
		return ws
	}
	ws = &workspacePresence{users: make(map[uuid.UUID]struct{})}
	s.workspaces[workspaceID] = ws
	return ws
}

// OnConnect marks the user online. Returns true only on the OFFLINE->ONLINE
// transition, so callers emit exactly one user:online per transition.
func (s *PresenceService) OnConnect(ctx context.Context, workspaceID, userID uuid.UUID) bool {
	ws := s.workspace(workspaceID)

	ws.mu.Lock()
	_, already := ws.users[userID]
	if !already {
		ws.users[userID] = struct{}{}
	}
	ws.mu.Unlock()

	if already {
		return false
	}

	s.mirrorStatus(ctx, workspaceID, userID, model.PresenceOnline)
	return true
}

// OnDisconnect marks the user offline. The caller invokes this only when
// the registry reports zero remaining connections for the user in the
// workspace; a user with another live tab stays online.
func (s *PresenceService) OnDisconnect(ctx context.Context, workspaceID, userID uuid.UUID) bool {
	ws := s.workspace(workspaceID)

	ws.mu.Lock()
	_, present := ws.users[userID]
	if present {
		delete(ws.users, userID)
	}
	ws.mu.Unlock()

	if !present {
		return false
	}

	s.mirrorStatus(ctx, workspaceID, userID, model.PresenceOffline)
	return true
}

// Snapshot returns the workspace's online user set.
func (s *PresenceService) Snapshot(workspaceID uuid.UUID) []uuid.UUID {
	ws := s.workspace(workspaceID)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	users := make([]uuid.UUID, 0, len(ws.users))
	for userID := range ws.users {
		users = append(users, userID)
	}
	return users
}

// IsOnline reports whether the user has at least one live connection in the
// workspace.
func (s *PresenceService) IsOnline(workspaceID, userID uuid.UUID) bool {
	ws := s.workspace(workspaceID)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	_, ok := ws.users[userID]
	return ok
}

// OnlineCount reports the total online users across workspaces, for metrics.
func (s *PresenceService) OnlineCount() int {
	s.mu.RLock()
	shards := make([]*workspacePresence, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		shards = append(shards, ws)
	}
	s.mu.RUnlock()

	total := 0
	for _, ws := range shards {
		ws.mu.Lock()
		total += len(ws.users)
		ws.mu.Unlock()
	}
	return total
}

// mirrorStatus pushes the transition to the database (roster last-seen) and
// the workspace presence channel on redis. Both are best effort; the
// in-memory set stays authoritative.
func (s *PresenceService) mirrorStatus(ctx context.Context, workspaceID, userID uuid.UUID, status model.PresenceStatus) {
	if s.repo != nil {
		if err := s.repo.SetStatus(userID, workspaceID, status); err != nil {
			s.logger.Error("failed to mirror presence to DB",
				zap.String("userId", userID.String()),
				zap.Error(err))
		}
	}

	if s.redis == nil {
		return
	}

	channel := fmt.Sprintf("presence:workspace:%s", workspaceID.String())
	data, err := json.Marshal(map[string]interface{}{
		"type":   "USER_STATUS",
		"userId": userID.String(),
		"status": status,
	})
	if err != nil {
		s.logger.Error("failed to marshal presence status", zap.Error(err))
		return
	}

	if err := s.redis.Publish(ctx, channel, data).Err(); err != nil {
		s.logger.Error("failed to publish presence status",
			zap.String("channel", channel),
			zap.Error(err))
	}
}
