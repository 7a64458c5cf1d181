package handler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"office-service/internal/config"
	"office-service/internal/metrics"
	"office-service/internal/model"
	"office-service/internal/service"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	logger := zap.NewNop()
	registry := service.NewConnectionRegistry(time.Minute, time.Second, logger)
	office := service.NewOfficeService(config.OfficeConfig{
		ProximityThreshold:  50,
		ProximityHysteresis: 10,
	}, logger)
	presence := service.NewPresenceService(nil, nil, logger)
	return NewHub(registry, office, presence, metrics.NewWithRegistry(prometheus.NewRegistry()), logger)
}

// Every user that comes online concurrently with a registration must reach
// the registering client, either inside the online:users snapshot or as a
// user:online delta; a transition must never fall between the two.
func TestRegisterSnapshotMissesNoConcurrentTransition(t *testing.T) {
	hub := newTestHub(t)
	workspaceID := uuid.New()

	observer := &Client{
		id:          uuid.New(),
		send:        make(chan []byte, 256),
		hub:         hub,
		userID:      uuid.New(),
		workspaceID: workspaceID,
	}

	const n = 64
	users := make([]uuid.UUID, n)
	for i := range users {
		users[i] = uuid.New()
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, userID := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			<-start
			hub.presence.OnConnect(context.Background(), workspaceID, userID)
			hub.broadcastToWorkspace(workspaceID,
				model.NewEvent(model.EventUserOnline, model.UserStatusPayload{UserID: userID}), nil)
		}(userID)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		hub.register(observer)
	}()

	close(start)
	wg.Wait()

	seen := make(map[uuid.UUID]bool)
	drained := false
	for !drained {
		select {
		case data := <-observer.send:
			var envelope model.Envelope
			require.NoError(t, json.Unmarshal(data, &envelope))
			switch envelope.Type {
			case model.EventOnlineUsers:
				var snapshot model.OnlineUsersPayload
				require.NoError(t, json.Unmarshal(envelope.Payload, &snapshot))
				for _, userID := range snapshot.Users {
					seen[userID] = true
				}
			case model.EventUserOnline:
				var delta model.UserStatusPayload
				require.NoError(t, json.Unmarshal(envelope.Payload, &delta))
				seen[delta.UserID] = true
			}
		default:
			drained = true
		}
	}

	for _, userID := range users {
		assert.True(t, seen[userID], "user %s reached the client neither in snapshot nor as delta", userID)
	}
}
