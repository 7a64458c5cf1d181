package service

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"office-service/internal/config"
	"office-service/internal/model"
)

func newTestOffice() *OfficeService {
	return NewOfficeService(config.OfficeConfig{
		ProximityThreshold:  50,
		ProximityHysteresis: 10,
		ChatHistorySize:     3,
	}, zap.NewNop())
}

func TestJoinIsIdempotent(t *testing.T) {
	office := newTestOffice()
	workspaceID := uuid.New()
	userID := uuid.New()

	snapshot, fresh := office.Join(workspaceID, userID, model.PlayerState{Name: "Alice"})
	assert.True(t, fresh)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Alice", snapshot[0].Name)
	assert.Equal(t, model.DirectionDown, snapshot[0].Direction)
	assert.Equal(t, model.PlayerStatusAvailable, snapshot[0].Status)

	// Duplicate join from a reconnect race keeps the existing state.
	snapshot, fresh = office.Join(workspaceID, userID, model.PlayerState{Name: "Imposter"})
	assert.False(t, fresh)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Alice", snapshot[0].Name)
}

func TestUpdateBeforeJoinRejected(t *testing.T) {
	office := newTestOffice()
	workspaceID := uuid.New()
	userID := uuid.New()

	_, ok := office.UpdatePosition(workspaceID, userID, model.Position{X: 1, Y: 1}, model.DirectionUp)
	assert.False(t, ok)
	assert.False(t, office.UpdateStatus(workspaceID, userID, model.PlayerStatusBusy))
	_, ok = office.Leave(workspaceID, userID)
	assert.False(t, ok)
}

func TestMoveEmitsProximityNoticesToBothUsers(t *testing.T) {
	office := newTestOffice()
	workspaceID := uuid.New()
	userA := uuid.New()
	userB := uuid.New()

	office.Join(workspaceID, userA, model.PlayerState{Name: "A"})
	office.Join(workspaceID, userB, model.PlayerState{Name: "B", Position: model.Position{X: 500, Y: 500}})

	notices, ok := office.UpdatePosition(workspaceID, userB, model.Position{X: 500, Y: 500}, model.DirectionDown)
	require.True(t, ok)
	assert.Empty(t, notices, "far apart, no proximity")

	notices, ok = office.UpdatePosition(workspaceID, userB, model.Position{X: 40, Y: 40}, model.DirectionLeft)
	require.True(t, ok)
	require.Len(t, notices, 2, "one notice per pair member")

	recipients := map[uuid.UUID]ProximityNotice{}
	for _, n := range notices {
		assert.Equal(t, model.ProximityEnter, n.Type)
		recipients[n.Recipient] = n
	}
	require.Contains(t, recipients, userA)
	require.Contains(t, recipients, userB)
	assert.Equal(t, userB, recipients[userA].PlayerID)
	assert.Equal(t, userA, recipients[userB].PlayerID)
	assert.Equal(t, []uuid.UUID{userB}, recipients[userA].Nearby)
	assert.Equal(t, []uuid.UUID{userA}, recipients[userB].Nearby)
}

func TestLeaveSynthesizesExits(t *testing.T) {
	office := newTestOffice()
	workspaceID := uuid.New()
	userA := uuid.New()
	userB := uuid.New()

	office.Join(workspaceID, userA, model.PlayerState{})
	office.Join(workspaceID, userB, model.PlayerState{Position: model.Position{X: 10, Y: 0}})
	notices, _ := office.UpdatePosition(workspaceID, userB, model.Position{X: 10, Y: 0}, "")
	require.Len(t, notices, 2)

	notices, ok := office.Leave(workspaceID, userA)
	require.True(t, ok)
	require.Len(t, notices, 2)
	for _, n := range notices {
		assert.Equal(t, model.ProximityExit, n.Type)
	}

	assert.False(t, office.InRoom(workspaceID, userA))
	assert.Equal(t, 0, office.PairCount(workspaceID))
	assert.Len(t, office.Snapshot(workspaceID), 1)
}

func TestWorkspacesAreIsolated(t *testing.T) {
	office := newTestOffice()
	wsA := uuid.New()
	wsB := uuid.New()
	userID := uuid.New()

	office.Join(wsA, userID, model.PlayerState{Name: "A"})

	assert.False(t, office.InRoom(wsB, userID))
	assert.Empty(t, office.Snapshot(wsB))
}

func TestChatHistoryRingBuffer(t *testing.T) {
	office := newTestOffice()
	workspaceID := uuid.New()
	sender := uuid.New()
	target := uuid.New()

	for i := 0; i < 5; i++ {
		office.AppendChat(workspaceID, model.ChatMessage{
			SenderID: sender,
			Message:  fmt.Sprintf("msg-%d", i),
		})
	}
	// Targeted messages are buffered out of history entirely.
	office.AppendChat(workspaceID, model.ChatMessage{
		SenderID: sender,
		Message:  "private",
		TargetID: &target,
	})

	history := office.ChatHistory(workspaceID)
	require.Len(t, history, 2, "capacity 3 minus the targeted message")
	assert.Equal(t, "msg-3", history[0].Message)
	assert.Equal(t, "msg-4", history[1].Message)
}

func TestChatHistoryDisabled(t *testing.T) {
	office := NewOfficeService(config.OfficeConfig{
		ProximityThreshold: 50,
		ChatHistorySize:    0,
	}, zap.NewNop())
	workspaceID := uuid.New()

	office.AppendChat(workspaceID, model.ChatMessage{Message: "dropped"})
	assert.Empty(t, office.ChatHistory(workspaceID))
}
