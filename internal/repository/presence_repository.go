package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"office-service/internal/model"
)

type PresenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

func (r *PresenceRepository) SetStatus(userID, workspaceID uuid.UUID, status model.PresenceStatus) error {
	if r.db == nil {
		return nil
	}

	presence := &model.UserPresence{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Status:      status,
		LastSeen:    time.Now(),
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "last_seen", "workspace_id"}),
	}).Create(presence).Error
}

func (r *PresenceRepository) GetUserStatus(userID uuid.UUID) (*model.UserPresence, error) {
	if r.db == nil {
		return nil, gorm.ErrRecordNotFound
	}

	var presence model.UserPresence
	err := r.db.First(&presence, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &presence, nil
}

func (r *PresenceRepository) GetOnlineUsers(workspaceID uuid.UUID) ([]model.UserPresence, error) {
	if r.db == nil {
		return nil, nil
	}

	var presences []model.UserPresence
	err := r.db.
		Where("status = ?", model.PresenceOnline).
		Where("workspace_id = ?", workspaceID).
		Find(&presences).Error
	return presences, err
}

// DeleteStaleOffline removes offline rows whose last_seen is older than the
// retention window. Run by the cleanup job.
func (r *PresenceRepository) DeleteStaleOffline(olderThan time.Duration) (int64, error) {
	if r.db == nil {
		return 0, nil
	}

	cutoff := time.Now().Add(-olderThan)
	result := r.db.
		Where("status = ?", model.PresenceOffline).
		Where("last_seen < ?", cutoff).
		Delete(&model.UserPresence{})
	return result.RowsAffected, result.Error
}
