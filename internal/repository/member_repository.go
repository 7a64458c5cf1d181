package repository

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"office-service/internal/model"
)

// MemberChecker answers the only authorization question this layer asks:
// is this user a member of this workspace. The workspace service owns the
// underlying records.
type MemberChecker interface {
	IsMember(ctx context.Context, workspaceID, userID uuid.UUID) (bool, error)
}

type MemberRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMemberRepository(db *gorm.DB, logger *zap.Logger) *MemberRepository {
	return &MemberRepository{db: db, logger: logger}
}

func (r *MemberRepository) IsMember(ctx context.Context, workspaceID, userID uuid.UUID) (bool, error) {
	if r.db == nil {
		// No database configured: membership enforcement is disabled rather
		// than locking everyone out.
		r.logger.Warn("membership check skipped, no database configured",
			zap.String("workspaceId", workspaceID.String()),
			zap.String("userId", userID.String()))
		return true, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ? AND is_active = true", workspaceID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
