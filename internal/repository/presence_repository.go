package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// PresenceRepository persists the advisory presence mirror. The hub writes
// here fire-and-forget on status transitions; nothing in the hub reads it
// back, so a failed write never affects in-memory correctness.
type PresenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

func (r *PresenceRepository) SetStatus(userID uuid.UUID, projectID *uuid.UUID, status model.PresenceStatus) error {
	mirror := &model.PresenceMirror{
		UserID:       userID,
		Status:       status,
		ProjectID:    projectID,
		LastActivity: time.Now().UTC(),
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "project_id", "last_activity"}),
	}).Create(mirror).Error
}

func (r *PresenceRepository) SetOffline(userID uuid.UUID) error {
	return r.db.Model(&model.PresenceMirror{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"status":        model.PresenceOffline,
			"last_activity": time.Now().UTC(),
		}).Error
}

func (r *PresenceRepository) GetStatus(userID uuid.UUID) (*model.PresenceMirror, error) {
	var mirror model.PresenceMirror
	if err := r.db.First(&mirror, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &mirror, nil
}

// DeferredPresenceRepository resolves the database connection on every call,
// so mirroring starts working the moment a background reconnect lands. While
// the resolver returns nil the mirror stays dark and writes are silently
// dropped; the mirror is advisory, so a dark period loses nothing the hub
// depends on.
type DeferredPresenceRepository struct {
	resolve func() *gorm.DB
}

func NewDeferredPresenceRepository(resolve func() *gorm.DB) *DeferredPresenceRepository {
	return &DeferredPresenceRepository{resolve: resolve}
}

func (r *DeferredPresenceRepository) SetStatus(userID uuid.UUID, projectID *uuid.UUID, status model.PresenceStatus) error {
	db := r.resolve()
	if db == nil {
		return nil
	}
	return (&PresenceRepository{db: db}).SetStatus(userID, projectID, status)
}

func (r *DeferredPresenceRepository) SetOffline(userID uuid.UUID) error {
	db := r.resolve()
	if db == nil {
		return nil
	}
	return (&PresenceRepository{db: db}).SetOffline(userID)
}
