package repo

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"shortsguard/backend/app/models"
)

type FocusRepository struct {
	db *gorm.DB
}

func NewFocusRepository(db *gorm.DB) *FocusRepository {
	return &FocusRepository{db: db}
}

func (r *FocusRepository) Create(s *models.FocusSession) error {
	return r.db.Create(s).Error
}

// ActiveSession returns the currently active session, nil when there is none.
func (r *FocusRepository) ActiveSession() (*models.FocusSession, error) {
	var s models.FocusSession
	err := r.db.Where("active = ?", true).Order("started_at DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeactivateAll closes every active session.
func (r *FocusRepository) DeactivateAll() error {
	now := time.Now()
	return r.db.Model(&models.FocusSession{}).
		Where("active = ?", true).
		Updates(map[string]any{"active": false, "ends_at": &now}).Error
}
