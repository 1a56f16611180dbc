package repo

import (
	"time"

	"gorm.io/gorm"

	"shortsguard/backend/app/models"
)

type BlockLogRepository struct {
	db *gorm.DB
}

func NewBlockLogRepository(db *gorm.DB) *BlockLogRepository {
	return &BlockLogRepository{db: db}
}

func (r *BlockLogRepository) Create(e *models.BlockEvent) error {
	return r.db.Create(e).Error
}

// List returns the most recent events, newest first.
func (r *BlockLogRepository) List(limit int) ([]models.BlockEvent, error) {
	var events []models.BlockEvent
	q := r.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}

// Clear drops all events.
func (r *BlockLogRepository) Clear() error {
	return r.db.Where("1 = 1").Delete(&models.BlockEvent{}).Error
}

// PruneBefore deletes events older than the cutoff and returns the count.
func (r *BlockLogRepository) PruneBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&models.BlockEvent{})
	return res.RowsAffected, res.Error
}
