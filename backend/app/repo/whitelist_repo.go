package repo

import (
	"gorm.io/gorm"

	"shortsguard/backend/app/models"
)

type WhitelistRepository struct {
	db *gorm.DB
}

func NewWhitelistRepository(db *gorm.DB) *WhitelistRepository {
	return &WhitelistRepository{db: db}
}

func (r *WhitelistRepository) Create(e *models.WhitelistEntry) error {
	return r.db.Create(e).Error
}

// List returns all entries, oldest first, matching the ordered-sequence
// contract of the snapshot.
func (r *WhitelistRepository) List() ([]models.WhitelistEntry, error) {
	var entries []models.WhitelistEntry
	err := r.db.Order("created_at ASC").Find(&entries).Error
	return entries, err
}

// Delete removes an entry by id and reports whether a row existed.
func (r *WhitelistRepository) Delete(id string) (bool, error) {
	res := r.db.Where("id = ?", id).Delete(&models.WhitelistEntry{})
	return res.RowsAffected > 0, res.Error
}
