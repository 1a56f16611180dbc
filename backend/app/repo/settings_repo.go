package repo

import (
	"errors"

	"gorm.io/gorm"

	"shortsguard/backend/app/models"
)

const settingsDocID = 1

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings document, nil when none has been stored yet.
func (r *SettingsRepository) Get() (*models.SettingsDoc, error) {
	var doc models.SettingsDoc
	err := r.db.Where("id = ?", settingsDocID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save upserts the single settings row.
func (r *SettingsRepository) Save(doc string) error {
	return r.db.Save(&models.SettingsDoc{ID: settingsDocID, Doc: doc}).Error
}
