package services

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"shortsguard/backend/app/models"
	"shortsguard/backend/app/repo"
	"shortsguard/internal/settings"
)

var ErrNotFound = errors.New("not found")

type WhitelistService struct {
	repo *repo.WhitelistRepository
}

func NewWhitelistService(r *repo.WhitelistRepository) *WhitelistService {
	return &WhitelistService{repo: r}
}

// Add validates and stores a new exemption with a generated id.
func (s *WhitelistService) Add(platform settings.Platform, typ settings.WhitelistType, value string) (*settings.WhitelistEntry, error) {
	if value == "" || !settings.ValidWhitelistType(typ) {
		return nil, ErrInvalidInput
	}
	entry := &models.WhitelistEntry{
		ID:        uuid.NewString(),
		Platform:  string(platform),
		Type:      string(typ),
		Value:     value,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.repo.Create(entry); err != nil {
		return nil, err
	}
	return &settings.WhitelistEntry{
		ID:        entry.ID,
		Type:      typ,
		Value:     value,
		Platform:  platform,
		CreatedAt: entry.CreatedAt,
	}, nil
}

// Remove deletes an exemption by id.
func (s *WhitelistService) Remove(id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	existed, err := s.repo.Delete(id)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	return nil
}
