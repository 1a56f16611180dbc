package services

import (
	"time"

	"shortsguard/backend/app/models"
	"shortsguard/backend/app/repo"
	"shortsguard/backend/global"
)

const defaultLogPage = 100

// LogService serves and maintains the block-event log.
type LogService struct {
	repo     *repo.BlockLogRepository
	settings *SettingsService
}

func NewLogService(r *repo.BlockLogRepository, s *SettingsService) *LogService {
	return &LogService{repo: r, settings: s}
}

func (s *LogService) List(limit int) ([]models.BlockEvent, error) {
	if limit <= 0 {
		limit = defaultLogPage
	}
	return s.repo.List(limit)
}

func (s *LogService) Clear() error {
	return s.repo.Clear()
}

// Prune drops events older than the configured retention window.
func (s *LogService) Prune() error {
	days := s.settings.RetentionDays()
	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := s.repo.PruneBefore(cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		global.Logger.Info().Int64("pruned", n).Int("retention_days", days).Msg("block log pruned")
	}
	return nil
}
