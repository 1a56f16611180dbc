package services

import (
	"time"

	"shortsguard/backend/app/models"
	"shortsguard/backend/app/repo"
	"shortsguard/internal/settings"
)

// StatsService applies LOG_BLOCK deltas to the settings document counters
// and appends to the block-event log.
type StatsService struct {
	settings *SettingsService
	log      *repo.BlockLogRepository
}

func NewStatsService(s *SettingsService, l *repo.BlockLogRepository) *StatsService {
	return &StatsService{settings: s, log: l}
}

// ApplyBlock records one blocked element for an agent.
func (s *StatsService) ApplyBlock(agentID string, platform settings.Platform, action, url string) error {
	if err := s.settings.Mutate(func(snap *settings.Settings) {
		snap.Stats.BlockedToday++
		snap.Stats.BlockedTotal++
		snap.Stats.ByPlatform[platform]++
	}); err != nil {
		return err
	}
	return s.log.Create(&models.BlockEvent{
		AgentID:   agentID,
		Platform:  string(platform),
		Action:    action,
		URL:       url,
		CreatedAt: time.Now(),
	})
}
