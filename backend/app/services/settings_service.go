package services

import (
	"errors"
	"sync"
	"time"

	"shortsguard/backend/app/repo"
	"shortsguard/backend/global"
	"shortsguard/internal/settings"
)

var ErrInvalidInput = errors.New("invalid input")

// SettingsService owns the settings document: assembly of full snapshots
// (document + whitelist table), validated updates, schema migration and the
// once-per-day stats reset.
type SettingsService struct {
	repo      *repo.SettingsRepository
	whitelist *repo.WhitelistRepository

	mu  sync.Mutex // serializes read-modify-write cycles on the document
	now func() time.Time
}

func NewSettingsService(r *repo.SettingsRepository, w *repo.WhitelistRepository) *SettingsService {
	return &SettingsService{repo: r, whitelist: w, now: time.Now}
}

// SetClock overrides the time source; tests use it to cross day boundaries.
func (s *SettingsService) SetClock(now func() time.Time) { s.now = now }

// Snapshot assembles the full settings record. A missing or corrupt stored
// document falls back to defaults rather than failing the caller; the daily
// stats reset is applied (and persisted) here so every reader sees it.
func (s *SettingsService) Snapshot() (*settings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *SettingsService) snapshotLocked() (*settings.Settings, error) {
	snap := s.loadDoc()

	if migrated := snap.Migrate(); migrated {
		global.Logger.Info().Uint("version", snap.Version).Msg("settings schema migrated")
		if err := s.saveDoc(snap); err != nil {
			return nil, err
		}
	}
	if snap.ResetDailyStats(s.now()) {
		global.Logger.Info().Msg("daily block counter reset")
		if err := s.saveDoc(snap); err != nil {
			return nil, err
		}
	}

	entries, err := s.whitelist.List()
	if err != nil {
		return nil, err
	}
	snap.Whitelist = make([]settings.WhitelistEntry, 0, len(entries))
	for _, e := range entries {
		snap.Whitelist = append(snap.Whitelist, settings.WhitelistEntry{
			ID:        e.ID,
			Type:      settings.WhitelistType(e.Type),
			Value:     e.Value,
			Platform:  settings.Platform(e.Platform),
			CreatedAt: e.CreatedAt,
		})
	}
	return snap, nil
}

// loadDoc reads and decodes the stored document. Malformed or absent state
// fails toward defaults (no blocking surprises, never a crash).
func (s *SettingsService) loadDoc() *settings.Settings {
	doc, err := s.repo.Get()
	if err != nil || doc == nil {
		if err != nil {
			global.Logger.Error().Err(err).Msg("settings doc read failed, using defaults")
		}
		return settings.Default()
	}
	snap, err := settings.FromJSON([]byte(doc.Doc))
	if err != nil {
		global.Logger.Error().Err(err).Msg("settings doc corrupt, using defaults")
		return settings.Default()
	}
	return snap
}

// saveDoc persists the document portion. The whitelist lives in its own
// table and is stripped before storage.
func (s *SettingsService) saveDoc(snap *settings.Settings) error {
	c := snap.Clone()
	c.Whitelist = nil
	b, err := c.ToJSON()
	if err != nil {
		return err
	}
	return s.repo.Save(string(b))
}

// Update replaces the user-editable parts of the document from a decoded
// snapshot. Stats remain authoritative here: a client cannot reset counters
// through UPDATE_SETTINGS. The update is all-or-nothing.
func (s *SettingsService) Update(incoming *settings.Settings) (*settings.Settings, error) {
	if incoming == nil {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.loadDoc()
	incoming.Normalize()
	incoming.Migrate()
	incoming.Stats = current.Stats
	if err := s.saveDoc(incoming); err != nil {
		return nil, err
	}
	return s.snapshotLocked()
}

// Mutate runs fn over the current document under the service lock and
// persists the result. Used by the stats path.
func (s *SettingsService) Mutate(fn func(*settings.Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.loadDoc()
	snap.ResetDailyStats(s.now())
	fn(snap)
	return s.saveDoc(snap)
}

// RetentionDays exposes the configured log retention for the pruner.
func (s *SettingsService) RetentionDays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadDoc().Preferences.LogRetentionDays
}
