// Package settings defines the shared settings snapshot exchanged between the
// scanning agents and the backend authority. Agents treat a snapshot as
// immutable for the duration of one scan; only the authority mutates settings.
package settings

import (
	"encoding/json"
	"fmt"
	"time"
)

// Platform identifies one supported external site.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformReddit    Platform = "reddit"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformPinterest Platform = "pinterest"
	PlatformSnapchat  Platform = "snapchat"
)

// AllPlatforms returns the fixed platform set in registry order.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformYouTube, PlatformTikTok, PlatformInstagram,
		PlatformFacebook, PlatformTwitter, PlatformReddit,
		PlatformLinkedIn, PlatformPinterest, PlatformSnapchat,
	}
}

// WhitelistType is the kind of exemption a whitelist entry expresses.
type WhitelistType string

const (
	WhitelistChannel WhitelistType = "channel"
	WhitelistURL     WhitelistType = "url"
	WhitelistDomain  WhitelistType = "domain"
)

// ValidWhitelistType reports whether t is a known whitelist entry type.
func ValidWhitelistType(t WhitelistType) bool {
	switch t {
	case WhitelistChannel, WhitelistURL, WhitelistDomain:
		return true
	}
	return false
}

// WhitelistEntry is a user-defined exemption. Entries are created once and
// removed by id, never mutated.
type WhitelistEntry struct {
	ID        string        `json:"id"`
	Type      WhitelistType `json:"type"`
	Value     string        `json:"value"`
	Platform  Platform      `json:"platform"`
	CreatedAt int64         `json:"createdAt"` // epoch millis
}

// TimeRange is one schedule window in local time. End before start wraps
// through midnight.
type TimeRange struct {
	StartHour   int `json:"startHour"`
	StartMinute int `json:"startMinute"`
	EndHour     int `json:"endHour"`
	EndMinute   int `json:"endMinute"`
}

type ScheduleConfig struct {
	Enabled bool        `json:"enabled"`
	Ranges  []TimeRange `json:"ranges"`
}

type ChallengeConfig struct {
	Enabled         bool   `json:"enabled"`
	Type            string `json:"type"`
	Difficulty      string `json:"difficulty"`
	CooldownSeconds int    `json:"cooldownSeconds"`
	BypassDisable   bool   `json:"bypassDisable"`
}

type Stats struct {
	BlockedToday  uint64              `json:"blockedToday"`
	BlockedTotal  uint64              `json:"blockedTotal"`
	LastResetDate string              `json:"lastResetDate"` // ISO date, local
	ByPlatform    map[Platform]uint64 `json:"byPlatform"`
}

type Preferences struct {
	ShowStats               bool `json:"showStats"`
	ShowNotifications       bool `json:"showNotifications"`
	RedirectShortsToRegular bool `json:"redirectShortsToRegular"`
	LogRetentionDays        int  `json:"logRetentionDays"`
}

// SchemaVersion is the current settings schema version.
const SchemaVersion = 2

// Settings is the single shared record described by the storage contract.
type Settings struct {
	Enabled     bool              `json:"enabled"`
	Platforms   map[Platform]bool `json:"platforms"`
	Whitelist   []WhitelistEntry  `json:"whitelist"`
	Schedule    ScheduleConfig    `json:"schedule"`
	Challenge   ChallengeConfig   `json:"challenge"`
	Stats       Stats             `json:"stats"`
	Preferences Preferences       `json:"preferences"`
	Version     uint              `json:"version"`
}

// Default returns the out-of-the-box settings record.
func Default() *Settings {
	s := &Settings{
		Enabled:   true,
		Platforms: map[Platform]bool{},
		Schedule:  ScheduleConfig{},
		Challenge: ChallengeConfig{Type: "math", Difficulty: "easy", CooldownSeconds: 30},
		Stats: Stats{
			LastResetDate: time.Now().Format(DateLayout),
			ByPlatform:    map[Platform]uint64{},
		},
		Preferences: Preferences{ShowStats: true, ShowNotifications: true, LogRetentionDays: 30},
		Version:     SchemaVersion,
	}
	for _, p := range AllPlatforms() {
		s.Platforms[p] = true
	}
	return s
}

// DateLayout is the ISO date format used for the daily stats reset.
const DateLayout = "2006-01-02"

// Normalize repairs a snapshot so the platform map covers every known
// platform and nested maps are non-nil. Unknown platform keys are kept.
func (s *Settings) Normalize() {
	if s.Platforms == nil {
		s.Platforms = map[Platform]bool{}
	}
	for _, p := range AllPlatforms() {
		if _, ok := s.Platforms[p]; !ok {
			s.Platforms[p] = true
		}
	}
	if s.Stats.ByPlatform == nil {
		s.Stats.ByPlatform = map[Platform]uint64{}
	}
	if s.Stats.LastResetDate == "" {
		s.Stats.LastResetDate = time.Now().Format(DateLayout)
	}
	if s.Preferences.LogRetentionDays <= 0 {
		s.Preferences.LogRetentionDays = 30
	}
}

// Migrate upgrades older schema versions in place and reports whether
// anything changed. Version 1 predates per-platform stats.
func (s *Settings) Migrate() bool {
	if s.Version >= SchemaVersion {
		return false
	}
	if s.Version < 2 && s.Stats.ByPlatform == nil {
		s.Stats.ByPlatform = map[Platform]uint64{}
	}
	s.Version = SchemaVersion
	return true
}

// ResetDailyStats zeroes blockedToday when now falls on a later calendar day
// than the recorded reset date. It reports whether a reset happened, and
// happens at most once per local calendar day.
func (s *Settings) ResetDailyStats(now time.Time) bool {
	today := now.Format(DateLayout)
	if s.Stats.LastResetDate == today {
		return false
	}
	s.Stats.BlockedToday = 0
	s.Stats.LastResetDate = today
	return true
}

// Clone returns a deep copy. Agents hand clones to the engine so a pushed
// update never mutates a snapshot mid-scan.
func (s *Settings) Clone() *Settings {
	out := *s
	out.Platforms = make(map[Platform]bool, len(s.Platforms))
	for k, v := range s.Platforms {
		out.Platforms[k] = v
	}
	out.Whitelist = append([]WhitelistEntry(nil), s.Whitelist...)
	out.Schedule.Ranges = append([]TimeRange(nil), s.Schedule.Ranges...)
	out.Stats.ByPlatform = make(map[Platform]uint64, len(s.Stats.ByPlatform))
	for k, v := range s.Stats.ByPlatform {
		out.Stats.ByPlatform[k] = v
	}
	return &out
}

// FromJSON decodes and normalizes a snapshot. Any shape that does not decode
// into the settings record is rejected; callers fall back to their last known
// good snapshot.
func FromJSON(b []byte) (*Settings, error) {
	var s Settings
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.Normalize()
	s.Migrate()
	return &s, nil
}

// ToJSON encodes a snapshot for storage or the wire.
func (s *Settings) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}
