package models

import "time"

// SettingsDoc is the single-row settings document. The whitelist is stored
// relationally in its own table; the document holds everything else plus the
// schema version used for migration.
type SettingsDoc struct {
	ID        uint   `gorm:"primaryKey"`
	Doc       string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// WhitelistEntry is one user exemption. Created once, removed by id.
type WhitelistEntry struct {
	ID        string `gorm:"primaryKey;size:36"` // uuid
	Platform  string `gorm:"size:32;index"`
	Type      string `gorm:"size:16;not null"` // channel | url | domain
	Value     string `gorm:"size:255;not null"`
	CreatedAt int64  // epoch millis
}

// BlockEvent is one logged block, pruned by retention.
type BlockEvent struct {
	ID        uint      `gorm:"primaryKey"`
	AgentID   string    `gorm:"size:36;index"`
	Platform  string    `gorm:"size:32;index"`
	Action    string    `gorm:"size:16"`
	URL       string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"index"`
}

// FocusSession is a focus or pomodoro run. At most one session is active at
// a time; the signal is informational for the agents.
type FocusSession struct {
	ID        uint   `gorm:"primaryKey"`
	Kind      string `gorm:"size:16;not null"` // focus | pomodoro
	StartedAt time.Time
	EndsAt    *time.Time
	Active    bool `gorm:"index"`
}
