package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shortsguard/backend/app/models"
	"shortsguard/backend/app/repo"
	"shortsguard/backend/global"
	"shortsguard/internal/settings"
)

type fixture struct {
	db        *gorm.DB
	settings  *SettingsService
	whitelist *WhitelistService
	stats     *StatsService
	logs      *LogService
	focus     *FocusService
	blockRepo *repo.BlockLogRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	global.Logger = zerolog.Nop()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.SettingsDoc{},
		&models.WhitelistEntry{},
		&models.BlockEvent{},
		&models.FocusSession{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	settingsRepo := repo.NewSettingsRepository(db)
	whitelistRepo := repo.NewWhitelistRepository(db)
	blockRepo := repo.NewBlockLogRepository(db)
	focusRepo := repo.NewFocusRepository(db)

	settingsSvc := NewSettingsService(settingsRepo, whitelistRepo)
	return &fixture{
		db:        db,
		settings:  settingsSvc,
		whitelist: NewWhitelistService(whitelistRepo),
		stats:     NewStatsService(settingsSvc, blockRepo),
		logs:      NewLogService(blockRepo, settingsSvc),
		focus:     NewFocusService(focusRepo),
		blockRepo: blockRepo,
	}
}

func TestSnapshotFallsBackToDefaults(t *testing.T) {
	f := newFixture(t)
	snap, err := f.settings.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.Enabled {
		t.Error("fresh snapshot should be enabled")
	}
	if len(snap.Platforms) != len(settings.AllPlatforms()) {
		t.Errorf("platforms = %d, want %d", len(snap.Platforms), len(settings.AllPlatforms()))
	}
	if len(snap.Whitelist) != 0 {
		t.Errorf("fresh whitelist has %d entries", len(snap.Whitelist))
	}
}

func TestUpdatePersistsAndPreservesStats(t *testing.T) {
	f := newFixture(t)

	if err := f.stats.ApplyBlock("agent-1", settings.PlatformYouTube, "hide", "https://www.youtube.com/"); err != nil {
		t.Fatalf("apply block: %v", err)
	}

	incoming := settings.Default()
	incoming.Platforms[settings.PlatformTikTok] = false
	incoming.Stats.BlockedTotal = 999 // must be ignored
	updated, err := f.settings.Update(incoming)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Platforms[settings.PlatformTikTok] {
		t.Error("platform toggle was not persisted")
	}
	if updated.Stats.BlockedTotal != 1 {
		t.Errorf("blockedTotal = %d, clients must not overwrite stats", updated.Stats.BlockedTotal)
	}

	// A fresh read sees the same state.
	snap, err := f.settings.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Platforms[settings.PlatformTikTok] {
		t.Error("update did not survive a reload")
	}
}

func TestUpdateNilRejected(t *testing.T) {
	f := newFixture(t)
	if _, err := f.settings.Update(nil); err != ErrInvalidInput {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestWhitelistLifecycle(t *testing.T) {
	f := newFixture(t)

	entry, err := f.whitelist.Add(settings.PlatformYouTube, settings.WhitelistChannel, "@SomeCreator")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("entry should get a generated id")
	}

	if _, err := f.whitelist.Add(settings.PlatformYouTube, settings.WhitelistChannel, ""); err != ErrInvalidInput {
		t.Errorf("empty value: err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.whitelist.Add(settings.PlatformYouTube, "bogus", "x"); err != ErrInvalidInput {
		t.Errorf("bad type: err = %v, want ErrInvalidInput", err)
	}

	snap, err := f.settings.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Whitelist) != 1 || snap.Whitelist[0].ID != entry.ID {
		t.Fatalf("snapshot whitelist = %+v, want the added entry", snap.Whitelist)
	}
	if snap.Whitelist[0].Value != "@SomeCreator" {
		t.Errorf("value = %q", snap.Whitelist[0].Value)
	}

	if err := f.whitelist.Remove(entry.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.whitelist.Remove(entry.ID); err != ErrNotFound {
		t.Errorf("double remove: err = %v, want ErrNotFound", err)
	}

	snap, _ = f.settings.Snapshot()
	if len(snap.Whitelist) != 0 {
		t.Errorf("whitelist not empty after remove: %+v", snap.Whitelist)
	}
}

func TestApplyBlockCountsAndLogs(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		if err := f.stats.ApplyBlock("agent-1", settings.PlatformTikTok, "hide", "https://www.tiktok.com/foryou"); err != nil {
			t.Fatalf("apply block: %v", err)
		}
	}

	snap, err := f.settings.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Stats.BlockedToday != 3 || snap.Stats.BlockedTotal != 3 {
		t.Errorf("today=%d total=%d, want 3/3", snap.Stats.BlockedToday, snap.Stats.BlockedTotal)
	}
	if snap.Stats.ByPlatform[settings.PlatformTikTok] != 3 {
		t.Errorf("byPlatform[tiktok] = %d, want 3", snap.Stats.ByPlatform[settings.PlatformTikTok])
	}

	events, err := f.logs.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("logged %d events, want 3", len(events))
	}
	if events[0].Platform != "tiktok" || events[0].Action != "hide" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestDailyResetAcrossSnapshots(t *testing.T) {
	f := newFixture(t)
	day1 := time.Date(2025, 7, 1, 12, 0, 0, 0, time.Local)
	f.settings.SetClock(func() time.Time { return day1 })

	if err := f.stats.ApplyBlock("a", settings.PlatformYouTube, "hide", "u"); err != nil {
		t.Fatal(err)
	}
	snap, _ := f.settings.Snapshot()
	if snap.Stats.BlockedToday != 1 {
		t.Fatalf("blockedToday = %d, want 1", snap.Stats.BlockedToday)
	}

	f.settings.SetClock(func() time.Time { return day1.AddDate(0, 0, 1) })
	snap, err := f.settings.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Stats.BlockedToday != 0 {
		t.Errorf("blockedToday = %d after day rollover, want 0", snap.Stats.BlockedToday)
	}
	if snap.Stats.BlockedTotal != 1 {
		t.Errorf("blockedTotal = %d, want 1", snap.Stats.BlockedTotal)
	}

	// The reset is persisted, not recomputed per reader.
	snap, _ = f.settings.Snapshot()
	if snap.Stats.BlockedToday != 0 {
		t.Error("reset should be stable across snapshots")
	}
}

func TestLogListClearAndPrune(t *testing.T) {
	f := newFixture(t)

	old := &models.BlockEvent{AgentID: "a", Platform: "youtube", Action: "hide", URL: "u", CreatedAt: time.Now().AddDate(0, 0, -90)}
	if err := f.blockRepo.Create(old); err != nil {
		t.Fatal(err)
	}
	fresh := &models.BlockEvent{AgentID: "a", Platform: "youtube", Action: "hide", URL: "u", CreatedAt: time.Now()}
	if err := f.blockRepo.Create(fresh); err != nil {
		t.Fatal(err)
	}

	events, err := f.logs.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("have %d events, want 2", len(events))
	}
	if events[0].ID != fresh.ID {
		t.Error("list should be newest first")
	}

	// Default retention is 30 days; only the old event goes.
	if err := f.logs.Prune(); err != nil {
		t.Fatalf("prune: %v", err)
	}
	events, _ = f.logs.List(0)
	if len(events) != 1 || events[0].ID != fresh.ID {
		t.Fatalf("after prune: %+v, want only the fresh event", events)
	}

	if err := f.logs.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	events, _ = f.logs.List(0)
	if len(events) != 0 {
		t.Errorf("after clear: %d events, want 0", len(events))
	}
}

func TestFocusSessions(t *testing.T) {
	f := newFixture(t)

	active, err := f.focus.Active()
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Fatal("no session should be active initially")
	}

	if _, err := f.focus.Start("nap", 10); err != ErrInvalidInput {
		t.Errorf("bad kind: err = %v, want ErrInvalidInput", err)
	}

	sess, err := f.focus.Start(SessionPomodoro, 25)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.EndsAt == nil {
		t.Error("timed session should have an end")
	}
	if active, _ = f.focus.Active(); !active {
		t.Error("session should be active after start")
	}

	// Starting a new session supersedes the previous one.
	if _, err := f.focus.Start(SessionFocus, 0); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if active, _ = f.focus.Active(); !active {
		t.Error("superseding session should be active")
	}

	if err := f.focus.Cancel(SessionFocus); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if active, _ = f.focus.Active(); active {
		t.Error("session should be inactive after cancel")
	}
}

func TestExpiredTimedSessionReportsInactive(t *testing.T) {
	f := newFixture(t)
	sess, err := f.focus.Start(SessionPomodoro, 25)
	if err != nil {
		t.Fatal(err)
	}

	past := time.Now().Add(-time.Minute)
	if err := f.db.Model(&models.FocusSession{}).Where("id = ?", sess.ID).
		Update("ends_at", &past).Error; err != nil {
		t.Fatalf("expire session: %v", err)
	}

	active, err := f.focus.Active()
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active {
		t.Error("expired timed session should report inactive")
	}
	// Expiry also clears the active flag so later checks skip the row.
	var row models.FocusSession
	if err := f.db.First(&row, sess.ID).Error; err != nil {
		t.Fatal(err)
	}
	if row.Active {
		t.Error("expired session should be deactivated in storage")
	}
}
