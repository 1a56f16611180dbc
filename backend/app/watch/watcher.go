// Package watch reloads the exported settings file when the external options
// surface rewrites it, feeding validated snapshots back into the authority.
package watch

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"shortsguard/backend/app/controllers"
	"shortsguard/backend/app/services"
	"shortsguard/backend/global"
	"shortsguard/internal/settings"
)

// SettingsWatcher watches one settings file. Malformed content is logged and
// ignored; the stored settings stay untouched.
type SettingsWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	settings *services.SettingsService
	ctrl     *controllers.ProtocolController

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates a watcher for path. The parent directory is watched so editors
// that replace the file atomically are still observed.
func New(path string, svc *services.SettingsService, ctrl *controllers.ProtocolController) (*SettingsWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	sw := &SettingsWatcher{
		path:     abs,
		watcher:  w,
		settings: svc,
		ctrl:     ctrl,
		stop:     make(chan struct{}),
	}
	sw.wg.Add(1)
	go sw.run()
	return sw, nil
}

func (sw *SettingsWatcher) run() {
	defer sw.wg.Done()
	for {
		select {
		case <-sw.stop:
			return
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != sw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			sw.reload()
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			global.Logger.Warn().Err(err).Msg("settings watcher error")
		}
	}
}

func (sw *SettingsWatcher) reload() {
	b, err := os.ReadFile(sw.path)
	if err != nil {
		global.Logger.Warn().Err(err).Str("path", sw.path).Msg("settings file unreadable, keeping stored settings")
		return
	}
	incoming, err := settings.FromJSON(b)
	if err != nil {
		global.Logger.Warn().Err(err).Str("path", sw.path).Msg("settings file malformed, keeping stored settings")
		return
	}
	snap, err := sw.settings.Update(incoming)
	if err != nil {
		global.Logger.Error().Err(err).Msg("settings file apply failed")
		return
	}
	global.Logger.Info().Str("path", sw.path).Msg("settings reloaded from file")
	sw.ctrl.BroadcastSnapshot(snap)
}

// Close stops watching.
func (sw *SettingsWatcher) Close() {
	sw.once.Do(func() {
		close(sw.stop)
		sw.watcher.Close()
		sw.wg.Wait()
	})
}
