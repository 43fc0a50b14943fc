package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// refreshDelay debounces bursts of file events (editors write-then-rename)
// into a single refresh.
const refreshDelay = 200 * time.Millisecond

// Watch observes the event data directory (and its archive subdirectory)
// and invokes onChange after each settled batch of .yml changes, until ctx
// is cancelled. Callers typically re-sync the index and reload their event
// snapshot in onChange.
func Watch(ctx context.Context, dataDir string, logger *slog.Logger, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, dir := range []string{dataDir, filepath.Join(dataDir, "archive")} {
		if err := w.Add(dir); err != nil {
			return err
		}
	}
	logger.Info("watcher: started", slog.String("root", dataDir))

	var refreshTimer *time.Timer
	var refreshCh <-chan time.Time

	scheduleRefresh := func() {
		if refreshTimer == nil {
			refreshTimer = time.NewTimer(refreshDelay)
			refreshCh = refreshTimer.C
		} else {
			refreshTimer.Reset(refreshDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if refreshTimer != nil {
				refreshTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-refreshCh:
			if onChange != nil {
				onChange()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".yml") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watcher: change",
				slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			scheduleRefresh()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}
