package index

import (
	"log/slog"

	"github.com/starford/dagaz/internal/storage"
)

// Sync brings the index in line with the store: every event in both
// partitions is upserted and rows whose records no longer exist are dropped.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	known, err := db.AllUIDs()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(known))
	for _, part := range []storage.Partition{storage.Active, storage.Archive} {
		events, warnings, err := store.List(part)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			logger.Warn("sync: skipped record", slog.String("reason", w))
		}
		for _, ev := range events {
			row := EventRow{
				UID:      ev.UID,
				Alias:    ev.Alias,
				Calendar: ev.Calendar,
				Start:    ev.Start,
				Updated:  ev.Updated,
				Archived: part == storage.Archive,
			}
			if err := db.UpsertEvent(row); err != nil {
				logger.Warn("sync: upsert failed",
					slog.String("uid", ev.UID), slog.String("error", err.Error()))
				continue
			}
			seen[ev.UID] = struct{}{}
		}
	}

	// Remove stale entries.
	for uid := range known {
		if _, ok := seen[uid]; !ok {
			if err := db.DeleteEvent(uid); err != nil {
				logger.Warn("sync: delete failed",
					slog.String("uid", uid), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("uid", uid))
			}
		}
	}
	return nil
}
