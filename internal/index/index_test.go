package index

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dagaz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func indexedEvent(uid, alias string) *models.Event {
	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return &models.Event{
		UID:         uid,
		Alias:       alias,
		Calendar:    "default",
		Description: "meeting",
		Start:       start,
		End:         start.Add(time.Hour),
	}
}

func TestUpsertAndLookup(t *testing.T) {
	db := testDB(t)
	row := EventRow{UID: "uid-1", Alias: "ab12", Start: time.Now()}
	if err := db.UpsertEvent(row); err != nil {
		t.Fatalf("UpsertEvent: %v", err)
	}

	uid, err := db.UIDByAlias("ab12")
	if err != nil {
		t.Fatalf("UIDByAlias: %v", err)
	}
	if uid != "uid-1" {
		t.Errorf("uid = %q", uid)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	db := testDB(t)
	row := EventRow{UID: "uid-1", Alias: "ab12"}
	if err := db.UpsertEvent(row); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	row.Alias = "cd34"
	if err := db.UpsertEvent(row); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if _, err := db.UIDByAlias("ab12"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale alias err = %v, want ErrNotFound", err)
	}
	if uid, _ := db.UIDByAlias("cd34"); uid != "uid-1" {
		t.Errorf("uid = %q", uid)
	}
}

func TestLookupIgnoresArchived(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertEvent(EventRow{UID: "uid-1", Alias: "ab12", Archived: true}); err != nil {
		t.Fatalf("UpsertEvent: %v", err)
	}
	if _, err := db.UIDByAlias("ab12"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("archived alias err = %v, want ErrNotFound", err)
	}
	// The same alias may be reused by an active event.
	if err := db.UpsertEvent(EventRow{UID: "uid-2", Alias: "ab12"}); err != nil {
		t.Fatalf("active reuse: %v", err)
	}
	if uid, _ := db.UIDByAlias("ab12"); uid != "uid-2" {
		t.Errorf("uid = %q", uid)
	}
}

func TestActiveAliases(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertEvent(EventRow{UID: "uid-1", Alias: "ab12"})
	_ = db.UpsertEvent(EventRow{UID: "uid-2", Alias: "cd34", Archived: true})

	aliases, err := db.ActiveAliases()
	if err != nil {
		t.Fatalf("ActiveAliases: %v", err)
	}
	if _, ok := aliases["ab12"]; !ok {
		t.Error("active alias missing")
	}
	if _, ok := aliases["cd34"]; ok {
		t.Error("archived alias should be excluded")
	}
}

func TestSyncReconciles(t *testing.T) {
	db := testDB(t)
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	// A stale row whose record never existed on disk.
	_ = db.UpsertEvent(EventRow{UID: "ghost", Alias: "zz99"})

	if err := store.Write(indexedEvent("uid-1", "ab12")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Write(indexedEvent("uid-2", "cd34")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.MoveToArchive("uid-2"); err != nil {
		t.Fatalf("MoveToArchive: %v", err)
	}

	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if uid, err := db.UIDByAlias("ab12"); err != nil || uid != "uid-1" {
		t.Errorf("active lookup = %q, %v", uid, err)
	}
	if _, err := db.UIDByAlias("cd34"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("archived lookup err = %v, want ErrNotFound", err)
	}
	if _, err := db.UIDByAlias("zz99"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale lookup err = %v, want ErrNotFound", err)
	}

	uids, err := db.AllUIDs()
	if err != nil {
		t.Fatalf("AllUIDs: %v", err)
	}
	if len(uids) != 2 {
		t.Errorf("uids = %v", uids)
	}
}
