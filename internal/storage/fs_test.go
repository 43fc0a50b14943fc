package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func storedEvent(uid, alias string, start time.Time) *models.Event {
	return &models.Event{
		UID:         uid,
		Alias:       alias,
		Calendar:    "default",
		Description: "meeting",
		Start:       start,
		End:         start.Add(time.Hour),
	}
}

var baseStart = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func TestWriteAndRead(t *testing.T) {
	s := tempStore(t)
	ev := storedEvent("uid-1", "ab12", baseStart)
	if err := s.Write(ev); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("uid-1", Active)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Alias != "ab12" || got.Description != "meeting" {
		t.Errorf("event = %+v", got)
	}
	if !got.Start.Equal(ev.Start) {
		t.Errorf("start = %v, want %v", got.Start, ev.Start)
	}
}

func TestWriteRejectsInvalid(t *testing.T) {
	s := tempStore(t)
	ev := storedEvent("uid-1", "ab12", baseStart)
	ev.End = ev.Start.Add(-time.Hour)
	if err := s.Write(ev); err == nil {
		t.Fatal("end before start should fail validation")
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := tempStore(t)
	if err := s.Write(storedEvent("uid-1", "ab12", baseStart)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".dagaz-tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestReadMissing(t *testing.T) {
	s := tempStore(t)
	if _, err := s.Read("nope", Active); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListSortsByStart(t *testing.T) {
	s := tempStore(t)
	_ = s.Write(storedEvent("uid-2", "bb22", baseStart.Add(2*time.Hour)))
	_ = s.Write(storedEvent("uid-1", "aa11", baseStart))

	events, warnings, err := s.List(Active)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if len(events) != 2 || events[0].UID != "uid-1" {
		t.Errorf("order = %v", events)
	}
}

func TestListSkipsDuplicateAlias(t *testing.T) {
	s := tempStore(t)
	_ = s.Write(storedEvent("uid-1", "same", baseStart))
	_ = s.Write(storedEvent("uid-2", "same", baseStart.Add(time.Hour)))

	events, warnings, err := s.List(Active)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "duplicate alias") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestListSkipsBrokenRecords(t *testing.T) {
	s := tempStore(t)
	_ = s.Write(storedEvent("uid-1", "aa11", baseStart))
	if err := os.WriteFile(filepath.Join(s.Root(), "junk.yml"), []byte("{unclosed"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.Root(), "empty.yml"), []byte("event:\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	events, warnings, err := s.List(Active)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}
	if len(warnings) != 2 {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestListNormalizesCase(t *testing.T) {
	s := tempStore(t)
	ev := storedEvent("uid-1", "AB12", baseStart)
	ev.Calendar = "Work"
	if err := s.Write(ev); err != nil {
		t.Fatalf("Write: %v", err)
	}
	events, _, err := s.List(Active)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if events[0].Alias != "ab12" || events[0].Calendar != "work" {
		t.Errorf("alias = %q, calendar = %q", events[0].Alias, events[0].Calendar)
	}
}

func TestMoveToArchive(t *testing.T) {
	s := tempStore(t)
	_ = s.Write(storedEvent("uid-1", "aa11", baseStart))
	if err := s.MoveToArchive("uid-1"); err != nil {
		t.Fatalf("MoveToArchive: %v", err)
	}

	active, _, _ := s.List(Active)
	if len(active) != 0 {
		t.Errorf("active = %d, want 0", len(active))
	}
	archived, _, _ := s.List(Archive)
	if len(archived) != 1 {
		t.Errorf("archived = %d, want 1", len(archived))
	}
	if _, err := s.Read("uid-1", Archive); err != nil {
		t.Errorf("Read archived: %v", err)
	}
}

func TestMoveToArchiveMissing(t *testing.T) {
	s := tempStore(t)
	if err := s.MoveToArchive("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	_ = s.Write(storedEvent("uid-1", "aa11", baseStart))
	if err := s.Delete("uid-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("uid-1", Active); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.Delete("uid-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
