package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

const archiveDir = "archive"

// eventFile is the on-disk shape: one YAML document with a single top-level
// "event" mapping.
type eventFile struct {
	Event *models.Event `yaml:"event"`
}

// FS implements Provider backed by a directory of <uid>.yml files with an
// archive/ subdirectory for the archived partition.
type FS struct {
	root string
}

// NewFS creates a provider rooted at dir, creating the data and archive
// directories when missing.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, archiveDir), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dirs: %w", err)
	}
	return &FS{root: abs}, nil
}

func (f *FS) partitionDir(p Partition) string {
	if p == Archive {
		return filepath.Join(f.root, archiveDir)
	}
	return f.root
}

func (f *FS) eventPath(uid string, p Partition) string {
	return filepath.Join(f.partitionDir(p), uid+".yml")
}

// List reads every .yml record in the partition. Records with duplicate
// uids or aliases, or without a usable start, are skipped with a warning;
// one bad file never fails the whole load.
func (f *FS) List(p Partition) ([]*models.Event, []string, error) {
	entries, err := os.ReadDir(f.partitionDir(p))
	if err != nil {
		return nil, nil, fmt.Errorf("storage: list %s: %w", p, err)
	}

	var (
		events   []*models.Event
		warnings []string
		seenUID  = make(map[string]string)
		seenAli  = make(map[string]string)
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		path := filepath.Join(f.partitionDir(p), entry.Name())
		ev, err := readEventFile(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v - skipping", path, err))
			continue
		}
		if prev, dup := seenUID[ev.UID]; dup {
			warnings = append(warnings, fmt.Sprintf("%s: duplicate uid %s (already in %s) - skipping", path, ev.UID, prev))
			continue
		}
		if prev, dup := seenAli[ev.Alias]; dup {
			warnings = append(warnings, fmt.Sprintf("%s: duplicate alias %s (already in %s) - skipping", path, ev.Alias, prev))
			continue
		}
		seenUID[ev.UID] = path
		seenAli[ev.Alias] = path
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, warnings, nil
}

// Read loads a single event record by uid.
func (f *FS) Read(uid string, p Partition) (*models.Event, error) {
	ev, err := readEventFile(f.eventPath(uid, p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: event %s: %w", uid, apperr.ErrNotFound)
		}
		return nil, err
	}
	return ev, nil
}

// Write atomically persists an active event: tmp file, fsync, rename.
func (f *FS) Write(ev *models.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("storage: validate event: %w", err)
	}
	data, err := yaml.Marshal(eventFile{Event: ev})
	if err != nil {
		return fmt.Errorf("storage: encode event %s: %w", ev.UID, err)
	}

	dest := f.eventPath(ev.UID, Active)
	tmp, err := os.CreateTemp(f.root, ".dagaz-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes an active record.
func (f *FS) Delete(uid string) error {
	if err := os.Remove(f.eventPath(uid, Active)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: event %s: %w", uid, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", uid, err)
	}
	return nil
}

// MoveToArchive moves an active record into the archive partition, where it
// is excluded from active queries.
func (f *FS) MoveToArchive(uid string) error {
	src := f.eventPath(uid, Active)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: event %s: %w", uid, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: stat %s: %w", uid, err)
	}
	if err := os.Rename(src, f.eventPath(uid, Archive)); err != nil {
		return fmt.Errorf("storage: archive %s: %w", uid, err)
	}
	return nil
}

// Root returns the active partition directory (the watch root).
func (f *FS) Root() string { return f.root }

func readEventFile(path string) (*models.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ef eventFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if ef.Event == nil {
		return nil, errors.New("no event data")
	}
	ev := ef.Event
	if ev.UID == "" || ev.Alias == "" {
		return nil, errors.New("missing uid and/or alias")
	}
	if ev.Start.IsZero() {
		return nil, errors.New("missing or invalid start")
	}
	ev.Alias = strings.ToLower(ev.Alias)
	if ev.Calendar != "" {
		ev.Calendar = strings.ToLower(ev.Calendar)
	}
	return ev, nil
}
