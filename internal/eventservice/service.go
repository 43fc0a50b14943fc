// Package eventservice coordinates the event store, the lookup index, and
// the recurrence/query core behind every user-facing operation.
package eventservice

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/query"
	"github.com/starford/dagaz/internal/recur"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/window"
)

// Settings carries the calendar configuration the core consumes.
type Settings struct {
	FirstWeekday    int           // 0=Monday..6=Sunday
	RecurrenceLimit int           // safety ceiling per expansion
	DefaultDuration time.Duration // event length when no end is given
	DefaultCalendar string        // calendar for events created without one
	DefaultReminder string        // reminder spec applied when none is given
	UserName        string
	UserEmail       string
}

// Matches is an ordered result set plus the truncation flag so callers can
// warn when the recurrence ceiling cut generation short.
type Matches struct {
	Occurrences []models.Occurrence
	Truncated   bool
}

// Service answers queries against an immutable snapshot of the active event
// set and applies mutations through the store.
type Service struct {
	store    storage.Provider
	idx      *index.DB
	logger   *slog.Logger
	settings Settings
	now      func() time.Time

	mu     sync.RWMutex
	active []*models.Event
	byUID  map[string]*models.Event
}

// New builds a service and loads the initial snapshot.
func New(store storage.Provider, idx *index.DB, logger *slog.Logger, settings Settings) (*Service, error) {
	if settings.RecurrenceLimit <= 0 {
		settings.RecurrenceLimit = recur.DefaultLimit
	}
	if settings.DefaultDuration <= 0 {
		settings.DefaultDuration = time.Hour
	}
	if settings.DefaultCalendar == "" {
		settings.DefaultCalendar = "default"
	}
	s := &Service{
		store:    store,
		idx:      idx,
		logger:   logger,
		settings: settings,
		now:      time.Now,
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh reloads the active snapshot from the store and re-syncs the index.
func (s *Service) Refresh() error {
	events, warnings, err := s.store.List(storage.Active)
	if err != nil {
		return fmt.Errorf("eventservice: refresh: %w", err)
	}
	for _, w := range warnings {
		s.logger.Warn("refresh: skipped record", slog.String("reason", w))
	}
	if err := index.Sync(s.idx, s.store, s.logger); err != nil {
		return fmt.Errorf("eventservice: sync index: %w", err)
	}

	byUID := make(map[string]*models.Event, len(events))
	for _, ev := range events {
		byUID[ev.UID] = ev
	}

	s.mu.Lock()
	s.active = events
	s.byUID = byUID
	s.mu.Unlock()
	return nil
}

// Snapshot returns the current active event set, ordered by start.
func (s *Service) Snapshot() []*models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Event, len(s.active))
	copy(out, s.active)
	return out
}

// Get resolves an alias against the active partition.
func (s *Service) Get(alias string) (*models.Event, error) {
	uid, err := s.idx.UIDByAlias(strings.ToLower(strings.TrimSpace(alias)))
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	ev, ok := s.byUID[uid]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("eventservice: stale index row for %s", uid)
	}
	return ev, nil
}

// GetAll resolves several aliases at once; any miss fails the whole lookup.
func (s *Service) GetAll(aliases []string) ([]*models.Event, error) {
	out := make([]*models.Event, 0, len(aliases))
	for _, alias := range aliases {
		ev, err := s.Get(alias)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// Occurrences expands the given events over win in chronological order.
// A stored rule that no longer parses degrades to the event's own base
// occurrence rather than failing the whole query.
func (s *Service) Occurrences(events []*models.Event, win window.Window) Matches {
	opts := recur.Options{Limit: s.settings.RecurrenceLimit, FirstWeekday: s.settings.FirstWeekday}
	var m Matches
	for _, ev := range events {
		x, err := recur.Expand(ev, win, opts)
		if err != nil {
			s.logger.Warn("expand: bad stored rule",
				slog.String("alias", ev.Alias), slog.String("error", err.Error()))
			if win.Overlaps(ev.Start, ev.End) {
				m.Occurrences = append(m.Occurrences, models.Occurrence{Event: ev, Start: ev.Start, End: ev.End})
			}
			continue
		}
		if x.Truncated {
			s.logger.Warn("expand: recurrence ceiling reached",
				slog.String("alias", ev.Alias),
				slog.Int("limit", s.settings.RecurrenceLimit))
			m.Truncated = true
		}
		m.Occurrences = append(m.Occurrences, x.Occurrences...)
	}
	query.Sort(m.Occurrences)
	return m
}

// List resolves a view into a window and returns the occurrences inside it.
// The agenda view additionally keeps only occurrences that have not yet
// elapsed relative to the reference instant.
func (s *Service) List(view, customStart, customEnd, calendar string) (Matches, error) {
	now := s.now()
	win, err := window.Resolve(view, now, customStart, customEnd, s.settings.FirstWeekday)
	if err != nil {
		return Matches{}, err
	}
	m := s.Occurrences(s.Snapshot(), win)

	agenda := strings.EqualFold(strings.TrimSpace(view), window.ViewAgenda)
	calendar = strings.ToLower(strings.TrimSpace(calendar))
	if agenda || calendar != "" {
		kept := m.Occurrences[:0]
		for _, occ := range m.Occurrences {
			if agenda && elapsed(occ, now) {
				continue
			}
			if calendar != "" && occ.Event.Calendar != calendar {
				continue
			}
			kept = append(kept, occ)
		}
		m.Occurrences = kept
	}
	return m, nil
}

// Search parses a filter expression and matches it against the event set.
// With expand set, every occurrence of recurring events is considered;
// otherwise each event is matched once, recurring events at their next
// occurrence at or after now and the rest at their own (start, end).
func (s *Service) Search(term string, expand, includeArchived bool) (Matches, error) {
	filter, err := query.Parse(term)
	if err != nil {
		return Matches{}, err
	}

	events := s.Snapshot()
	if includeArchived {
		archived, warnings, err := s.store.List(storage.Archive)
		if err != nil {
			return Matches{}, err
		}
		for _, w := range warnings {
			s.logger.Warn("search: skipped archived record", slog.String("reason", w))
		}
		events = append(events, archived...)
	}

	now := s.now()
	var m Matches
	if expand {
		m = s.Occurrences(events, s.wideWindow(now))
	} else {
		opts := recur.Options{Limit: s.settings.RecurrenceLimit, FirstWeekday: s.settings.FirstWeekday}
		for _, ev := range events {
			occ := models.Occurrence{Event: ev, Start: ev.Start, End: ev.End}
			if ev.RRule != "" {
				// Recurring events are represented by their upcoming
				// occurrence; an exhausted or broken rule keeps the base.
				if next, ok, err := recur.Next(ev, now, opts); err != nil {
					s.logger.Warn("search: bad stored rule",
						slog.String("alias", ev.Alias), slog.String("error", err.Error()))
				} else if ok {
					occ = next
				}
			}
			m.Occurrences = append(m.Occurrences, occ)
		}
		query.Sort(m.Occurrences)
	}

	matcher := query.Matcher{Now: now}
	kept := m.Occurrences[:0]
	for _, occ := range m.Occurrences {
		if matcher.Match(occ, filter) {
			kept = append(kept, occ)
		}
	}
	m.Occurrences = kept
	return m, nil
}

// Query runs Search and projects the matches onto the selected fields.
func (s *Service) Query(term string, fields []string, recur bool) (query.Projection, bool, error) {
	m, err := s.Search(term, recur, false)
	if err != nil {
		return query.Projection{}, false, err
	}
	return query.Project(m.Occurrences, fields), m.Truncated, nil
}

// QueryRecords runs Search and returns full JSON records.
func (s *Service) QueryRecords(term string, recur bool) ([]query.Record, bool, error) {
	m, err := s.Search(term, recur, false)
	if err != nil {
		return nil, false, err
	}
	return query.Records(m.Occurrences), m.Truncated, nil
}

// FreeBusy resolves a relative interval and returns the busy (start, end)
// pairs inside it. An empty interval defaults to the next seven days.
func (s *Service) FreeBusy(interval string) (window.Window, []window.Window, error) {
	if strings.TrimSpace(interval) == "" {
		interval = "7d"
	}
	win, err := window.ParseInterval(interval, s.now())
	if err != nil {
		return window.Window{}, nil, err
	}
	m := s.Occurrences(s.Snapshot(), win)
	busy := make([]window.Window, 0, len(m.Occurrences))
	for _, occ := range m.Occurrences {
		end := occ.End
		if end.IsZero() {
			end = occ.Start
		}
		busy = append(busy, window.Window{Start: occ.Start, End: end})
	}
	return win, busy, nil
}

// wideWindow bounds "all occurrences" computations; the recurrence ceiling
// keeps the expansion finite regardless.
func (s *Service) wideWindow(now time.Time) window.Window {
	return window.Window{
		Start: time.Date(1969, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   now.AddDate(50, 0, 0),
	}
}

// elapsed reports whether an occurrence is already over at ref, judged by
// its end, or its start when no end is set.
func elapsed(occ models.Occurrence, ref time.Time) bool {
	t := occ.End
	if t.IsZero() {
		t = occ.Start
	}
	return t.Before(ref)
}
