package eventservice

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/recur"
	"github.com/starford/dagaz/internal/timestr"
)

const aliasChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// EventParams carries the caller-supplied fields for create and modify
// operations. String fields left empty are not applied on modify.
type EventParams struct {
	Calendar    string
	Description string
	Location    string
	Start       string
	End         string // datetime, or duration expression relative to start (+1h30m)
	RRule       string
	Notes       string
	Tags        []string
	Reminders   []models.Reminder
	Organizer   *models.Organizer
	Attendees   []models.Attendee
	Attachments []string
}

// Create assigns uid, alias and timestamps, fills defaults, validates, and
// persists a new event.
func (s *Service) Create(p EventParams) (*models.Event, error) {
	now := s.now()
	alias, err := s.genAlias()
	if err != nil {
		return nil, err
	}

	ev := &models.Event{
		UID:         uuid.NewString(),
		Alias:       alias,
		Created:     now,
		Updated:     now,
		Calendar:    s.settings.DefaultCalendar,
		Description: "New event",
		Location:    p.Location,
		Notes:       p.Notes,
		Organizer:   p.Organizer,
		Attachments: p.Attachments,
	}
	if p.Calendar != "" {
		ev.Calendar = strings.ToLower(p.Calendar)
	}
	if p.Description != "" {
		ev.Description = p.Description
	}

	start, ok := timestr.Parse(p.Start, time.Local)
	if !ok {
		return nil, errors.New("eventservice: event requires a start date[time]")
	}
	ev.Start = start

	end, err := s.resolveEnd(start, p.End)
	if err != nil {
		return nil, err
	}
	ev.End = end

	if p.RRule != "" {
		norm, err := normalizeRule(p.RRule)
		if err != nil {
			return nil, err
		}
		ev.RRule = norm
	}

	ev.Tags = normalizeTags(p.Tags)
	ev.Reminders = normalizeReminders(p.Reminders)
	if len(ev.Reminders) == 0 && s.settings.DefaultReminder != "" {
		ev.Reminders = []models.Reminder{{
			Remind: s.settings.DefaultReminder,
			Notify: models.NotifyDisplay,
		}}
	}
	ev.Attendees = dropOrganizer(p.Attendees, p.Organizer)

	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Write(ev); err != nil {
		return nil, err
	}
	return ev, s.Refresh()
}

// Modify applies the non-empty fields of p to the event behind alias and
// refreshes its updated timestamp.
func (s *Service) Modify(alias string, p EventParams) (*models.Event, error) {
	cur, err := s.Get(alias)
	if err != nil {
		return nil, err
	}
	ev := *cur // mutate a copy; the snapshot stays immutable

	if p.Calendar != "" {
		ev.Calendar = strings.ToLower(p.Calendar)
	}
	if p.Description != "" {
		ev.Description = p.Description
	}
	if p.Location != "" {
		ev.Location = p.Location
	}
	if p.Start != "" {
		start, ok := timestr.Parse(p.Start, ev.Start.Location())
		if !ok {
			return nil, fmt.Errorf("eventservice: unparsable start %q", p.Start)
		}
		ev.Start = start
	}
	if p.End != "" {
		end, err := s.resolveEnd(ev.Start, p.End)
		if err != nil {
			return nil, err
		}
		ev.End = end
	}
	if p.RRule != "" {
		norm, err := normalizeRule(p.RRule)
		if err != nil {
			return nil, err
		}
		ev.RRule = norm
	}
	if p.Notes != "" {
		ev.Notes = p.Notes
	}
	if p.Tags != nil {
		ev.Tags = normalizeTags(p.Tags)
	}
	if p.Reminders != nil {
		ev.Reminders = normalizeReminders(p.Reminders)
	}
	if p.Organizer != nil {
		ev.Organizer = p.Organizer
	}
	if p.Attendees != nil {
		ev.Attendees = dropOrganizer(p.Attendees, ev.Organizer)
	}
	if p.Attachments != nil {
		ev.Attachments = p.Attachments
	}

	ev.Updated = s.now()
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Write(&ev); err != nil {
		return nil, err
	}
	return &ev, s.Refresh()
}

// unsettable lists the fields the unset operation may clear.
var unsettable = map[string]bool{
	"calendar":    true,
	"location":    true,
	"tags":        true,
	"rrule":       true,
	"reminders":   true,
	"organizer":   true,
	"attendees":   true,
	"attachments": true,
}

// Unset clears one optional field on the event behind alias.
func (s *Service) Unset(alias, field string) error {
	field = strings.ToLower(strings.TrimSpace(field))
	if !unsettable[field] {
		return fmt.Errorf("eventservice: cannot clear field %q", field)
	}
	cur, err := s.Get(alias)
	if err != nil {
		return err
	}
	ev := *cur

	switch field {
	case "calendar":
		ev.Calendar = ""
	case "location":
		ev.Location = ""
	case "tags":
		ev.Tags = nil
	case "rrule":
		ev.RRule = ""
	case "reminders":
		ev.Reminders = nil
	case "organizer":
		ev.Organizer = nil
	case "attendees":
		ev.Attendees = nil
	case "attachments":
		ev.Attachments = nil
	}

	ev.Updated = s.now()
	if err := s.store.Write(&ev); err != nil {
		return err
	}
	return s.Refresh()
}

// Attend updates the participation status of one attendee of the event
// behind alias. The identifier matches as a case-insensitive substring of
// the attendee email, falling back to the name for address-less entries.
func (s *Service) Attend(alias, identifier, status string) error {
	st, ok := attendStatus(status)
	if !ok {
		return fmt.Errorf("eventservice: status %q, want accepted, declined or tentative", status)
	}
	ident := strings.ToLower(strings.TrimSpace(identifier))
	if ident == "" {
		return errors.New("eventservice: attendee identifier required")
	}

	cur, err := s.Get(alias)
	if err != nil {
		return err
	}
	ev := *cur
	ev.Attendees = append([]models.Attendee(nil), cur.Attendees...)

	matched := -1
	for i, a := range ev.Attendees {
		if a.Email != "" {
			if strings.Contains(strings.ToLower(a.Email), ident) {
				matched = i
				break
			}
			continue
		}
		if strings.Contains(strings.ToLower(a.Name), ident) {
			matched = i
			break
		}
	}
	if matched < 0 {
		return fmt.Errorf("%w: no attendee matching %q", apperr.ErrNotFound, identifier)
	}

	ev.Attendees[matched].Status = st
	ev.Updated = s.now()
	if err := s.store.Write(&ev); err != nil {
		return err
	}
	return s.Refresh()
}

func attendStatus(status string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "accepted":
		return models.StatusAccepted, true
	case "declined":
		return models.StatusDeclined, true
	case "tentative":
		return models.StatusTentative, true
	}
	return "", false
}

// SetNotes replaces the notes of the event behind alias.
func (s *Service) SetNotes(alias, notes string) error {
	cur, err := s.Get(alias)
	if err != nil {
		return err
	}
	ev := *cur
	ev.Notes = notes
	ev.Updated = s.now()
	if err := s.store.Write(&ev); err != nil {
		return err
	}
	return s.Refresh()
}

// ArchiveEvent moves the event behind alias into the archive partition.
func (s *Service) ArchiveEvent(alias string) error {
	ev, err := s.Get(alias)
	if err != nil {
		return err
	}
	if err := s.store.MoveToArchive(ev.UID); err != nil {
		return err
	}
	return s.Refresh()
}

// DeleteEvent removes the event behind alias entirely.
func (s *Service) DeleteEvent(alias string) error {
	ev, err := s.Get(alias)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ev.UID); err != nil {
		return err
	}
	return s.Refresh()
}

// genAlias draws short random aliases until one misses the active set.
func (s *Service) genAlias() (string, error) {
	taken, err := s.idx.ActiveAliases()
	if err != nil {
		return "", err
	}
	for {
		b := make([]byte, 4)
		for i := range b {
			b[i] = aliasChars[rand.Intn(len(aliasChars))]
		}
		alias := string(b)
		if _, dup := taken[alias]; !dup {
			return alias, nil
		}
	}
}

// resolveEnd interprets end as a datetime or as a duration expression
// relative to start; empty falls back to the default duration.
func (s *Service) resolveEnd(start time.Time, end string) (time.Time, error) {
	if end == "" {
		return start.Add(s.settings.DefaultDuration), nil
	}
	if t, ok := timestr.Parse(end, start.Location()); ok {
		if !t.After(start) {
			return time.Time{}, errors.New("eventservice: event end must be after event start")
		}
		return t, nil
	}
	if d, ok := timestr.Span(strings.TrimPrefix(end, "+")); ok && d > 0 {
		return start.Add(d), nil
	}
	return time.Time{}, fmt.Errorf("eventservice: unparsable end %q", end)
}

// normalizeRule validates a recurrence expression and returns its canonical
// lowercase form.
func normalizeRule(expr string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(expr))
	if _, err := recur.Parse(norm, time.Local); err != nil {
		return "", err
	}
	return norm, nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func normalizeReminders(reminders []models.Reminder) []models.Reminder {
	if len(reminders) == 0 {
		return nil
	}
	out := make([]models.Reminder, 0, len(reminders))
	for _, r := range reminders {
		r.Remind = strings.ToLower(strings.TrimSpace(r.Remind))
		r.Notify = strings.ToLower(strings.TrimSpace(r.Notify))
		if r.Remind == "" {
			continue
		}
		if r.Notify != models.NotifyEmail {
			r.Notify = models.NotifyDisplay
		}
		out = append(out, r)
	}
	return out
}

// dropOrganizer filters the organizer's own address out of the attendee
// list; the organizer is implicit.
func dropOrganizer(attendees []models.Attendee, org *models.Organizer) []models.Attendee {
	if len(attendees) == 0 {
		return nil
	}
	out := make([]models.Attendee, 0, len(attendees))
	for _, a := range attendees {
		if org != nil && strings.EqualFold(a.Email, org.Email) {
			continue
		}
		if a.Status == "" {
			a.Status = models.StatusNone
		} else {
			a.Status = strings.ToUpper(a.Status)
		}
		out = append(out, a)
	}
	return out
}
