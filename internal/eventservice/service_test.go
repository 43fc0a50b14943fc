package eventservice

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/testutil"
	"github.com/starford/dagaz/internal/timestr"
	"github.com/starford/dagaz/internal/window"
)

func testService(t *testing.T) *Service {
	t.Helper()
	_, store := testutil.TestStore(t)
	db := testutil.TestDB(t)
	svc, err := New(store, db, testutil.Logger(), Settings{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func mustCreate(t *testing.T, svc *Service, p EventParams) *models.Event {
	t.Helper()
	ev, err := svc.Create(p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return ev
}

func stamp(t time.Time) string { return timestr.Format(t) }

func TestCreateDefaults(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	ev := mustCreate(t, svc, EventParams{Start: stamp(start)})
	if ev.UID == "" {
		t.Error("uid not assigned")
	}
	if len(ev.Alias) != 4 {
		t.Errorf("alias = %q, want 4 chars", ev.Alias)
	}
	if ev.Calendar != "default" || ev.Description != "New event" {
		t.Errorf("defaults = %q, %q", ev.Calendar, ev.Description)
	}
	if got := ev.End.Sub(ev.Start); got != time.Hour {
		t.Errorf("default duration = %v", got)
	}
}

func TestCreateNormalizes(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	ev := mustCreate(t, svc, EventParams{
		Start:    stamp(start),
		Calendar: "Work",
		Tags:     []string{"Zeta", "alpha", "ZETA", " "},
	})
	if ev.Calendar != "work" {
		t.Errorf("calendar = %q", ev.Calendar)
	}
	if len(ev.Tags) != 2 || ev.Tags[0] != "alpha" || ev.Tags[1] != "zeta" {
		t.Errorf("tags = %v, want deduped sorted lowercase", ev.Tags)
	}
}

func TestCreateRelativeEnd(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	ev := mustCreate(t, svc, EventParams{Start: stamp(start), End: "+1h30m"})
	if got := ev.End.Sub(ev.Start); got != 90*time.Minute {
		t.Errorf("duration = %v", got)
	}
}

func TestCreateEndBeforeStart(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	_, err := svc.Create(EventParams{Start: stamp(start), End: stamp(start.Add(-time.Hour))})
	if err == nil {
		t.Fatal("end before start should fail")
	}
}

func TestCreateRequiresStart(t *testing.T) {
	svc := testService(t)
	if _, err := svc.Create(EventParams{Description: "no start"}); err == nil {
		t.Fatal("missing start should fail")
	}
}

func TestCreateRejectsBadRule(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	_, err := svc.Create(EventParams{Start: stamp(start), RRule: "freq=sometimes"})
	if !errors.Is(err, apperr.ErrInvalidRule) {
		t.Errorf("err = %v, want ErrInvalidRule", err)
	}
}

func TestGetByAlias(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	created := mustCreate(t, svc, EventParams{Start: stamp(start), Description: "review"})

	got, err := svc.Get(strings.ToUpper(created.Alias))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UID != created.UID {
		t.Errorf("uid = %q, want %q", got.UID, created.UID)
	}

	if _, err := svc.Get("none"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown alias err = %v, want ErrNotFound", err)
	}
}

func TestModify(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	created := mustCreate(t, svc, EventParams{Start: stamp(start), Description: "review"})

	modified, err := svc.Modify(created.Alias, EventParams{Location: "Room 4", Tags: []string{"ops"}})
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if modified.Location != "Room 4" || modified.Description != "review" {
		t.Errorf("event = %+v", modified)
	}
	if !modified.Updated.After(created.Updated) && !modified.Updated.Equal(created.Updated) {
		t.Errorf("updated not refreshed: %v", modified.Updated)
	}

	got, err := svc.Get(created.Alias)
	if err != nil {
		t.Fatalf("Get after modify: %v", err)
	}
	if got.Location != "Room 4" {
		t.Errorf("persisted location = %q", got.Location)
	}
}

func TestUnset(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	created := mustCreate(t, svc, EventParams{Start: stamp(start), Location: "Room 4"})

	if err := svc.Unset(created.Alias, "location"); err != nil {
		t.Fatalf("Unset: %v", err)
	}
	got, _ := svc.Get(created.Alias)
	if got.Location != "" {
		t.Errorf("location = %q, want cleared", got.Location)
	}

	if err := svc.Unset(created.Alias, "start"); err == nil {
		t.Error("start must not be unsettable")
	}
	if err := svc.Unset(created.Alias, "description"); err == nil {
		t.Error("description must not be unsettable")
	}
}

func TestArchiveExcludesFromActive(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	created := mustCreate(t, svc, EventParams{Start: stamp(start), Description: "retro"})

	if err := svc.ArchiveEvent(created.Alias); err != nil {
		t.Fatalf("ArchiveEvent: %v", err)
	}
	if _, err := svc.Get(created.Alias); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("archived alias err = %v, want ErrNotFound", err)
	}

	m, err := svc.Search("retro", true, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(m.Occurrences) != 0 {
		t.Errorf("active search found %d, want 0", len(m.Occurrences))
	}

	m, err = svc.Search("retro", true, true)
	if err != nil {
		t.Fatalf("Search all: %v", err)
	}
	if len(m.Occurrences) != 1 {
		t.Errorf("archived search found %d, want 1", len(m.Occurrences))
	}
}

func TestDeleteEvent(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	created := mustCreate(t, svc, EventParams{Start: stamp(start)})

	if err := svc.DeleteEvent(created.Alias); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if _, err := svc.Get(created.Alias); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListTodayAndAgenda(t *testing.T) {
	svc := testService(t)
	now := time.Now()
	earlier := now.Add(-2 * time.Hour)
	later := now.Add(2 * time.Hour)

	// Skip the test window around midnight where "today" cannot hold both.
	if earlier.Day() != now.Day() || later.Day() != now.Day() {
		t.Skip("too close to midnight for a stable today window")
	}

	mustCreate(t, svc, EventParams{Start: stamp(earlier), End: "+30m", Description: "past"})
	mustCreate(t, svc, EventParams{Start: stamp(later), End: "+30m", Description: "future"})

	today, err := svc.List(window.ViewToday, "", "", "")
	if err != nil {
		t.Fatalf("List today: %v", err)
	}
	if len(today.Occurrences) != 2 {
		t.Errorf("today = %d, want 2", len(today.Occurrences))
	}

	agenda, err := svc.List(window.ViewAgenda, "", "", "")
	if err != nil {
		t.Fatalf("List agenda: %v", err)
	}
	if len(agenda.Occurrences) != 1 || agenda.Occurrences[0].Event.Description != "future" {
		t.Errorf("agenda = %+v, want only the future event", agenda.Occurrences)
	}
}

func TestListCalendarFilter(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(2 * time.Hour)
	if start.Day() != time.Now().Day() {
		t.Skip("too close to midnight for a stable today window")
	}

	mustCreate(t, svc, EventParams{Start: stamp(start), Calendar: "work", Description: "a"})
	mustCreate(t, svc, EventParams{Start: stamp(start), Calendar: "home", Description: "b"})

	m, err := svc.List(window.ViewToday, "", "", "Work")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(m.Occurrences) != 1 || m.Occurrences[0].Event.Calendar != "work" {
		t.Errorf("filtered = %+v", m.Occurrences)
	}
}

func TestSearchExpandsRecurrence(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	mustCreate(t, svc, EventParams{
		Start:       stamp(start),
		Description: "standup",
		RRule:       "freq=daily;count=5",
	})

	m, err := svc.Search("standup", true, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(m.Occurrences) != 5 {
		t.Errorf("occurrences = %d, want 5", len(m.Occurrences))
	}

	base, err := svc.Search("standup", false, false)
	if err != nil {
		t.Fatalf("Search base: %v", err)
	}
	if len(base.Occurrences) != 1 {
		t.Errorf("base occurrences = %d, want 1", len(base.Occurrences))
	}
}

func TestQueryProjection(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	created := mustCreate(t, svc, EventParams{Start: stamp(start), Description: "planning"})

	p, truncated, err := svc.Query("planning", []string{"alias", "description"}, true)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if truncated {
		t.Error("unexpected truncation")
	}
	if len(p.Columns) != 2 || p.Columns[0] != "alias" {
		t.Errorf("columns = %v", p.Columns)
	}
	if len(p.Rows) != 1 || p.Rows[0][0] != created.Alias {
		t.Errorf("rows = %v", p.Rows)
	}
}

func TestFreeBusy(t *testing.T) {
	svc := testService(t)
	inside := time.Now().Add(2 * time.Hour).Truncate(time.Minute)
	outside := time.Now().Add(48 * time.Hour).Truncate(time.Minute)
	mustCreate(t, svc, EventParams{Start: stamp(inside), End: "+1h", Description: "in"})
	mustCreate(t, svc, EventParams{Start: stamp(outside), End: "+1h", Description: "out"})

	win, busy, err := svc.FreeBusy("1d")
	if err != nil {
		t.Fatalf("FreeBusy: %v", err)
	}
	if win.Duration() != 24*time.Hour {
		t.Errorf("window = %v", win.Duration())
	}
	if len(busy) != 1 {
		t.Fatalf("busy = %d, want 1", len(busy))
	}
	if !busy[0].Start.Equal(inside) {
		t.Errorf("busy start = %v, want %v", busy[0].Start, inside)
	}
}

func TestAttendSetsStatus(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	ev := mustCreate(t, svc, EventParams{
		Start: stamp(start),
		Attendees: []models.Attendee{
			{Name: "Ana", Email: "ana@example.com"},
			{Name: "Bo", Email: "bo@example.com"},
		},
	})

	if err := svc.Attend(ev.Alias, "bo@", "accepted"); err != nil {
		t.Fatalf("Attend: %v", err)
	}
	got, err := svc.Get(ev.Alias)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Attendees[1].Status != models.StatusAccepted {
		t.Errorf("status = %q, want %q", got.Attendees[1].Status, models.StatusAccepted)
	}
	if got.Attendees[0].Status != "" {
		t.Errorf("other attendee touched: %q", got.Attendees[0].Status)
	}
}

func TestAttendMatchesNameWithoutEmail(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	ev := mustCreate(t, svc, EventParams{
		Start:     stamp(start),
		Attendees: []models.Attendee{{Name: "Charlie"}},
	})

	if err := svc.Attend(ev.Alias, "charlie", "tentative"); err != nil {
		t.Fatalf("Attend: %v", err)
	}
	got, _ := svc.Get(ev.Alias)
	if got.Attendees[0].Status != models.StatusTentative {
		t.Errorf("status = %q", got.Attendees[0].Status)
	}
}

func TestAttendErrors(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	ev := mustCreate(t, svc, EventParams{
		Start:     stamp(start),
		Attendees: []models.Attendee{{Name: "Ana", Email: "ana@example.com"}},
	})

	if err := svc.Attend(ev.Alias, "ana", "maybe"); err == nil {
		t.Error("unknown status accepted")
	}
	if err := svc.Attend(ev.Alias, "nobody", "declined"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unmatched attendee = %v, want ErrNotFound", err)
	}
	if err := svc.Attend(ev.Alias, "", "declined"); err == nil {
		t.Error("empty identifier accepted")
	}
}

func TestSearchWithoutExpansionUsesNextOccurrence(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(-30 * 24 * time.Hour).Truncate(time.Minute)
	ev := mustCreate(t, svc, EventParams{
		Start:       stamp(start),
		Description: "standup",
		RRule:       "freq=daily",
	})

	m, err := svc.Search("standup", false, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(m.Occurrences) != 1 {
		t.Fatalf("occurrences = %d, want 1", len(m.Occurrences))
	}
	occ := m.Occurrences[0]
	if occ.Event.UID != ev.UID {
		t.Fatalf("uid = %q", occ.Event.UID)
	}
	if occ.Start.Before(time.Now().Add(-24 * time.Hour)) {
		t.Errorf("start = %v, want the upcoming occurrence, not the base %v", occ.Start, ev.Start)
	}
	if !occ.Start.After(ev.Start) {
		t.Errorf("start = %v not advanced past base %v", occ.Start, ev.Start)
	}
}

func TestSearchWithoutExpansionExhaustedRuleKeepsBase(t *testing.T) {
	svc := testService(t)
	start := time.Now().Add(-30 * 24 * time.Hour).Truncate(time.Minute)
	ev := mustCreate(t, svc, EventParams{
		Start:       stamp(start),
		Description: "standup",
		RRule:       "freq=daily;count=3",
	})

	m, err := svc.Search("standup", false, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(m.Occurrences) != 1 {
		t.Fatalf("occurrences = %d, want 1", len(m.Occurrences))
	}
	if !m.Occurrences[0].Start.Equal(ev.Start) {
		t.Errorf("start = %v, want base %v", m.Occurrences[0].Start, ev.Start)
	}
}
