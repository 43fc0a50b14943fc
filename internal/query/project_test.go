package query

import (
	"testing"
	"time"

	"github.com/starford/dagaz/internal/models"
)

func projOccs() []models.Occurrence {
	mk := func(uid, alias string, start time.Time, tags []string) models.Occurrence {
		return models.Occurrence{
			Event: &models.Event{
				UID:         uid,
				Alias:       alias,
				Calendar:    "work",
				Description: "thing",
				Tags:        tags,
				Start:       start,
			},
			Start: start,
			End:   start.Add(time.Hour),
		}
	}
	t0 := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	return []models.Occurrence{
		mk("b-uid", "bbbb", t0.Add(2*time.Hour), nil),
		mk("a-uid", "aaaa", t0, []string{"x", "y"}),
		mk("c-uid", "cccc", t0, nil),
	}
}

func TestSortByStartThenUID(t *testing.T) {
	occs := projOccs()
	Sort(occs)
	order := []string{"a-uid", "c-uid", "b-uid"}
	for i, want := range order {
		if occs[i].Event.UID != want {
			t.Errorf("position %d = %s, want %s", i, occs[i].Event.UID, want)
		}
	}
}

func TestProjectDefaultFields(t *testing.T) {
	p := Project(projOccs(), nil)
	if len(p.Columns) != len(Fields) {
		t.Fatalf("columns = %v", p.Columns)
	}
	for i, col := range Fields {
		if p.Columns[i] != col {
			t.Errorf("column %d = %q, want %q", i, p.Columns[i], col)
		}
	}
	if len(p.Rows) != 3 {
		t.Errorf("rows = %d", len(p.Rows))
	}
}

func TestProjectSelectionKeepsFixedOrder(t *testing.T) {
	p := Project(projOccs(), []string{"start", "uid", "bogus"})
	if len(p.Columns) != 2 || p.Columns[0] != "uid" || p.Columns[1] != "start" {
		t.Fatalf("columns = %v, want fixed order uid,start", p.Columns)
	}
	if p.Rows[0][0] != "b-uid" {
		t.Errorf("row value = %q", p.Rows[0][0])
	}
}

func TestProjectBracketsLists(t *testing.T) {
	occs := projOccs()
	Sort(occs)
	p := Project(occs, []string{"tags"})
	if p.Rows[0][0] != `["x", "y"]` {
		t.Errorf("tagged row = %q", p.Rows[0][0])
	}
	if p.Rows[1][0] != "[]" {
		t.Errorf("untagged row = %q", p.Rows[1][0])
	}
}

func TestProjectTimestampLayout(t *testing.T) {
	occs := projOccs()
	Sort(occs)
	p := Project(occs, []string{"start", "end"})
	if p.Rows[0][0] != "2026-03-15 09:00:00" {
		t.Errorf("start = %q", p.Rows[0][0])
	}
	if p.Rows[0][1] != "2026-03-15 10:00:00" {
		t.Errorf("end = %q", p.Rows[0][1])
	}
}

func TestRecordsCarryFullRecord(t *testing.T) {
	occs := projOccs()
	Sort(occs)
	records := Records(occs)
	if len(records) != 3 {
		t.Fatalf("records = %d", len(records))
	}
	r := records[0]
	if r.UID != "a-uid" || r.Calendar != "work" || r.Start != "2026-03-15 09:00:00" {
		t.Errorf("record = %+v", r)
	}
	if len(r.Tags) != 2 {
		t.Errorf("tags = %v", r.Tags)
	}
}
