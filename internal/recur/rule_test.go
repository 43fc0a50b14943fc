package recur

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
)

func TestParseFreqRule(t *testing.T) {
	r, err := Parse("freq=weekly;byweekday=mo,we;interval=2;count=10", time.UTC)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !r.HasFreq || r.Freq != Weekly {
		t.Errorf("freq = %v", r.Freq)
	}
	if r.Interval != 2 || r.Count != 10 {
		t.Errorf("interval = %d, count = %d", r.Interval, r.Count)
	}
	if len(r.ByWeekdays) != 2 || r.ByWeekdays[0] != time.Monday || r.ByWeekdays[1] != time.Wednesday {
		t.Errorf("byweekday = %v", r.ByWeekdays)
	}
}

func TestParseNormalizesCase(t *testing.T) {
	r, err := Parse("FREQ=Daily;ByHour=9", time.UTC)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Freq != Daily || r.ByHour != 9 {
		t.Errorf("freq = %v, byhour = %d", r.Freq, r.ByHour)
	}
}

func TestParseDateList(t *testing.T) {
	r, err := Parse("date=2026-05-02,2026-03-01 10:00:00", time.UTC)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(r.Dates) != 2 {
		t.Fatalf("dates = %d, want 2", len(r.Dates))
	}
	if !r.Dates[0].Before(r.Dates[1]) {
		t.Error("date list should be sorted")
	}
}

func TestParseDateBypassesFreq(t *testing.T) {
	r, err := Parse("date=2026-05-02;freq=daily", time.UTC)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(r.Dates) != 1 || !r.HasFreq {
		t.Fatalf("dates = %d, hasFreq = %v", len(r.Dates), r.HasFreq)
	}
}

func TestParseExceptOnlyNeedsGenerator(t *testing.T) {
	if _, err := Parse("except=2026-05-02", time.UTC); !errors.Is(err, apperr.ErrInvalidRule) {
		t.Errorf("err = %v", err)
	}
}

func TestParseBySetPosNeedsPeriodConstraint(t *testing.T) {
	if _, err := Parse("freq=monthly;bysetpos=-1", time.UTC); !errors.Is(err, apperr.ErrInvalidRule) {
		t.Errorf("bare bysetpos: err = %v", err)
	}
	if _, err := Parse("freq=monthly;byweekday=mo;bysetpos=-1", time.UTC); err != nil {
		t.Errorf("bysetpos with byweekday: %v", err)
	}
}

func TestParseRejectsOutOfRange(t *testing.T) {
	for _, expr := range []string{
		"freq=daily;byhour=24",
		"freq=yearly;bymonth=13",
		"freq=monthly;bymonthday=32",
		"freq=yearly;byyearday=367",
		"freq=yearly;byweekno=54",
		"freq=daily;interval=0",
		"freq=daily;count=0",
		"freq=monthly;byweekday=mo;bysetpos=0",
	} {
		if _, err := Parse(expr, time.UTC); !errors.Is(err, apperr.ErrInvalidRule) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidRule", expr, err)
		}
	}
}

func TestParseRejectsUnknownDirective(t *testing.T) {
	if _, err := Parse("freq=daily;cadence=fast", time.UTC); !errors.Is(err, apperr.ErrInvalidRule) {
		t.Errorf("err = %v", err)
	}
}

func TestParseRejectsUnknownWeekday(t *testing.T) {
	if _, err := Parse("freq=weekly;byweekday=xx", time.UTC); !errors.Is(err, apperr.ErrInvalidRule) {
		t.Errorf("err = %v", err)
	}
}

func TestParseUntil(t *testing.T) {
	r, err := Parse("freq=daily;until=2026-12-31", time.UTC)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	if !r.Until.Equal(want) {
		t.Errorf("until = %v, want %v", r.Until, want)
	}
}
