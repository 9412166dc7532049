package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"9:00", 0, true},
		{"09:60", 0, true},
		{"0a:00", 0, true},
		{"09-00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.in, tt.want, got)
		}
		if got.String() != tt.in {
			t.Fatalf("expected round trip %s, got %s", tt.in, got.String())
		}
	}
}

func TestClockAligned(t *testing.T) {
	if !MustClock("10:00").Aligned(time.Hour) {
		t.Fatalf("10:00 should align to 60m")
	}
	if MustClock("10:30").Aligned(time.Hour) {
		t.Fatalf("10:30 should not align to 60m")
	}
	if !MustClock("10:30").Aligned(30 * time.Minute) {
		t.Fatalf("10:30 should align to 30m")
	}
	if MustClock("10:00").Aligned(0) {
		t.Fatalf("zero granularity never aligns")
	}
}

func TestClockJSON(t *testing.T) {
	var payload struct {
		Start Clock `json:"start"`
	}
	if err := json.Unmarshal([]byte(`{"start":"14:30"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Start != MustClock("14:30") {
		t.Fatalf("unexpected clock %s", payload.Start)
	}
	if err := json.Unmarshal([]byte(`{"start":"2pm"}`), &payload); err == nil {
		t.Fatalf("expected error for malformed clock")
	}
}

func TestValidateGranularity(t *testing.T) {
	for _, g := range []time.Duration{15 * time.Minute, 30 * time.Minute, time.Hour} {
		if err := ValidateGranularity(g); err != nil {
			t.Fatalf("%s: unexpected error %v", g, err)
		}
	}
	for _, g := range []time.Duration{0, 7 * time.Minute, 90 * time.Second} {
		if err := ValidateGranularity(g); err == nil {
			t.Fatalf("%s: expected error", g)
		}
	}
}

func TestWeekdayAndToday(t *testing.T) {
	d := civil.Date{Year: 2026, Month: time.October, Day: 19}
	if Weekday(d) != time.Monday {
		t.Fatalf("expected Monday, got %s", Weekday(d))
	}

	kolkata := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, time.October, 19, 20, 0, 0, 0, time.UTC)
	if got := Today(now, kolkata); got != (civil.Date{Year: 2026, Month: time.October, Day: 20}) {
		t.Fatalf("expected next day in IST, got %s", got)
	}
}

func TestInstantAndCompare(t *testing.T) {
	d := civil.Date{Year: 2026, Month: time.October, Day: 19}
	at := Instant(d, MustClock("10:15"), time.UTC)
	if at.Hour() != 10 || at.Minute() != 15 {
		t.Fatalf("unexpected instant %s", at)
	}
	if ClockOf(at) != MustClock("10:15") {
		t.Fatalf("unexpected clock of instant")
	}
	if CompareDates(d, d.AddDays(1)) != -1 || CompareDates(d.AddDays(1), d) != 1 || CompareDates(d, d) != 0 {
		t.Fatalf("unexpected date ordering")
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2026-02-30"); err == nil {
		t.Fatalf("expected invalid date error")
	}
	d, err := ParseDate("2026-10-19")
	if err != nil || d.Day != 19 {
		t.Fatalf("unexpected parse result %v %v", d, err)
	}
}
