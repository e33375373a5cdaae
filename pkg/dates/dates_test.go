package dates

import (
	"testing"
	"time"
)

func TestDateOfTruncatesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("WIB", 7*60*60)
	in := time.Date(2024, 3, 1, 2, 30, 0, 0, loc)

	got := DateOf(in)
	want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestTodayUsesClock(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC) }
	if got := Format(Today(clock)); got != "2024-01-01" {
		t.Fatalf("expected 2024-01-01, got %s", got)
	}
}

func TestParseAndFormatRoundTrip(t *testing.T) {
	parsed, err := Parse("2024-02-29")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %s", parsed.Location())
	}
	if Format(parsed) != "2024-02-29" {
		t.Fatalf("unexpected format %s", Format(parsed))
	}
	if _, err := Parse("29/02/2024"); err == nil {
		t.Fatalf("expected error for invalid layout")
	}
	if _, err := Parse("  "); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestAddMonthsOverflowsLikeCalendarNormalization(t *testing.T) {
	cases := []struct {
		start string
		n     int
		want  string
	}{
		{"2024-01-01", 1, "2024-02-01"},
		{"2024-01-31", 1, "2024-03-02"},
		{"2023-01-31", 1, "2023-03-03"},
		{"2024-11-15", 3, "2025-02-15"},
	}
	for _, tc := range cases {
		start, err := Parse(tc.start)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.start, err)
		}
		if got := Format(AddMonths(start, tc.n)); got != tc.want {
			t.Fatalf("%s + %d months: expected %s, got %s", tc.start, tc.n, tc.want, got)
		}
	}
}

func TestAddWeeksAndDays(t *testing.T) {
	start, _ := Parse("2024-02-26")
	if got := Format(AddWeeks(start, 1)); got != "2024-03-04" {
		t.Fatalf("unexpected week add %s", got)
	}
	if got := Format(AddDays(start, 3)); got != "2024-02-29" {
		t.Fatalf("unexpected day add %s", got)
	}
	if got := Format(AddDays(start, -1)); got != "2024-02-25" {
		t.Fatalf("unexpected day subtract %s", got)
	}
}
