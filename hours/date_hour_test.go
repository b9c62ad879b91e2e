package hours

import (
	"testing"
	"time"
)

func TestDateHourString(t *testing.T) {
	dh := DateHour{Date: "2025-01-01", Hour: 5}
	expected := "2025-01-01 05"
	if s := dh.String(); s != expected {
		t.Errorf("String() expected %q, got %q", expected, s)
	}
}

func TestDateHourIsoString(t *testing.T) {
	dh := DateHour{Date: "2025-01-01", Hour: 15}
	expected := "2025-01-01T15:00:00Z"
	if s := dh.IsoString(); s != expected {
		t.Errorf("IsoString() expected %q, got %q", expected, s)
	}
}

func TestDateHourAdd(t *testing.T) {
	tests := []struct {
		name     string
		input    DateHour
		addHours int
		expected DateHour
	}{
		{
			name:     "add within same day",
			input:    DateHour{Date: "2025-01-01", Hour: 10},
			addHours: 2,
			expected: DateHour{Date: "2025-01-01", Hour: 12},
		},
		{
			name:     "add crossing midnight",
			input:    DateHour{Date: "2025-01-01", Hour: 23},
			addHours: 2,
			expected: DateHour{Date: "2025-01-02", Hour: 1},
		},
		{
			name:     "add negative hours (subtract)",
			input:    DateHour{Date: "2025-01-01", Hour: 1},
			addHours: -2,
			expected: DateHour{Date: "2024-12-31", Hour: 23},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.input.Add(tt.addHours)
			if result != tt.expected {
				t.Errorf("Add(%d) expected %+v, got %+v", tt.addHours, tt.expected, result)
			}
		})
	}
}

func TestDateHourSub(t *testing.T) {
	tests := []struct {
		name     string
		input    DateHour
		subHours int
		expected DateHour
	}{
		{
			name:     "sub within same day",
			input:    DateHour{Date: "2025-01-01", Hour: 10},
			subHours: 2,
			expected: DateHour{Date: "2025-01-01", Hour: 8},
		},
		{
			name:     "sub crossing midnight",
			input:    DateHour{Date: "2025-01-01", Hour: 0},
			subHours: 1,
			expected: DateHour{Date: "2024-12-31", Hour: 23},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.input.Sub(tt.subHours)
			if result != tt.expected {
				t.Errorf("Sub(%d) expected %+v, got %+v", tt.subHours, tt.expected, result)
			}
		})
	}
}

func TestDateHourIsZero(t *testing.T) {
	// A zero value DateHour should be recognized as zero.
	var dh DateHour
	if !dh.IsZero() {
		t.Errorf("expected a zero value DateHour to be zero")
	}
	// A non-zero DateHour (even with Hour 0) should not be considered zero if Date is non-empty.
	dh = DateHour{Date: "2025-01-01", Hour: 0}
	if dh.IsZero() {
		t.Errorf("expected a non-zero DateHour (non-empty Date) not to be zero")
	}
}

func TestFromTime(t *testing.T) {
	// Test a valid time.
	tm := time.Date(2025, time.January, 1, 15, 30, 0, 0, time.UTC)
	dh := FromTime(tm)
	expected := DateHour{Date: "2025-01-01", Hour: 15}
	if dh != expected {
		t.Errorf("FromTime() expected %+v, got %+v", expected, dh)
	}

	// Test with a zero time.
	var zero time.Time
	dhZero := FromTime(zero)
	if !dhZero.IsZero() {
		t.Errorf("FromTime() with zero time expected a zero DateHour")
	}
}

func TestFromNow(t *testing.T) {
	// Since FromNow() uses the current time, we capture the expected values.
	now := time.Now().UTC()
	dh := FromNow()
	expectedDate := now.Format("2006-01-02")
	expectedHour := now.Hour()

	if dh.Date != expectedDate {
		t.Errorf("FromNow() expected date %q, got %q", expectedDate, dh.Date)
	}
	if int(dh.Hour) != expectedHour {
		t.Errorf("FromNow() expected hour %d, got %d", expectedHour, dh.Hour)
	}
}

func TestDateHourTime(t *testing.T) {
	dh := DateHour{Date: "2025-03-30", Hour: 7}
	expected := time.Date(2025, time.March, 30, 7, 0, 0, 0, time.UTC)
	if got := dh.Time(); !got.Equal(expected) {
		t.Errorf("Time() expected %v, got %v", expected, got)
	}
	if got := (DateHour{Date: "garbage"}).Time(); !got.IsZero() {
		t.Errorf("Time() expected zero time for malformed date, got %v", got)
	}
}

func TestTopOfNextHour(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "mid hour",
			input:    time.Date(2025, 1, 1, 10, 42, 17, 500, time.UTC),
			expected: time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			name:     "exactly on the hour",
			input:    time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			name:     "crossing midnight",
			input:    time.Date(2025, 1, 1, 23, 59, 59, 999, time.UTC),
			expected: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "non utc input",
			input:    time.Date(2025, 1, 1, 12, 30, 0, 0, cet),
			expected: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopOfNextHour(tt.input)
			if !got.Equal(tt.expected) {
				t.Errorf("TopOfNextHour(%v) expected %v, got %v", tt.input, tt.expected, got)
			}
			if got.Location() != time.UTC {
				t.Errorf("TopOfNextHour(%v) expected UTC, got %v", tt.input, got.Location())
			}
			if !got.After(tt.input) {
				t.Errorf("TopOfNextHour(%v) = %v is not after input", tt.input, got)
			}
		})
	}
}

func TestStartOfDayAndHoursSince(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}

	// Spring forward: 2025-03-30 has only 23 hours in Amsterdam.
	now := time.Date(2025, 3, 30, 21, 30, 0, 0, time.UTC) // 23:30 local (CEST)
	midnight := StartOfDay(now, loc)
	if midnight.Hour() != 0 || midnight.Day() != 30 {
		t.Fatalf("StartOfDay expected local midnight of 30th, got %v", midnight)
	}
	if h := HoursSince(midnight, now); h != 22 {
		t.Errorf("HoursSince expected 22 slots on a 23 hour day, got %d", h)
	}
}
