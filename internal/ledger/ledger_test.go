package ledger

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// June 2024: the 2nd is a Sunday, the 5th a Wednesday.
var (
	sunday      = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	tuesdayPM   = time.Date(2024, 6, 4, 15, 0, 0, 0, time.UTC) // slot 4
	wednesdayAM = time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)  // slot 5
)

func TestSetPrice_ZeroFillsSkippedSlots(t *testing.T) {
	l := New(time.UTC, sunday)

	label, replaced, err := l.SetPrice("daisy", "123", tuesdayPM)
	if err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	if label != "TUES(PM)" || replaced {
		t.Errorf("got (%q, %v), want (TUES(PM), false)", label, replaced)
	}

	rec, ok := l.Snapshot().Record("daisy")
	if !ok {
		t.Fatal("record missing after SetPrice")
	}
	if want := []int{0, 0, 0, 0, 123}; !reflect.DeepEqual(rec, want) {
		t.Errorf("record = %v, want %v", rec, want)
	}
}

func TestSetPrice_ReplacesCurrentSlot(t *testing.T) {
	l := New(time.UTC, sunday)

	if _, replaced, err := l.SetPrice("tom", "90", sunday); err != nil || replaced {
		t.Fatalf("first SetPrice: replaced=%v err=%v", replaced, err)
	}
	label, replaced, err := l.SetPrice("tom", "95", sunday)
	if err != nil {
		t.Fatalf("second SetPrice: %v", err)
	}
	if !replaced || label != "SUN" {
		t.Errorf("got (%q, %v), want (SUN, true)", label, replaced)
	}

	rec, _ := l.Snapshot().Record("tom")
	if want := []int{95}; !reflect.DeepEqual(rec, want) {
		t.Errorf("record = %v, want %v", rec, want)
	}
}

func TestSetPrice_AdvancesWithoutReplacing(t *testing.T) {
	l := New(time.UTC, sunday)

	if _, _, err := l.SetPrice("tom", "90", tuesdayPM); err != nil {
		t.Fatal(err)
	}
	_, replaced, err := l.SetPrice("tom", "45", wednesdayAM)
	if err != nil {
		t.Fatal(err)
	}
	if replaced {
		t.Error("advancing to a new slot must not report replacement")
	}
	rec, _ := l.Snapshot().Record("tom")
	if want := []int{0, 0, 0, 0, 90, 45}; !reflect.DeepEqual(rec, want) {
		t.Errorf("record = %v, want %v", rec, want)
	}
}

func TestSetPrice_RollsToNewWeekBeforeReset(t *testing.T) {
	l := New(time.UTC, sunday)

	// Fill a record through Saturday PM (slot 12, length 13).
	saturdayPM := time.Date(2024, 6, 8, 14, 0, 0, 0, time.UTC)
	if _, _, err := l.SetPrice("tom", "100", saturdayPM); err != nil {
		t.Fatal(err)
	}
	if rec, _ := l.Snapshot().Record("tom"); len(rec) != 13 {
		t.Fatalf("record length = %d, want 13", len(rec))
	}

	// Sunday 02:00 the next week: the daily 05:00 reset has not fired
	// yet, but the submission belongs to the new week's slot 0.
	earlySunday := time.Date(2024, 6, 9, 2, 0, 0, 0, time.UTC)
	label, replaced, err := l.SetPrice("tom", "55", earlySunday)
	if err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	if label != "SUN" || replaced {
		t.Errorf("got (%q, %v), want (SUN, false)", label, replaced)
	}

	snap := l.Snapshot()
	if !snap.WeekStart.Equal(time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week start = %v, want new Sunday", snap.WeekStart)
	}
	rec, _ := snap.Record("tom")
	if want := []int{55}; !reflect.DeepEqual(rec, want) {
		t.Errorf("record = %v, want %v", rec, want)
	}
	if len(rec) > 13 {
		t.Errorf("record length %d exceeds the 13-slot week", len(rec))
	}
	if len(snap.Prices) != 1 {
		t.Errorf("stale records survived the rollover: %v", snap.Prices)
	}
}

func TestSetPrice_ClosedSentinel(t *testing.T) {
	l := New(time.UTC, sunday)
	if _, _, err := l.SetPrice("tom", "Closed", sunday); err != nil {
		t.Fatalf("closed sentinel rejected: %v", err)
	}
	rec, _ := l.Snapshot().Record("tom")
	if want := []int{0}; !reflect.DeepEqual(rec, want) {
		t.Errorf("record = %v, want %v", rec, want)
	}
}

func TestSetPrice_InvalidInputLeavesLedgerUnchanged(t *testing.T) {
	l := New(time.UTC, sunday)
	if _, _, err := l.SetPrice("tom", "90", sunday); err != nil {
		t.Fatal(err)
	}

	for _, raw := range []string{"-5", "abc", "12.5", "", "0x10"} {
		_, _, err := l.SetPrice("tom", raw, sunday)
		if !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("SetPrice(%q) err = %v, want ErrInvalidPrice", raw, err)
		}
	}

	rec, _ := l.Snapshot().Record("tom")
	if want := []int{90}; !reflect.DeepEqual(rec, want) {
		t.Errorf("ledger mutated by invalid input: %v", rec)
	}
}

func TestSnapshot_IsIsolatedCopy(t *testing.T) {
	l := New(time.UTC, sunday)
	if _, _, err := l.SetPrice("tom", "90", sunday); err != nil {
		t.Fatal(err)
	}

	snap := l.Snapshot()
	snap.Prices["tom"][0] = 1
	snap.Prices["intruder"] = []int{9}

	rec, _ := l.Snapshot().Record("tom")
	if rec[0] != 90 {
		t.Error("mutating a snapshot leaked into the ledger")
	}
	if _, ok := l.Snapshot().Record("intruder"); ok {
		t.Error("snapshot map shares storage with the ledger")
	}
}

func TestReset_ReplacesWeek(t *testing.T) {
	l := New(time.UTC, sunday)
	if _, _, err := l.SetPrice("tom", "90", sunday); err != nil {
		t.Fatal(err)
	}
	old := l.Snapshot()

	nextSunday := sunday.AddDate(0, 0, 7)
	l.Reset(nextSunday)

	snap := l.Snapshot()
	if len(snap.Prices) != 0 {
		t.Errorf("reset ledger still has %d records", len(snap.Prices))
	}
	if !snap.WeekStart.After(old.WeekStart) {
		t.Errorf("week start not advanced: %v -> %v", old.WeekStart, snap.WeekStart)
	}
	if got, want := snap.WeekStart, time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("week start = %v, want %v", got, want)
	}
	// Old snapshot stays intact after the reset.
	if rec, ok := old.Record("tom"); !ok || rec[0] != 90 {
		t.Error("pre-reset snapshot was disturbed")
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"123", 123, false},
		{"closed", 0, false},
		{"CLOSED", 0, false},
		{" 45 ", 45, false},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got, err := ParsePrice(c.raw)
		if c.wantErr {
			if !errors.Is(err, ErrInvalidPrice) {
				t.Errorf("ParsePrice(%q) err = %v, want ErrInvalidPrice", c.raw, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("ParsePrice(%q) = (%d, %v), want (%d, nil)", c.raw, got, err, c.want)
		}
	}
}
