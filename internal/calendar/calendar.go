package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Slot identifies one of the 13 weekly price buckets.
// Sunday is slot 0 (the single buy window, no AM/PM split);
// Monday through Saturday each split into an AM and a PM slot.
type Slot int

const (
	SlotSunday Slot = 0

	// SlotCount is the number of buckets in a full week.
	SlotCount = 13
)

// ErrInvalidSlot is returned for slot values outside [0,12]. Hitting it
// means a caller fabricated a slot instead of deriving one from Current.
var ErrInvalidSlot = errors.New("invalid slot")

var labels = [SlotCount]string{
	"SUN",
	"MON(AM)", "MON(PM)",
	"TUES(AM)", "TUES(PM)",
	"WED(AM)", "WED(PM)",
	"THURS(AM)", "THURS(PM)",
	"FRI(AM)", "FRI(PM)",
	"SAT(AM)", "SAT(PM)",
}

// Current maps a timestamp to its slot in the given timezone.
// Sunday maps to slot 0 at any hour; other days map to
// 2*weekday-1 for hours before noon and 2*weekday for noon onward.
func Current(now time.Time, loc *time.Location) Slot {
	t := now.In(loc)
	wd := t.Weekday()
	if wd == time.Sunday {
		return SlotSunday
	}
	s := Slot(2*int(wd) - 1)
	if t.Hour() >= 12 {
		s++
	}
	return s
}

// Label returns the display label for a slot.
func Label(s Slot) (string, error) {
	if s < 0 || s >= SlotCount {
		return "", fmt.Errorf("%w: %d", ErrInvalidSlot, s)
	}
	return labels[s], nil
}

// WeekStart normalizes a local time to midnight of that week's Sunday.
// Two times belong to the same game week iff their WeekStarts are equal.
func WeekStart(t time.Time) time.Time {
	d := t.AddDate(0, 0, -int(t.Weekday()))
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}
