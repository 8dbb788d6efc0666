package notifier

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"TurnipTracker/internal/calendar"
	"TurnipTracker/internal/model"
)

// ErrUnknownUser is returned when a per-user view is requested for a
// user with no record this week.
var ErrUnknownUser = errors.New("no prices recorded for user this week")

// FormatFullPrices renders every user's slot-by-slot record, zero-filled
// gaps included. Users who have submitted more slots sort first; ties
// break on highest latest price, then user name, so the ordering is
// deterministic.
func FormatFullPrices(snap model.WeekData) string {
	users := snap.Users()
	if len(users) == 0 {
		return "No prices recorded yet this week."
	}
	sort.Slice(users, func(i, j int) bool {
		a, b := snap.Prices[users[i]], snap.Prices[users[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		if len(a) > 0 && a[len(a)-1] != b[len(b)-1] {
			return a[len(a)-1] > b[len(b)-1]
		}
		return users[i] < users[j]
	})

	lines := make([]string, 0, len(users))
	for _, user := range users {
		lines = append(lines, formatRecord(user, snap.Prices[user]))
	}
	return strings.Join(lines, "\n")
}

// FormatToday renders the current slot's price for every user whose
// record ends exactly at the current slot. Users who are behind, or
// whose backup carried them past it, are excluded.
func FormatToday(snap model.WeekData, now time.Time, loc *time.Location) string {
	slot := calendar.Current(now, loc)
	label, err := calendar.Label(slot)
	if err != nil {
		return "No prices recorded for the current time slot."
	}

	var users []string
	for user, rec := range snap.Prices {
		if len(rec) == int(slot)+1 {
			users = append(users, user)
		}
	}
	if len(users) == 0 {
		return fmt.Sprintf("No prices recorded for %s yet.", label)
	}
	sort.Slice(users, func(i, j int) bool {
		a, b := snap.Prices[users[i]][slot], snap.Prices[users[j]][slot]
		if a != b {
			return a > b
		}
		return users[i] < users[j]
	})

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Prices for %s:", label))
	for _, user := range users {
		b.WriteString(fmt.Sprintf("\n%s: %d", user, snap.Prices[user][slot]))
	}
	return b.String()
}

// FormatUserPrices renders a single user's full record.
func FormatUserPrices(snap model.WeekData, user string) (string, error) {
	rec, ok := snap.Record(user)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownUser, user)
	}
	return formatRecord(user, rec), nil
}

func formatRecord(user string, rec []int) string {
	parts := make([]string, 0, len(rec)+1)
	parts = append(parts, user+":")
	for i, price := range rec {
		label, err := calendar.Label(calendar.Slot(i))
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d", label, price))
	}
	return strings.Join(parts, "  ")
}
