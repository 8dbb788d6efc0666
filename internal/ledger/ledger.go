package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"TurnipTracker/internal/calendar"
	"TurnipTracker/internal/model"
)

// ClosedSentinel is the price users submit when their shop is closed.
const ClosedSentinel = "closed"

// ErrInvalidPrice is returned when a submitted price is not a
// non-negative integer (after sentinel translation). The ledger is
// left untouched.
var ErrInvalidPrice = errors.New("price must be a non-negative integer")

// Ledger holds the current week's user price records with concurrency safety.
// It is the single owner of the data: mutation happens only through SetPrice
// and Reset, reads only through Snapshot.
type Ledger struct {
	mu        sync.RWMutex
	loc       *time.Location
	weekStart time.Time
	prices    map[string][]int
}

// New creates an empty Ledger stamped to the week containing now.
func New(loc *time.Location, now time.Time) *Ledger {
	return &Ledger{
		loc:       loc,
		weekStart: calendar.WeekStart(now.In(loc)),
		prices:    make(map[string][]int),
	}
}

// Restore creates a Ledger from a previously saved snapshot.
func Restore(loc *time.Location, snap model.WeekData) *Ledger {
	prices := make(map[string][]int, len(snap.Prices))
	for user, rec := range snap.Prices {
		prices[user] = append([]int(nil), rec...)
	}
	return &Ledger{loc: loc, weekStart: snap.WeekStart, prices: prices}
}

// ParsePrice translates raw user input into a price value.
// The closed sentinel maps to 0.
func ParsePrice(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, ClosedSentinel) {
		return 0, nil
	}
	price, err := strconv.Atoi(raw)
	if err != nil || price < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	return price, nil
}

// SetPrice records a user's price for the slot containing now.
//
// If the user's record already ends at the current slot the price is
// overwritten in place and replaced=true is reported. Otherwise skipped
// slots are backfilled with 0 and the price is appended at the current
// slot. A record can never grow past the current slot, so past slots are
// only reachable by re-submitting the latest one.
func (l *Ledger) SetPrice(user, raw string, now time.Time) (label string, replaced bool, err error) {
	price, err := ParsePrice(raw)
	if err != nil {
		return "", false, err
	}

	slot := calendar.Current(now, l.loc)
	label, err = calendar.Label(slot)
	if err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// A submission can arrive after midnight Sunday but before the
	// scheduled reset has fired. It belongs to the new week, so roll
	// the ledger first; otherwise the record-length invariant would
	// break against last week's entries.
	if ws := calendar.WeekStart(now.In(l.loc)); !ws.Equal(l.weekStart) {
		l.weekStart = ws
		l.prices = make(map[string][]int)
	}

	rec := l.prices[user]
	if len(rec) == int(slot)+1 {
		rec[slot] = price
		return label, true, nil
	}
	for len(rec) < int(slot) {
		rec = append(rec, 0)
	}
	l.prices[user] = append(rec, price)
	return label, false, nil
}

// Snapshot returns a deep copy of the ledger, safe for concurrent
// formatting and backup while writes proceed.
func (l *Ledger) Snapshot() model.WeekData {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prices := make(map[string][]int, len(l.prices))
	for user, rec := range l.prices {
		prices[user] = append([]int(nil), rec...)
	}
	return model.WeekData{WeekStart: l.weekStart, Prices: prices}
}

// WeekStart returns the Sunday stamp of the week this ledger covers.
func (l *Ledger) WeekStart() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.weekStart
}

// Reset atomically replaces all records with a fresh empty week
// stamped to the week containing now.
func (l *Ledger) Reset(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.weekStart = calendar.WeekStart(now.In(l.loc))
	l.prices = make(map[string][]int)
}
