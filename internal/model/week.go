package model

import "time"

// WeekData is an immutable snapshot of one week of submitted prices.
// WeekStart is midnight of the week's Sunday in the bot's timezone.
// Each record is indexed by slot; skipped slots hold an explicit 0.
type WeekData struct {
	WeekStart time.Time
	Prices    map[string][]int
}

// Record returns a user's price record and whether the user has one.
func (w WeekData) Record(user string) ([]int, bool) {
	rec, ok := w.Prices[user]
	return rec, ok
}

// Users returns the user names present in the snapshot, in map order.
func (w WeekData) Users() []string {
	users := make([]string, 0, len(w.Prices))
	for u := range w.Prices {
		users = append(users, u)
	}
	return users
}
