package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"TurnipTracker/internal/calendar"
	"TurnipTracker/internal/model"
)

const weekStampLayout = "2006-01-02"

// backupRecord is the on-disk layout of the single backup file.
type backupRecord struct {
	WeekStamp string           `json:"week_stamp"`
	Prices    map[string][]int `json:"prices"`
}

// SaveBackup writes a snapshot to the backup file, overwriting any
// prior content.
func SaveBackup(path string, snap model.WeekData) error {
	rec := backupRecord{
		WeekStamp: snap.WeekStart.Format(weekStampLayout),
		Prices:    snap.Prices,
	}
	if rec.Prices == nil {
		rec.Prices = map[string][]int{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create backup dir: %w", err)
		}
	}
	// Write-then-rename so a crash mid-write never truncates the only
	// copy of the week's data.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace backup: %w", err)
	}
	return nil
}

// LoadBackup reads the backup file and returns its snapshot when it
// covers the week containing now. A missing file, a stale week, or any
// read/parse problem all mean the caller should start fresh; only the
// last case carries a non-nil error, for logging.
func LoadBackup(path string, now time.Time, loc *time.Location) (*model.WeekData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup: %w", err)
	}

	var rec backupRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse backup: %w", err)
	}
	stamp, err := time.ParseInLocation(weekStampLayout, rec.WeekStamp, loc)
	if err != nil {
		return nil, fmt.Errorf("parse week stamp %q: %w", rec.WeekStamp, err)
	}
	for user, prices := range rec.Prices {
		if len(prices) > calendar.SlotCount {
			return nil, fmt.Errorf("parse backup: record for %q has %d entries", user, len(prices))
		}
		for _, p := range prices {
			if p < 0 {
				return nil, fmt.Errorf("parse backup: record for %q has negative price", user)
			}
		}
	}

	weekStart := calendar.WeekStart(stamp)
	if !weekStart.Equal(calendar.WeekStart(now.In(loc))) {
		return nil, nil
	}
	if rec.Prices == nil {
		rec.Prices = map[string][]int{}
	}
	return &model.WeekData{WeekStart: weekStart, Prices: rec.Prices}, nil
}
