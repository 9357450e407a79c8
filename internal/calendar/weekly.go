package calendar

import (
	"fmt"
	"sort"
	"time"
)

// maxScanDays bounds the day-by-day walk so a schedule closed for years fails fast.
const maxScanDays = 3 * 366

// Window is a daily working interval expressed as offsets from local midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// Weekly is a business-hours schedule in one time zone.
type Weekly struct {
	loc      *time.Location
	days     [7][]Window
	holidays map[string]struct{}
}

// NewWeekly builds a schedule. days is indexed by time.Weekday; holidays
// are local calendar dates in YYYY-MM-DD form.
func NewWeekly(loc *time.Location, days map[time.Weekday][]Window, holidays []string) (*Weekly, error) {
	if loc == nil {
		loc = time.UTC
	}
	w := &Weekly{loc: loc, holidays: make(map[string]struct{}, len(holidays))}
	open := false
	for day, windows := range days {
		if day < time.Sunday || day > time.Saturday {
			return nil, fmt.Errorf("calendar: invalid weekday %d", day)
		}
		for _, win := range windows {
			if win.Start < 0 || win.End > 24*time.Hour || win.End <= win.Start {
				return nil, fmt.Errorf("calendar: invalid window %v-%v on %s", win.Start, win.End, day)
			}
		}
		sorted := append([]Window(nil), windows...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
		w.days[day] = sorted
		if len(windows) > 0 {
			open = true
		}
	}
	if !open {
		return nil, ErrNoWorkingTime
	}
	for _, h := range holidays {
		if _, err := time.ParseInLocation("2006-01-02", h, loc); err != nil {
			return nil, fmt.Errorf("calendar: invalid holiday %q: %w", h, err)
		}
		w.holidays[h] = struct{}{}
	}
	return w, nil
}

// AddWorkingDuration implements Calendar.
func (w *Weekly) AddWorkingDuration(start time.Time, d time.Duration, _ string) (time.Time, error) {
	if d < 0 {
		return time.Time{}, fmt.Errorf("calendar: negative duration %v", d)
	}
	cursor := start.In(w.loc)
	remaining := d
	for i := 0; i < maxScanDays; i++ {
		year, month, day := cursor.Date()
		midnight := time.Date(year, month, day, 0, 0, 0, 0, w.loc)
		if _, holiday := w.holidays[midnight.Format("2006-01-02")]; !holiday {
			for _, win := range w.days[midnight.Weekday()] {
				open := w.wallClock(year, month, day, win.Start)
				closeAt := w.wallClock(year, month, day, win.End)
				if !cursor.Before(closeAt) {
					continue
				}
				if cursor.Before(open) {
					cursor = open
				}
				available := closeAt.Sub(cursor)
				if remaining <= available {
					return cursor.Add(remaining).In(start.Location()), nil
				}
				remaining -= available
				cursor = closeAt
			}
		}
		cursor = time.Date(year, month, day+1, 0, 0, 0, 0, w.loc)
	}
	return time.Time{}, ErrNoWorkingTime
}

// wallClock returns the instant the local clock reads offset past midnight,
// so windows keep their wall-clock hours on daylight-saving changeover days.
func (w *Weekly) wallClock(year int, month time.Month, day int, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int(offset % time.Hour / time.Minute)
	sec := int(offset % time.Minute / time.Second)
	return time.Date(year, month, day, h, m, sec, 0, w.loc)
}
