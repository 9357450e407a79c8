package calendar

import (
	"fmt"
	"strings"
	"time"
)

// AlwaysOpen is the schedule ID (and YAML timezone-free shorthand) for Continuous.
const AlwaysOpen = "24x7"

// ScheduleSpec is the file representation of a weekly schedule.
//
//	timezone: Europe/Madrid
//	hours:
//	  monday: ["09:00-14:00", "15:00-18:00"]
//	holidays: ["2026-12-25"]
type ScheduleSpec struct {
	Timezone string              `yaml:"timezone"`
	Hours    map[string][]string `yaml:"hours"`
	Holidays []string            `yaml:"holidays"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Build turns the schedule definition into a Calendar.
func (s ScheduleSpec) Build() (Calendar, error) {
	loc := time.UTC
	if s.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(s.Timezone)
		if err != nil {
			return nil, fmt.Errorf("calendar: timezone %q: %w", s.Timezone, err)
		}
	}
	days := make(map[time.Weekday][]Window, len(s.Hours))
	for name, ranges := range s.Hours {
		day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("calendar: unknown weekday %q", name)
		}
		for _, r := range ranges {
			win, err := parseWindow(r)
			if err != nil {
				return nil, err
			}
			days[day] = append(days[day], win)
		}
	}
	return NewWeekly(loc, days, s.Holidays)
}

func parseWindow(r string) (Window, error) {
	parts := strings.SplitN(strings.TrimSpace(r), "-", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("calendar: window %q must look like HH:MM-HH:MM", r)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return Window{}, err
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

func parseClock(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("calendar: invalid time %q: %w", v, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
