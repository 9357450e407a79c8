// Package calendar adds working time to instants for SLA deadline computation.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// DefaultScheduleID names the schedule used when a policy does not pick one.
const DefaultScheduleID = "default"

// ErrNoWorkingTime is returned when a schedule never opens.
var ErrNoWorkingTime = errors.New("calendar: schedule has no working time")

// Calendar returns the instant at which d of working time has elapsed after start.
// Implementations must be deterministic for a given configuration.
type Calendar interface {
	AddWorkingDuration(start time.Time, d time.Duration, scheduleID string) (time.Time, error)
}

// Continuous counts every instant as working time.
type Continuous struct{}

// AddWorkingDuration implements Calendar.
func (Continuous) AddWorkingDuration(start time.Time, d time.Duration, _ string) (time.Time, error) {
	if d < 0 {
		return time.Time{}, fmt.Errorf("calendar: negative duration %v", d)
	}
	return start.Add(d), nil
}

// Registry resolves schedule IDs to schedules, falling back to the
// default schedule for unknown IDs.
type Registry struct {
	schedules map[string]Calendar
	fallback  Calendar
}

// NewRegistry builds a registry whose default is fallback. A nil fallback means Continuous.
func NewRegistry(fallback Calendar) *Registry {
	if fallback == nil {
		fallback = Continuous{}
	}
	return &Registry{schedules: make(map[string]Calendar), fallback: fallback}
}

// Register binds id to cal. Registering DefaultScheduleID replaces the fallback.
func (r *Registry) Register(id string, cal Calendar) {
	if id == DefaultScheduleID {
		r.fallback = cal
		return
	}
	r.schedules[id] = cal
}

// Has reports whether id has an explicit schedule.
func (r *Registry) Has(id string) bool {
	if id == DefaultScheduleID {
		return true
	}
	_, ok := r.schedules[id]
	return ok
}

// AddWorkingDuration implements Calendar.
func (r *Registry) AddWorkingDuration(start time.Time, d time.Duration, scheduleID string) (time.Time, error) {
	cal, ok := r.schedules[scheduleID]
	if !ok {
		cal = r.fallback
	}
	return cal.AddWorkingDuration(start, d, scheduleID)
}
