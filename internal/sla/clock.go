// Package sla evaluates and mutates ticket SLA clocks.
//
// Clock is pure: it reads the current instant from an injected function
// and never performs I/O. All instants it produces are UTC truncated to
// whole seconds, so a pause of d seconds extends both deadlines by
// exactly d seconds.
package sla

import (
	"time"

	"github.com/spec-kit/support-sla/internal/domain"
)

// Status is the evaluated SLA state of a ticket.
type Status string

const (
	StatusOnTrack  Status = "on_track"
	StatusBreached Status = "breached"
	StatusPaused   Status = "paused"
	StatusMet      Status = "met"
)

// Report is the result of Check.
type Report struct {
	Status             Status    `json:"status"`
	ResponseBreached   bool      `json:"response_breached"`
	ResolutionBreached bool      `json:"resolution_breached"`
	ResponseDue        time.Time `json:"response_due"`
	ResolutionDue      time.Time `json:"resolution_due"`
}

// Clock computes SLA status and applies pause/resume to tickets.
type Clock struct {
	now func() time.Time
}

// NewClock builds a Clock. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now returns the clock's current instant at whole-second resolution.
func (c *Clock) Now() time.Time {
	return c.now().UTC().Truncate(time.Second)
}

// Check evaluates snap against the current instant.
func (c *Clock) Check(snap domain.SLASnapshot) Report {
	report := Report{
		ResponseDue:   snap.FirstResponseDue,
		ResolutionDue: snap.ResolutionDue,
	}
	if snap.Resolved {
		report.Status = StatusMet
		return report
	}
	if snap.PausedAt != nil {
		report.Status = StatusPaused
		return report
	}

	now := c.Now()
	report.ResponseBreached = snap.FirstRespondedAt == nil && now.After(snap.FirstResponseDue)
	report.ResolutionBreached = now.After(snap.ResolutionDue)
	if report.ResponseBreached || report.ResolutionBreached {
		report.Status = StatusBreached
	} else {
		report.Status = StatusOnTrack
	}
	return report
}

// Pause freezes the ticket's SLA clock. It returns false and leaves the
// ticket untouched when the clock is already paused or the ticket is
// terminal.
func (c *Clock) Pause(t *domain.Ticket) bool {
	if t.PausedAt != nil || t.IsResolved() {
		return false
	}
	now := c.Now()
	t.PausedAt = &now
	return true
}

// Resume unfreezes the ticket's SLA clock, adding the paused interval to
// PausedDuration and to both deadlines. It returns the interval and
// false when there was nothing to resume.
func (c *Clock) Resume(t *domain.Ticket) (time.Duration, bool) {
	if t.PausedAt == nil {
		return 0, false
	}
	elapsed := c.Now().Sub(t.PausedAt.UTC().Truncate(time.Second))
	if elapsed < 0 {
		// A pause stamped by a clock running ahead of ours; deadlines never move earlier.
		elapsed = 0
	}
	t.PausedDuration += elapsed
	t.FirstResponseDue = t.FirstResponseDue.Add(elapsed)
	t.ResolutionDue = t.ResolutionDue.Add(elapsed)
	t.PausedAt = nil
	return elapsed, true
}
