package sla

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/support-sla/internal/calendar"
	"github.com/spec-kit/support-sla/internal/domain"
)

// Policy sets the working-time budget for a priority.
type Policy struct {
	FirstResponse time.Duration
	Resolution    time.Duration
	ScheduleID    string
}

// Policies maps priorities to their SLA policy.
type Policies map[domain.TicketPriority]Policy

// DefaultPolicies mirrors the stock support plan.
func DefaultPolicies() Policies {
	return Policies{
		domain.TicketPriorityUrgent: {FirstResponse: time.Hour, Resolution: 4 * time.Hour, ScheduleID: calendar.DefaultScheduleID},
		domain.TicketPriorityHigh:   {FirstResponse: 4 * time.Hour, Resolution: 24 * time.Hour, ScheduleID: calendar.DefaultScheduleID},
		domain.TicketPriorityMedium: {FirstResponse: 8 * time.Hour, Resolution: 72 * time.Hour, ScheduleID: calendar.DefaultScheduleID},
		domain.TicketPriorityLow:    {FirstResponse: 24 * time.Hour, Resolution: 120 * time.Hour, ScheduleID: calendar.DefaultScheduleID},
	}
}

// For returns the policy for p, falling back to medium.
func (ps Policies) For(p domain.TicketPriority) Policy {
	if policy, ok := ps[p]; ok {
		return policy
	}
	return ps[domain.TicketPriorityMedium]
}

// PolicyView is the listing form of one priority's policy.
type PolicyView struct {
	Priority           domain.TicketPriority `json:"priority"`
	FirstResponseHours float64               `json:"first_response_hours"`
	ResolutionHours    float64               `json:"resolution_hours"`
	Schedule           string                `json:"schedule"`
}

var priorityOrder = []domain.TicketPriority{
	domain.TicketPriorityUrgent,
	domain.TicketPriorityHigh,
	domain.TicketPriorityMedium,
	domain.TicketPriorityLow,
}

// List returns one entry per priority, most urgent first.
func (ps Policies) List() []PolicyView {
	out := make([]PolicyView, 0, len(priorityOrder))
	for _, p := range priorityOrder {
		policy := ps.For(p)
		out = append(out, PolicyView{
			Priority:           p,
			FirstResponseHours: policy.FirstResponse.Hours(),
			ResolutionHours:    policy.Resolution.Hours(),
			Schedule:           policy.ScheduleID,
		})
	}
	return out
}

// Deadlines holds the computed SLA due instants.
type Deadlines struct {
	FirstResponseDue time.Time
	ResolutionDue    time.Time
}

// Planner computes initial deadlines from policies and a calendar.
type Planner struct {
	policies Policies
	calendar calendar.Calendar
}

// NewPlanner builds a Planner. Nil arguments select the defaults.
func NewPlanner(policies Policies, cal calendar.Calendar) *Planner {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if cal == nil {
		cal = calendar.Continuous{}
	}
	return &Planner{policies: policies, calendar: cal}
}

// Policies lists the policies the planner applies.
func (p *Planner) Policies() []PolicyView {
	return p.policies.List()
}

// Plan returns the deadlines for a ticket of priority p opened at start.
func (p *Planner) Plan(start time.Time, priority domain.TicketPriority) (Deadlines, error) {
	policy := p.policies.For(priority)
	start = start.UTC().Truncate(time.Second)
	responseDue, err := p.calendar.AddWorkingDuration(start, policy.FirstResponse, policy.ScheduleID)
	if err != nil {
		return Deadlines{}, fmt.Errorf("first response deadline: %w", err)
	}
	resolutionDue, err := p.calendar.AddWorkingDuration(start, policy.Resolution, policy.ScheduleID)
	if err != nil {
		return Deadlines{}, fmt.Errorf("resolution deadline: %w", err)
	}
	return Deadlines{
		FirstResponseDue: responseDue.UTC().Truncate(time.Second),
		ResolutionDue:    resolutionDue.UTC().Truncate(time.Second),
	}, nil
}

// fileConfig is the YAML layout of SLA_CONFIG_FILE.
type fileConfig struct {
	DefaultSchedule string                           `yaml:"default_schedule"`
	Schedules       map[string]calendar.ScheduleSpec `yaml:"schedules"`
	Policies        map[string]struct {
		FirstResponse string `yaml:"first_response"`
		Resolution    string `yaml:"resolution"`
		Schedule      string `yaml:"schedule"`
	} `yaml:"policies"`
}

// LoadFile reads policies and business-hours schedules from a YAML file.
// An empty path returns the defaults with a continuous calendar.
func LoadFile(path string) (Policies, *calendar.Registry, error) {
	if path == "" {
		return DefaultPolicies(), calendar.NewRegistry(nil), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read sla config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes the YAML SLA configuration.
func Parse(raw []byte) (Policies, *calendar.Registry, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, nil, fmt.Errorf("decode sla config: %w", err)
	}

	registry := calendar.NewRegistry(nil)
	registry.Register(calendar.AlwaysOpen, calendar.Continuous{})
	for id, spec := range fc.Schedules {
		cal, err := spec.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("schedule %q: %w", id, err)
		}
		registry.Register(id, cal)
	}
	if fc.DefaultSchedule != "" {
		spec, ok := fc.Schedules[fc.DefaultSchedule]
		if !ok && fc.DefaultSchedule != calendar.AlwaysOpen {
			return nil, nil, fmt.Errorf("default_schedule %q is not defined", fc.DefaultSchedule)
		}
		if ok {
			cal, err := spec.Build()
			if err != nil {
				return nil, nil, fmt.Errorf("schedule %q: %w", fc.DefaultSchedule, err)
			}
			registry.Register(calendar.DefaultScheduleID, cal)
		}
	}

	policies := DefaultPolicies()
	var err error
	for name, p := range fc.Policies {
		priority := domain.TicketPriority(name)
		if !priority.Valid() {
			return nil, nil, fmt.Errorf("policy for unknown priority %q", name)
		}
		policy := policies[priority]
		if p.FirstResponse != "" {
			if policy.FirstResponse, err = parsePositive(p.FirstResponse); err != nil {
				return nil, nil, fmt.Errorf("policy %q first_response: %w", name, err)
			}
		}
		if p.Resolution != "" {
			if policy.Resolution, err = parsePositive(p.Resolution); err != nil {
				return nil, nil, fmt.Errorf("policy %q resolution: %w", name, err)
			}
		}
		if p.Schedule != "" {
			if !registry.Has(p.Schedule) {
				return nil, nil, fmt.Errorf("policy %q references unknown schedule %q", name, p.Schedule)
			}
			policy.ScheduleID = p.Schedule
		}
		policies[priority] = policy
	}
	return policies, registry, nil
}

var errNotPositive = errors.New("duration must be positive")

func parsePositive(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errNotPositive
	}
	return d, nil
}
