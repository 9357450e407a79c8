package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spec-kit/support-sla/internal/domain"
	"github.com/spec-kit/support-sla/internal/events"
	"github.com/spec-kit/support-sla/internal/repository"
	"github.com/spec-kit/support-sla/internal/sla"
	apperrors "github.com/spec-kit/support-sla/pkg/util/errorutil"
)

type fakeTickets struct {
	mu    sync.Mutex
	rows  map[string]domain.Ticket
	saves int
	// conflicts makes the next Save calls lose a race against another writer.
	conflicts int
	lockHeld  bool
	unlocked  int
	getErr    map[string]error
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{rows: map[string]domain.Ticket{}, getErr: map[string]error{}}
}

func (f *fakeTickets) Create(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.Version = 1
	f.rows[t.ID] = *t
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	t, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return &t, nil
}

func (f *fakeTickets) Save(_ context.Context, t *domain.Ticket, fields ...domain.TicketField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	stored, ok := f.rows[t.ID]
	if !ok {
		return apperrors.NewNotFound("ticket", nil)
	}
	if f.conflicts > 0 {
		f.conflicts--
		stored.Version++
		f.rows[t.ID] = stored
		return apperrors.NewConcurrencyConflict(t.ID)
	}
	if stored.Version != t.Version {
		return apperrors.NewConcurrencyConflict(t.ID)
	}
	for _, field := range fields {
		switch field {
		case domain.FieldStatus:
			stored.Status = t.Status
		case domain.FieldPriority:
			stored.Priority = t.Priority
		case domain.FieldFirstRespondedAt:
			stored.FirstRespondedAt = t.FirstRespondedAt
		case domain.FieldPausedAt:
			stored.PausedAt = t.PausedAt
		case domain.FieldPausedDuration:
			stored.PausedDuration = t.PausedDuration
		case domain.FieldFirstResponseDue:
			stored.FirstResponseDue = t.FirstResponseDue
		case domain.FieldResolutionDue:
			stored.ResolutionDue = t.ResolutionDue
		case domain.FieldSLABreached:
			stored.SLABreached = t.SLABreached
		case domain.FieldResolvedAt:
			stored.ResolvedAt = t.ResolvedAt
		case domain.FieldClosedAt:
			stored.ClosedAt = t.ClosedAt
		case domain.FieldSatisfactionRating:
			stored.SatisfactionRating = t.SatisfactionRating
		case domain.FieldSatisfactionComment:
			stored.SatisfactionComment = t.SatisfactionComment
		case domain.FieldSatisfactionSubmittedAt:
			stored.SatisfactionSubmittedAt = t.SatisfactionSubmittedAt
		default:
			return errors.New("unknown field " + string(field))
		}
	}
	stored.Version++
	t.Version = stored.Version
	f.rows[t.ID] = stored
	return nil
}

func (f *fakeTickets) ListOpenIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, t := range f.rows {
		if !t.IsResolved() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeTickets) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.rows {
		if filter.TenantID != nil && t.TenantID != *filter.TenantID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTickets) StreamByTenant(ctx context.Context, tenantID int64, filter repository.TicketFilter, fn func(domain.Ticket) error) error {
	filter.TenantID = &tenantID
	list, _ := f.ListWithFilter(ctx, filter)
	for _, t := range list {
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTickets) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockHeld {
		return nil, false, nil
	}
	f.lockHeld = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lockHeld = false
		f.unlocked++
	}, true, nil
}

func (f *fakeTickets) stored(id string) domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

type fakeMessages struct {
	mu   sync.Mutex
	msgs []domain.TicketMessage
}

func (f *fakeMessages) Create(_ context.Context, m *domain.TicketMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, *m)
	return nil
}

func (f *fakeMessages) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketMessage
	for _, m := range f.msgs {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeEventLog struct {
	mu      sync.Mutex
	entries []domain.EventLogEntry
}

func (f *fakeEventLog) Append(_ context.Context, e *domain.EventLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeEventLog) ListByTicket(_ context.Context, ticketID string) ([]domain.EventLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EventLogEntry
	for _, e := range f.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventLog) CountNegative(_ context.Context, tenantID int64, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.TenantID == tenantID && e.Negative && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeEventLog) ofType(ticketID string, typ domain.EventType) []domain.EventLogEntry {
	list, _ := f.ListByTicket(context.Background(), ticketID)
	var out []domain.EventLogEntry
	for _, e := range list {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) count(typ events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc      *TicketLifecycleService
	tickets  *fakeTickets
	messages *fakeMessages
	log      *fakeEventLog
	events   *eventRecorder
	clock    *manualClock
}

var harnessStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newHarness() *harness {
	h := &harness{
		tickets:  newFakeTickets(),
		messages: &fakeMessages{},
		log:      &fakeEventLog{},
		events:   &eventRecorder{},
		clock:    &manualClock{now: harnessStart},
	}
	dispatcher := events.NewInMemoryDispatcher()
	for _, typ := range []events.EventType{
		events.EventTicketCreated, events.EventTicketFirstResponse, events.EventTicketStatusChanged,
		events.EventTicketMessageAdded, events.EventTicketSLAPaused, events.EventTicketSLAResumed,
		events.EventTicketSLABreached,
	} {
		dispatcher.Subscribe(typ, h.events.handle)
	}
	h.svc = NewTicketLifecycleService(LifecycleDependencies{
		TicketRepo:   h.tickets,
		MessageRepo:  h.messages,
		EventLogRepo: h.log,
		Dispatcher:   dispatcher,
		Clock:        sla.NewClock(h.clock.Now),
	})
	return h
}
