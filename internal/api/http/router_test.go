package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-sla/internal/api/http/handlers"
	"github.com/spec-kit/support-sla/internal/auth"
	"github.com/spec-kit/support-sla/internal/domain"
	"github.com/spec-kit/support-sla/internal/health"
	"github.com/spec-kit/support-sla/internal/observability"
	"github.com/spec-kit/support-sla/internal/repository"
	"github.com/spec-kit/support-sla/internal/service"
	"github.com/spec-kit/support-sla/internal/sla"
	"github.com/spec-kit/support-sla/internal/tenancy"
	apperrors "github.com/spec-kit/support-sla/pkg/util/errorutil"
)

const (
	ownTicketID   = "4a0f7c2e-4a53-4e0a-9d7e-0d1c8f3b2a11"
	otherTicketID = "9b1e2d3c-5f64-4a7b-8c9d-1e2f3a4b5c6d"
)

type stubTickets struct {
	tickets    map[string]*domain.Ticket
	lastFilter repository.TicketFilter
	created    *domain.Ticket
	transition error
	rated      int
}

func newStubTickets() *stubTickets {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &stubTickets{tickets: map[string]*domain.Ticket{
		ownTicketID:   {ID: ownTicketID, TenantID: 1, ReporterID: 10, Status: domain.TicketStatusOpen, CreatedAt: now},
		otherTicketID: {ID: otherTicketID, TenantID: 1, ReporterID: 11, Status: domain.TicketStatusNew, CreatedAt: now},
	}}
}

func (s *stubTickets) CreateTicket(ctx context.Context, input service.TicketCreateInput, reporterID int64) (*domain.Ticket, error) {
	tenantID, _ := tenancy.FromContext(ctx)
	s.created = &domain.Ticket{ID: "new", TenantID: tenantID, ReporterID: reporterID, Subject: input.Subject, Status: domain.TicketStatusNew}
	return s.created, nil
}

func (s *stubTickets) GetTicket(_ context.Context, id string) (*domain.Ticket, error) {
	t, ok := s.tickets[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return t, nil
}

func (s *stubTickets) ListTickets(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s.lastFilter = filter
	return []domain.Ticket{*s.tickets[ownTicketID]}, nil
}

func (s *stubTickets) ListMessages(context.Context, string) ([]domain.TicketMessage, error) {
	return nil, nil
}

func (s *stubTickets) ListEvents(context.Context, string) ([]domain.EventLogEntry, error) {
	return nil, nil
}

func (s *stubTickets) AddMessage(_ context.Context, id, body string, role domain.AuthorRole) (*domain.TicketMessage, error) {
	return &domain.TicketMessage{ID: "m1", TicketID: id, Body: body, AuthorRole: role}, nil
}

func (s *stubTickets) TransitionStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if s.transition != nil {
		return nil, s.transition
	}
	t, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Status = status
	return t, nil
}

func (s *stubTickets) PauseSLA(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.GetTicket(ctx, id)
}

func (s *stubTickets) ResumeSLA(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.GetTicket(ctx, id)
}

func (s *stubTickets) SLAStatus(context.Context, string) (sla.Report, error) {
	return sla.Report{Status: sla.StatusOnTrack}, nil
}

func (s *stubTickets) SubmitSatisfaction(ctx context.Context, id string, reporterID int64, rating int, _ string) (*domain.Ticket, error) {
	t, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.ReporterID != reporterID {
		return nil, apperrors.NewForbidden("only the reporter can rate a ticket")
	}
	s.rated = rating
	t.SatisfactionRating = &rating
	return t, nil
}

type stubScorer struct{ asked int64 }

func (s *stubScorer) Breakdown(_ context.Context, tenantID int64) health.Breakdown {
	s.asked = tenantID
	return health.Breakdown{TenantID: tenantID, Score: 100, Category: health.CategoryFor(100)}
}

type stubSweep struct{ runs int }

func (s *stubSweep) Run(context.Context) (service.SweepResult, error) {
	s.runs++
	return service.SweepResult{Checked: 3, Breached: 1}, nil
}

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	tickets *stubTickets
	scorer  *stubScorer
	sweep   *stubSweep
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		tokens:  auth.NewTokenManager("test-secret", 5),
		tickets: newStubTickets(),
		scorer:  &stubScorer{},
		sweep:   &stubSweep{},
	}
	metrics := observability.NewMetrics("test")
	ts.app = fiber.New()
	RegisterMiddlewares(ts.app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(ts.app, RouteConfig{
		Health:         handlers.NewHealthHandler("support-sla-engine", "test", nil),
		Tickets:        handlers.NewTicketsHandler(ts.tickets),
		Tenants:        handlers.NewTenantsHandler(ts.scorer, ts.sweep),
		SLAPolicies:    handlers.NewSLAPoliciesHandler(sla.NewPlanner(nil, nil)),
		AuthMiddleware: auth.NewAuthMiddleware(ts.tokens),
		Metrics:        metrics,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, userID int64, role auth.Role) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		token, _, err := ts.tokens.GenerateToken(userID, 1, role)
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp.StatusCode, payload
}

func errorCode(payload map[string]any) string {
	errObj, _ := payload["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func TestRoutesRequireAuthentication(t *testing.T) {
	ts := newTestServer(t)
	status, payload := ts.do(t, http.MethodGet, "/api/v1/tickets", "", 0, "")
	if status != http.StatusUnauthorized || errorCode(payload) != apperrors.CodeUnauthorized {
		t.Errorf("status=%d code=%q", status, errorCode(payload))
	}
}

func TestStaffRoutesRejectCustomers(t *testing.T) {
	ts := newTestServer(t)
	paths := []struct{ method, path, body string }{
		{http.MethodPost, "/api/v1/tickets/" + ownTicketID + "/status", `{"status":"resolved"}`},
		{http.MethodPost, "/api/v1/tickets/" + ownTicketID + "/sla/pause", ""},
		{http.MethodGet, "/api/v1/tickets/" + ownTicketID + "/events", ""},
		{http.MethodGet, "/api/v1/tenants/health-score", ""},
		{http.MethodPost, "/api/v1/admin/sla/sweep", ""},
	}
	for _, p := range paths {
		status, payload := ts.do(t, p.method, p.path, p.body, 10, auth.RoleCustomer)
		if status != http.StatusForbidden || errorCode(payload) != apperrors.CodeForbidden {
			t.Errorf("%s %s: status=%d code=%q", p.method, p.path, status, errorCode(payload))
		}
	}
}

func TestCustomersOnlySeeOwnTickets(t *testing.T) {
	ts := newTestServer(t)

	if status, _ := ts.do(t, http.MethodGet, "/api/v1/tickets/"+ownTicketID, "", 10, auth.RoleCustomer); status != http.StatusOK {
		t.Errorf("own ticket status = %d", status)
	}
	status, payload := ts.do(t, http.MethodGet, "/api/v1/tickets/"+otherTicketID, "", 10, auth.RoleCustomer)
	if status != http.StatusNotFound || errorCode(payload) != apperrors.CodeNotFound {
		t.Errorf("other ticket status=%d code=%q", status, errorCode(payload))
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/v1/tickets/"+otherTicketID, "", 20, auth.RoleAgent); status != http.StatusOK {
		t.Errorf("agent view status = %d", status)
	}

	if status, _ := ts.do(t, http.MethodGet, "/api/v1/tickets?status=open", "", 10, auth.RoleCustomer); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if ts.tickets.lastFilter.ReporterID == nil || *ts.tickets.lastFilter.ReporterID != 10 {
		t.Errorf("customer list not scoped to reporter: %+v", ts.tickets.lastFilter)
	}
}

func TestCreateTicketUsesPrincipal(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodPost, "/api/v1/tickets", `{"subject":"Printer on fire","priority":"high"}`, 10, auth.RoleCustomer)
	if status != http.StatusCreated {
		t.Fatalf("status = %d", status)
	}
	if ts.tickets.created.ReporterID != 10 || ts.tickets.created.TenantID != 1 {
		t.Errorf("created = %+v", ts.tickets.created)
	}

	status, payload := ts.do(t, http.MethodPost, "/api/v1/tickets", `{"subject":"  "}`, 10, auth.RoleCustomer)
	if status != http.StatusBadRequest || errorCode(payload) != apperrors.CodeValidationFailed {
		t.Errorf("blank subject: status=%d code=%q", status, errorCode(payload))
	}
}

func TestMessageAuthorRoleComesFromToken(t *testing.T) {
	ts := newTestServer(t)
	status, payload := ts.do(t, http.MethodPost, "/api/v1/tickets/"+ownTicketID+"/messages", `{"body":"on it"}`, 30, auth.RoleAI)
	if status != http.StatusCreated {
		t.Fatalf("status = %d", status)
	}
	data, _ := payload["data"].(map[string]any)
	if data["author_role"] != string(domain.AuthorRoleAI) {
		t.Errorf("author_role = %v", data["author_role"])
	}
}

func TestTransitionRejectedMapsToConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.tickets.transition = apperrors.NewTransitionRejected("open", "closed")
	status, payload := ts.do(t, http.MethodPost, "/api/v1/tickets/"+ownTicketID+"/status", `{"status":"closed"}`, 20, auth.RoleAgent)
	if status != http.StatusConflict || errorCode(payload) != apperrors.CodeTransitionRejected {
		t.Errorf("status=%d code=%q", status, errorCode(payload))
	}
}

func TestTransitionsListsNextStatuses(t *testing.T) {
	ts := newTestServer(t)
	status, payload := ts.do(t, http.MethodGet, "/api/v1/tickets/"+ownTicketID+"/transitions", "", 10, auth.RoleCustomer)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	data, _ := payload["data"].(map[string]any)
	next, _ := data["next"].([]any)
	if len(next) != len(domain.NextStatuses(domain.TicketStatusOpen)) {
		t.Errorf("next = %v", next)
	}
}

func TestHealthScoreTenantScoping(t *testing.T) {
	ts := newTestServer(t)

	if status, _ := ts.do(t, http.MethodGet, "/api/v1/tenants/health-score", "", 20, auth.RoleAgent); status != http.StatusOK {
		t.Errorf("own tenant status = %d", status)
	}
	if ts.scorer.asked != 1 {
		t.Errorf("scored tenant = %d", ts.scorer.asked)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/v1/tenants/health-score?tenant_id=2", "", 20, auth.RoleAgent); status != http.StatusForbidden {
		t.Errorf("cross-tenant agent status = %d", status)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/v1/tenants/health-score?tenant_id=2", "", 1, auth.RoleAdmin); status != http.StatusOK {
		t.Errorf("cross-tenant admin status = %d", status)
	}
	if ts.scorer.asked != 2 {
		t.Errorf("scored tenant = %d", ts.scorer.asked)
	}
	if status, _ := ts.do(t, http.MethodGet, "/api/v1/tenants/health-score?tenant_id=x", "", 1, auth.RoleAdmin); status != http.StatusBadRequest {
		t.Errorf("invalid tenant status = %d", status)
	}
}

func TestAdminSweep(t *testing.T) {
	ts := newTestServer(t)
	if status, _ := ts.do(t, http.MethodPost, "/api/v1/admin/sla/sweep", "", 20, auth.RoleAgent); status != http.StatusForbidden {
		t.Errorf("agent sweep status = %d", status)
	}
	status, payload := ts.do(t, http.MethodPost, "/api/v1/admin/sla/sweep", "", 1, auth.RoleAdmin)
	if status != http.StatusOK || ts.sweep.runs != 1 {
		t.Fatalf("status=%d runs=%d", status, ts.sweep.runs)
	}
	data, _ := payload["data"].(map[string]any)
	if data["breached"] != float64(1) {
		t.Errorf("result = %v", data)
	}
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	status, payload := ts.do(t, http.MethodGet, "/nope", "", 0, "")
	if status != http.StatusNotFound || errorCode(payload) != apperrors.CodeNotFound {
		t.Errorf("unknown route status=%d code=%q", status, errorCode(payload))
	}

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "test_") {
		t.Errorf("metrics status=%d body=%q", resp.StatusCode, body)
	}
}

func TestSLAPoliciesListing(t *testing.T) {
	ts := newTestServer(t)
	status, payload := ts.do(t, http.MethodGet, "/api/v1/sla-policies", "", 10, auth.RoleCustomer)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	items, _ := payload["data"].([]any)
	if len(items) != 4 {
		t.Fatalf("policies = %d", len(items))
	}
	first, _ := items[0].(map[string]any)
	if first["priority"] != "urgent" || first["first_response_hours"] != float64(1) || first["resolution_hours"] != float64(4) {
		t.Errorf("first policy = %v", first)
	}
}

func TestSatisfactionRoute(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/v1/tickets/" + ownTicketID + "/satisfaction"

	if status, _ := ts.do(t, http.MethodPost, path, `{"rating":5}`, 20, auth.RoleAgent); status != http.StatusForbidden {
		t.Errorf("agent status = %d", status)
	}
	status, payload := ts.do(t, http.MethodPost, "/api/v1/tickets/"+otherTicketID+"/satisfaction", `{"rating":5}`, 10, auth.RoleCustomer)
	if status != http.StatusNotFound || errorCode(payload) != apperrors.CodeNotFound {
		t.Errorf("other reporter status=%d code=%q", status, errorCode(payload))
	}

	status, payload = ts.do(t, http.MethodPost, path, `{"rating":1,"comment":"slow"}`, 10, auth.RoleCustomer)
	if status != http.StatusOK || ts.tickets.rated != 1 {
		t.Fatalf("status=%d rated=%d", status, ts.tickets.rated)
	}
	data, _ := payload["data"].(map[string]any)
	if data["satisfaction_rating"] != float64(1) {
		t.Errorf("satisfaction_rating = %v", data["satisfaction_rating"])
	}
}
