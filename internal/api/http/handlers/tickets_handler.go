package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-sla/internal/api/dto"
	"github.com/spec-kit/support-sla/internal/auth"
	"github.com/spec-kit/support-sla/internal/domain"
	"github.com/spec-kit/support-sla/internal/repository"
	"github.com/spec-kit/support-sla/internal/service"
	"github.com/spec-kit/support-sla/internal/sla"
	apperrors "github.com/spec-kit/support-sla/pkg/util/errorutil"
)

// TicketService is the lifecycle surface the ticket endpoints need.
type TicketService interface {
	CreateTicket(ctx context.Context, input service.TicketCreateInput, reporterID int64) (*domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error)
	ListMessages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
	ListEvents(ctx context.Context, ticketID string) ([]domain.EventLogEntry, error)
	AddMessage(ctx context.Context, ticketID, body string, role domain.AuthorRole) (*domain.TicketMessage, error)
	TransitionStatus(ctx context.Context, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error)
	PauseSLA(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ResumeSLA(ctx context.Context, ticketID string) (*domain.Ticket, error)
	SLAStatus(ctx context.Context, ticketID string) (sla.Report, error)
	SubmitSatisfaction(ctx context.Context, ticketID string, reporterID int64, rating int, comment string) (*domain.Ticket, error)
}

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Subject) == "" {
		return apperrors.NewValidationError("subject required", nil)
	}

	input := service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
		Channel:     req.Channel,
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), input, principal.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets. Customers only see their own tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	filter := parseTicketQuery(c)
	if principal.Role == auth.RoleCustomer {
		filter.ReporterID = &principal.UserID
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.visibleTicket(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListMessages GET /tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	ticket, err := h.visibleTicket(c)
	if err != nil {
		return err
	}
	msgs, err := h.service.ListMessages(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	items := make([]dto.TicketMessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, dto.NewTicketMessageResponse(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddMessage POST /tickets/:id/messages. The author role comes from the token.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.visibleTicket(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperrors.NewValidationError("body required", nil)
	}
	msg, err := h.service.AddMessage(c.UserContext(), ticket.ID, req.Body, principal.Role.AuthorRole())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketMessageResponse(msg)})
}

// ListEvents GET /tickets/:id/events.
func (h *TicketsHandler) ListEvents(c *fiber.Ctx) error {
	entries, err := h.service.ListEvents(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketEventResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewTicketEventResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Transitions GET /tickets/:id/transitions.
func (h *TicketsHandler) Transitions(c *fiber.Ctx) error {
	ticket, err := h.visibleTicket(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TransitionsResponse{
		Status: ticket.Status,
		Next:   domain.NextStatuses(ticket.Status),
	}})
}

// UpdateStatus POST /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.service.TransitionStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// PauseSLA POST /tickets/:id/sla/pause.
func (h *TicketsHandler) PauseSLA(c *fiber.Ctx) error {
	ticket, err := h.service.PauseSLA(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ResumeSLA POST /tickets/:id/sla/resume.
func (h *TicketsHandler) ResumeSLA(c *fiber.Ctx) error {
	ticket, err := h.service.ResumeSLA(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// SLAStatus GET /tickets/:id/sla.
func (h *TicketsHandler) SLAStatus(c *fiber.Ctx) error {
	ticket, err := h.visibleTicket(c)
	if err != nil {
		return err
	}
	report, err := h.service.SLAStatus(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLAStatusResponse{TicketID: ticket.ID, Report: report}})
}

// SubmitSatisfaction POST /tickets/:id/satisfaction.
func (h *TicketsHandler) SubmitSatisfaction(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	visible, err := h.visibleTicket(c)
	if err != nil {
		return err
	}
	var req dto.SatisfactionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.SubmitSatisfaction(c.UserContext(), visible.ID, principal.UserID, req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// visibleTicket loads the ticket in :id, hiding other reporters' tickets from customers.
func (h *TicketsHandler) visibleTicket(c *fiber.Ctx) (*domain.Ticket, error) {
	principal, err := requirePrincipal(c)
	if err != nil {
		return nil, err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if principal.Role == auth.RoleCustomer && ticket.ReporterID != principal.UserID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": c.Params("id")})
	}
	return ticket, nil
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		filter.SearchTerm = &search
	}
	filter.CreatedFrom = parseTime(c.Query("created_from"))
	filter.CreatedTo = parseTime(c.Query("created_to"))
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
