package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-sla/internal/auth"
	"github.com/spec-kit/support-sla/internal/health"
	"github.com/spec-kit/support-sla/internal/service"
	apperrors "github.com/spec-kit/support-sla/pkg/util/errorutil"
)

// HealthScorer computes tenant support health.
type HealthScorer interface {
	Breakdown(ctx context.Context, tenantID int64) health.Breakdown
}

// SweepRunner triggers an on-demand breach sweep.
type SweepRunner interface {
	Run(ctx context.Context) (service.SweepResult, error)
}

// TenantsHandler exposes tenant-level SLA reporting.
type TenantsHandler struct {
	scorer HealthScorer
	sweep  SweepRunner
}

// NewTenantsHandler constructs handler.
func NewTenantsHandler(scorer HealthScorer, sweep SweepRunner) *TenantsHandler {
	return &TenantsHandler{scorer: scorer, sweep: sweep}
}

// HealthScore GET /tenants/health-score. Admins may pass ?tenant_id.
func (h *TenantsHandler) HealthScore(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tenantID := principal.TenantID
	if raw := c.Query("tenant_id"); raw != "" {
		requested, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || requested <= 0 {
			return apperrors.NewValidationError("invalid tenant_id", map[string]any{"tenant_id": raw})
		}
		if requested != tenantID && principal.Role != auth.RoleAdmin {
			return apperrors.NewForbidden("cross-tenant access requires admin")
		}
		tenantID = requested
	}
	return c.JSON(fiber.Map{"data": h.scorer.Breakdown(c.UserContext(), tenantID)})
}

// RunSweep POST /admin/sla/sweep.
func (h *TenantsHandler) RunSweep(c *fiber.Ctx) error {
	result, err := h.sweep.Run(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
