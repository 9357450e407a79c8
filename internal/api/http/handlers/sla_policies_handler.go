package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-sla/internal/sla"
)

// PolicyLister exposes the SLA policies in force.
type PolicyLister interface {
	Policies() []sla.PolicyView
}

// SLAPoliciesHandler serves the read-only policy listing.
type SLAPoliciesHandler struct {
	policies PolicyLister
}

// NewSLAPoliciesHandler constructs handler.
func NewSLAPoliciesHandler(policies PolicyLister) *SLAPoliciesHandler {
	return &SLAPoliciesHandler{policies: policies}
}

// List GET /sla-policies.
func (h *SLAPoliciesHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.policies.Policies()})
}
