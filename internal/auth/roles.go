package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-sla/internal/domain"
)

// Role is the caller's role as carried in the bearer token.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAI       Role = "ai"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAI, RoleAdmin:
		return true
	}
	return false
}

// AuthorRole maps the caller role onto the message author role.
func (r Role) AuthorRole() domain.AuthorRole {
	switch r {
	case RoleCustomer:
		return domain.AuthorRoleCustomer
	case RoleAI:
		return domain.AuthorRoleAI
	default:
		return domain.AuthorRoleAgent
	}
}

// RequireRole ensures the principal has one of the allowed roles. Admin always passes.
func RequireRole(allowed ...Role) fiber.Handler {
	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if principal.Role == RoleAdmin || len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// RequireStaff admits agents, AI assistants and admins.
func RequireStaff() fiber.Handler {
	return RequireRole(RoleAgent, RoleAI)
}
