package domain

import "time"

// AuthorRole indicates who authored a message or triggered an event.
type AuthorRole string

const (
	AuthorRoleCustomer AuthorRole = "customer"
	AuthorRoleAgent    AuthorRole = "agent"
	AuthorRoleAI       AuthorRole = "ai"
	AuthorRoleSystem   AuthorRole = "system"
)

// Valid reports whether r may author a ticket message.
func (r AuthorRole) Valid() bool {
	switch r {
	case AuthorRoleCustomer, AuthorRoleAgent, AuthorRoleAI:
		return true
	}
	return false
}

// CountsAsResponse reports whether a message by r satisfies first response.
func (r AuthorRole) CountsAsResponse() bool {
	return r == AuthorRoleAgent || r == AuthorRoleAI
}

// TicketMessage captures communications in a ticket thread.
type TicketMessage struct {
	ID         string
	TicketID   string
	AuthorRole AuthorRole
	Body       string
	CreatedAt  time.Time
}
