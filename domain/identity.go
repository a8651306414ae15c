// Package domain contains core concepts of the chat system.
// This file defines identities and roles.
// No runtime, network, or UI logic should be added here.
package domain

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Identity is produced once per connection by the credential gate
// and is immutable for the connection's lifetime.
type Identity struct {
	UserID string
	Role   Role
}

func (r Role) Known() bool {
	return r == RoleAdmin || r == RoleUser
}
