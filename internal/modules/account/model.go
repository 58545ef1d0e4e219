// README: User accounts and roles.
package account

import (
	"time"

	"kilap/internal/types"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// IsStaff reports whether the role may work the fulfillment queues.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

type User struct {
	ID           types.ID
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Session is what the auth middleware gets back for a bearer token.
type Session struct {
	UserID types.ID
	Role   Role
}
