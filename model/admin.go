package model

import "time"

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

const (
	AdminPending = "pending"
	AdminActive  = "active"
)

// Admin is an administrator account. While pending it carries a single-use
// invitation token; activation consumes the token and sets the password.
type Admin struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Role              string     `json:"role"`
	Status            string     `json:"status"`
	InviteToken       string     `json:"-"`
	InviteTokenExpiry *time.Time `json:"-"`
	CreatedBy         string     `json:"createdBy,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}
