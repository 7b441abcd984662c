package models

import "time"

// Role represents operator roles in the system
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleAgent  Role = "agent"
	RoleViewer Role = "viewer"
)

// Operator is an account allowed to call the protected API
type Operator struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Operator  Operator  `json:"operator"`
}

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleAgent, RoleViewer:
		return true
	default:
		return false
	}
}

// HasPermission checks if an operator has permission for a specific action
func (o *Operator) HasPermission(action string) bool {
	switch o.Role {
	case RoleAdmin:
		return true
	case RoleAgent:
		return action == "write_records" || action == "read_records"
	case RoleViewer:
		return action == "read_records"
	default:
		return false
	}
}
