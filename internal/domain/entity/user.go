package entity

import "time"

// Role is a user's role within their company.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleEmployee || r == RoleManager || r == RoleAdmin
}

// User represents an account within a company. ManagerID is only meaningful
// for employees.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CompanyID string    `json:"company_id"`
	ManagerID string    `json:"manager_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor is the identity triple supplied by the external auth layer for every
// workflow call. The engine trusts it and performs no authentication itself;
// it is always passed explicitly, never read from ambient state.
type Actor struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	CompanyID string `json:"company_id"`
}
