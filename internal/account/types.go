package account

import "time"

// Status is the lifecycle state of an account.
type Status string

const (
	StatusPending       Status = "pending"
	StatusUninitialized Status = "uninitialized"
	StatusActive        Status = "active"
	StatusBanned        Status = "banned"
	StatusClosed        Status = "closed"
)

// Role is a tenant-scoped privilege level.
type Role string

const (
	RoleOwner           Role = "owner"
	RoleAdmin           Role = "admin"
	RoleEditor          Role = "editor"
	RoleNormal          Role = "normal"
	RoleDatasetOperator Role = "dataset_operator"
)

// ValidRole reports whether the string names a known role.
func ValidRole(role string) bool {
	switch Role(role) {
	case RoleOwner, RoleAdmin, RoleEditor, RoleNormal, RoleDatasetOperator:
		return true
	}
	return false
}

// Privileged reports whether the role can manage the workspace.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleAdmin
}

// CanEdit reports whether the role can modify workspace resources.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleEditor
}

// Account is the identity record for one federated user. Accounts are
// created on first successful federation and never deleted here.
type Account struct {
	ID          string
	Email       string
	Name        string
	Avatar      string
	Status      Status
	LastLoginAt *time.Time
	LastLoginIP string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership relates an account to a tenant with a role. At most one
// membership exists per (tenant, account) pair.
type Membership struct {
	ID        string
	TenantID  string
	AccountID string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolveRole picks the effective role from the identity provider's role
// claim, by descending priority, falling back to the deployment default.
// The claim is duck-typed upstream data and is never trusted as validated.
func ResolveRole(claim []string, fallback string) Role {
	role := RoleNormal
	if ValidRole(fallback) {
		role = Role(fallback)
	}
	has := func(want Role) bool {
		for _, c := range claim {
			if Role(c) == want {
				return true
			}
		}
		return false
	}
	switch {
	case has(RoleAdmin):
		return RoleAdmin
	case has(RoleEditor):
		return RoleEditor
	case has(RoleNormal):
		return RoleNormal
	}
	return role
}
