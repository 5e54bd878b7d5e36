package domain

import "time"

// Permission names carried in access tokens and checked by route guards.
const (
	PermViewAllClients     = "can_view_all_clients"
	PermCreateClient       = "can_create_client"
	PermEditClient         = "can_edit_client"
	PermDeleteClient       = "can_delete_client"
	PermManageUsers        = "can_manage_users"
	PermManageRoles        = "can_manage_roles"
	PermManageCustomFields = "can_manage_custom_fields"
)

// AllPermissions lists every permission flag.
var AllPermissions = []string{
	PermViewAllClients,
	PermCreateClient,
	PermEditClient,
	PermDeleteClient,
	PermManageUsers,
	PermManageRoles,
	PermManageCustomFields,
}

// Role is a named permission set.
type Role struct {
	ID                    int64  `json:"id" yaml:"-"`
	Name                  string `json:"name" yaml:"name"`
	Description           string `json:"description" yaml:"description"`
	CanViewAllClients     bool   `json:"can_view_all_clients" yaml:"can_view_all_clients"`
	CanCreateClient       bool   `json:"can_create_client" yaml:"can_create_client"`
	CanEditClient         bool   `json:"can_edit_client" yaml:"can_edit_client"`
	CanDeleteClient       bool   `json:"can_delete_client" yaml:"can_delete_client"`
	CanManageUsers        bool   `json:"can_manage_users" yaml:"can_manage_users"`
	CanManageRoles        bool   `json:"can_manage_roles" yaml:"can_manage_roles"`
	CanManageCustomFields bool   `json:"can_manage_custom_fields" yaml:"can_manage_custom_fields"`
}

// Permissions returns the names of the flags the role grants.
func (r *Role) Permissions() []string {
	if r == nil {
		return nil
	}
	flags := []bool{
		r.CanViewAllClients,
		r.CanCreateClient,
		r.CanEditClient,
		r.CanDeleteClient,
		r.CanManageUsers,
		r.CanManageRoles,
		r.CanManageCustomFields,
	}
	out := make([]string, 0, len(flags))
	for i, on := range flags {
		if on {
			out = append(out, AllPermissions[i])
		}
	}
	return out
}

// User is a portal operator.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	RoleID       *int64    `json:"role_id"`
	Role         *Role     `json:"role,omitempty"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName is "First Last", falling back to the email.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}

// Permissions returns the effective permissions. Superusers hold all of them.
func (u *User) Permissions() []string {
	if u.IsSuperuser {
		out := make([]string, len(AllPermissions))
		copy(out, AllPermissions)
		return out
	}
	return u.Role.Permissions()
}
