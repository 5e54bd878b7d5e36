package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"supportportal.io/portal/internal/domain"
)

const roleColumns = `id, name, description, can_view_all_clients, can_create_client, can_edit_client,
	can_delete_client, can_manage_users, can_manage_roles, can_manage_custom_fields`

func roleDest(r *domain.Role) []any {
	return []any{
		&r.ID, &r.Name, &r.Description, &r.CanViewAllClients, &r.CanCreateClient, &r.CanEditClient,
		&r.CanDeleteClient, &r.CanManageUsers, &r.CanManageRoles, &r.CanManageCustomFields,
	}
}

func roleFlags(r *domain.Role) []any {
	return []any{
		r.Name, r.Description, r.CanViewAllClients, r.CanCreateClient, r.CanEditClient,
		r.CanDeleteClient, r.CanManageUsers, r.CanManageRoles, r.CanManageCustomFields,
	}
}

// ListRoles returns all roles ordered by name.
func (q *Queries) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	rows, err := q.db.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, mapErr(err, "list roles")
	}
	defer rows.Close()

	var out []*domain.Role
	for rows.Next() {
		var r domain.Role
		if err := rows.Scan(roleDest(&r)...); err != nil {
			return nil, mapErr(err, "scan role")
		}
		out = append(out, &r)
	}
	return out, mapErr(rows.Err(), "list roles")
}

// GetRole loads one role.
func (q *Queries) GetRole(ctx context.Context, id int64) (*domain.Role, error) {
	var r domain.Role
	if err := q.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id).Scan(roleDest(&r)...); err != nil {
		return nil, mapErr(err, fmt.Sprintf("get role %d", id))
	}
	return &r, nil
}

// UpdateRole overwrites a role's name, description and flags.
func (q *Queries) UpdateRole(ctx context.Context, r *domain.Role) error {
	args := append(roleFlags(r), r.ID)
	tag, err := q.db.Exec(ctx, `UPDATE roles SET name = $1, description = $2,
		can_view_all_clients = $3, can_create_client = $4, can_edit_client = $5, can_delete_client = $6,
		can_manage_users = $7, can_manage_roles = $8, can_manage_custom_fields = $9
		WHERE id = $10`, args...)
	return expectOne(tag, err, fmt.Sprintf("update role %d", r.ID))
}

// UpsertRoleByName creates the role or overwrites the one with the same name.
func (q *Queries) UpsertRoleByName(ctx context.Context, r *domain.Role) error {
	err := q.db.QueryRow(ctx, `INSERT INTO roles (name, description,
		can_view_all_clients, can_create_client, can_edit_client, can_delete_client,
		can_manage_users, can_manage_roles, can_manage_custom_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description,
			can_view_all_clients = EXCLUDED.can_view_all_clients, can_create_client = EXCLUDED.can_create_client,
			can_edit_client = EXCLUDED.can_edit_client, can_delete_client = EXCLUDED.can_delete_client,
			can_manage_users = EXCLUDED.can_manage_users, can_manage_roles = EXCLUDED.can_manage_roles,
			can_manage_custom_fields = EXCLUDED.can_manage_custom_fields
		RETURNING id`, roleFlags(r)...).Scan(&r.ID)
	return mapErr(err, "upsert role "+r.Name)
}

const userSelect = `SELECT u.id, u.email, u.first_name, u.last_name, u.password_hash, u.role_id,
	u.is_active, u.is_superuser, u.created_at,
	r.id, r.name, r.description, r.can_view_all_clients, r.can_create_client, r.can_edit_client,
	r.can_delete_client, r.can_manage_users, r.can_manage_roles, r.can_manage_custom_fields
	FROM users u LEFT JOIN roles r ON r.id = u.role_id`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var (
		roleID                               *int64
		name, desc                           *string
		view, create, edit, del, mu, mr, mcf *bool
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.RoleID,
		&u.IsActive, &u.IsSuperuser, &u.CreatedAt,
		&roleID, &name, &desc, &view, &create, &edit, &del, &mu, &mr, &mcf)
	if err != nil {
		return nil, err
	}
	if roleID != nil {
		u.Role = &domain.Role{
			ID:                    *roleID,
			Name:                  *name,
			Description:           *desc,
			CanViewAllClients:     *view,
			CanCreateClient:       *create,
			CanEditClient:         *edit,
			CanDeleteClient:       *del,
			CanManageUsers:        *mu,
			CanManageRoles:        *mr,
			CanManageCustomFields: *mcf,
		}
	}
	return &u, nil
}

// GetUser loads a user with its role.
func (q *Queries) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get user %d", id))
	}
	return u, nil
}

// GetUserByEmail loads a user by case-insensitive email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, userSelect+` WHERE lower(u.email) = lower($1)`, email))
	if err != nil {
		return nil, mapErr(err, "get user by email")
	}
	return u, nil
}

// ListUsers returns users ordered by name. activeOnly hides deactivated accounts.
func (q *Queries) ListUsers(ctx context.Context, activeOnly bool) ([]*domain.User, error) {
	sql := userSelect
	if activeOnly {
		sql += ` WHERE u.is_active`
	}
	rows, err := q.db.Query(ctx, sql+` ORDER BY u.last_name, u.first_name, u.id`)
	if err != nil {
		return nil, mapErr(err, "list users")
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr(err, "scan user")
		}
		out = append(out, u)
	}
	return out, mapErr(rows.Err(), "list users")
}

// InsertUser stores a user.
func (q *Queries) InsertUser(ctx context.Context, u *domain.User) error {
	err := q.db.QueryRow(ctx, `INSERT INTO users (email, first_name, last_name, password_hash, role_id, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		u.Email, u.FirstName, u.LastName, u.PasswordHash, u.RoleID, u.IsActive, u.IsSuperuser,
	).Scan(&u.ID, &u.CreatedAt)
	return mapErr(err, "insert user")
}

// UpdateUser overwrites a user's profile, role and flags. The password hash is untouched.
func (q *Queries) UpdateUser(ctx context.Context, u *domain.User) error {
	tag, err := q.db.Exec(ctx, `UPDATE users SET email = $1, first_name = $2, last_name = $3,
		role_id = $4, is_active = $5, is_superuser = $6 WHERE id = $7`,
		u.Email, u.FirstName, u.LastName, u.RoleID, u.IsActive, u.IsSuperuser, u.ID)
	return expectOne(tag, err, fmt.Sprintf("update user %d", u.ID))
}

// SetPassword stores a new password hash.
func (q *Queries) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := q.db.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	return expectOne(tag, err, fmt.Sprintf("set password of user %d", id))
}

// DeleteUser removes a user. Authored rows keep a NULL reference.
func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return expectOne(tag, err, fmt.Sprintf("delete user %d", id))
}
