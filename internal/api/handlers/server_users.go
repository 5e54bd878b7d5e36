package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"supportportal.io/portal/internal/api/middleware"
	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
)

// ListUsers handles GET /api/auth/users.
func (s *Server) ListUsers(c *gin.Context) {
	users, err := s.queries.ListUsers(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

type calendarUser struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

// ListCalendarUsers handles GET /api/auth/users/for-calendar. Any signed-in
// user may read it, so only names are exposed.
func (s *Server) ListCalendarUsers(c *gin.Context) {
	users, err := s.queries.ListUsers(c.Request.Context(), true)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	out := make([]calendarUser, 0, len(users))
	for _, u := range users {
		out = append(out, calendarUser{ID: u.ID, FullName: u.FullName()})
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

// GetUser handles GET /api/auth/users/:id.
func (s *Server) GetUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := s.queries.GetUser(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeUserNotFound, "user not found"))
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

type createUserRequest struct {
	Email       string `json:"email" binding:"required"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Password    string `json:"password" binding:"required"`
	RoleID      *int64 `json:"role_id"`
	IsActive    *bool  `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
}

// CreateUser handles POST /api/auth/users.
func (s *Server) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if !strings.Contains(email, "@") {
		_ = c.Error(apperrors.ErrInvalidRequestf("email %q is not valid", email))
		return
	}
	if err := s.checkPassword(req.Password); err != nil {
		_ = c.Error(err)
		return
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternal, "could not hash password", http.StatusInternalServerError))
		return
	}

	user := &domain.User{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		RoleID:       req.RoleID,
		IsActive:     req.IsActive == nil || *req.IsActive,
		IsSuperuser:  req.IsSuperuser,
	}
	ctx := c.Request.Context()
	if err := s.queries.InsertUser(ctx, user); err != nil {
		_ = c.Error(userWriteError(err))
		return
	}
	_ = s.audit.LogUserChange(ctx, "create", user.ID, actorFromCtx(ctx))

	created, err := s.queries.GetUser(ctx, user.ID)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(created))
}

type updateUserRequest struct {
	Email       *string `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Password    *string `json:"password"`
	RoleID      *int64  `json:"role_id"`
	ClearRole   bool    `json:"clear_role"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// UpdateUser handles PATCH /api/auth/users/:id. Only supplied fields change.
func (s *Server) UpdateUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user, err := s.queries.GetUser(ctx, id)
	if err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeUserNotFound, "user not found"))
		return
	}
	self := id == middleware.GetUserID(ctx)
	if self && ((req.IsActive != nil && !*req.IsActive) || (req.IsSuperuser != nil && !*req.IsSuperuser && user.IsSuperuser)) {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "you cannot deactivate or demote yourself"))
		return
	}

	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
		if !strings.Contains(user.Email, "@") {
			_ = c.Error(apperrors.ErrInvalidRequestf("email %q is not valid", user.Email))
			return
		}
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	switch {
	case req.ClearRole:
		user.RoleID = nil
	case req.RoleID != nil:
		user.RoleID = req.RoleID
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.IsSuperuser != nil {
		user.IsSuperuser = *req.IsSuperuser
	}

	var hash string
	if req.Password != nil && *req.Password != "" {
		if err := s.checkPassword(*req.Password); err != nil {
			_ = c.Error(err)
			return
		}
		if hash, err = HashPassword(*req.Password); err != nil {
			_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternal, "could not hash password", http.StatusInternalServerError))
			return
		}
	}

	if err := s.queries.UpdateUser(ctx, user); err != nil {
		_ = c.Error(userWriteError(err))
		return
	}
	if hash != "" {
		if err := s.queries.SetPassword(ctx, id, hash); err != nil {
			_ = c.Error(persistence(err))
			return
		}
	}
	_ = s.audit.LogUserChange(ctx, "update", id, actorFromCtx(ctx))

	updated, err := s.queries.GetUser(ctx, id)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	c.JSON(http.StatusOK, newUserResponse(updated))
}

// DeleteUser handles DELETE /api/auth/users/:id.
func (s *Server) DeleteUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if id == middleware.GetUserID(ctx) {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "you cannot delete yourself"))
		return
	}
	if err := s.queries.DeleteUser(ctx, id); err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeUserNotFound, "user not found"))
		return
	}
	_ = s.audit.LogUserChange(ctx, "delete", id, actorFromCtx(ctx))
	c.Status(http.StatusNoContent)
}

// userWriteError maps a duplicate email to EMAIL_ALREADY_EXISTS and a
// dangling role reference to ROLE_NOT_FOUND.
func userWriteError(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		return apperrors.Wrap(err, apperrors.CodeEmailTaken, "a user with this email already exists", http.StatusConflict)
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.Wrap(err, apperrors.CodeRoleNotFound, "role not found", http.StatusBadRequest)
	}
	return persistence(err)
}

// ListRoles handles GET /api/auth/roles.
func (s *Server) ListRoles(c *gin.Context) {
	roles, err := s.queries.ListRoles(c.Request.Context())
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	if roles == nil {
		roles = []*domain.Role{}
	}
	c.JSON(http.StatusOK, gin.H{"items": roles})
}

type updateRoleRequest struct {
	Description           *string `json:"description"`
	CanViewAllClients     *bool   `json:"can_view_all_clients"`
	CanCreateClient       *bool   `json:"can_create_client"`
	CanEditClient         *bool   `json:"can_edit_client"`
	CanDeleteClient       *bool   `json:"can_delete_client"`
	CanManageUsers        *bool   `json:"can_manage_users"`
	CanManageRoles        *bool   `json:"can_manage_roles"`
	CanManageCustomFields *bool   `json:"can_manage_custom_fields"`
}

func setFlag(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// UpdateRole handles PATCH /api/auth/roles/:id. Role names are fixed; only
// the description and permission flags are editable.
func (s *Server) UpdateRole(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	role, err := s.queries.GetRole(ctx, id)
	if err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeRoleNotFound, "role not found"))
		return
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	setFlag(&role.CanViewAllClients, req.CanViewAllClients)
	setFlag(&role.CanCreateClient, req.CanCreateClient)
	setFlag(&role.CanEditClient, req.CanEditClient)
	setFlag(&role.CanDeleteClient, req.CanDeleteClient)
	setFlag(&role.CanManageUsers, req.CanManageUsers)
	setFlag(&role.CanManageRoles, req.CanManageRoles)
	setFlag(&role.CanManageCustomFields, req.CanManageCustomFields)

	if err := s.queries.UpdateRole(ctx, role); err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeRoleNotFound, "role not found"))
		return
	}
	s.logAudit(ctx, "role.update", "role", role.Name, map[string]any{"permissions": role.Permissions()})
	c.JSON(http.StatusOK, role)
}
