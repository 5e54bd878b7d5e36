package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"supportportal.io/portal/internal/api/middleware"
	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
)

const (
	passwordHashCost      = 12
	defaultMinPasswordLen = 6
)

// userResponse is a user with the effective permission flags spelled out.
type userResponse struct {
	*domain.User
	FullName    string          `json:"full_name"`
	Permissions map[string]bool `json:"permissions"`
}

func newUserResponse(u *domain.User) userResponse {
	perms := make(map[string]bool, len(domain.AllPermissions))
	for _, p := range domain.AllPermissions {
		perms[p] = false
	}
	for _, p := range u.Permissions() {
		perms[p] = true
	}
	return userResponse{User: u, FullName: u.FullName(), Permissions: perms}
}

type tokenRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	*middleware.TokenPair
	User userResponse `json:"user"`
}

var errInvalidCredentials = apperrors.Unauthorized(apperrors.CodeAuthFailed, "invalid email or password")

// ObtainToken handles POST /api/auth/token.
func (s *Server) ObtainToken(c *gin.Context) {
	var req tokenRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	email := strings.TrimSpace(req.Email)

	user, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		_ = c.Error(persistence(err))
		return
	}
	if user == nil || !user.IsActive ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		logger.Warn("login failed: invalid credentials")
		_ = s.audit.LogLogin(ctx, email, false)
		_ = c.Error(errInvalidCredentials)
		return
	}

	pair, err := middleware.GenerateTokenPair(s.jwtCfg, user)
	if err != nil {
		logger.Error("failed to generate token", zap.Error(err))
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternal, "could not issue token", http.StatusInternalServerError))
		return
	}
	_ = s.audit.LogLogin(ctx, user.Email, true)

	c.JSON(http.StatusOK, tokenResponse{TokenPair: pair, User: newUserResponse(user)})
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// RefreshToken handles POST /api/auth/token/refresh. The refresh token is
// rotated and the access token carries freshly loaded permissions.
func (s *Server) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	claims, err := s.jwtCfg.ValidateToken(req.Refresh, middleware.TokenRefresh)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeTokenInvalid, "invalid refresh token", http.StatusUnauthorized))
		return
	}

	user, err := s.queries.GetUser(c.Request.Context(), claims.UserID)
	if err != nil || !user.IsActive {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeTokenInvalid, "user is no longer active"))
		return
	}

	pair, err := middleware.GenerateTokenPair(s.jwtCfg, user)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternal, "could not issue token", http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, pair)
}

// GetCurrentUser handles GET /api/auth/users/me.
func (s *Server) GetCurrentUser(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := s.queries.GetUser(ctx, middleware.GetUserID(ctx))
	if err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeUserNotFound, "user not found"))
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword handles POST /api/auth/change-password.
func (s *Server) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	userID := middleware.GetUserID(ctx)

	user, err := s.queries.GetUser(ctx, userID)
	if err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeUserNotFound, "user not found"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidOldPassword, "current password is incorrect"))
		return
	}
	if err := s.checkPassword(req.NewPassword); err != nil {
		_ = c.Error(err)
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("failed to hash new password", zap.Error(err), zap.Int64("user_id", userID))
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternal, "could not hash password", http.StatusInternalServerError))
		return
	}
	if err := s.queries.SetPassword(ctx, userID, hash); err != nil {
		_ = c.Error(persistence(err))
		return
	}

	s.logAudit(ctx, "user.password_change", "user", strconv.FormatInt(userID, 10),
		map[string]any{"reason": "user_initiated"})
	c.Status(http.StatusNoContent)
}

func (s *Server) checkPassword(password string) error {
	if len([]rune(password)) < s.minPasswordLen {
		return apperrors.BadRequest(apperrors.CodePasswordTooShort, "password is too short").
			WithParams(map[string]interface{}{"min_length": s.minPasswordLen})
	}
	return nil
}

// HashPassword hashes a password using bcrypt (also used by portalctl).
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
