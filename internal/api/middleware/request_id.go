package middleware

import (
	"context"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDHeader is the HTTP header for request tracing.
	RequestIDHeader = "X-Request-ID"

	ctxKeyRequestID   contextKey = "request_id"
	ctxKeyUserID      contextKey = "user_id"
	ctxKeyEmail       contextKey = "email"
	ctxKeyPermissions contextKey = "permissions"
)

// RequestID injects a unique request ID into the context and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			id, _ := uuid.NewV7()
			rid = id.String()
		}
		c.Set(string(ctxKeyRequestID), rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), ctxKeyRequestID, rid),
		)
		c.Next()
	}
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// SetUserContext stores authenticated user info in context.
func SetUserContext(ctx context.Context, userID int64, email string, permissions []string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID, userID)
	ctx = context.WithValue(ctx, ctxKeyEmail, email)
	ctx = context.WithValue(ctx, ctxKeyPermissions, permissions)
	return ctx
}

// GetUserID extracts user ID from context. Zero means anonymous.
func GetUserID(ctx context.Context) int64 {
	if v, ok := ctx.Value(ctxKeyUserID).(int64); ok {
		return v
	}
	return 0
}

// ActorID returns the user ID as a nullable actor reference.
func ActorID(ctx context.Context) *int64 {
	id := GetUserID(ctx)
	if id == 0 {
		return nil
	}
	return &id
}

// GetEmail extracts the user email from context.
func GetEmail(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyEmail).(string); ok {
		return v
	}
	return ""
}

// GetPermissions extracts the permission list from context.
func GetPermissions(ctx context.Context) []string {
	if v, ok := ctx.Value(ctxKeyPermissions).([]string); ok {
		return v
	}
	return nil
}

// HasPermission reports whether the authenticated user holds permission.
func HasPermission(ctx context.Context, permission string) bool {
	return slices.Contains(GetPermissions(ctx), permission)
}
