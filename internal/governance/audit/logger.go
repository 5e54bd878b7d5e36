// Package audit implements the audit logging services.
//
// Two append-only trails exist: per-client activity entries written by
// ActivityRecorder, and platform records (logins, settings, user management)
// written by Logger. Neither offers updates or deletes.
//
// Import Path: supportportal.io/portal/internal/governance/audit
package audit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/repository"
)

// Store persists platform audit records.
type Store interface {
	InsertAuditLog(ctx context.Context, r *repository.AuditLogRow) error
}

// Logger writes platform audit records to the database.
type Logger struct {
	store Store
}

// NewLogger creates a new audit Logger.
func NewLogger(store Store) *Logger {
	return &Logger{store: store}
}

// LogAction records an auditable action. A nil Logger is a no-op.
func (l *Logger) LogAction(ctx context.Context, action, resourceType, resourceID, actor string, details map[string]any) error {
	if l == nil || l.store == nil {
		return nil
	}
	err := l.store.InsertAuditLog(ctx, &repository.AuditLogRow{
		ID:           generateAuditID(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Actor:        actor,
		Details:      details,
	})
	if err != nil {
		logger.Error("Failed to write audit log",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// LogLogin records a sign-in attempt.
func (l *Logger) LogLogin(ctx context.Context, email string, success bool) error {
	action := "auth.login"
	if !success {
		action = "auth.login_failed"
	}
	return l.LogAction(ctx, action, "user", "", email, nil)
}

// LogUserChange records a user management operation.
func (l *Logger) LogUserChange(ctx context.Context, operation string, userID int64, actor string) error {
	return l.LogAction(ctx, "user."+operation, "user", strconv.FormatInt(userID, 10), actor, nil)
}

// LogSettingsChange records a change to one settings section.
func (l *Logger) LogSettingsChange(ctx context.Context, section, operation, actor string) error {
	return l.LogAction(ctx, "settings."+operation, "settings", section, actor, nil)
}

// LogClientDeleted records a client deletion, which removes the client's own activity trail.
func (l *Logger) LogClientDeleted(ctx context.Context, clientID int64, name, actor string) error {
	return l.LogAction(ctx, "client.delete", "client", strconv.FormatInt(clientID, 10), actor, map[string]any{
		"name": name,
	})
}

func generateAuditID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return fmt.Sprintf("audit-%s", id.String())
}
