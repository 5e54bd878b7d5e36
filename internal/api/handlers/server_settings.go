package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/integration/mail"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
)

// Settings sections.
const (
	sectionSSH  = "ssh"
	sectionSMTP = "smtp"
)

type settingsResponse struct {
	SSHUser         string    `json:"ssh_user"`
	HasSSHPassword  bool      `json:"has_ssh_password"`
	SMTPHost        string    `json:"smtp_host"`
	SMTPPort        int       `json:"smtp_port"`
	SMTPUser        string    `json:"smtp_user"`
	HasSMTPPassword bool      `json:"has_smtp_password"`
	SMTPFrom        string    `json:"smtp_from"`
	SMTPUseSSL      bool      `json:"smtp_use_ssl"`
	SMTPUseTLS      bool      `json:"smtp_use_tls"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newSettingsResponse(s domain.SystemSettings) settingsResponse {
	return settingsResponse{
		SSHUser:         s.SSHUser,
		HasSSHPassword:  s.SSHPasswordSealed != "",
		SMTPHost:        s.SMTPHost,
		SMTPPort:        s.SMTPPort,
		SMTPUser:        s.SMTPUser,
		HasSMTPPassword: s.SMTPPasswordSealed != "",
		SMTPFrom:        s.SMTPFrom,
		SMTPUseSSL:      s.SMTPUseSSL,
		SMTPUseTLS:      s.SMTPUseTLS,
		UpdatedAt:       s.UpdatedAt,
	}
}

// GetSettings handles GET /api/settings. Passwords are never returned.
func (s *Server) GetSettings(c *gin.Context) {
	settings, err := s.queries.GetSettings(c.Request.Context())
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	c.JSON(http.StatusOK, newSettingsResponse(settings))
}

type saveSettingsRequest struct {
	Section string `json:"section" binding:"required"`

	SSHUser     string  `json:"ssh_user"`
	SSHPassword *string `json:"ssh_password"`

	SMTPHost     string  `json:"smtp_host"`
	SMTPPort     int     `json:"smtp_port"`
	SMTPUser     string  `json:"smtp_user"`
	SMTPPassword *string `json:"smtp_password"`
	SMTPFrom     string  `json:"smtp_from"`
	SMTPUseSSL   bool    `json:"smtp_use_ssl"`
	SMTPUseTLS   bool    `json:"smtp_use_tls"`
}

// sealPassword returns the new sealed value for a submitted password. An
// absent password or the mask keeps current; "" clears it.
func (s *Server) sealPassword(current string, submitted *string) (string, error) {
	if submitted == nil || *submitted == domain.PasswordMask {
		return current, nil
	}
	return s.box.Seal(*submitted)
}

// SaveSettings handles POST /api/settings. Only the named section changes.
func (s *Server) SaveSettings(c *gin.Context) {
	var req saveSettingsRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	settings, err := s.queries.GetSettings(ctx)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}

	switch req.Section {
	case sectionSSH:
		settings.SSHUser = strings.TrimSpace(req.SSHUser)
		settings.SSHPasswordSealed, err = s.sealPassword(settings.SSHPasswordSealed, req.SSHPassword)
	case sectionSMTP:
		if req.SMTPUseSSL && req.SMTPUseTLS {
			_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "choose either SSL or STARTTLS, not both"))
			return
		}
		if req.SMTPPort < 0 || req.SMTPPort > 65535 {
			_ = c.Error(apperrors.ErrInvalidRequestf("smtp_port %d is out of range", req.SMTPPort))
			return
		}
		settings.SMTPHost = strings.TrimSpace(req.SMTPHost)
		settings.SMTPPort = req.SMTPPort
		settings.SMTPUser = strings.TrimSpace(req.SMTPUser)
		settings.SMTPFrom = strings.TrimSpace(req.SMTPFrom)
		settings.SMTPUseSSL = req.SMTPUseSSL
		settings.SMTPUseTLS = req.SMTPUseTLS
		settings.SMTPPasswordSealed, err = s.sealPassword(settings.SMTPPasswordSealed, req.SMTPPassword)
	default:
		_ = c.Error(apperrors.ErrInvalidRequestf("section must be %q or %q", sectionSSH, sectionSMTP))
		return
	}
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternal, "could not seal password", http.StatusInternalServerError))
		return
	}

	if err := s.queries.SaveSettings(ctx, &settings); err != nil {
		_ = c.Error(persistence(err))
		return
	}
	_ = s.audit.LogSettingsChange(ctx, req.Section, "update", actorFromCtx(ctx))
	c.JSON(http.StatusOK, newSettingsResponse(settings))
}

// ResetSettings handles DELETE /api/settings?section=ssh|smtp.
func (s *Server) ResetSettings(c *gin.Context) {
	section := c.Query("section")
	ctx := c.Request.Context()
	settings, err := s.queries.GetSettings(ctx)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}

	defaults := domain.DefaultSystemSettings()
	switch section {
	case sectionSSH:
		settings.SSHUser = defaults.SSHUser
		settings.SSHPasswordSealed = defaults.SSHPasswordSealed
	case sectionSMTP:
		settings.SMTPHost = defaults.SMTPHost
		settings.SMTPPort = defaults.SMTPPort
		settings.SMTPUser = defaults.SMTPUser
		settings.SMTPPasswordSealed = defaults.SMTPPasswordSealed
		settings.SMTPFrom = defaults.SMTPFrom
		settings.SMTPUseSSL = defaults.SMTPUseSSL
		settings.SMTPUseTLS = defaults.SMTPUseTLS
	default:
		_ = c.Error(apperrors.ErrInvalidRequestf("section must be %q or %q", sectionSSH, sectionSMTP))
		return
	}

	if err := s.queries.SaveSettings(ctx, &settings); err != nil {
		_ = c.Error(persistence(err))
		return
	}
	_ = s.audit.LogSettingsChange(ctx, section, "reset", actorFromCtx(ctx))
	c.JSON(http.StatusOK, newSettingsResponse(settings))
}

type testEmailRequest struct {
	ToEmail string `json:"to_email" binding:"required"`
}

// SendTestEmail handles POST /api/settings/test-email.
func (s *Server) SendTestEmail(c *gin.Context) {
	var req testEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	to := strings.TrimSpace(req.ToEmail)
	if !strings.Contains(to, "@") {
		_ = c.Error(apperrors.ErrInvalidRequestf("to_email %q is not valid", to))
		return
	}

	ctx := c.Request.Context()
	settings, err := s.queries.GetSettings(ctx)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	cfg, err := mail.ConfigFromSettings(settings, s.box)
	if err != nil {
		if errors.Is(err, mail.ErrNotConfigured) {
			_ = c.Error(apperrors.BadRequest(apperrors.CodeSMTPNotConfigured, err.Error()))
			return
		}
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternal, "stored SMTP password is unreadable", http.StatusInternalServerError))
		return
	}

	if err := s.newMailer(cfg).Send(ctx, mail.TestMessage(to)); err != nil {
		logger.Warn("test email failed",
			zap.String("smtp_host", cfg.Host),
			zap.Int("smtp_port", cfg.Port),
			zap.Error(err),
		)
		_ = c.Error(apperrors.New(apperrors.CodeSMTPSendFailed, err.Error(), http.StatusBadGateway))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent_to": to})
}
