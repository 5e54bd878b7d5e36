package handlers

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"supportportal.io/portal/internal/api/middleware"
	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/export"
	"supportportal.io/portal/internal/integration/ssh"
	"supportportal.io/portal/internal/jobs"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/usecase"
)

// SSH targets on the client subnet.
const (
	sshTargetMikrotik = "mikrotik"
	sshTargetServer   = "server"
)

type sshRequest struct {
	Command string `json:"command" binding:"required"`
	Target  string `json:"target"`
}

// RunSSHCommand handles POST /api/clients/:id/ssh. The command runs on the
// client's MikroTik (host .1) or server (host .2) with the shared login.
func (s *Server) RunSSHCommand(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req sshRequest
	if !bindJSON(c, &req) {
		return
	}
	client, ok := s.visibleClient(c, id)
	if !ok {
		return
	}

	var host string
	switch req.Target {
	case "", sshTargetMikrotik:
		host = client.MikrotikIP()
	case sshTargetServer:
		host = client.ServerIP()
	default:
		_ = c.Error(apperrors.ErrInvalidRequestf("target must be %q or %q", sshTargetMikrotik, sshTargetServer))
		return
	}
	if host == "" {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeSubnetMissing, "client has no valid subnet").
			WithParams(map[string]interface{}{"client_id": id}))
		return
	}

	ctx := c.Request.Context()
	settings, err := s.queries.GetSettings(ctx)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	cred, err := ssh.CredentialsFromSettings(settings, s.box)
	if err != nil {
		if errors.Is(err, ssh.ErrNotConfigured) {
			_ = c.Error(apperrors.BadRequest(apperrors.CodeSSHNotConfigured, "SSH credentials are not configured"))
			return
		}
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternal, "stored SSH password is unreadable", http.StatusInternalServerError))
		return
	}

	s.logAudit(ctx, "client.ssh", "client", strconv.FormatInt(id, 10),
		map[string]any{"host": host, "command": req.Command})

	res, err := s.ssh.Run(ctx, host, cred, req.Command)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, ssh.ErrHostKeysNotConfigured):
			_ = c.Error(apperrors.BadRequest(apperrors.CodeSSHNotConfigured, "SSH host keys are not configured"))
			return
		case errors.Is(err, ssh.ErrTimeout):
			status = http.StatusGatewayTimeout
		}
		logger.Warn("ssh command failed",
			zap.Int64("client_id", id),
			zap.String("host", host),
			zap.Error(err),
		)
		_ = c.Error(apperrors.New(apperrors.CodeSSHFailed, err.Error(), status).
			WithParams(map[string]interface{}{"host": host}))
		return
	}
	c.JSON(http.StatusOK, res)
}

type registerKKTRequest struct {
	RegIDs []string `json:"reg_ids"`
}

// RegisterKKT handles PUT /api/clients/:id/kkt. The listed registration
// numbers replace the client's current ones.
func (s *Server) RegisterKKT(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req registerKKTRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	ctx := c.Request.Context()
	out, err := s.registerKKTUC.Execute(ctx, usecase.RegisterKKTInput{
		ClientID: id,
		ActorID:  middleware.ActorID(ctx),
		RegIDs:   req.RegIDs,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if out.Items == nil {
		out.Items = []*domain.KKTData{}
	}
	c.JSON(http.StatusOK, out)
}

// ExportColumns handles GET /api/clients/export/columns.
func (s *Server) ExportColumns(c *gin.Context) {
	cols, err := s.exportClientsUC.Columns(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cols})
}

// Export delivery modes.
const (
	sendViaFile  = "file"
	sendViaEmail = "email"
)

type exportRequest struct {
	usecase.ExportClientsInput
	SendVia    string   `json:"send_via"`
	Recipients []string `json:"recipients"`
}

// ExportClients handles POST /api/clients/export. send_via=file (default)
// returns the workbook; send_via=email queues a job that mails it.
func (s *Server) ExportClients(c *gin.Context) {
	var req exportRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Columns) == 0 {
		_ = c.Error(apperrors.ErrInvalidRequestf("select at least one column"))
		return
	}
	ctx := c.Request.Context()
	if !middleware.HasPermission(ctx, domain.PermViewAllClients) {
		if len(req.ClientIDs) == 0 {
			_ = c.Error(apperrors.Forbidden(apperrors.CodeForbidden, "select the clients to export"))
			return
		}
		for _, id := range req.ClientIDs {
			if _, ok := s.visibleClient(c, id); !ok {
				return
			}
		}
	}

	switch req.SendVia {
	case "", sendViaFile:
		s.exportFile(c, req.ExportClientsInput)
	case sendViaEmail:
		s.exportEmail(c, req)
	default:
		_ = c.Error(apperrors.ErrInvalidRequestf("send_via must be %q or %q", sendViaFile, sendViaEmail))
	}
}

func (s *Server) exportFile(c *gin.Context, input usecase.ExportClientsInput) {
	var buf bytes.Buffer
	n, err := s.exportClientsUC.Execute(c.Request.Context(), input, &buf)
	if err != nil {
		_ = c.Error(err)
		return
	}
	name := export.FileName(s.now())
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Header("X-Export-Count", strconv.Itoa(n))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (s *Server) exportEmail(c *gin.Context, req exportRequest) {
	ctx := c.Request.Context()
	recipients := make([]string, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		if email := middleware.GetEmail(ctx); email != "" {
			recipients = append(recipients, email)
		}
	}
	if len(recipients) == 0 {
		_ = c.Error(apperrors.ErrInvalidRequestf("at least one recipient is required"))
		return
	}
	if s.jobs == nil {
		_ = c.Error(apperrors.New(apperrors.CodeExportFailed, "background jobs are not available", http.StatusServiceUnavailable))
		return
	}

	res, err := s.jobs.Insert(ctx, jobs.ExportEmailArgs{
		Columns:     req.Columns,
		ClientIDs:   req.ClientIDs,
		Recipients:  recipients,
		RequestedBy: actorFromCtx(ctx),
	}, nil)
	if err != nil {
		logger.Error("failed to enqueue export email", zap.Error(err))
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeExportFailed, "could not queue the export", http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": res.Job.ID, "recipients": recipients})
}
