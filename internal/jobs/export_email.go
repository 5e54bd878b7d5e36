package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/export"
	"supportportal.io/portal/internal/governance/audit"
	"supportportal.io/portal/internal/integration/mail"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/pkg/secret"
	"supportportal.io/portal/internal/usecase"
)

// ExportEmailArgs requests a client export delivered by mail.
type ExportEmailArgs struct {
	Columns     []string `json:"columns"`
	ClientIDs   []int64  `json:"client_ids,omitempty"`
	Recipients  []string `json:"recipients"`
	RequestedBy string   `json:"requested_by"`
}

// Kind returns the job kind identifier for mailed exports.
func (ExportEmailArgs) Kind() string { return "export_email" }

// InsertOpts retries transient SMTP failures a few times.
func (ExportEmailArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueIntegrations,
		MaxAttempts: 3,
	}
}

// SettingsStore reads the integration settings.
type SettingsStore interface {
	GetSettings(ctx context.Context) (domain.SystemSettings, error)
}

// MailSender delivers one message. *mail.Sender implements it.
type MailSender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// ExportEmailWorker builds the workbook and mails it.
type ExportEmailWorker struct {
	river.WorkerDefaults[ExportEmailArgs]
	exporter    *usecase.ExportClientsUseCase
	settings    SettingsStore
	box         *secret.Box
	newSender   func(mail.Config) MailSender
	auditLogger *audit.Logger
	now         func() time.Time
}

// NewExportEmailWorker creates the worker.
func NewExportEmailWorker(exporter *usecase.ExportClientsUseCase, settings SettingsStore, box *secret.Box, auditLogger *audit.Logger) *ExportEmailWorker {
	return &ExportEmailWorker{
		exporter:    exporter,
		settings:    settings,
		box:         box,
		newSender:   func(cfg mail.Config) MailSender { return mail.NewSender(cfg) },
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Work runs one export. Configuration problems cancel the job instead of
// retrying it.
func (w *ExportEmailWorker) Work(ctx context.Context, job *river.Job[ExportEmailArgs]) error {
	if w == nil || w.exporter == nil || w.settings == nil {
		return fmt.Errorf("export email worker is not initialized")
	}
	args := job.Args
	if len(args.Recipients) == 0 {
		return river.JobCancel(errors.New("export email job has no recipients"))
	}

	settings, err := w.settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	cfg, err := mail.ConfigFromSettings(settings, w.box)
	if err != nil {
		return river.JobCancel(fmt.Errorf("smtp settings: %w", err))
	}

	var buf bytes.Buffer
	n, err := w.exporter.Execute(ctx, usecase.ExportClientsInput{Columns: args.Columns, ClientIDs: args.ClientIDs}, &buf)
	if err != nil {
		if appErr, ok := apperrors.IsAppError(err); ok && appErr.HTTPStatus < 500 {
			return river.JobCancel(err)
		}
		return fmt.Errorf("build export: %w", err)
	}

	now := w.now()
	msg := mail.Message{
		To:      args.Recipients,
		Subject: "Client export " + now.Format("2006-01-02 15:04"),
		HTML: fmt.Sprintf("<html><body><p>Client export requested by %s: %d clients.</p></body></html>",
			html.EscapeString(args.RequestedBy), n),
		Attachments: []mail.Attachment{{
			Name:        export.FileName(now),
			ContentType: export.ContentType,
			Data:        buf.Bytes(),
		}},
	}
	if err := w.newSender(cfg).Send(ctx, msg); err != nil {
		return fmt.Errorf("send export mail: %w", err)
	}

	if w.auditLogger != nil {
		if err := w.auditLogger.LogAction(ctx, "export.emailed", "clients", "", args.RequestedBy, map[string]any{
			"recipients": strings.Join(args.Recipients, ","),
			"clients":    n,
		}); err != nil {
			logger.Warn("failed to write audit log", zap.String("action", "export.emailed"), zap.Error(err))
		}
	}
	logger.Info("export mailed",
		zap.Int("clients", n),
		zap.Strings("recipients", args.Recipients),
		zap.Int64("job_id", job.ID),
	)
	return nil
}
