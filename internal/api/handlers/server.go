// Package handlers implements the portal's HTTP API on top of gin.
//
// Handlers translate requests into use case or repository calls and report
// failures through c.Error; middleware.ErrorHandler renders them.
//
// Import Path: supportportal.io/portal/internal/api/handlers
package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"supportportal.io/portal/internal/api/middleware"
	"supportportal.io/portal/internal/governance/audit"
	"supportportal.io/portal/internal/integration/mail"
	"supportportal.io/portal/internal/integration/ssh"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/secret"
	"supportportal.io/portal/internal/pkg/worker"
	"supportportal.io/portal/internal/repository"
	"supportportal.io/portal/internal/usecase"
)

// JobInserter enqueues background jobs. *river.Client[pgx.Tx] implements it.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// CommandRunner executes a command on a remote router. *ssh.Runner implements it.
type CommandRunner interface {
	Run(ctx context.Context, host string, cred ssh.Credentials, command string) (*ssh.Result, error)
}

// MailSender delivers one message. *mail.Sender implements it.
type MailSender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// FileOpener reads stored uploads. *storage.Local implements it.
type FileOpener interface {
	Open(name string) (*os.File, error)
}

// Server holds the dependencies of all API handlers.
type Server struct {
	pool           *pgxpool.Pool
	queries        *repository.Queries
	jwtCfg         middleware.JWTConfig
	audit          *audit.Logger
	box            *secret.Box
	files          FileOpener
	pools          *worker.Pools
	jobs           JobInserter
	ssh            CommandRunner
	newMailer      func(mail.Config) MailSender
	minPasswordLen int

	createClientUC  *usecase.CreateClientUseCase
	updateClientUC  *usecase.UpdateClientUseCase
	deleteClientUC  *usecase.DeleteClientUseCase
	transferUC      *usecase.TransferUplinkUseCase
	recordsUC       *usecase.ClientRecordsUseCase
	registerKKTUC   *usecase.RegisterKKTUseCase
	exportClientsUC *usecase.ExportClientsUseCase
	now             func() time.Time
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Pool           *pgxpool.Pool
	Queries        *repository.Queries
	JWTCfg         middleware.JWTConfig
	Audit          *audit.Logger
	Box            *secret.Box
	Files          FileOpener
	Pools          *worker.Pools
	Jobs           JobInserter
	SSH            CommandRunner
	NewMailer      func(mail.Config) MailSender
	MinPasswordLen int

	CreateClientUC  *usecase.CreateClientUseCase
	UpdateClientUC  *usecase.UpdateClientUseCase
	DeleteClientUC  *usecase.DeleteClientUseCase
	TransferUC      *usecase.TransferUplinkUseCase
	RecordsUC       *usecase.ClientRecordsUseCase
	RegisterKKTUC   *usecase.RegisterKKTUseCase
	ExportClientsUC *usecase.ExportClientsUseCase
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	newMailer := deps.NewMailer
	if newMailer == nil {
		newMailer = func(cfg mail.Config) MailSender { return mail.NewSender(cfg) }
	}
	minLen := deps.MinPasswordLen
	if minLen <= 0 {
		minLen = defaultMinPasswordLen
	}
	return &Server{
		pool:            deps.Pool,
		queries:         deps.Queries,
		jwtCfg:          deps.JWTCfg,
		audit:           deps.Audit,
		box:             deps.Box,
		files:           deps.Files,
		pools:           deps.Pools,
		jobs:            deps.Jobs,
		ssh:             deps.SSH,
		newMailer:       newMailer,
		minPasswordLen:  minLen,
		createClientUC:  deps.CreateClientUC,
		updateClientUC:  deps.UpdateClientUC,
		deleteClientUC:  deps.DeleteClientUC,
		transferUC:      deps.TransferUC,
		recordsUC:       deps.RecordsUC,
		registerKKTUC:   deps.RegisterKKTUC,
		exportClientsUC: deps.ExportClientsUC,
		now:             time.Now,
	}
}

// actorFromCtx names the authenticated user in platform audit records.
func actorFromCtx(ctx context.Context) string {
	if email := middleware.GetEmail(ctx); email != "" {
		return email
	}
	if id := middleware.GetUserID(ctx); id != 0 {
		return strconv.FormatInt(id, 10)
	}
	return "anonymous"
}

// idParam parses a positive int64 path parameter. On failure the error is
// already attached to c.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperrors.ErrInvalidRequestf("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body into dst.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInvalidRequest, "invalid request body", http.StatusBadRequest))
		return false
	}
	return true
}

// notFoundAs maps a repository ErrNotFound to a typed 404 and any other
// failure to PERSISTENCE_FAILED.
func notFoundAs(err error, code, message string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound(code, message)
	}
	return persistence(err)
}

func persistence(err error) error {
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	if errors.Is(err, apperrors.ErrConflict) {
		return apperrors.Wrap(err, apperrors.CodeValidationFailed, "a record with these values already exists", http.StatusConflict)
	}
	return apperrors.Wrap(err, apperrors.CodePersistenceFailed, "database operation failed", http.StatusInternalServerError)
}

// logAudit writes a platform audit record; failures are logged by the audit logger.
func (s *Server) logAudit(ctx context.Context, action, resourceType, resourceID string, details map[string]any) {
	_ = s.audit.LogAction(ctx, action, resourceType, resourceID, actorFromCtx(ctx), details)
}
