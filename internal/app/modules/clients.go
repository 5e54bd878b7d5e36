package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"supportportal.io/portal/internal/api/handlers"
	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/integration/ofd"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/pkg/worker"
	"supportportal.io/portal/internal/usecase"
)

// FileRemover deletes stored file content. *storage.Local implements it.
type FileRemover interface {
	Remove(name string) error
}

// ClientModule wires the client card use cases and their event handlers.
type ClientModule struct {
	createUC   *usecase.CreateClientUseCase
	updateUC   *usecase.UpdateClientUseCase
	deleteUC   *usecase.DeleteClientUseCase
	transferUC *usecase.TransferUplinkUseCase
	recordsUC  *usecase.ClientRecordsUseCase
	kktUC      *usecase.RegisterKKTUseCase
	exportUC   *usecase.ExportClientsUseCase
}

// NewClientModule creates the client module and registers the CLIENT_DELETED
// handler that removes the deleted client's files in the background.
func NewClientModule(infra *Infrastructure) *ClientModule {
	tx := infra.Transactor
	d := infra.Dispatcher
	cfg := infra.Config

	fetcher := ofd.NewClient(cfg.OFD.ScriptPath, cfg.OFD.Timeout)
	d.Register(domain.EventClientDeleted, removeStoredFiles(infra.Pools, infra.Media))

	return &ClientModule{
		createUC:   usecase.NewCreateClientUseCase(tx).WithDispatcher(d),
		updateUC:   usecase.NewUpdateClientUseCase(tx).WithDispatcher(d),
		deleteUC:   usecase.NewDeleteClientUseCase(tx).WithDispatcher(d).WithAuditLogger(infra.AuditLogger),
		transferUC: usecase.NewTransferUplinkUseCase(tx).WithDispatcher(d),
		recordsUC:  usecase.NewClientRecordsUseCase(tx, infra.Media, cfg.Storage.MaxUploadSize),
		kktUC:      usecase.NewRegisterKKTUseCase(tx, fetcher, infra.Box).WithPool(infra.Pools.Integration),
		exportUC:   usecase.NewExportClientsUseCase(infra.Queries),
	}
}

// removeStoredFiles returns the CLIENT_DELETED handler. Removal runs
// detached so it survives the request that deleted the client.
func removeStoredFiles(pools *worker.Pools, media FileRemover) domain.EventHandler {
	return func(_ context.Context, event *domain.DomainEvent) error {
		payload, ok := event.Payload.(domain.ClientDeletedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.EventType)
		}
		if len(payload.StoredFiles) == 0 {
			return nil
		}
		files := append([]string(nil), payload.StoredFiles...)
		return pools.SubmitDetached(worker.PoolGeneral, func(context.Context) {
			for _, name := range files {
				if err := media.Remove(name); err != nil {
					logger.Warn("Failed to remove file of deleted client",
						zap.Int64("client_id", event.ClientID),
						zap.String("stored_name", name),
						zap.Error(err),
					)
				}
			}
			logger.Debug("Removed files of deleted client",
				zap.Int64("client_id", event.ClientID),
				zap.Int("files", len(files)),
			)
		})
	}
}

func (m *ClientModule) Name() string { return "clients" }

func (m *ClientModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.CreateClientUC = m.createUC
	deps.UpdateClientUC = m.updateUC
	deps.DeleteClientUC = m.deleteUC
	deps.TransferUC = m.transferUC
	deps.RecordsUC = m.recordsUC
	deps.RegisterKKTUC = m.kktUC
	deps.ExportClientsUC = m.exportUC
}

func (m *ClientModule) RegisterWorkers(_ *river.Workers) {}

func (m *ClientModule) Shutdown(context.Context) error { return nil }
