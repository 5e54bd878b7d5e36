package modules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"supportportal.io/portal/internal/config"
	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/governance/audit"
	"supportportal.io/portal/internal/infrastructure"
	"supportportal.io/portal/internal/pkg/secret"
	"supportportal.io/portal/internal/pkg/worker"
	"supportportal.io/portal/internal/repository"
	"supportportal.io/portal/internal/storage"
	"supportportal.io/portal/internal/usecase"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config      *config.Config
	DB          *infrastructure.DatabaseClients
	Pools       *worker.Pools
	Pool        *pgxpool.Pool
	RiverClient *river.Client[pgx.Tx]
	Queries     *repository.Queries
	Transactor  usecase.Transactor
	Box         *secret.Box
	Media       *storage.Local
	AuditLogger *audit.Logger
	Dispatcher  *domain.EventDispatcher
}

// NewInfrastructure initializes DB, pools and shared services.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	key, err := cfg.Security.EncryptionKeyBytes()
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	// Dev-mode: apply schema + River queue migrations on boot.
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	media, err := storage.NewLocal(cfg.Storage.MediaRoot)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init media storage: %w", err)
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize:     cfg.Worker.GeneralPoolSize,
		IntegrationPoolSize: cfg.Worker.IntegrationPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	queries := repository.New(db.Pool)
	return &Infrastructure{
		Config:      cfg,
		DB:          db,
		Pools:       pools,
		Pool:        db.Pool,
		Queries:     queries,
		Transactor:  usecase.NewPGTransactor(repository.NewTxRunner(db.Pool)),
		Box:         secret.NewBox(key),
		Media:       media,
		AuditLogger: audit.NewLogger(queries),
		Dispatcher:  domain.NewEventDispatcher(),
	}, nil
}

// InitRiver initializes River client on top of a prepared worker registry.
func (i *Infrastructure) InitRiver(workers *river.Workers) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if err := i.DB.InitRiverClient(workers, i.Config.River, i.Config.OFD.RefreshInterval); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
