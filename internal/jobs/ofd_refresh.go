package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/pkg/secret"
	"supportportal.io/portal/internal/pkg/worker"
	"supportportal.io/portal/internal/usecase"
)

// OFDRefreshStore reads registered KKT rows and stores refreshed data.
// *repository.Queries implements it.
type OFDRefreshStore interface {
	ListAllKKT(ctx context.Context) ([]*domain.KKTData, error)
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	GetOFDCompany(ctx context.Context, id int64) (*domain.OFDCompany, error)
	UpsertKKT(ctx context.Context, k *domain.KKTData) error
}

// OFDRefreshArgs re-fetches every registered KKT from the OFD.
type OFDRefreshArgs struct{}

// Kind returns the job kind identifier for the OFD refresh.
func (OFDRefreshArgs) Kind() string { return "ofd_refresh" }

// InsertOpts keeps at most one refresh per hour on the integrations queue.
func (OFDRefreshArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueIntegrations,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// OFDRefreshWorker refreshes KKT rows, fanning lookups out over a worker pool.
// A failed lookup keeps the stored row untouched.
type OFDRefreshWorker struct {
	river.WorkerDefaults[OFDRefreshArgs]
	store   OFDRefreshStore
	fetcher usecase.KKTFetcher
	box     *secret.Box
	pool    *worker.Pool
}

// NewOFDRefreshWorker creates the worker. pool may be nil to run lookups one by one.
func NewOFDRefreshWorker(store OFDRefreshStore, fetcher usecase.KKTFetcher, box *secret.Box, pool *worker.Pool) *OFDRefreshWorker {
	return &OFDRefreshWorker{store: store, fetcher: fetcher, box: box, pool: pool}
}

// Timeout bounds one refresh run.
func (w *OFDRefreshWorker) Timeout(*river.Job[OFDRefreshArgs]) time.Duration {
	return 30 * time.Minute
}

// Work refreshes every stored row.
func (w *OFDRefreshWorker) Work(ctx context.Context, _ *river.Job[OFDRefreshArgs]) error {
	if w == nil || w.store == nil || w.fetcher == nil {
		return fmt.Errorf("ofd refresh worker is not initialized")
	}
	if !w.fetcher.Enabled() {
		logger.Debug("ofd refresh skipped: lookup script not configured")
		return nil
	}

	rows, err := w.store.ListAllKKT(ctx)
	if err != nil {
		return fmt.Errorf("list kkt rows: %w", err)
	}

	tokens := newTokenCache(w.store, w.box)
	var refreshed, failed, skipped atomic.Int64

	tasks := make([]worker.Task, 0, len(rows))
	for _, row := range rows {
		token, err := tokens.forClient(ctx, row.ClientID)
		if err != nil {
			skipped.Add(1)
			logger.Debug("ofd refresh: no token for client",
				zap.Int64("client_id", row.ClientID),
				zap.Error(err),
			)
			continue
		}
		tasks = append(tasks, func(ctx context.Context) {
			k, err := w.fetcher.Fetch(ctx, token, row.RegID)
			if err == nil {
				k.ClientID = row.ClientID
				k.RegID = row.RegID
				err = w.store.UpsertKKT(ctx, k)
			}
			if err != nil {
				failed.Add(1)
				logger.Warn("ofd refresh failed",
					zap.Int64("client_id", row.ClientID),
					zap.String("kkt_reg_id", row.RegID),
					zap.Error(err),
				)
				return
			}
			refreshed.Add(1)
		})
	}

	if w.pool != nil {
		if err := w.pool.RunAll(ctx, tasks); err != nil {
			return fmt.Errorf("run ofd lookups: %w", err)
		}
	} else {
		for _, task := range tasks {
			task(ctx)
		}
	}

	logger.Info("ofd refresh completed",
		zap.Int("rows", len(rows)),
		zap.Int64("refreshed", refreshed.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("skipped", skipped.Load()),
	)
	return nil
}

var errNoToken = errors.New("client has no OFD company token")

// tokenCache opens each company token once per run. Not safe for concurrent use.
type tokenCache struct {
	store     OFDRefreshStore
	box       *secret.Box
	byClient  map[int64]string
	byCompany map[int64]string
}

func newTokenCache(store OFDRefreshStore, box *secret.Box) *tokenCache {
	return &tokenCache{
		store:     store,
		box:       box,
		byClient:  make(map[int64]string),
		byCompany: make(map[int64]string),
	}
}

func (c *tokenCache) forClient(ctx context.Context, clientID int64) (string, error) {
	if tok, ok := c.byClient[clientID]; ok {
		if tok == "" {
			return "", errNoToken
		}
		return tok, nil
	}
	tok, err := c.lookup(ctx, clientID)
	if err != nil {
		c.byClient[clientID] = ""
		return "", err
	}
	c.byClient[clientID] = tok
	return tok, nil
}

func (c *tokenCache) lookup(ctx context.Context, clientID int64) (string, error) {
	client, err := c.store.GetClient(ctx, clientID)
	if err != nil {
		return "", err
	}
	if client.OFDCompanyID == nil {
		return "", errNoToken
	}
	companyID := *client.OFDCompanyID
	if tok, ok := c.byCompany[companyID]; ok {
		if tok == "" {
			return "", errNoToken
		}
		return tok, nil
	}
	company, err := c.store.GetOFDCompany(ctx, companyID)
	if err != nil {
		return "", err
	}
	tok, err := c.box.Open(company.SealedToken)
	if err != nil {
		return "", err
	}
	c.byCompany[companyID] = tok
	if tok == "" {
		return "", errNoToken
	}
	return tok, nil
}
