package usecase

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/governance/audit"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/pkg/secret"
	"supportportal.io/portal/internal/pkg/worker"
)

// KKTFetcher looks up one fiscal register. *ofd.Client implements it.
type KKTFetcher interface {
	Enabled() bool
	Fetch(ctx context.Context, token, regID string) (*domain.KKTData, error)
}

// RegisterKKTInput replaces the registration numbers of a client.
type RegisterKKTInput struct {
	ClientID int64
	ActorID  *int64
	RegIDs   []string
}

// RegisterKKTOutput is the stored KKT state. Failed maps registration numbers
// whose lookup failed to the reason; they stay registered with their previous
// data, if any.
type RegisterKKTOutput struct {
	Items  []*domain.KKTData `json:"items"`
	Failed map[string]string `json:"failed,omitempty"`
}

// RegisterKKTUseCase registers KKT numbers and fetches their data from the OFD.
type RegisterKKTUseCase struct {
	tx      Transactor
	fetcher KKTFetcher
	box     *secret.Box
	pool    *worker.Pool
}

// NewRegisterKKTUseCase creates a new RegisterKKTUseCase.
func NewRegisterKKTUseCase(tx Transactor, fetcher KKTFetcher, box *secret.Box) *RegisterKKTUseCase {
	return &RegisterKKTUseCase{tx: tx, fetcher: fetcher, box: box}
}

// WithPool fans lookups out over pool (optional dependency).
func (uc *RegisterKKTUseCase) WithPool(p *worker.Pool) *RegisterKKTUseCase {
	uc.pool = p
	return uc
}

// Execute looks the numbers up outside the transaction, then stores the
// results, prunes numbers no longer listed and records one activity entry.
func (uc *RegisterKKTUseCase) Execute(ctx context.Context, input RegisterKKTInput) (*RegisterKKTOutput, error) {
	regIDs := normalizeRegIDs(input.RegIDs)
	if len(regIDs) == 0 {
		return nil, apperrors.BadRequest(apperrors.CodeKKTRegistrationEmpty, "at least one KKT registration number is required")
	}

	var token string
	err := uc.tx.InTx(ctx, func(s ClientStore) error {
		c, err := loadClient(ctx, s, input.ClientID)
		if err != nil {
			return err
		}
		token, err = uc.companyToken(ctx, s, c)
		return err
	})
	if err != nil {
		return nil, err
	}

	fetched, failed := uc.fetchAll(ctx, token, regIDs)

	out := &RegisterKKTOutput{Failed: failed}
	err = uc.tx.InTx(ctx, func(s ClientStore) error {
		if _, err := loadClient(ctx, s, input.ClientID); err != nil {
			return err
		}
		existing, err := s.ListKKT(ctx, input.ClientID)
		if err != nil {
			return persistenceFailed(err)
		}
		if err := s.DeleteKKTExcept(ctx, input.ClientID, regIDs); err != nil {
			return persistenceFailed(err)
		}
		for _, regID := range regIDs {
			k, ok := fetched[regID]
			if !ok {
				if slices.ContainsFunc(existing, func(e *domain.KKTData) bool { return e.RegID == regID }) {
					continue
				}
				k = &domain.KKTData{RegID: regID}
			}
			k.ClientID = input.ClientID
			if err := s.UpsertKKT(ctx, k); err != nil {
				return persistenceFailed(err)
			}
		}
		if err := audit.NewActivityRecorder(s).Record(ctx, input.ClientID, input.ActorID, domain.ActivityKKTUpdated); err != nil {
			return err
		}
		out.Items, err = s.ListKKT(ctx, input.ClientID)
		if err != nil {
			return persistenceFailed(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("KKT registration updated",
		zap.Int64("client_id", input.ClientID),
		zap.Int("registered", len(regIDs)),
		zap.Int("fetched", len(fetched)),
		zap.Int("failed", len(failed)),
	)
	return out, nil
}

// companyToken opens the token of the client's OFD company. An empty token
// is fine while lookups are disabled.
func (uc *RegisterKKTUseCase) companyToken(ctx context.Context, s ClientStore, c *domain.Client) (string, error) {
	if !uc.fetcher.Enabled() {
		return "", nil
	}
	missing := apperrors.BadRequest(apperrors.CodeOFDTokenMissing, "the client's OFD company has no token").
		WithParams(map[string]interface{}{"client_id": c.ID})
	if c.OFDCompanyID == nil {
		return "", missing
	}
	company, err := s.GetOFDCompany(ctx, *c.OFDCompanyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", missing
		}
		return "", persistenceFailed(err)
	}
	if !company.HasToken() {
		return "", missing
	}
	token, err := uc.box.Open(company.SealedToken)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeOFDTokenMissing, "the OFD token cannot be decrypted", http.StatusInternalServerError)
	}
	return token, nil
}

func (uc *RegisterKKTUseCase) fetchAll(ctx context.Context, token string, regIDs []string) (map[string]*domain.KKTData, map[string]string) {
	fetched := make(map[string]*domain.KKTData, len(regIDs))
	failed := make(map[string]string)
	if !uc.fetcher.Enabled() {
		return fetched, failed
	}

	var mu sync.Mutex
	lookup := func(regID string) func(ctx context.Context) {
		return func(ctx context.Context) {
			k, err := uc.fetcher.Fetch(ctx, token, regID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("OFD lookup failed", zap.String("kkt_reg_id", regID), zap.Error(err))
				failed[regID] = err.Error()
				return
			}
			fetched[regID] = k
		}
	}

	if uc.pool == nil {
		for _, regID := range regIDs {
			lookup(regID)(ctx)
		}
		return fetched, failed
	}

	tasks := make([]worker.Task, len(regIDs))
	for i, regID := range regIDs {
		tasks[i] = lookup(regID)
	}
	if err := uc.pool.RunAll(ctx, tasks); err != nil {
		logger.Warn("OFD lookups interrupted", zap.Error(err))
	}
	// Interrupted lookups may still be running; hand back copies.
	mu.Lock()
	defer mu.Unlock()
	doneFetched := maps.Clone(fetched)
	doneFailed := maps.Clone(failed)
	for _, regID := range regIDs {
		_, ok := doneFetched[regID]
		if _, bad := doneFailed[regID]; !ok && !bad {
			doneFailed[regID] = "lookup did not finish"
		}
	}
	return doneFetched, doneFailed
}

// normalizeRegIDs trims, drops empties and deduplicates, keeping order.
func normalizeRegIDs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
