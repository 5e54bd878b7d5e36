package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportportal.io/portal/internal/changelog"
	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/integration/mail"
	"supportportal.io/portal/internal/pkg/secret"
	"supportportal.io/portal/internal/pkg/worker"
	"supportportal.io/portal/internal/usecase"
)

func ptr(v int64) *int64 { return &v }

func testBox(t *testing.T) (*secret.Box, string) {
	t.Helper()
	var key [32]byte
	box := secret.NewBox(key)
	sealed, err := box.Seal("tok")
	require.NoError(t, err)
	return box, sealed
}

type refreshStore struct {
	mu       sync.Mutex
	rows     []*domain.KKTData
	clients  map[int64]*domain.Client
	company  map[int64]*domain.OFDCompany
	upserted map[string]*domain.KKTData
}

func (s *refreshStore) ListAllKKT(context.Context) ([]*domain.KKTData, error) { return s.rows, nil }

func (s *refreshStore) GetClient(_ context.Context, id int64) (*domain.Client, error) {
	c, ok := s.clients[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func (s *refreshStore) GetOFDCompany(_ context.Context, id int64) (*domain.OFDCompany, error) {
	c, ok := s.company[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func (s *refreshStore) UpsertKKT(_ context.Context, k *domain.KKTData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted[k.RegID] = k
	return nil
}

type stubFetcher struct {
	enabled bool
	fail    string
}

func (f stubFetcher) Enabled() bool { return f.enabled }

func (f stubFetcher) Fetch(_ context.Context, token, regID string) (*domain.KKTData, error) {
	if regID == f.fail {
		return nil, errors.New("operator down")
	}
	return &domain.KKTData{SerialNumber: token + "-" + regID}, nil
}

func TestOFDRefreshArgs(t *testing.T) {
	assert.Equal(t, "ofd_refresh", OFDRefreshArgs{}.Kind())
	assert.Equal(t, QueueIntegrations, OFDRefreshArgs{}.InsertOpts().Queue)
}

func TestOFDRefreshWorker(t *testing.T) {
	box, sealed := testBox(t)
	store := &refreshStore{
		rows: []*domain.KKTData{
			{ClientID: 1, RegID: "A"},
			{ClientID: 1, RegID: "B"},
			{ClientID: 2, RegID: "C"},
			{ClientID: 3, RegID: "D"},
		},
		clients: map[int64]*domain.Client{
			1: {ID: 1, OFDCompanyID: ptr(10)},
			2: {ID: 2},
			3: {ID: 3, OFDCompanyID: ptr(10)},
		},
		company:  map[int64]*domain.OFDCompany{10: {ID: 10, SealedToken: sealed}},
		upserted: make(map[string]*domain.KKTData),
	}
	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{GeneralPoolSize: 2, IntegrationPoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	w := NewOFDRefreshWorker(store, stubFetcher{enabled: true, fail: "B"}, box, pools.Integration)
	require.NoError(t, w.Work(context.Background(), nil))

	require.Len(t, store.upserted, 2)
	assert.Equal(t, "tok-A", store.upserted["A"].SerialNumber)
	assert.Equal(t, int64(1), store.upserted["A"].ClientID)
	assert.Equal(t, "tok-D", store.upserted["D"].SerialNumber)
	assert.NotContains(t, store.upserted, "C", "client without OFD company is skipped")
}

func TestOFDRefreshWorker_Disabled(t *testing.T) {
	w := NewOFDRefreshWorker(&refreshStore{}, stubFetcher{}, nil, nil)
	assert.NoError(t, w.Work(context.Background(), nil))

	var nilWorker *OFDRefreshWorker
	assert.Error(t, nilWorker.Work(context.Background(), nil))
}

type exportSource struct {
	clients []*domain.Client
}

func (s exportSource) ListClientsByIDs(context.Context, []int64) ([]*domain.Client, error) {
	return s.clients, nil
}

func (exportSource) ActiveCustomFields(context.Context) ([]*domain.CustomFieldDefinition, error) {
	return nil, nil
}

func (exportSource) CustomFieldValuesFor(context.Context, []int64) (map[int64]map[int64]string, error) {
	return nil, nil
}

func (exportSource) RefNames(context.Context) (changelog.RefNames, error) {
	return changelog.RefNames{}, nil
}

type settingsStub struct{ s domain.SystemSettings }

func (s settingsStub) GetSettings(context.Context) (domain.SystemSettings, error) { return s.s, nil }

type captureSender struct {
	cfg  mail.Config
	sent []mail.Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg mail.Message) error {
	c.sent = append(c.sent, msg)
	return c.err
}

func exportJob(args ExportEmailArgs) *river.Job[ExportEmailArgs] {
	return &river.Job[ExportEmailArgs]{JobRow: &rivertype.JobRow{ID: 7}, Args: args}
}

func TestExportEmailWorker(t *testing.T) {
	box, sealed := testBox(t)
	settings := domain.SystemSettings{
		SMTPHost: "smtp.example.com", SMTPPort: 465, SMTPUser: "portal",
		SMTPPasswordSealed: sealed, SMTPFrom: "portal@example.com", SMTPUseSSL: true,
	}
	exporter := usecase.NewExportClientsUseCase(exportSource{clients: []*domain.Client{{ID: 1, LastName: "Sidorov"}}})
	sender := &captureSender{}

	w := NewExportEmailWorker(exporter, settingsStub{s: settings}, box, nil)
	w.newSender = func(cfg mail.Config) MailSender {
		sender.cfg = cfg
		return sender
	}

	err := w.Work(context.Background(), exportJob(ExportEmailArgs{
		Columns:     []string{domain.FieldLastName},
		Recipients:  []string{"boss@example.com"},
		RequestedBy: "<admin>",
	}))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "tok", sender.cfg.Password)
	msg := sender.sent[0]
	assert.Equal(t, []string{"boss@example.com"}, msg.To)
	assert.Contains(t, msg.HTML, "&lt;admin&gt;")
	require.Len(t, msg.Attachments, 1)
	assert.NotEmpty(t, msg.Attachments[0].Data)

	t.Run("bad column cancels", func(t *testing.T) {
		err := w.Work(context.Background(), exportJob(ExportEmailArgs{Columns: []string{"nope"}, Recipients: []string{"a@b.c"}}))
		require.Error(t, err)
	})

	t.Run("smtp not configured cancels", func(t *testing.T) {
		w2 := NewExportEmailWorker(exporter, settingsStub{}, box, nil)
		err := w2.Work(context.Background(), exportJob(ExportEmailArgs{Columns: []string{domain.FieldLastName}, Recipients: []string{"a@b.c"}}))
		require.Error(t, err)
		assert.ErrorIs(t, err, mail.ErrNotConfigured)
	})

	t.Run("send failure retries", func(t *testing.T) {
		sender.err = errors.New("421 try later")
		err := w.Work(context.Background(), exportJob(ExportEmailArgs{Columns: []string{domain.FieldLastName}, Recipients: []string{"a@b.c"}}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "try later")
	})
}
