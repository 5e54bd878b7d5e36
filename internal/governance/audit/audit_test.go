package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportportal.io/portal/internal/changelog"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/repository"
)

func init() {
	_ = logger.Init("error", "json")
}

type entry struct {
	clientID int64
	actorID  *int64
	action   string
}

type fakeActivityStore struct {
	clients   map[int64]bool
	users     map[int64]bool
	entries   []entry
	insertErr error
}

func (f *fakeActivityStore) ClientExists(_ context.Context, id int64) (bool, error) {
	return f.clients[id], nil
}

func (f *fakeActivityStore) UserExists(_ context.Context, id int64) (bool, error) {
	return f.users[id], nil
}

func (f *fakeActivityStore) InsertActivity(_ context.Context, clientID int64, actorID *int64, action string) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, entry{clientID, actorID, action})
	return nil
}

func ptr(v int64) *int64 { return &v }

func TestActivityRecorder_Record(t *testing.T) {
	store := &fakeActivityStore{clients: map[int64]bool{1: true}, users: map[int64]bool{7: true}}
	rec := NewActivityRecorder(store)
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, 1, ptr(7), "Note added"))
	require.NoError(t, rec.Record(ctx, 1, nil, "system"))
	require.NoError(t, rec.Record(ctx, 1, ptr(99), "by a removed user"))

	require.Len(t, store.entries, 3)
	assert.Equal(t, int64(7), *store.entries[0].actorID)
	assert.Nil(t, store.entries[1].actorID)
	assert.Nil(t, store.entries[2].actorID, "deleted actor is stored as unknown")
}

func TestActivityRecorder_MissingClient(t *testing.T) {
	store := &fakeActivityStore{clients: map[int64]bool{}}
	err := NewActivityRecorder(store).Record(context.Background(), 5, nil, "x")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeClientNotFound))
	assert.Empty(t, store.entries)
}

func TestActivityRecorder_ClampsAction(t *testing.T) {
	store := &fakeActivityStore{clients: map[int64]bool{1: true}}
	long := strings.Repeat("я", changelog.MaxActionLen+20)

	require.NoError(t, NewActivityRecorder(store).Record(context.Background(), 1, nil, long))
	got := store.entries[0].action
	assert.Equal(t, changelog.MaxActionLen+len([]rune(changelog.Ellipsis)), len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, changelog.Ellipsis))
}

func TestActivityRecorder_InsertFailure(t *testing.T) {
	store := &fakeActivityStore{clients: map[int64]bool{1: true}, insertErr: errors.New("disk full")}
	err := NewActivityRecorder(store).Record(context.Background(), 1, nil, "x")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistenceFailed))

	store.insertErr = apperrors.ErrNotFound
	err = NewActivityRecorder(store).Record(context.Background(), 1, nil, "x")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeClientNotFound))
}

type fakeAuditStore struct {
	rows []*repository.AuditLogRow
	err  error
}

func (f *fakeAuditStore) InsertAuditLog(_ context.Context, r *repository.AuditLogRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, r)
	return nil
}

func TestLogger_LogAction(t *testing.T) {
	store := &fakeAuditStore{}
	l := NewLogger(store)
	ctx := context.Background()

	require.NoError(t, l.LogLogin(ctx, "admin@example.com", true))
	require.NoError(t, l.LogLogin(ctx, "admin@example.com", false))
	require.NoError(t, l.LogUserChange(ctx, "create", 12, "admin@example.com"))
	require.NoError(t, l.LogClientDeleted(ctx, 3, "Apteka 3", "admin@example.com"))

	require.Len(t, store.rows, 4)
	assert.Equal(t, "auth.login", store.rows[0].Action)
	assert.Equal(t, "auth.login_failed", store.rows[1].Action)
	assert.Equal(t, "12", store.rows[2].ResourceID)
	assert.Equal(t, "Apteka 3", store.rows[3].Details["name"])
	assert.True(t, strings.HasPrefix(store.rows[0].ID, "audit-"))
	assert.NotEqual(t, store.rows[0].ID, store.rows[1].ID)
}

func TestLogger_Failure(t *testing.T) {
	l := NewLogger(&fakeAuditStore{err: errors.New("db down")})
	assert.Error(t, l.LogSettingsChange(context.Background(), "smtp", "update", "admin"))

	var nilLogger *Logger
	assert.NoError(t, nilLogger.LogAction(context.Background(), "x", "y", "", "", nil))
}
