package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/storage"
)

func TestCreateClient(t *testing.T) {
	m := newMemStore()
	m.defs = []*domain.CustomFieldDefinition{{ID: 3, Name: "Region", IsActive: true}}
	uc := NewCreateClientUseCase(m)

	c, err := uc.Execute(context.Background(), CreateClientInput{
		ActorID:      ptr(1),
		Patch:        map[string]any{"company": "Apteka 1", "provider": "1"},
		CustomValues: map[int64]string{3: "North", 99: "ignored"},
	})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.Equal(t, domain.ClientStatusActive, c.Status)
	assert.Equal(t, []string{domain.ActivityClientCreated}, m.activitiesOf(c.ID))
	assert.Equal(t, map[int64]string{3: "North"}, m.custom[c.ID])

	draft, err := uc.Execute(context.Background(), CreateClientInput{Draft: true, Patch: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, draft.IsDraft)
	assert.Empty(t, m.activitiesOf(draft.ID))

	_, err = uc.Execute(context.Background(), CreateClientInput{Patch: map[string]any{"connection_type": "pigeon"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestDiscardDraft(t *testing.T) {
	m := newMemStore()
	draft := m.add(&domain.Client{IsDraft: true})
	full := m.add(&domain.Client{Company: "A"})
	uc := NewCreateClientUseCase(m)

	require.NoError(t, uc.DiscardDraft(context.Background(), draft.ID))
	_, ok := m.clients[draft.ID]
	assert.False(t, ok)

	err := uc.DiscardDraft(context.Background(), full.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDraftOnly))
}

func TestDeleteClient_DispatchesStoredFiles(t *testing.T) {
	m := newMemStore()
	c := m.add(&domain.Client{Company: "A"})
	require.NoError(t, m.InsertFile(context.Background(), &domain.ClientFile{ClientID: c.ID, Name: "a.pdf", StoredName: "s1.pdf"}))
	require.NoError(t, m.InsertFile(context.Background(), &domain.ClientFile{ClientID: c.ID, Name: "b.pdf", StoredName: "s2.pdf"}))

	d := domain.NewEventDispatcher()
	var payload domain.ClientDeletedPayload
	d.Register(domain.EventClientDeleted, func(_ context.Context, e *domain.DomainEvent) error {
		payload = e.Payload.(domain.ClientDeletedPayload)
		return nil
	})

	require.NoError(t, NewDeleteClientUseCase(m).WithDispatcher(d).Execute(context.Background(), c.ID, ptr(1), "admin"))
	assert.ElementsMatch(t, []string{"s1.pdf", "s2.pdf"}, payload.StoredFiles)
	_, ok := m.clients[c.ID]
	assert.False(t, ok)

	err := NewDeleteClientUseCase(m).Execute(context.Background(), c.ID, nil, "admin")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeClientNotFound))
}

type memMedia struct {
	files   map[string]string
	saveErr error
}

func (m *memMedia) Save(name string, r io.Reader, limit int64) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if limit > 0 && int64(len(data)) > limit {
		return 0, storage.ErrTooLarge
	}
	m.files[name] = string(data)
	return int64(len(data)), nil
}

func (m *memMedia) Remove(name string) error {
	delete(m.files, name)
	return nil
}

func TestClientRecords_Notes(t *testing.T) {
	m := newMemStore()
	c := m.add(&domain.Client{Company: "A"})
	uc := NewClientRecordsUseCase(m, &memMedia{files: map[string]string{}}, 0)

	_, err := uc.AddNote(context.Background(), c.ID, ptr(1), "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoteEmpty))

	n, err := uc.AddNote(context.Background(), c.ID, ptr(1), " called the provider ")
	require.NoError(t, err)
	assert.Equal(t, "called the provider", n.Text)
	assert.Equal(t, []string{domain.ActivityNoteAdded}, m.activitiesOf(c.ID))

	_, err = uc.AddNote(context.Background(), 404, nil, "x")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeClientNotFound))
}

func TestClientRecords_Files(t *testing.T) {
	m := newMemStore()
	c := m.add(&domain.Client{Company: "A"})
	media := &memMedia{files: map[string]string{}}
	uc := NewClientRecordsUseCase(m, media, 8)

	f, err := uc.UploadFile(context.Background(), c.ID, ptr(1), "dir/contract.pdf", strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, "contract.pdf", f.Name)
	assert.EqualValues(t, 7, f.Size)
	assert.Contains(t, media.files, f.StoredName)

	_, err = uc.UploadFile(context.Background(), c.ID, nil, "big.bin", strings.NewReader("0123456789"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeFileTooLarge))

	media.saveErr = errors.New("read-only fs")
	_, err = uc.UploadFile(context.Background(), c.ID, nil, "x.txt", strings.NewReader("x"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistenceFailed))
	media.saveErr = nil

	require.NoError(t, uc.DeleteFile(context.Background(), c.ID, f.ID, ptr(1)))
	assert.NotContains(t, media.files, f.StoredName)
	assert.Equal(t, []string{"File uploaded: contract.pdf", "File deleted: contract.pdf"}, m.activitiesOf(c.ID))

	err = uc.DeleteFile(context.Background(), c.ID, f.ID, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeFileNotFound))
}
