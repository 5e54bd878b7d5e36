package usecase

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"supportportal.io/portal/internal/changelog"
	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
)

// memStore is an in-memory ClientStore whose InTx restores the previous
// state when fn fails.
type memStore struct {
	nextID     int64
	clients    map[int64]*domain.Client
	users      map[int64]bool
	activities []domain.Activity
	notes      []*domain.Note
	files      map[int64]*domain.ClientFile
	defs       []*domain.CustomFieldDefinition
	custom     map[int64]map[int64]string
	refs       changelog.RefNames
	ofd        map[int64]*domain.OFDCompany
	kkt        []*domain.KKTData

	failUpdate   func(c *domain.Client) error
	failActivity func(clientID int64, action string) error
}

func newMemStore() *memStore {
	return &memStore{
		nextID:  100,
		clients: make(map[int64]*domain.Client),
		users:   map[int64]bool{1: true},
		files:   make(map[int64]*domain.ClientFile),
		custom:  make(map[int64]map[int64]string),
		ofd:     make(map[int64]*domain.OFDCompany),
		refs: changelog.RefNames{
			changelog.RefProviders:    {1: "Rostelecom", 2: "MTS"},
			changelog.RefOFDCompanies: {1: "Taxcom"},
		},
	}
}

func (m *memStore) add(c *domain.Client) *domain.Client {
	if c.ID == 0 {
		m.nextID++
		c.ID = m.nextID
	}
	if c.Status == "" {
		c.Status = domain.ClientStatusActive
	}
	cp := *c
	m.clients[c.ID] = &cp
	return c
}

func (m *memStore) client(id int64) *domain.Client {
	c := *m.clients[id]
	return &c
}

func (m *memStore) activitiesOf(id int64) []string {
	var out []string
	for _, a := range m.activities {
		if a.ClientID == id {
			out = append(out, a.Action)
		}
	}
	return out
}

type memState struct {
	nextID     int64
	clients    map[int64]*domain.Client
	activities []domain.Activity
	notes      []*domain.Note
	files      map[int64]*domain.ClientFile
	custom     map[int64]map[int64]string
	kkt        []*domain.KKTData
}

func (m *memStore) save() memState {
	st := memState{
		nextID:     m.nextID,
		clients:    make(map[int64]*domain.Client, len(m.clients)),
		activities: slices.Clone(m.activities),
		notes:      slices.Clone(m.notes),
		files:      maps.Clone(m.files),
		custom:     make(map[int64]map[int64]string, len(m.custom)),
	}
	for _, k := range m.kkt {
		cp := *k
		st.kkt = append(st.kkt, &cp)
	}
	for id, c := range m.clients {
		cp := *c
		st.clients[id] = &cp
	}
	for id, v := range m.custom {
		st.custom[id] = maps.Clone(v)
	}
	return st
}

func (m *memStore) restore(st memState) {
	m.nextID = st.nextID
	m.clients = st.clients
	m.activities = st.activities
	m.notes = st.notes
	m.files = st.files
	m.custom = st.custom
	m.kkt = st.kkt
}

func (m *memStore) InTx(_ context.Context, fn func(s ClientStore) error) error {
	st := m.save()
	if err := fn(m); err != nil {
		m.restore(st)
		return err
	}
	return nil
}

func (m *memStore) ClientExists(_ context.Context, id int64) (bool, error) {
	_, ok := m.clients[id]
	return ok, nil
}

func (m *memStore) UserExists(_ context.Context, id int64) (bool, error) {
	return m.users[id], nil
}

func (m *memStore) InsertActivity(_ context.Context, clientID int64, actorID *int64, action string) error {
	if m.failActivity != nil {
		if err := m.failActivity(clientID, action); err != nil {
			return err
		}
	}
	if _, ok := m.clients[clientID]; !ok {
		return fmt.Errorf("insert activity: %w", apperrors.ErrNotFound)
	}
	m.activities = append(m.activities, domain.Activity{
		ID: int64(len(m.activities) + 1), ClientID: clientID, UserID: actorID, Action: action,
	})
	return nil
}

func (m *memStore) GetClient(_ context.Context, id int64) (*domain.Client, error) {
	if _, ok := m.clients[id]; !ok {
		return nil, fmt.Errorf("get client %d: %w", id, apperrors.ErrNotFound)
	}
	return m.client(id), nil
}

func (m *memStore) GetClientForUpdate(ctx context.Context, id int64) (*domain.Client, error) {
	return m.GetClient(ctx, id)
}

func (m *memStore) InsertClient(_ context.Context, c *domain.Client) error {
	m.add(c)
	return nil
}

func (m *memStore) UpdateClient(_ context.Context, c *domain.Client) error {
	if m.failUpdate != nil {
		if err := m.failUpdate(c); err != nil {
			return err
		}
	}
	if _, ok := m.clients[c.ID]; !ok {
		return fmt.Errorf("update client %d: %w", c.ID, apperrors.ErrNotFound)
	}
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *memStore) DeleteClient(_ context.Context, id int64) error {
	if _, ok := m.clients[id]; !ok {
		return fmt.Errorf("delete client %d: %w", id, apperrors.ErrNotFound)
	}
	delete(m.clients, id)
	delete(m.custom, id)
	kept := m.activities[:0:0]
	for _, a := range m.activities {
		if a.ClientID != id {
			kept = append(kept, a)
		}
	}
	m.activities = kept
	for fid, f := range m.files {
		if f.ClientID == id {
			delete(m.files, fid)
		}
	}
	return nil
}

func (m *memStore) RefNames(context.Context) (changelog.RefNames, error) {
	return m.refs, nil
}

func (m *memStore) ActiveCustomFields(context.Context) ([]*domain.CustomFieldDefinition, error) {
	var out []*domain.CustomFieldDefinition
	for _, d := range m.defs {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) CustomFieldValues(_ context.Context, clientID int64) (map[int64]string, error) {
	return maps.Clone(m.custom[clientID]), nil
}

func (m *memStore) SaveCustomFieldValues(_ context.Context, clientID int64, values map[int64]string) error {
	if m.custom[clientID] == nil {
		m.custom[clientID] = make(map[int64]string)
	}
	for id, v := range values {
		if v == "" {
			delete(m.custom[clientID], id)
			continue
		}
		m.custom[clientID][id] = v
	}
	return nil
}

func (m *memStore) InsertNote(_ context.Context, n *domain.Note) error {
	m.nextID++
	n.ID = m.nextID
	m.notes = append(m.notes, n)
	return nil
}

func (m *memStore) InsertFile(_ context.Context, f *domain.ClientFile) error {
	m.nextID++
	f.ID = m.nextID
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *memStore) GetFile(_ context.Context, clientID, fileID int64) (*domain.ClientFile, error) {
	f, ok := m.files[fileID]
	if !ok || f.ClientID != clientID {
		return nil, fmt.Errorf("get file %d: %w", fileID, apperrors.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (m *memStore) DeleteFile(ctx context.Context, clientID, fileID int64) error {
	if _, err := m.GetFile(ctx, clientID, fileID); err != nil {
		return err
	}
	delete(m.files, fileID)
	return nil
}

func (m *memStore) ListFiles(_ context.Context, clientID int64) ([]*domain.ClientFile, error) {
	var out []*domain.ClientFile
	for _, f := range m.files {
		if f.ClientID == clientID {
			cp := *f
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.ClientFile) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memStore) GetOFDCompany(_ context.Context, id int64) (*domain.OFDCompany, error) {
	o, ok := m.ofd[id]
	if !ok {
		return nil, fmt.Errorf("get ofd company %d: %w", id, apperrors.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListKKT(_ context.Context, clientID int64) ([]*domain.KKTData, error) {
	var out []*domain.KKTData
	for _, k := range m.kkt {
		if k.ClientID == clientID {
			cp := *k
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.KKTData) int { return strings.Compare(a.RegID, b.RegID) })
	return out, nil
}

func (m *memStore) UpsertKKT(_ context.Context, k *domain.KKTData) error {
	for i, cur := range m.kkt {
		if cur.ClientID == k.ClientID && cur.RegID == k.RegID {
			k.ID = cur.ID
			cp := *k
			m.kkt[i] = &cp
			return nil
		}
	}
	m.nextID++
	k.ID = m.nextID
	cp := *k
	m.kkt = append(m.kkt, &cp)
	return nil
}

func (m *memStore) DeleteKKTExcept(_ context.Context, clientID int64, keep []string) error {
	kept := m.kkt[:0:0]
	for _, k := range m.kkt {
		if k.ClientID != clientID || slices.Contains(keep, k.RegID) {
			kept = append(kept, k)
		}
	}
	m.kkt = kept
	return nil
}

func (m *memStore) ListClientsByIDs(_ context.Context, ids []int64) ([]*domain.Client, error) {
	var out []*domain.Client
	for id, c := range m.clients {
		if c.IsDraft || (len(ids) > 0 && !slices.Contains(ids, id)) {
			continue
		}
		out = append(out, m.client(id))
	}
	slices.SortFunc(out, func(a, b *domain.Client) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memStore) CustomFieldValuesFor(_ context.Context, ids []int64) (map[int64]map[int64]string, error) {
	out := make(map[int64]map[int64]string)
	for id, v := range m.custom {
		if len(ids) == 0 || slices.Contains(ids, id) {
			out[id] = maps.Clone(v)
		}
	}
	return out, nil
}
