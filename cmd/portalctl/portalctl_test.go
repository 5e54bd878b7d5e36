package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestBuiltInRoles_Catalogue(t *testing.T) {
	t.Parallel()

	roles, err := builtInRoles()
	require.NoError(t, err)

	byName := make(map[string]*domain.Role, len(roles))
	for _, r := range roles {
		byName[r.Name] = r
	}
	require.Len(t, byName, 4)

	admin := byName["admin"]
	require.NotNil(t, admin)
	assert.Len(t, admin.Permissions(), 7, "admin holds every flag")

	specialist := byName["specialist"]
	require.NotNil(t, specialist)
	assert.False(t, specialist.CanViewAllClients)
	assert.True(t, specialist.CanEditClient)
	assert.False(t, specialist.CanDeleteClient)

	viewer := byName["viewer"]
	require.NotNil(t, viewer)
	assert.Equal(t, []string{"can_view_all_clients"}, viewer.Permissions())
}

func TestResolvePassword(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		prompts []string
		want    string
		wantErr string
	}{
		{name: "flag value", flag: "secret1", want: "secret1"},
		{name: "flag too short", flag: "abc", wantErr: "at least 6"},
		{name: "prompted", prompts: []string{"hunter22", "hunter22"}, want: "hunter22"},
		{name: "mismatch", prompts: []string{"hunter22", "hunter23"}, wantErr: "do not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			orig := passwordReader
			passwordReader = func(string) (string, error) {
				if calls >= len(tt.prompts) {
					return "", errors.New("unexpected prompt")
				}
				calls++
				return tt.prompts[calls-1], nil
			}
			t.Cleanup(func() { passwordReader = orig })

			got, err := resolvePassword(tt.flag, 6)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeAdminStore struct {
	roles     []*domain.Role
	users     []*domain.User
	insertErr error
}

func (f *fakeAdminStore) UpsertRoleByName(_ context.Context, r *domain.Role) error {
	r.ID = int64(len(f.roles) + 1)
	f.roles = append(f.roles, r)
	return nil
}

func (f *fakeAdminStore) InsertUser(_ context.Context, u *domain.User) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	u.ID = 42
	f.users = append(f.users, u)
	return nil
}

func TestCreateAdmin(t *testing.T) {
	store := &fakeAdminStore{}
	var out bytes.Buffer

	err := createAdmin(context.Background(), store, createAdminOptions{
		email:     "  Root@Example.COM ",
		firstName: "Ada",
		password:  "s3cret-pass",
	}, &out)
	require.NoError(t, err)

	require.Len(t, store.roles, 1)
	assert.Equal(t, "admin", store.roles[0].Name)

	require.Len(t, store.users, 1)
	u := store.users[0]
	assert.Equal(t, "root@example.com", u.Email)
	assert.True(t, u.IsSuperuser)
	assert.True(t, u.IsActive)
	require.NotNil(t, u.RoleID)
	assert.Equal(t, store.roles[0].ID, *u.RoleID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))
	assert.Contains(t, out.String(), "root@example.com")
}

func TestCreateAdmin_Errors(t *testing.T) {
	t.Run("bad email", func(t *testing.T) {
		err := createAdmin(context.Background(), &fakeAdminStore{}, createAdminOptions{email: "nobody"}, &bytes.Buffer{})
		require.Error(t, err)
	})

	t.Run("existing user", func(t *testing.T) {
		store := &fakeAdminStore{insertErr: fmt.Errorf("insert user: %w", apperrors.ErrConflict)}
		err := createAdmin(context.Background(), store, createAdminOptions{
			email: "a@b.c", password: "whatever1",
		}, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"migrate", "seed-roles", "create-admin"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	down, _, err := root.Find([]string{"migrate", "down"})
	require.NoError(t, err)
	assert.NotNil(t, down.Flags().Lookup("steps"))
}
