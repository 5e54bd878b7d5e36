package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/governance/audit"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/repository"
	"supportportal.io/portal/internal/testutil"
	"supportportal.io/portal/internal/usecase"
)

type apiFixture struct {
	router  *gin.Engine
	queries *repository.Queries
	admin   *domain.User
	spec    *domain.User
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	pool, dsn := testutil.OpenPGXPool(t, "handlers")
	if !strings.Contains(dsn, "://") {
		t.Skip("migrations need a URL-style DSN")
	}
	require.NoError(t, repository.Migrate(dsn))

	ctx := context.Background()
	q := repository.New(pool)
	tx := usecase.NewPGTransactor(repository.NewTxRunner(pool))
	d := domain.NewEventDispatcher()

	adminRole := &domain.Role{Name: "admin", CanViewAllClients: true, CanCreateClient: true, CanEditClient: true,
		CanDeleteClient: true, CanManageUsers: true, CanManageRoles: true, CanManageCustomFields: true}
	specRole := &domain.Role{Name: "specialist", CanCreateClient: true, CanEditClient: true}
	require.NoError(t, q.UpsertRoleByName(ctx, adminRole))
	require.NoError(t, q.UpsertRoleByName(ctx, specRole))

	mkUser := func(email string, role *domain.Role) *domain.User {
		hash, err := HashPassword("correct-horse")
		require.NoError(t, err)
		u := &domain.User{Email: email, PasswordHash: hash, RoleID: &role.ID, Role: role, IsActive: true}
		require.NoError(t, q.InsertUser(ctx, u))
		return u
	}

	s := NewServer(ServerDeps{
		Pool:           pool,
		Queries:        q,
		JWTCfg:         testJWT,
		Audit:          audit.NewLogger(q),
		CreateClientUC: usecase.NewCreateClientUseCase(tx).WithDispatcher(d),
		UpdateClientUC: usecase.NewUpdateClientUseCase(tx).WithDispatcher(d),
		DeleteClientUC: usecase.NewDeleteClientUseCase(tx).WithDispatcher(d),
		TransferUC:     usecase.NewTransferUplinkUseCase(tx).WithDispatcher(d),
	})
	return &apiFixture{
		router:  newTestRouter(s),
		queries: q,
		admin:   mkUser("admin@example.com", adminRole),
		spec:    mkUser("spec@example.com", specRole),
	}
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func TestAPI_Login(t *testing.T) {
	f := newAPIFixture(t)

	w := doJSON(f.router, http.MethodPost, "/api/auth/token", "",
		map[string]string{"email": "admin@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w.Body.Bytes())
	access, _ := body["access"].(string)
	require.NotEmpty(t, access)
	user := body["user"].(map[string]any)
	assert.Equal(t, true, user["permissions"].(map[string]any)[domain.PermManageUsers])

	w = doJSON(f.router, http.MethodGet, "/api/auth/users/me", "Bearer "+access, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "admin@example.com", decode(t, w.Body.Bytes())["email"])

	w = doJSON(f.router, http.MethodPost, "/api/auth/token", "",
		map[string]string{"email": "admin@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperrors.CodeAuthFailed, errorCode(t, w))

	w = doJSON(f.router, http.MethodPost, "/api/auth/token", "",
		map[string]string{"email": "ghost@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_ClientLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	admin := bearer(t, f.admin)

	w := doJSON(f.router, http.MethodPost, "/api/clients", admin,
		map[string]any{"company": "Apteka 5", "status": "active", "tariff": "100M"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w.Body.Bytes())
	id := int64(created["id"].(float64))

	w = doJSON(f.router, http.MethodPatch, fmt.Sprintf("/api/clients/%d", id), admin,
		map[string]any{"company": "Apteka 7", "status": "active"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode(t, w.Body.Bytes())
	assert.Equal(t, "Apteka 7", updated["company"])
	changes := updated["changes"].([]any)
	require.Len(t, changes, 1, "unchanged status is not logged")
	assert.Equal(t, domain.FieldCompany, changes[0].(map[string]any)["key"])

	w = doJSON(f.router, http.MethodPatch, fmt.Sprintf("/api/clients/%d", id), admin,
		map[string]any{"company": "Apteka 7"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode(t, w.Body.Bytes())["changes"])

	w = doJSON(f.router, http.MethodGet, fmt.Sprintf("/api/clients/%d/activities", id), admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(f.router, http.MethodDelete, fmt.Sprintf("/api/clients/%d", id), admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = doJSON(f.router, http.MethodGet, fmt.Sprintf("/api/clients/%d", id), admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeClientNotFound, errorCode(t, w))
}

func TestAPI_ClientVisibility(t *testing.T) {
	f := newAPIFixture(t)
	admin := bearer(t, f.admin)
	spec := bearer(t, f.spec)

	w := doJSON(f.router, http.MethodPost, "/api/clients", admin, map[string]any{"company": "Admin card"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	adminCard := int64(decode(t, w.Body.Bytes())["id"].(float64))

	w = doJSON(f.router, http.MethodPost, "/api/clients", spec, map[string]any{"company": "Own card"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(f.router, http.MethodGet, "/api/clients", spec, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w.Body.Bytes())["total_count"])

	w = doJSON(f.router, http.MethodGet, "/api/clients", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w.Body.Bytes())["total_count"])

	w = doJSON(f.router, http.MethodGet, fmt.Sprintf("/api/clients/%d", adminCard), spec, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeClientNotFound, errorCode(t, w))
}

func TestAPI_TransferUplink(t *testing.T) {
	f := newAPIFixture(t)
	admin := bearer(t, f.admin)

	create := func(body map[string]any) int64 {
		w := doJSON(f.router, http.MethodPost, "/api/clients", admin, body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return int64(decode(t, w.Body.Bytes())["id"].(float64))
	}
	src := create(map[string]any{"company": "Source", "tariff": "100M", "personal_account": "LS-1"})
	dst := create(map[string]any{"company": "Destination"})

	w := doJSON(f.router, http.MethodPost, fmt.Sprintf("/api/clients/%d/transfer", src), admin,
		map[string]any{"destination_id": src})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeClientSelfTransfer, errorCode(t, w))

	w = doJSON(f.router, http.MethodPost, fmt.Sprintf("/api/clients/%d/transfer", src), admin,
		map[string]any{"destination_id": dst, "destination_slot": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidSlot, errorCode(t, w))

	w = doJSON(f.router, http.MethodPost, fmt.Sprintf("/api/clients/%d/transfer", src), admin,
		map[string]any{"destination_id": dst, "destination_slot": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Destination", decode(t, w.Body.Bytes())["destination_name"])

	ctx := context.Background()
	gotDst, err := f.queries.GetClient(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, "100M", gotDst.Uplinks[1].Tariff)
	assert.Equal(t, "LS-1", gotDst.Uplinks[1].PersonalAccount)

	gotSrc, err := f.queries.GetClient(ctx, src)
	require.NoError(t, err)
	assert.True(t, gotSrc.Uplinks[0].IsEmpty())

	acts, err := f.queries.ListActivities(ctx, dst)
	require.NoError(t, err)
	require.NotEmpty(t, acts)
}

func TestAPI_TransferUplink_HiddenDestination(t *testing.T) {
	f := newAPIFixture(t)
	admin := bearer(t, f.admin)
	spec := bearer(t, f.spec)

	w := doJSON(f.router, http.MethodPost, "/api/clients", admin, map[string]any{"company": "Admin card"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	adminCard := int64(decode(t, w.Body.Bytes())["id"].(float64))

	w = doJSON(f.router, http.MethodPost, "/api/clients", spec, map[string]any{"company": "Own card", "tariff": "50M"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ownCard := int64(decode(t, w.Body.Bytes())["id"].(float64))

	w = doJSON(f.router, http.MethodPost, fmt.Sprintf("/api/clients/%d/transfer", ownCard), spec,
		map[string]any{"destination_id": adminCard})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeClientNotFound, errorCode(t, w))
	assert.NotContains(t, w.Body.String(), "Admin card")

	ctx := context.Background()
	got, err := f.queries.GetClient(ctx, adminCard)
	require.NoError(t, err)
	assert.True(t, got.Uplinks[0].IsEmpty())

	own, err := f.queries.GetClient(ctx, ownCard)
	require.NoError(t, err)
	assert.Equal(t, "50M", own.Uplinks[0].Tariff)
}
