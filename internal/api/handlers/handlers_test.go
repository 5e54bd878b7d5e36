package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"supportportal.io/portal/internal/api/middleware"
	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/pkg/secret"
)

func init() {
	_ = logger.Init("error", "json")
	gin.SetMode(gin.TestMode)
}

var testJWT = middleware.JWTConfig{SigningKey: []byte("handlers-test-signing-key"), Issuer: "portal-test"}

// newTestRouter mounts the API the way the app does.
func newTestRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	RegisterRoutes(r, s, middleware.JWTAuth(testJWT))
	return r
}

func bearer(t *testing.T, user *domain.User) string {
	t.Helper()
	token, _, err := middleware.GenerateToken(testJWT, middleware.TokenAccess, user)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(r http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Code
}

func TestHashPassword_UsesConfiguredCost(t *testing.T) {
	hash, err := HashPassword("Passw0rd!Example")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, passwordHashCost, cost)
}

func TestCheckPassword_ReportsMinimum(t *testing.T) {
	s := NewServer(ServerDeps{MinPasswordLen: 8})

	err := s.checkPassword("short")
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodePasswordTooShort, appErr.Code)
	assert.Equal(t, 8, appErr.Params["min_length"])

	assert.NoError(t, s.checkPassword("long enough"))
	assert.Equal(t, defaultMinPasswordLen, NewServer(ServerDeps{}).minPasswordLen)
}

func TestIDParam(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{raw: "42", want: 42, wantOK: true},
		{raw: "0"},
		{raw: "-3"},
		{raw: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Params = gin.Params{{Key: "id", Value: tt.raw}}

			got, ok := idParam(c, "id")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if !tt.wantOK {
				require.Len(t, c.Errors, 1)
				assert.True(t, apperrors.HasCode(c.Errors.Last().Err, apperrors.CodeInvalidRequest))
			}
		})
	}
}

func TestReadClientPatch(t *testing.T) {
	read := func(body string) (map[string]any, map[int64]string, error) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body))
		return readClientPatch(c)
	}

	patch, custom, err := read(`{"company":"Apteka","provider":12,"custom_fields":{"3":"blue","4":7,"5":null}}`)
	require.NoError(t, err)
	assert.Equal(t, "Apteka", patch["company"])
	assert.Equal(t, json.Number("12"), patch["provider"])
	assert.NotContains(t, patch, "custom_fields")
	assert.Equal(t, map[int64]string{3: "blue", 4: "7", 5: ""}, custom)

	patch, custom, err = read(`{"phone":"+7 900"}`)
	require.NoError(t, err)
	assert.Nil(t, custom, "custom fields were not submitted")
	assert.Equal(t, "+7 900", patch["phone"])

	for name, body := range map[string]string{
		"not json":          `{`,
		"null body":         `null`,
		"custom not object": `{"custom_fields":[1]}`,
		"bad custom id":     `{"custom_fields":{"x":"1"}}`,
		"nested value":      `{"custom_fields":{"1":{"a":1}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := read(body)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest), err)
		})
	}
}

func TestCustomFieldRequest_Definition(t *testing.T) {
	inactive := false
	tests := []struct {
		name     string
		req      customFieldRequest
		wantType domain.CustomFieldType
		wantOpts []string
		wantCode string
		active   bool
	}{
		{
			name:     "text by default",
			req:      customFieldRequest{Name: " Floor ", Options: []string{"ignored"}},
			wantType: domain.CustomFieldText,
			wantOpts: []string{},
			active:   true,
		},
		{
			name:     "select trims options",
			req:      customFieldRequest{Name: "Color", FieldType: domain.CustomFieldSelect, Options: []string{" red ", "", "blue"}, IsActive: &inactive},
			wantType: domain.CustomFieldSelect,
			wantOpts: []string{"red", "blue"},
		},
		{
			name:     "select without options",
			req:      customFieldRequest{Name: "Color", FieldType: domain.CustomFieldSelect, Options: []string{" "}},
			wantCode: apperrors.CodeValidationFailed,
		},
		{
			name:     "blank name",
			req:      customFieldRequest{Name: "  "},
			wantCode: apperrors.CodeInvalidRequest,
		},
		{
			name:     "unknown type",
			req:      customFieldRequest{Name: "X", FieldType: "date"},
			wantCode: apperrors.CodeInvalidRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.req.definition()
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, tt.wantCode), err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSpace(tt.req.Name), d.Name)
			assert.Equal(t, tt.wantType, d.FieldType)
			assert.Equal(t, tt.wantOpts, d.Options)
			assert.Equal(t, tt.active, d.IsActive)
		})
	}
}

func TestSealPassword(t *testing.T) {
	box := secret.NewBox([32]byte{1, 2, 3})
	s := NewServer(ServerDeps{Box: box})

	kept, err := s.sealPassword("sealed-old", nil)
	require.NoError(t, err)
	assert.Equal(t, "sealed-old", kept)

	mask := domain.PasswordMask
	kept, err = s.sealPassword("sealed-old", &mask)
	require.NoError(t, err)
	assert.Equal(t, "sealed-old", kept)

	empty := ""
	cleared, err := s.sealPassword("sealed-old", &empty)
	require.NoError(t, err)
	assert.Empty(t, cleared)

	plain := "n3w-pass"
	sealed, err := s.sealPassword("sealed-old", &plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, sealed)
	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestActorFromCtx(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "anonymous", actorFromCtx(req.Context()))

	ctx := middleware.SetUserContext(req.Context(), 7, "", nil)
	assert.Equal(t, "7", actorFromCtx(ctx))

	ctx = middleware.SetUserContext(req.Context(), 7, "op@example.com", nil)
	assert.Equal(t, "op@example.com", actorFromCtx(ctx))
}

func TestCanSeeClient(t *testing.T) {
	owner := int64(5)
	card := &domain.Client{CreatedByID: &owner}
	base := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	assert.True(t, canSeeClient(middleware.SetUserContext(base, 9, "", []string{domain.PermViewAllClients}), card))
	assert.True(t, canSeeClient(middleware.SetUserContext(base, 5, "", nil), card))
	assert.False(t, canSeeClient(middleware.SetUserContext(base, 9, "", nil), card))
	assert.False(t, canSeeClient(middleware.SetUserContext(base, 9, "", nil), &domain.Client{}))
}

func TestHealthChecks(t *testing.T) {
	r := newTestRouter(NewServer(ServerDeps{}))

	w := doJSON(r, http.MethodGet, "/api/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, healthDegraded, body.Status)
	assert.Equal(t, "unconfigured", body.Checks["database"])
}

func TestRoutes_AuthGuards(t *testing.T) {
	r := newTestRouter(NewServer(ServerDeps{}))

	viewer := &domain.User{ID: 3, Email: "viewer@example.com", Role: &domain.Role{Name: "viewer", CanViewAllClients: true}}
	editor := &domain.User{ID: 4, Email: "editor@example.com", Role: &domain.Role{Name: "specialist", CanEditClient: true}}

	tests := []struct {
		name     string
		method   string
		path     string
		auth     string
		body     any
		wantCode int
		wantErr  string
	}{
		{name: "no token", method: http.MethodGet, path: "/api/clients", wantCode: http.StatusUnauthorized},
		{name: "garbage token", method: http.MethodGet, path: "/api/clients", auth: "Bearer nope", wantCode: http.StatusUnauthorized, wantErr: apperrors.CodeTokenInvalid},
		{name: "users need manage_users", method: http.MethodGet, path: "/api/auth/users", auth: bearer(t, viewer), wantCode: http.StatusForbidden, wantErr: apperrors.CodeForbidden},
		{name: "settings need manage_users", method: http.MethodGet, path: "/api/settings", auth: bearer(t, editor), wantCode: http.StatusForbidden},
		{name: "create needs can_create_client", method: http.MethodPost, path: "/api/clients", auth: bearer(t, viewer), body: map[string]any{}, wantCode: http.StatusForbidden},
		{name: "delete needs can_delete_client", method: http.MethodDelete, path: "/api/clients/1", auth: bearer(t, editor), wantCode: http.StatusForbidden},
		{name: "custom fields need manage_custom_fields", method: http.MethodPost, path: "/api/custom-fields", auth: bearer(t, editor), body: map[string]any{"name": "x"}, wantCode: http.StatusForbidden},
		{name: "calendar writes need can_edit_client", method: http.MethodPost, path: "/api/calendar/duty", auth: bearer(t, viewer), body: map[string]any{}, wantCode: http.StatusForbidden},
		{name: "log level needs manage_users", method: http.MethodPut, path: "/api/log/level", auth: bearer(t, editor), body: map[string]any{"level": "debug"}, wantCode: http.StatusForbidden},
		{name: "bad id is rejected before lookup", method: http.MethodGet, path: "/api/clients/abc", auth: bearer(t, viewer), wantCode: http.StatusBadRequest, wantErr: apperrors.CodeInvalidRequest},
		{name: "transfer body validated before lookup", method: http.MethodPost, path: "/api/clients/1/transfer", auth: bearer(t, editor), body: map[string]any{}, wantCode: http.StatusBadRequest, wantErr: apperrors.CodeInvalidRequest},
		{name: "login body validated", method: http.MethodPost, path: "/api/auth/token", body: map[string]any{"email": "a@b.c"}, wantCode: http.StatusBadRequest, wantErr: apperrors.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, tt.method, tt.path, tt.auth, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorCode(t, w))
			}
		})
	}
}
