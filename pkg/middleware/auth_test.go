package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/writer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type brokenStore struct{}

func (brokenStore) Load(ctx context.Context) (*models.Document, error) {
	return nil, errors.New("unreadable")
}
func (brokenStore) Save(ctx context.Context, doc *models.Document) error { return nil }
func (brokenStore) Close(ctx context.Context) error { return nil }

type fixture struct {
	tokens *auth.TokenService
	db     *repository.Database
}

func newFixture(t *testing.T, store repository.DocumentStore) *fixture {
	t.Helper()
	w, err := writer.New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	return &fixture{
		tokens: auth.NewTokenService("test-secret", 0),
		db:     repository.NewDatabase(store, w, zap.NewNop()),
	}
}

func usersStore() repository.DocumentStore {
	doc := models.NewDocument()
	doc.Users = append(doc.Users,
		models.User{ID: "admin-1", Username: "root", Password: "hash", Role: models.RoleAdmin},
		models.User{ID: "cust-1", Username: "alice", Password: "hash", Role: models.RoleCustomer},
		models.User{ID: "cust-2", Username: "bob", Password: "hash", Role: models.RoleCustomer},
	)
	return repository.NewMemoryStore(doc)
}

func (f *fixture) token(t *testing.T, userID string, role models.Role) string {
	t.Helper()
	tok, err := f.tokens.Issue(userID, role)
	require.NoError(t, err)
	return tok
}

func (f *fixture) router(gates ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequireAuth(f.tokens, f.db, zap.NewNop())}, gates...)
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, user)
	})
	r.GET("/users/:userId", handlers...)
	r.POST("/things", handlers...)
	r.GET("/me", handlers...)
	return r
}

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	f := newFixture(t, usersStore())
	r := f.router()

	t.Run("missing header", func(t *testing.T) {
		w := do(r, http.MethodGet, "/me", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"Unauthorized access"}`, w.Body.String())
	})

	t.Run("garbage token", func(t *testing.T) {
		w := do(r, http.MethodGet, "/me", "not-a-jwt", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		w := do(r, http.MethodGet, "/me", f.token(t, "ghost", models.RoleAdmin), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"Unauthorized access"}`, w.Body.String())
	})

	t.Run("valid token attaches user without password", func(t *testing.T) {
		w := do(r, http.MethodGet, "/me", f.token(t, "cust-1", models.RoleCustomer), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"username":"alice"`)
		assert.NotContains(t, w.Body.String(), "password")
	})
}

func TestRequireAuth_StoreFailure(t *testing.T) {
	f := newFixture(t, brokenStore{})
	w := do(f.router(), http.MethodGet, "/me", f.token(t, "cust-1", models.RoleCustomer), "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Authentication error"}`, w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t, usersStore())
	r := f.router(RequireAdmin())

	w := do(r, http.MethodGet, "/me", f.token(t, "cust-1", models.RoleCustomer), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Admin access required"}`, w.Body.String())

	w = do(r, http.MethodGet, "/me", f.token(t, "admin-1", models.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin_UsesStoredRole(t *testing.T) {
	f := newFixture(t, usersStore())
	r := f.router(RequireAdmin())

	// The role claim is ignored; the stored record decides.
	w := do(r, http.MethodGet, "/me", f.token(t, "cust-1", models.RoleAdmin), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireOwnership(t *testing.T) {
	f := newFixture(t, usersStore())
	r := f.router(RequireOwnership(nil))

	tests := []struct {
		name   string
		caller string
		role   models.Role
		method string
		path   string
		body   string
		want   int
	}{
		{name: "owner via param", caller: "cust-1", role: models.RoleCustomer, method: http.MethodGet, path: "/users/cust-1", want: http.StatusOK},
		{name: "other user via param", caller: "cust-1", role: models.RoleCustomer, method: http.MethodGet, path: "/users/cust-2", want: http.StatusForbidden},
		{name: "admin bypass", caller: "admin-1", role: models.RoleAdmin, method: http.MethodGet, path: "/users/cust-2", want: http.StatusOK},
		{name: "owner via body", caller: "cust-2", role: models.RoleCustomer, method: http.MethodPost, path: "/things", body: `{"userId":"cust-2"}`, want: http.StatusOK},
		{name: "other user via body", caller: "cust-2", role: models.RoleCustomer, method: http.MethodPost, path: "/things", body: `{"userId":"cust-1"}`, want: http.StatusForbidden},
		{name: "no owner named", caller: "cust-2", role: models.RoleCustomer, method: http.MethodPost, path: "/things", body: `{}`, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, f.token(t, tt.caller, tt.role), tt.body)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.JSONEq(t, `{"error":"Access denied: You can only access your own resources"}`, w.Body.String())
			}
		})
	}
}

func TestCanAccess(t *testing.T) {
	admin := &models.PublicUser{ID: "a", Role: models.RoleAdmin}
	customer := &models.PublicUser{ID: "c", Role: models.RoleCustomer}

	assert.True(t, CanAccess(admin, "anyone"))
	assert.True(t, CanAccess(admin, ""))
	assert.True(t, CanAccess(customer, "c"))
	assert.False(t, CanAccess(customer, "x"))
	assert.False(t, CanAccess(customer, ""))
	assert.False(t, CanAccess(nil, "c"))
}

func TestGatesWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/owned/:userId", RequireOwnership(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/admin", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/owned/x", "", "").Code)
}
