package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gymserver/auth"
	"gymserver/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

var testSecret = []byte("test-secret")

type fakeDirectory struct {
	identities map[uuid.UUID]*models.Identity
	err        error
}

func (d *fakeDirectory) FindIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.identities[id], nil
}

func (d *fakeDirectory) ActiveAccountExists(ctx context.Context, role string, id uuid.UUID) (bool, error) {
	identity := d.identities[id]
	return identity != nil && identity.Role == role && identity.IsActive, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T, directory *fakeDirectory) *gin.Engine {
	router := gin.New()
	router.Use(AuthMiddleware(testSecret, directory, zaptest.NewLogger(t)))
	router.GET("/me", func(c *gin.Context) {
		identity := IdentityFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": identity.ID.String(), "active": identity.IsActive})
	})
	return router
}

func signed(t *testing.T, id uuid.UUID, ttl time.Duration) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, id, models.RoleMember, ttl)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	status, _ := body["status"].(string)
	return status
}

func TestAuthMiddleware(t *testing.T) {
	member := &models.Identity{ID: uuid.New(), Role: models.RoleMember, Name: "M", IsActive: true}
	inactive := &models.Identity{ID: uuid.New(), Role: models.RoleMember, Name: "I", IsActive: false}
	directory := &fakeDirectory{identities: map[uuid.UUID]*models.Identity{
		member.ID:   member,
		inactive.ID: inactive,
	}}
	router := newAuthRouter(t, directory)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"expired token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, member.ID, -time.Minute))
		}, http.StatusUnauthorized},
		{"unknown account", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, uuid.New(), time.Hour))
		}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, member.ID, time.Hour))
		}, http.StatusOK},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: signed(t, member.ID, time.Hour)})
		}, http.StatusOK},
		{"inactive account passes through", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: signed(t, inactive.ID, time.Hour)})
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status == http.StatusUnauthorized && decodeStatus(t, w) != models.ErrCodeUnauthorized {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_RejectsStaleRole(t *testing.T) {
	// トークン発行後に会員からトレーナーへ変わったアカウント
	promoted := &models.Identity{ID: uuid.New(), Role: models.RoleTrainer, Name: "P", IsActive: true}
	router := newAuthRouter(t, &fakeDirectory{identities: map[uuid.UUID]*models.Identity{promoted.ID: promoted}})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, promoted.ID, time.Hour))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if decodeStatus(t, w) != models.ErrCodeUnauthorized {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAuthMiddleware_DirectoryFailure(t *testing.T) {
	router := newAuthRouter(t, &fakeDirectory{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, uuid.New(), time.Hour))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if decodeStatus(t, w) != models.ErrCodePersistenceFailure {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestIdentityFromContext_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if IdentityFromContext(c) != nil {
		t.Error("expected nil identity")
	}
	identity := &models.Identity{ID: uuid.New()}
	SetIdentity(c, identity)
	if IdentityFromContext(c) != identity {
		t.Error("expected the identity that was set")
	}
}

func TestRateLimiter_PerAccount(t *testing.T) {
	limiter := NewRateLimiter(60, 2, zaptest.NewLogger(t))
	alice := &models.Identity{ID: uuid.New()}
	bob := &models.Identity{ID: uuid.New()}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if c.GetHeader("X-User") == "alice" {
			SetIdentity(c, alice)
		} else {
			SetIdentity(c, bob)
		}
		c.Next()
	})
	router.Use(limiter.Middleware())
	router.POST("/verify", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/verify", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("alice"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, code)
		}
	}
	if code := do("alice"); code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", code)
	}
	if code := do("bob"); code != http.StatusOK {
		t.Errorf("other account should have its own bucket, got %d", code)
	}
}

func TestRateLimiter_RequiresIdentity(t *testing.T) {
	limiter := NewRateLimiter(60, 2, zaptest.NewLogger(t))
	router := gin.New()
	router.Use(limiter.Middleware())
	router.POST("/verify", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/verify", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(limiter.limiters) != 0 {
		t.Error("no bucket should be created for an anonymous request")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(60, 1, zaptest.NewLogger(t))
	now := time.Now()
	limiter.allow("a", now.Add(-time.Hour))
	limiter.allow("b", now)

	if removed := limiter.Cleanup(now); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := limiter.limiters["b"]; !ok {
		t.Error("recently used bucket should be kept")
	}
}
