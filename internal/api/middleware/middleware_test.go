package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/auth"
	"github.com/driftbyte/snapharbor/internal/models"
)

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"0.0.0.0/0", "https://example.com"}

	if !isOriginAllowed("https://example.com", allowed) {
		t.Fatalf("expected origin to be allowed")
	}

	if !isOriginAllowed("https://anything.local", allowed) {
		t.Fatalf("expected wildcard allowlist to permit origin")
	}

	if !isOriginAllowed("", allowed) {
		t.Fatalf("expected empty origin to be allowed")
	}
}

func TestContainsWildcard(t *testing.T) {
	if !containsWildcard([]string{"0.0.0.0/0"}) {
		t.Fatalf("expected wildcard to be detected")
	}

	if containsWildcard([]string{"https://example.com"}) {
		t.Fatalf("did not expect wildcard to be detected")
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := newRateLimiter(true, 2)
	key := "127.0.0.1"

	if !limiter.allow(key) {
		t.Fatalf("expected first request to be allowed")
	}
	if !limiter.allow(key) {
		t.Fatalf("expected second request to be allowed")
	}
	if limiter.allow(key) {
		t.Fatalf("expected third request to be rate limited")
	}

	limiter.entries[key].windowStart = time.Now().Add(-limiter.window)
	if !limiter.allow(key) {
		t.Fatalf("expected request to be allowed after window reset")
	}
}

func TestRequireHoldManager(t *testing.T) {
	gin.SetMode(gin.TestMode)

	perform := func(claims *auth.Claims) int {
		router := gin.New()
		if claims != nil {
			router.Use(func(c *gin.Context) {
				c.Set("user", claims)
				c.Next()
			})
		}
		router.Use(RequireHoldManager())
		router.POST("/hold", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hold", nil))
		return w.Code
	}

	if code := perform(nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 without claims, got %d", code)
	}
	if code := perform(&auth.Claims{UserID: uuid.New(), Role: models.RoleMember}); code != http.StatusForbidden {
		t.Errorf("expected 403 for member, got %d", code)
	}
	if code := perform(&auth.Claims{UserID: uuid.New(), Role: models.RoleAdmin}); code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d", code)
	}
	if code := perform(&auth.Claims{UserID: uuid.New(), Role: models.RoleOwner}); code != http.StatusOK {
		t.Errorf("expected 200 for owner, got %d", code)
	}
}
