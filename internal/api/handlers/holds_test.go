package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/driftbyte/snapharbor/internal/api/middleware"
	"github.com/driftbyte/snapharbor/internal/auth"
	"github.com/driftbyte/snapharbor/internal/holds"
	"github.com/driftbyte/snapharbor/internal/models"
)

func newHoldRouter(claims *auth.Claims, fake *fakeUpstream) (*gin.Engine, *holds.Gate) {
	gin.SetMode(gin.TestMode)
	gate := holds.NewGate(fake)
	router := gin.New()
	router.Use(withClaims(claims))

	h := NewHoldHandler(gate, noopActivity())
	router.GET("/api/v1/legal-holds", h.ListHolds)
	router.POST("/api/v1/snapshots/:id/legal-hold", middleware.RequireHoldManager(), h.PlaceHold)
	router.DELETE("/api/v1/snapshots/:id/legal-hold", middleware.RequireHoldManager(), h.RemoveHold)
	return router, gate
}

func TestPlaceHoldForbiddenForMembers(t *testing.T) {
	fake := &fakeUpstream{}
	router, gate := newHoldRouter(testClaims(models.RoleMember), fake)

	w := performJSON(t, router, http.MethodPost, "/api/v1/snapshots/abc123def456/legal-hold",
		`{"reason":"litigation hold"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for member, got %d", w.Code)
	}
	if gate.IsHeld("abc123def456") {
		t.Error("expected no hold recorded after forbidden request")
	}
	if len(fake.holds) != 0 {
		t.Error("expected no upstream call for forbidden request")
	}
}

func TestPlaceHoldRequiresReason(t *testing.T) {
	fake := &fakeUpstream{}
	router, _ := newHoldRouter(testClaims(models.RoleAdmin), fake)

	w := performJSON(t, router, http.MethodPost, "/api/v1/snapshots/abc123def456/legal-hold", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without a reason, got %d", w.Code)
	}

	w = performJSON(t, router, http.MethodPost, "/api/v1/snapshots/abc123def456/legal-hold",
		`{"reason":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for a blank reason, got %d", w.Code)
	}
}

func TestPlaceAndRemoveHoldLifecycle(t *testing.T) {
	fake := &fakeUpstream{}
	router, gate := newHoldRouter(testClaims(models.RoleOwner), fake)

	w := performJSON(t, router, http.MethodPost, "/api/v1/snapshots/abc123def456/legal-hold",
		`{"reason":"retention audit"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if !gate.IsHeld("abc123def456") {
		t.Error("expected hold recorded after placement")
	}

	w = performJSON(t, router, http.MethodGet, "/api/v1/legal-holds", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 listing holds, got %d", w.Code)
	}
	body := decodeBody(t, w)
	list, ok := body["legal_holds"].([]interface{})
	if !ok || len(list) != 1 {
		t.Fatalf("expected one hold in listing, got %v", body["legal_holds"])
	}

	w = performJSON(t, router, http.MethodDelete, "/api/v1/snapshots/abc123def456/legal-hold", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 removing hold, got %d: %s", w.Code, w.Body.String())
	}
	if gate.IsHeld("abc123def456") {
		t.Error("expected hold gone after removal")
	}
}
