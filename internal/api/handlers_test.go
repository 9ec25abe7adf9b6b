package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/astralship/energybot/internal/account"
	"github.com/astralship/energybot/internal/ledger"
)

type stubGateway struct {
	entries []ledger.Entry
	filter  ledger.Filter
}

func (s *stubGateway) Commit(context.Context, *account.DistributionRecord) (ledger.CommitResult, error) {
	return ledger.CommitNew, nil
}

func (s *stubGateway) Query(_ context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	s.filter = f
	return s.entries, nil
}

func withClaims(r *http.Request, claims *Claims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), "claims", claims))
}

func TestHandleHealth(t *testing.T) {
	api := &API{}

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	api.handleHealth(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status OK, got %v", w.Result().StatusCode)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("Expected body to contain ok, got %s", w.Body.String())
	}
}

func TestHandleVoyagerAccountsReturnsOwnEntries(t *testing.T) {
	gw := &stubGateway{entries: []ledger.Entry{{
		VoyagerID: "v1",
		SessionID: "s1",
		Allocations: []account.Entry{
			{Category: "medical", Quantity: decimal.NewFromInt(40)},
		},
		CommittedAt: time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC),
	}}}
	api := &API{ledger: gw}

	req := httptest.NewRequest("GET", "/api/voyagers/v1/accounts?from=2026-03-01", nil)
	req = mux.SetURLVars(req, map[string]string{"voyager_id": "v1"})
	req = withClaims(req, &Claims{UserID: "v1"})
	w := httptest.NewRecorder()

	api.handleVoyagerAccounts(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status OK, got %v: %s", w.Result().StatusCode, w.Body.String())
	}

	var accounts []struct {
		SessionID   string `json:"session_id"`
		Allocations []struct {
			Category string `json:"category"`
			Quantity string `json:"quantity"`
		} `json:"allocations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(accounts) != 1 || accounts[0].SessionID != "s1" {
		t.Fatalf("Unexpected accounts in response: %+v", accounts)
	}
	if accounts[0].Allocations[0].Quantity != "40" {
		t.Errorf("Expected quantity 40, got %s", accounts[0].Allocations[0].Quantity)
	}
	if gw.filter.VoyagerID != "v1" {
		t.Errorf("Expected query scoped to v1, got %q", gw.filter.VoyagerID)
	}
	if gw.filter.From.IsZero() {
		t.Error("Expected the from parameter to reach the ledger filter")
	}
}

func TestHandleVoyagerAccountsForbidsOtherVoyagers(t *testing.T) {
	api := &API{ledger: &stubGateway{}}

	req := httptest.NewRequest("GET", "/api/voyagers/v2/accounts", nil)
	req = mux.SetURLVars(req, map[string]string{"voyager_id": "v2"})
	req = withClaims(req, &Claims{UserID: "v1"})
	w := httptest.NewRecorder()

	api.handleVoyagerAccounts(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("Expected status Forbidden, got %v", w.Result().StatusCode)
	}
}

func TestHandleVoyagerAccountsRejectsBadTime(t *testing.T) {
	api := &API{ledger: &stubGateway{}}

	req := httptest.NewRequest("GET", "/api/voyagers/v1/accounts?from=yesterday", nil)
	req = mux.SetURLVars(req, map[string]string{"voyager_id": "v1"})
	req = withClaims(req, &Claims{UserID: "v1"})
	w := httptest.NewRecorder()

	api.handleVoyagerAccounts(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status BadRequest, got %v", w.Result().StatusCode)
	}
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	api := &API{jwtSecret: []byte("test-secret")}
	handler := api.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not run without a token")
	}))

	req := httptest.NewRequest("GET", "/api/user/guilds", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status Unauthorized, got %v", w.Result().StatusCode)
	}
}
