package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/astralship/energybot/internal/ledger"
	"github.com/astralship/energybot/internal/report"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Protected handlers
func (a *API) handleUserGuilds(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*Claims)

	guilds, err := a.getDiscordGuilds(claims.AccessToken)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to get guilds: %v", err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(guilds)
}

type accountJSON struct {
	SessionID     string           `json:"session_id"`
	GuildID       string           `json:"guild_id,omitempty"`
	Allocations   []allocationJSON `json:"allocations"`
	DeclaredTotal *decimal.Decimal `json:"declared_total,omitempty"`
	CommittedAt   time.Time        `json:"committed_at"`
}

type allocationJSON struct {
	Category  string          `json:"category"`
	Recipient string          `json:"recipient,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// handleVoyagerAccounts returns the caller's own committed accounts.
// Voyagers cannot read each other's ledgers.
func (a *API) handleVoyagerAccounts(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*Claims)
	vars := mux.Vars(r)
	voyagerID := vars["voyager_id"]

	if voyagerID != claims.UserID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	filter := ledger.Filter{VoyagerID: voyagerID}
	var err error
	if filter.From, err = parseTimeParam(r, "from"); err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	if filter.To, err = parseTimeParam(r, "to"); err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}

	entries, err := a.ledger.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to query accounts", http.StatusInternalServerError)
		return
	}

	accounts := make([]accountJSON, 0, len(entries))
	for _, e := range entries {
		allocs := make([]allocationJSON, 0, len(e.Allocations))
		for _, al := range e.Allocations {
			allocs = append(allocs, allocationJSON{
				Category:  al.Category,
				Recipient: al.Recipient,
				Quantity:  al.Quantity,
			})
		}
		accounts = append(accounts, accountJSON{
			SessionID:     e.SessionID,
			GuildID:       e.GuildID,
			Allocations:   allocs,
			DeclaredTotal: e.DeclaredTotal,
			CommittedAt:   e.CommittedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

type contributorJSON struct {
	VoyagerID   string           `json:"voyager_id"`
	Name        string           `json:"name"`
	Allocations []allocationJSON `json:"allocations"`
	Total       decimal.Decimal  `json:"total"`
}

func (a *API) handleGuildReport(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*Claims)
	vars := mux.Vars(r)
	guildID := vars["guild_id"]

	// Verify user has access to guild
	if !a.userHasGuildAccess(claims.AccessToken, guildID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	now := time.Now()
	filter := ledger.Filter{GuildID: guildID, From: now.AddDate(0, 0, -7), To: now}
	if from, ferr := parseTimeParam(r, "from"); ferr == nil && !from.IsZero() {
		filter.From = from
	} else if ferr != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	if to, terr := parseTimeParam(r, "to"); terr == nil && !to.IsZero() {
		filter.To = to
	} else if terr != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}

	entries, err := a.ledger.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to query accounts", http.StatusInternalServerError)
		return
	}

	contributors := report.Build(entries)
	out := make([]contributorJSON, 0, len(contributors))
	for _, c := range contributors {
		allocs := make([]allocationJSON, 0, len(c.Allocations))
		for _, al := range c.Allocations {
			allocs = append(allocs, allocationJSON{Category: al.Category, Quantity: al.Quantity})
		}
		out = append(out, contributorJSON{
			VoyagerID:   c.VoyagerID,
			Name:        c.Name,
			Allocations: allocs,
			Total:       c.Total,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"contributors": out,
		"rendered":     report.Render(contributors),
	})
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	categories, err := a.db.ListCategories(r.Context(), vars["guild_id"])
	if err != nil {
		http.Error(w, "failed to list categories", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(categories)
}

func (a *API) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*Claims)
	vars := mux.Vars(r)
	guildID := vars["guild_id"]

	// Verify user has access to guild
	if !a.userHasGuildAccess(claims.AccessToken, guildID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := a.db.AddCategory(r.Context(), guildID, req.Name); err != nil {
		http.Error(w, "failed to add category", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "category added",
	})
}

func (a *API) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*Claims)
	vars := mux.Vars(r)
	guildID := vars["guild_id"]

	// Verify user has access to guild
	if !a.userHasGuildAccess(claims.AccessToken, guildID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if err := a.db.RemoveCategory(r.Context(), guildID, vars["name"]); err != nil {
		http.Error(w, "failed to remove category", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "category removed",
	})
}

// parseTimeParam reads an RFC 3339 timestamp or a plain date. A missing
// parameter is the zero time, which the ledger treats as unbounded.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
