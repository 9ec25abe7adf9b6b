package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralship/energybot/internal/account"
	"github.com/astralship/energybot/internal/ledger"
)

// memGateway is an in-memory ledger for tests. failures makes the next N
// Commit calls fail before any record is stored.
type memGateway struct {
	mu       sync.Mutex
	failures int
	attempts int
	seen     map[string]bool
	entries  []ledger.Entry
}

func newMemGateway() *memGateway {
	return &memGateway{seen: make(map[string]bool)}
}

func (g *memGateway) Commit(_ context.Context, r *account.DistributionRecord) (ledger.CommitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts++
	if g.failures > 0 {
		g.failures--
		return "", errors.New("ledger unavailable")
	}
	key := r.VoyagerID + "/" + r.SessionID
	if g.seen[key] {
		return ledger.CommitAlreadyCommitted, nil
	}
	g.seen[key] = true
	g.entries = append(g.entries, ledger.Entry{
		VoyagerID:     r.VoyagerID,
		VoyagerName:   r.VoyagerName,
		GuildID:       r.GuildID,
		SessionID:     r.SessionID,
		Allocations:   append([]account.Entry(nil), r.Entries...),
		DeclaredTotal: r.DeclaredTotal,
		CommittedAt:   time.Now(),
	})
	return ledger.CommitNew, nil
}

func (g *memGateway) Query(_ context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []ledger.Entry
	for _, e := range g.entries {
		if f.VoyagerID != "" && e.VoyagerID != f.VoyagerID {
			continue
		}
		if f.GuildID != "" && e.GuildID != f.GuildID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (g *memGateway) committed() []ledger.Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ledger.Entry(nil), g.entries...)
}

func testConfig() Config {
	return Config{
		Tolerance:         decimal.RequireFromString("0.01"),
		FuzzyThreshold:    0.8,
		DefaultCategories: []string{"medical", "navigation", "morale", "engineering", "food", "maintenance"},
	}
}

func say(t *testing.T, m *Manager, voyager, text string) Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.HandleUtterance(ctx, voyager, "Voyager "+voyager, "guild-1", text)
}

func TestFullAccountCommitsImmediately(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	resp := say(t, m, "v1", "I gave 40 to medical, 30 to navigation, and 30 to morale, total 100")
	require.Equal(t, ResponseConfirmation, resp.Type, resp.Text)
	assert.Contains(t, resp.Text, "medical: 40")
	assert.Contains(t, resp.Text, "Total: 100 energy")

	entries := gw.committed()
	require.Len(t, entries, 1)
	assert.Equal(t, "v1", entries[0].VoyagerID)
	require.Len(t, entries[0].Allocations, 3)
	require.NotNil(t, entries[0].DeclaredTotal)
	assert.True(t, entries[0].DeclaredTotal.Equal(decimal.NewFromInt(100)))
}

func TestShortfallAsksForClarification(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	resp := say(t, m, "v1", "40 to medical, 50 to navigation, total 100")
	require.Equal(t, ResponseClarification, resp.Type, resp.Text)
	assert.Contains(t, resp.Text, "10")
	assert.Contains(t, resp.Text, "short")
	assert.Empty(t, gw.committed())

	// Supplying the missing allocation repairs and commits.
	resp = say(t, m, "v1", "10 to morale")
	require.Equal(t, ResponseConfirmation, resp.Type, resp.Text)
	require.Len(t, gw.committed(), 1)
	assert.Len(t, gw.committed()[0].Allocations, 3)
}

func TestOverAllocationAsksForClarification(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	resp := say(t, m, "v1", "60 to medical, 52 to navigation, total 100")
	require.Equal(t, ResponseClarification, resp.Type, resp.Text)
	assert.Contains(t, resp.Text, "12")
	assert.Empty(t, gw.committed())
}

func TestMergeAcrossUtterances(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	resp := say(t, m, "v1", "10 to food")
	require.Equal(t, ResponsePrompt, resp.Type, resp.Text)
	assert.Empty(t, gw.committed())

	resp = say(t, m, "v1", "5 to food")
	require.Equal(t, ResponsePrompt, resp.Type, resp.Text)

	resp = say(t, m, "v1", "done")
	require.Equal(t, ResponseConfirmation, resp.Type, resp.Text)

	entries := gw.committed()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Allocations, 1)
	assert.Equal(t, "food", entries[0].Allocations[0].Category)
	assert.True(t, entries[0].Allocations[0].Quantity.Equal(decimal.NewFromInt(15)))
}

func TestCorrectionReplacesQuantity(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	say(t, m, "v1", "10 to food")
	say(t, m, "v1", "actually, 5 to food")
	resp := say(t, m, "v1", "done")
	require.Equal(t, ResponseConfirmation, resp.Type, resp.Text)

	entries := gw.committed()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Allocations, 1)
	assert.True(t, entries[0].Allocations[0].Quantity.Equal(decimal.NewFromInt(5)))
}

func TestStartMidSessionIsRejected(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	say(t, m, "v1", "start")
	say(t, m, "v1", "10 to food")

	resp := say(t, m, "v1", "start")
	require.Equal(t, ResponseError, resp.Type, resp.Text)
	assert.Contains(t, resp.Text, "already have an account in progress")

	// The existing draft survives the rejected start.
	resp = say(t, m, "v1", "done")
	require.Equal(t, ResponseConfirmation, resp.Type, resp.Text)
	require.Len(t, gw.committed(), 1)
	assert.True(t, gw.committed()[0].Allocations[0].Quantity.Equal(decimal.NewFromInt(10)))
}

func TestCancelDiscardsDraft(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	say(t, m, "v1", "10 to food")
	resp := say(t, m, "v1", "cancel")
	require.Equal(t, ResponseConfirmation, resp.Type, resp.Text)
	assert.Contains(t, resp.Text, "nothing was saved")
	assert.Empty(t, gw.committed())

	// A later "done" finds no session.
	resp = say(t, m, "v1", "done")
	assert.Equal(t, ResponsePrompt, resp.Type)
}

func TestExtractionFailureAsksForRepair(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	resp := say(t, m, "v1", "some to medical and a bit to morale")
	require.Equal(t, ResponseClarification, resp.Type, resp.Text)
	assert.Empty(t, gw.committed())

	resp = say(t, m, "v1", "40 to medical and 60 to morale, total 100")
	require.Equal(t, ResponseConfirmation, resp.Type, resp.Text)
	require.Len(t, gw.committed(), 1)
}

func TestCommitFailureKeepsSessionForRetry(t *testing.T) {
	gw := newMemGateway()
	gw.failures = 3 // exhaust every attempt of the first commit
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	resp := say(t, m, "v1", "40 to medical, 60 to morale, total 100")
	require.Equal(t, ResponseError, resp.Type, resp.Text)
	assert.Contains(t, resp.Text, "nothing is lost")
	assert.Empty(t, gw.committed())

	resp = say(t, m, "v1", "retry")
	require.Equal(t, ResponseConfirmation, resp.Type, resp.Text)
	require.Len(t, gw.committed(), 1)
}

func TestCommitIsIdempotentPerSession(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	say(t, m, "v1", "50 to medical, 50 to morale, total 100")
	say(t, m, "v1", "50 to medical, 50 to morale, total 100")

	// Two full accounts are two sessions, so two entries with distinct
	// session ids.
	entries := gw.committed()
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].SessionID, entries[1].SessionID)
}

func TestVoyagersDoNotShareSessions(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	say(t, m, "v1", "10 to food")
	say(t, m, "v2", "20 to morale")
	say(t, m, "v1", "done")
	say(t, m, "v2", "done")

	entries := gw.committed()
	require.Len(t, entries, 2)
	byVoyager := map[string]ledger.Entry{}
	for _, e := range entries {
		byVoyager[e.VoyagerID] = e
	}
	assert.Equal(t, "food", byVoyager["v1"].Allocations[0].Category)
	assert.Equal(t, "morale", byVoyager["v2"].Allocations[0].Category)
}

func TestConcurrentVoyagersCommitIndependently(t *testing.T) {
	gw := newMemGateway()
	m := NewManager(testConfig(), gw, nil)
	defer m.Stop()

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			resp := say(t, m, id, "50 to medical, 50 to morale, total 100")
			assert.Equal(t, ResponseConfirmation, resp.Type, resp.Text)
		}(id)
	}
	wg.Wait()
	assert.Len(t, gw.committed(), 5)
}

func TestIdleSessionExpires(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 20 * time.Millisecond
	gw := newMemGateway()
	m := NewManager(cfg, gw, nil)
	defer m.Stop()

	say(t, m, "v1", "10 to food")
	time.Sleep(50 * time.Millisecond)
	m.sweep(time.Now())
	time.Sleep(20 * time.Millisecond)

	resp := say(t, m, "v1", "done")
	assert.Equal(t, ResponsePrompt, resp.Type, resp.Text)
	assert.Empty(t, gw.committed())
}
