// Package ledger is the persistence boundary for committed distribution
// records. The pipeline depends only on the Gateway contract, not on any
// storage technology.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/astralship/energybot/internal/account"
	"github.com/shopspring/decimal"
)

type CommitResult string

const (
	CommitNew CommitResult = "new"
	// CommitAlreadyCommitted means the (voyager id, session id) key was
	// seen before; the ledger is unchanged.
	CommitAlreadyCommitted CommitResult = "already_committed"
)

var ErrNotCommittable = errors.New("record is not in a committable state")

// Entry is the durable form of a committed record.
type Entry struct {
	VoyagerID     string
	VoyagerName   string
	GuildID       string
	SessionID     string
	Allocations   []account.Entry
	DeclaredTotal *decimal.Decimal
	CommittedAt   time.Time
}

// Filter narrows a Query; zero fields match everything.
type Filter struct {
	VoyagerID string
	GuildID   string
	From      time.Time
	To        time.Time
}

// Gateway commits exactly once per (voyager id, session id) and serves
// reporting queries. Commit and Query are the only blocking operations in
// the pipeline.
type Gateway interface {
	Commit(ctx context.Context, record *account.DistributionRecord) (CommitResult, error)
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}
