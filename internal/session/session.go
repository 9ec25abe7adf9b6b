// Package session drives the per-voyager accounting conversation: it feeds
// utterances through the extraction pipeline and either commits the record
// or asks for a repair.
package session

import (
	"fmt"
	"time"

	"github.com/astralship/energybot/internal/account"
	"github.com/astralship/energybot/internal/extract"
)

type State string

const (
	StateCollecting            State = "collecting"
	StateValidating            State = "validating"
	StateAwaitingClarification State = "awaiting_clarification"
	StateCommitted             State = "committed"
	StateCancelled             State = "cancelled"
)

type ResponseType string

const (
	ResponsePrompt        ResponseType = "prompt"
	ResponseConfirmation  ResponseType = "confirmation"
	ResponseClarification ResponseType = "clarification_request"
	ResponseError         ResponseType = "error"
)

// Response is what the transport delivers back to the voyager; the core
// never talks to the messaging channel itself.
type Response struct {
	Type ResponseType
	Text string
}

// Utterance is one inbound message, immutable once received. Seq orders
// utterances within a session.
type Utterance struct {
	VoyagerID string
	Seq       int
	Text      string
}

const historyLimit = 5

// Session is the conversational context for one in-progress account. It is
// owned by exactly one mailbox goroutine; no lock needed.
type Session struct {
	VoyagerID    string
	GuildID      string
	Draft        *account.DistributionRecord
	State        State
	History      []string
	Seq          int
	LastActivity time.Time
}

func (s *Session) remember(prompt string) {
	s.History = append(s.History, prompt)
	if len(s.History) > historyLimit {
		s.History = s.History[len(s.History)-historyLimit:]
	}
}

func clarifyExtraction(fail *extract.Failure) string {
	switch fail.Reason {
	case extract.AmbiguousClause:
		return fmt.Sprintf("I see more than one amount in %q. Could you restate that part with one amount per category?", fail.Clause)
	case extract.UnknownUnit:
		return fmt.Sprintf("I caught an amount in %q but not which category it went to. Which category did you mean?", fail.Clause)
	default:
		return fmt.Sprintf("I couldn't find an amount in %q. Tell me like \"40 to medical\", and I'll add it up.", fail.Clause)
	}
}

func clarifyValidation(fail *account.ValidationFailure, r *account.DistributionRecord) string {
	if fail.Kind == account.ConservationMismatch && r.DeclaredTotal != nil {
		if fail.Difference.IsPositive() {
			return fmt.Sprintf("You've allocated %s more than your total of %s. Should I change an entry, or is the total different?",
				fail.Difference, r.DeclaredTotal)
		}
		return fmt.Sprintf("You're %s short of your total of %s. What did the rest go to?",
			fail.Difference.Abs(), r.DeclaredTotal)
	}
	return fmt.Sprintf("That doesn't add up yet: %s. Could you restate it?", fail.Detail)
}
