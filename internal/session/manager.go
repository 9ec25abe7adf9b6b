package session

import (
	"context"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/astralship/energybot/internal/account"
	"github.com/astralship/energybot/internal/extract"
	"github.com/astralship/energybot/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VocabularySource supplies the category vocabulary for a guild. An empty
// guild id asks for the global vocabulary.
type VocabularySource interface {
	ListCategories(ctx context.Context, guildID string) ([]string, error)
}

type Config struct {
	// Tolerance is the conservation tolerance as a fraction of the
	// declared total.
	Tolerance decimal.Decimal
	// FuzzyThreshold is the minimum similarity for category matching.
	FuzzyThreshold float64
	// IdleTimeout cancels a session that has seen no utterance for this
	// long. Zero disables the reaper.
	IdleTimeout       time.Duration
	DefaultCategories []string
}

// Manager routes utterances to per-voyager mailboxes. Utterances for one
// voyager are processed strictly in arrival order; different voyagers run
// concurrently with no shared mutable state.
type Manager struct {
	cfg    Config
	ledger ledger.Gateway
	vocab  VocabularySource

	mu    sync.RWMutex
	boxes map[string]*mailbox

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewManager(cfg Config, gateway ledger.Gateway, vocab VocabularySource) *Manager {
	return &Manager{
		cfg:      cfg,
		ledger:   gateway,
		vocab:    vocab,
		boxes:    make(map[string]*mailbox),
		stopChan: make(chan struct{}),
	}
}

// Start launches the idle-session reaper. Safe to skip in tests.
func (m *Manager) Start() {
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	interval := m.cfg.IdleTimeout / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				m.sweep(now)
			case <-m.stopChan:
				return
			}
		}
	}()
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

type request struct {
	ctx   context.Context
	text  string
	name  string
	hint  string
	reply chan Response
}

type mailbox struct {
	voyagerID string
	mgr       *Manager
	ch        chan request
	sweepCh   chan time.Time
	sess      *Session
}

// HandleUtterance is the single inbound operation. It blocks until this
// voyager's mailbox has processed the utterance or ctx is done.
func (m *Manager) HandleUtterance(ctx context.Context, voyagerID, voyagerName, sessionHint, text string) Response {
	box := m.box(voyagerID)
	req := request{ctx: ctx, text: text, name: voyagerName, hint: sessionHint, reply: make(chan Response, 1)}

	select {
	case box.ch <- req:
	case <-ctx.Done():
		return Response{Type: ResponseError, Text: "That took too long to queue. Please try again."}
	}
	select {
	case resp := <-req.reply:
		return resp
	case <-ctx.Done():
		return Response{Type: ResponseError, Text: "That took too long to process. Please try again."}
	}
}

func (m *Manager) box(voyagerID string) *mailbox {
	m.mu.RLock()
	box, ok := m.boxes[voyagerID]
	m.mu.RUnlock()
	if ok {
		return box
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if box, ok = m.boxes[voyagerID]; ok {
		return box
	}
	box = &mailbox{
		voyagerID: voyagerID,
		mgr:       m,
		ch:        make(chan request, 16),
		sweepCh:   make(chan time.Time, 1),
	}
	m.boxes[voyagerID] = box
	go box.loop()
	return box
}

func (m *Manager) sweep(now time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, box := range m.boxes {
		select {
		case box.sweepCh <- now:
		default:
		}
	}
}

func (b *mailbox) loop() {
	for {
		select {
		case req := <-b.ch:
			req.reply <- b.handle(req)
		case now := <-b.sweepCh:
			b.expire(now)
		case <-b.mgr.stopChan:
			return
		}
	}
}

func (b *mailbox) expire(now time.Time) {
	if b.sess == nil || b.mgr.cfg.IdleTimeout <= 0 {
		return
	}
	if now.Sub(b.sess.LastActivity) > b.mgr.cfg.IdleTimeout {
		log.Printf("session for voyager %s timed out, cancelling", b.voyagerID)
		b.sess.State = StateCancelled
		b.sess = nil
	}
}

var (
	startRe  = regexp.MustCompile(`(?i)^\s*/?(start|begin|new account|account)\s*!*\s*$`)
	cancelRe = regexp.MustCompile(`(?i)^\s*/?(cancel|stop|abort|nevermind|never mind)\s*!*\s*$`)
	commitRe = regexp.MustCompile(`(?i)^\s*/?(done|save|submit|confirm|retry|yes|that's it|thats it)\s*!*\s*$`)
)

func (b *mailbox) handle(req request) Response {
	text := strings.TrimSpace(req.text)
	if b.sess != nil {
		b.sess.Seq++
		b.sess.LastActivity = time.Now()
	}

	switch {
	case cancelRe.MatchString(text):
		if b.sess == nil {
			return Response{Type: ResponsePrompt, Text: "You have no account in progress. Tell me how you distributed your energy whenever you're ready."}
		}
		b.sess.State = StateCancelled
		b.sess = nil
		return Response{Type: ResponseConfirmation, Text: "Cancelled. Your draft was discarded, nothing was saved."}

	case startRe.MatchString(text):
		if b.sess != nil {
			return Response{Type: ResponseError, Text: "You already have an account in progress. Finish or cancel your current account first."}
		}
		b.open(req.name, req.hint)
		return Response{Type: ResponsePrompt, Text: "Hello voyager! Tell me how you distributed your energy today, for example \"40 to medical, 30 to navigation, 30 to morale, total 100\". Say \"cancel\" at any time to stop."}

	case commitRe.MatchString(text):
		if b.sess == nil {
			return Response{Type: ResponsePrompt, Text: "You have no account in progress. Tell me how you distributed your energy whenever you're ready."}
		}
		return b.progress(req.ctx, true)
	}

	if text == "" {
		return Response{Type: ResponsePrompt, Text: "Did you mean to send that? I can't do much with an empty message."}
	}

	if b.sess == nil {
		b.open(req.name, req.hint)
		b.sess.Seq = 1
	}

	vocab := b.vocabulary(req.ctx)
	res, fail := extract.Extract(text, vocab)
	if fail != nil {
		b.sess.State = StateAwaitingClarification
		prompt := clarifyExtraction(fail)
		b.sess.remember(prompt)
		return Response{Type: ResponseClarification, Text: prompt}
	}

	b.sess.State = StateCollecting
	b.sess.Draft = account.Build(res.Tokens, res.DeclaredTotal, b.sess.Draft)
	return b.progress(req.ctx, false)
}

func (b *mailbox) open(name, hint string) {
	now := time.Now()
	b.sess = &Session{
		VoyagerID:    b.voyagerID,
		GuildID:      hint,
		State:        StateCollecting,
		LastActivity: now,
		Draft: &account.DistributionRecord{
			VoyagerID:   b.voyagerID,
			VoyagerName: name,
			GuildID:     hint,
			SessionID:   uuid.NewString(),
			Status:      account.StatusDraft,
			CreatedAt:   now,
		},
	}
}

func (b *mailbox) vocabulary(ctx context.Context) extract.Vocabulary {
	cats := append([]string(nil), b.mgr.cfg.DefaultCategories...)
	if b.mgr.vocab != nil {
		stored, err := b.mgr.vocab.ListCategories(ctx, b.sess.GuildID)
		if err != nil {
			log.Printf("failed to load category vocabulary: %v", err)
		} else {
			cats = append(cats, stored...)
		}
	}
	return extract.Vocabulary{Categories: cats, Threshold: b.mgr.cfg.FuzzyThreshold}
}

// progress runs the validator and decides what happens next. A record with
// a declared total commits as soon as it reconciles; one without stays open
// for more allocations until the voyager says they are done (finish forces
// the commit).
func (b *mailbox) progress(ctx context.Context, finish bool) Response {
	b.sess.State = StateValidating
	if fail := account.Validate(b.sess.Draft, b.mgr.cfg.Tolerance); fail != nil {
		b.sess.State = StateAwaitingClarification
		prompt := clarifyValidation(fail, b.sess.Draft)
		b.sess.remember(prompt)
		return Response{Type: ResponseClarification, Text: prompt}
	}

	if !finish && b.sess.Draft.DeclaredTotal == nil {
		b.sess.State = StateCollecting
		return Response{Type: ResponsePrompt, Text: "Logged so far:\n" + account.Summarize(b.sess.Draft) + "\nAdd more, or say \"done\" to save."}
	}

	b.sess.Draft.Status = account.StatusValidated
	if err := b.commitWithRetry(ctx); err != nil {
		log.Printf("commit failed for voyager %s: %v", b.voyagerID, err)
		b.sess.State = StateAwaitingClarification
		return Response{Type: ResponseError, Text: "I couldn't save your account just now, but nothing is lost. Say \"retry\" in a moment and I'll try again."}
	}

	b.sess.Draft.Status = account.StatusCommitted
	b.sess.State = StateCommitted
	summary := account.Summarize(b.sess.Draft)
	b.sess = nil
	return Response{Type: ResponseConfirmation, Text: "Energy accounted. Thank you for your work!\n\n" + summary}
}

func (b *mailbox) commitWithRetry(ctx context.Context) error {
	const attemptTimeout = 10 * time.Second
	const maxAttempts = 3

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		commitCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := b.mgr.ledger.Commit(commitCtx, b.sess.Draft)
		cancel()
		if err == nil {
			// AlreadyCommitted counts as success: the idempotency key
			// says this exact record is durable.
			return nil
		}
		lastErr = err
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
		}
	}
	return lastErr
}
