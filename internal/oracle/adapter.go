package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/picnicd/picnic/internal/config"
	"github.com/picnicd/picnic/internal/event"
	"github.com/picnicd/picnic/internal/learn"
	"github.com/picnicd/picnic/internal/textnorm"
)

// Outcome classifies an extraction result. Dropped and budget exhaustion are
// expected terminals, not errors.
type Outcome int

const (
	// OutcomeParsed means the oracle returned a decodable payload.
	OutcomeParsed Outcome = iota
	// OutcomeDropped means the oracle answered the DROP sentinel: the
	// message is not an event. Never cached, so a re-run reconsiders it.
	OutcomeDropped
	// OutcomeBudgetExhausted means the per-run call budget is spent; the
	// oracle was not contacted.
	OutcomeBudgetExhausted
)

// Result is the adapter's answer for one message.
type Result struct {
	Outcome  Outcome
	Draft    *event.RawDraft
	Raw      json.RawMessage
	CacheHit bool
}

// UnparsableError preserves the oracle's raw text when it returned something
// that is neither DROP nor valid JSON, for later diagnosis.
type UnparsableError struct {
	Raw string
	Err error
}

func (e *UnparsableError) Error() string {
	return fmt.Sprintf("oracle returned unparsable text: %v", e.Err)
}

func (e *UnparsableError) Unwrap() error { return e.Err }

// Adapter gates access to the oracle: cache first, then an atomically
// reserved budget slot, then the call itself. A failed call refunds its slot
// — a transient network blip must not silently consume budget.
type Adapter struct {
	cfg      config.Config
	provider Provider
	store    *learn.Store

	calls    atomic.Int64
	maxCalls int64
}

// NewAdapter wires a provider and the cache-backing store.
func NewAdapter(cfg config.Config, provider Provider, store *learn.Store) *Adapter {
	return &Adapter{
		cfg:      cfg,
		provider: provider,
		store:    store,
		maxCalls: int64(cfg.MaxOracleCallsPerRun),
	}
}

// Extract runs one message through cache → budget → oracle → decode.
// The caller is expected to have gated the message already.
func (a *Adapter) Extract(ctx context.Context, body, subject, messageID, receivedAt string) (*Result, error) {
	cacheKey := textnorm.CacheKey(messageID, body)
	if raw, ok := a.store.GetCachedResponse(cacheKey); ok {
		draft, err := decodeDraft(string(raw))
		if err != nil {
			return nil, err
		}
		return &Result{Outcome: OutcomeParsed, Draft: draft, Raw: raw, CacheHit: true}, nil
	}

	// Reserve a budget slot before calling; refund on failure.
	if n := a.calls.Add(1); n > a.maxCalls {
		a.calls.Add(-1)
		return &Result{Outcome: OutcomeBudgetExhausted}, nil
	}

	prompt := buildPrompt(a.cfg, body, subject, messageID, receivedAt)
	text, err := a.provider.Complete(ctx, prompt)
	if err != nil {
		a.calls.Add(-1)
		return nil, fmt.Errorf("oracle call for %s: %w", messageID, err)
	}

	text = strings.TrimSpace(text)
	if text == "DROP" || text == `"DROP"` {
		return &Result{Outcome: OutcomeDropped}, nil
	}

	draft, err := decodeDraft(text)
	if err != nil {
		return nil, err
	}

	// Caching only suppresses duplicate spend; a failed write is not worth
	// losing the payload over.
	raw := json.RawMessage(text)
	_ = a.store.CacheResponse(cacheKey, raw)
	return &Result{Outcome: OutcomeParsed, Draft: draft, Raw: raw}, nil
}

// CallsMade returns the number of budget-consuming oracle calls so far.
func (a *Adapter) CallsMade() int { return int(a.calls.Load()) }

// BudgetRemaining returns how many oracle calls the run may still make.
func (a *Adapter) BudgetRemaining() int {
	rem := a.maxCalls - a.calls.Load()
	if rem < 0 {
		return 0
	}
	return int(rem)
}

// ResetBudget zeroes the call counter for a new batch run.
func (a *Adapter) ResetBudget() { a.calls.Store(0) }

func decodeDraft(text string) (*event.RawDraft, error) {
	var draft event.RawDraft
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return nil, &UnparsableError{Raw: text, Err: err}
	}
	return &draft, nil
}
