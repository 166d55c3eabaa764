// Package pipeline wires the full extraction path: gate → cache/oracle →
// validate → confidence filter → dedup → archive. One Runner works through a
// bounded batch of emails sequentially, sharing a single oracle call budget
// across the whole batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/picnicd/picnic/internal/archive"
	"github.com/picnicd/picnic/internal/config"
	"github.com/picnicd/picnic/internal/event"
	"github.com/picnicd/picnic/internal/gate"
	"github.com/picnicd/picnic/internal/learn"
	"github.com/picnicd/picnic/internal/oracle"
	"github.com/picnicd/picnic/internal/postprocess"
)

// Email is the tuple the upstream mail source supplies. MIME decoding,
// header parsing, and authentication all happen before this point.
type Email struct {
	MessageID string `json:"message_id"`
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	Date      string `json:"date"`
	Body      string `json:"body"`
}

// Report carries per-outcome counts for one batch run, so threshold tuning is
// observable without re-reading logs.
type Report struct {
	Considered          int `json:"considered"`
	GatedOut            int `json:"gated_out"`
	CacheHits           int `json:"cache_hits"`
	OracleCalls         int `json:"oracle_calls"`
	BudgetSkipped       int `json:"budget_skipped"`
	OracleDropped       int `json:"oracle_dropped"`
	OracleErrors        int `json:"oracle_errors"`
	ValidationRejected  int `json:"validation_rejected"`
	DuplicateSuppressed int `json:"duplicate_suppressed"`
	Accepted            int `json:"accepted"`

	Events   []*event.Event `json:"events"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Runner owns one batch-processing pipeline instance.
type Runner struct {
	mu      sync.Mutex
	cfg     config.Config
	gate    *gate.Filter
	adapter *oracle.Adapter
	valid   *event.Validator
	post    *postprocess.Processor
	store   *learn.Store
	arch    *archive.Archive // optional
	metrics *Metrics         // optional
}

// New assembles a Runner. The archive and metrics may be nil; everything else
// is required.
func New(cfg config.Config, provider oracle.Provider, store *learn.Store, arch *archive.Archive, metrics *Metrics) (*Runner, error) {
	g, err := gate.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("building gate: %w", err)
	}
	return &Runner{
		cfg:     cfg,
		gate:    g,
		adapter: oracle.NewAdapter(cfg, provider, store),
		valid:   event.NewValidator(cfg),
		post:    postprocess.New(cfg, store),
		store:   store,
		arch:    arch,
		metrics: metrics,
	}, nil
}

// Run processes a batch of emails sequentially. The call budget resets at the
// start of each run and is shared across the batch; once spent, remaining
// emails are counted as budget-skipped rather than erroring. Run only fails
// outright on context cancellation.
//
// Runs are serialized: the budget counter is per-run state on a shared
// adapter, and a concurrent reset would let an in-flight batch overspend.
func (r *Runner) Run(ctx context.Context, emails []Email) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &Report{}

	if w := r.store.LoadWarning; w != "" {
		report.Warnings = append(report.Warnings, w)
	}
	r.adapter.ResetBudget()

	for _, m := range emails {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r.processOne(ctx, m, report)
	}

	report.OracleCalls = r.adapter.CallsMade()
	r.metrics.Record(report)
	return report, nil
}

func (r *Runner) processOne(ctx context.Context, m Email, report *Report) {
	report.Considered++

	if !r.gate.IsEventLike(m.Body, m.Subject) {
		report.GatedOut++
		return
	}

	res, err := r.adapter.Extract(ctx, m.Body, m.Subject, m.MessageID, m.Date)
	if err != nil {
		report.OracleErrors++
		var unparsable *oracle.UnparsableError
		if errors.As(err, &unparsable) {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: unparsable oracle output: %s", m.MessageID, unparsable.Raw))
		} else {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", m.MessageID, err))
		}
		return
	}

	switch res.Outcome {
	case oracle.OutcomeBudgetExhausted:
		report.BudgetSkipped++
		return
	case oracle.OutcomeDropped:
		report.OracleDropped++
		return
	}
	if res.CacheHit {
		report.CacheHits++
	}

	ev, err := r.valid.Validate(res.Draft, m.MessageID, m.Subject)
	if err != nil {
		report.ValidationRejected++
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", m.MessageID, err))
		return
	}

	// The oracle rarely reasons about cost; fall back to the keyword
	// heuristic when it said nothing.
	if res.Draft.Free == nil {
		ev.Free = event.DetectFree(m.Subject + " " + m.Body)
	}

	r.post.Apply(ev)

	if dupID, ok := r.store.FindDuplicate(ev.Title, ev.DateStart, ev.TimeStart, ev.Location); ok {
		report.DuplicateSuppressed++
		if r.arch != nil {
			if err := r.arch.MergeSighting(ctx, dupID, ev); err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", m.MessageID, err))
			}
		}
		return
	}

	eventID := ev.SourceMessageID
	if r.arch != nil {
		id, err := r.arch.Save(ctx, ev)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", m.MessageID, err))
		} else {
			eventID = id
		}
	}
	if err := r.store.RegisterEvent(eventID, ev.Title, ev.DateStart, ev.TimeStart, ev.Location); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", m.MessageID, err))
	}

	report.Accepted++
	report.Events = append(report.Events, ev)
}

// Format renders a report the way the CLI prints it.
func (r *Report) Format() string {
	return fmt.Sprintf(
		"considered %d | gated out %d | cache hits %d | oracle calls %d | "+
			"budget skipped %d | dropped %d | errors %d | rejected %d | "+
			"duplicates %d | accepted %d",
		r.Considered, r.GatedOut, r.CacheHits, r.OracleCalls,
		r.BudgetSkipped, r.OracleDropped, r.OracleErrors,
		r.ValidationRejected, r.DuplicateSuppressed, r.Accepted)
}
