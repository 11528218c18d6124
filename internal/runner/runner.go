// Package runner drives the scrape cycle over the active case roster in
// paced batches, with per-case failure isolation and checkpointed resume.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/astrelkov/kadsync/internal/chronology"
	"github.com/astrelkov/kadsync/internal/kad"
	"github.com/astrelkov/kadsync/internal/observability"
	"github.com/astrelkov/kadsync/internal/store"
)

// Deliverer applies the CRM side effects of one observed record.
type Deliverer interface {
	Dispatch(ctx context.Context, decision chronology.Decision, rec store.Chronology) error
}

// Options controls one run of the scrape cycle.
type Options struct {
	// BatchSize is the number of cases processed between pauses.
	BatchSize int
	// Pause is the rest between batches.
	Pause time.Duration
	// StartIndex skips cases before this position in the active ordering.
	StartIndex int
	// Resume continues from the stored checkpoint when one exists,
	// overriding StartIndex.
	Resume bool
}

// Summary aggregates the outcome of a run.
type Summary struct {
	Processed int
	Unchanged int
	Changed   int
	NoData    int
	Failed    int
}

// Runner walks the active roster, scrapes each case, diffs it against the
// store and hands changes to the deliverer. One case failing never stops
// the run; cancellation stops it between cases, leaving the checkpoint in
// place.
type Runner struct {
	store      *store.Store
	scraper    kad.Scraper
	engine     *chronology.Engine
	deliverer  Deliverer
	checkpoint *CheckpointFile
	log        *slog.Logger
}

func New(st *store.Store, scraper kad.Scraper, engine *chronology.Engine, deliverer Deliverer, checkpoint *CheckpointFile, log *slog.Logger) *Runner {
	return &Runner{
		store:      st,
		scraper:    scraper,
		engine:     engine,
		deliverer:  deliverer,
		checkpoint: checkpoint,
		log:        log,
	}
}

func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}

	cases, err := r.store.ListActiveCases(ctx)
	if err != nil {
		return Summary{}, err
	}

	start := opts.StartIndex
	if opts.Resume {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return Summary{}, err
		}
		if ok {
			start = cp.LastIndex + 1
			r.log.InfoContext(ctx, "resuming from checkpoint",
				slog.String("last_case", cp.LastCaseNumber),
				slog.Int("start_index", start))
		}
	} else if err := r.checkpoint.Clear(); err != nil {
		return Summary{}, err
	}

	var summary Summary
	inBatch := 0
	for i := start; i < len(cases); i++ {
		if err := ctx.Err(); err != nil {
			// Checkpoint already covers the last finished case.
			return summary, err
		}

		c := cases[i]
		caseCtx := observability.WithCaseNumber(ctx, c.CaseNumber)
		r.processCase(caseCtx, c.CaseNumber, &summary)
		summary.Processed++

		if err := r.checkpoint.Save(Checkpoint{LastCaseNumber: c.CaseNumber, LastIndex: i}); err != nil {
			return summary, err
		}

		inBatch++
		if inBatch == opts.BatchSize && i < len(cases)-1 {
			inBatch = 0
			if err := sleepContext(ctx, opts.Pause); err != nil {
				return summary, err
			}
		}
	}

	if err := r.checkpoint.Clear(); err != nil {
		return summary, err
	}
	r.log.InfoContext(ctx, "run complete",
		slog.Int("processed", summary.Processed),
		slog.Int("changed", summary.Changed),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("no_data", summary.NoData),
		slog.Int("failed", summary.Failed))
	return summary, nil
}

func (r *Runner) processCase(ctx context.Context, caseNumber string, summary *Summary) {
	defer func() {
		if rec := recover(); rec != nil {
			summary.Failed++
			r.log.ErrorContext(ctx, "panic while processing case",
				slog.Any("panic", rec))
		}
	}()

	result, err := r.scraper.FetchCase(ctx, caseNumber)
	if errors.Is(err, kad.ErrNoData) {
		summary.NoData++
		r.log.InfoContext(ctx, "no chronology data, skipping")
		return
	}
	if err != nil {
		summary.Failed++
		r.log.ErrorContext(ctx, "scrape failed", slog.Any("error", err))
		return
	}

	decision, rec, err := r.engine.Observe(ctx, caseNumber, result)
	if err != nil {
		summary.Failed++
		r.log.ErrorContext(ctx, "failed to persist chronology", slog.Any("error", err))
		return
	}

	if !decision.Actionable() {
		summary.Unchanged++
		return
	}
	summary.Changed++
	r.log.InfoContext(ctx, "chronology changed", slog.String("decision", decision.String()))

	if err := r.deliverer.Dispatch(ctx, decision, rec); err != nil {
		summary.Failed++
		r.log.ErrorContext(ctx, "delivery failed", slog.Any("error", err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("batch pause interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
