// Package pipeline drives incremental document conversion: it decides which
// pages actually need (re)processing, dispatches conversion calls through
// the shared rate limiter and retry executor, and records every outcome in
// the checkpoint store before moving on.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"notex/pkg/checkpoint"
	"notex/pkg/converter"
	"notex/pkg/document"
	"notex/pkg/fingerprint"
	"notex/pkg/latex"
	"notex/pkg/logger"
	"notex/pkg/ratelimit"
	"notex/pkg/retry"
)

// PageState classifies a page during planning
type PageState string

const (
	// StatePending marks a page never seen before
	StatePending PageState = "pending"
	// StateStale marks a page whose content changed since its last success,
	// or whose previous attempt failed
	StateStale PageState = "stale"
	// StateUpToDate marks a page whose recorded success matches current
	// content. This is the only state that bypasses the rate limiter.
	StateUpToDate PageState = "up_to_date"
)

// Outcome is the final result for one page in a run
type Outcome struct {
	Page     int
	State    PageState
	Status   checkpoint.Status
	Result   string
	Attempts int
	Err      error
}

// Skipped reports whether the page was resolved without an external call
func (o *Outcome) Skipped() bool {
	return o.State == StateUpToDate
}

// Summary aggregates a run's per-page outcomes
type Summary struct {
	TotalPages int
	Processed  int
	Skipped    int
	Succeeded  int
	Failed     int
	// Cancelled counts pages admitted but never attempted because the run
	// was cancelled first. They are not failures; the next run picks them up.
	Cancelled int
	Elapsed   time.Duration
	// Outcomes is sorted by ascending page number
	Outcomes []Outcome
}

// Options configures a conversion run
type Options struct {
	// PDFPath identifies the source document in the checkpoint set
	PDFPath string
	// DocName prefixes cached image filenames
	DocName string
	// Parallelism bounds concurrent in-flight conversions
	Parallelism int
	// SectionPrefix names per-page section files
	SectionPrefix string
	// DocTitle is used when the main document is first created
	DocTitle string
	// CreateMainDoc enables incremental main.tex assembly
	CreateMainDoc bool
	// MainDocPath is the assembled document location
	MainDocPath string
	// ImagesDir, when non-empty, caches rendered page images for inspection
	ImagesDir string
	// OnOutcome, when set, receives outcomes in ascending page order as
	// they become available
	OnOutcome func(Outcome)
}

// Scheduler is the incremental conversion driver. All workers share one
// rate limiter and one checkpoint store for the workspace.
type Scheduler struct {
	source     document.Source
	conv       converter.Converter
	store      *checkpoint.Store
	executor   *retry.Executor
	integrator *latex.Integrator
	opts       Options
	logger     logger.Logger
}

// New creates a scheduler. The limiter gates every conversion attempt,
// including retries.
func New(
	source document.Source,
	conv converter.Converter,
	store *checkpoint.Store,
	limiter ratelimit.Limiter,
	policy *retry.Policy,
	integrator *latex.Integrator,
	opts Options,
	log logger.Logger,
) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.SectionPrefix == "" {
		opts.SectionPrefix = "notes"
	}

	return &Scheduler{
		source:     source,
		conv:       conv,
		store:      store,
		executor:   retry.NewExecutor(policy, limiter, log),
		integrator: integrator,
		opts:       opts,
		logger:     log,
	}
}

// job carries one page's work to a worker
type job struct {
	page  int
	state PageState
	fp    fingerprint.Digest
	png   []byte
}

// Run processes every page of the document. Pages that are up to date are
// skipped without an external call; all others are converted, and each
// outcome is durably recorded before the run can be considered past that
// page. Per-page failures do not abort the run; checkpoint corruption does.
func (s *Scheduler) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	if _, err := s.store.Load(s.opts.PDFPath); err != nil {
		return nil, err
	}

	total := s.source.PageCount()
	s.logger.InfoWithFields("starting conversion run", map[string]interface{}{
		"pdf":         s.opts.PDFPath,
		"pages":       total,
		"parallelism": s.opts.Parallelism,
		"converter":   s.conv.Name(),
	})

	jobs := make(chan job, s.opts.Parallelism)
	results := make(chan Outcome, s.opts.Parallelism)

	var wg sync.WaitGroup
	for i := 0; i < s.opts.Parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- s.process(ctx, j)
			}
		}()
	}

	// Collect results and emit notifications in ascending page order
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	outcomes := make([]Outcome, 0, total)
	go func() {
		defer collectorWg.Done()
		pending := make(map[int]Outcome)
		next := 1
		for o := range results {
			pending[o.Page] = o
			for {
				out, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				outcomes = append(outcomes, out)
				if s.opts.OnOutcome != nil {
					s.opts.OnOutcome(out)
				}
				next++
			}
		}
		// Cancellation leaves gaps in the sequence; flush what remains
		rest := make([]Outcome, 0, len(pending))
		for _, o := range pending {
			rest = append(rest, o)
		}
		sort.Slice(rest, func(i, k int) bool { return rest[i].Page < rest[k].Page })
		for _, o := range rest {
			outcomes = append(outcomes, o)
			if s.opts.OnOutcome != nil {
				s.opts.OnOutcome(o)
			}
		}
	}()

	// Plan and dispatch in ascending index order. Rendering and
	// fingerprinting are synchronous; only conversion is dispatched.
	var dispatchErr error
	for page := 1; page <= total; page++ {
		if ctx.Err() != nil {
			// Stop admitting new pages; in-flight work finishes and is
			// still recorded
			s.logger.Warn("run cancelled, no further pages admitted")
			break
		}

		j, outcome, err := s.plan(ctx, page)
		if err != nil {
			dispatchErr = err
			break
		}
		if outcome != nil {
			results <- *outcome
			continue
		}
		jobs <- *j
	}

	close(jobs)
	wg.Wait()
	close(results)
	collectorWg.Wait()

	if dispatchErr != nil {
		return nil, dispatchErr
	}

	summary := &Summary{
		TotalPages: total,
		Elapsed:    time.Since(start),
		Outcomes:   outcomes,
	}
	for _, o := range outcomes {
		switch {
		case o.Skipped():
			summary.Skipped++
		case o.Status == checkpoint.StatusSucceeded:
			summary.Processed++
			summary.Succeeded++
		case o.Status == checkpoint.StatusFailed:
			summary.Processed++
			summary.Failed++
		default:
			summary.Cancelled++
		}
	}

	s.logger.InfoWithFields("conversion run finished", map[string]interface{}{
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
		"cancelled": summary.Cancelled,
		"elapsed":   summary.Elapsed.String(),
	})
	return summary, ctx.Err()
}

// plan renders and fingerprints one page and decides its state. Up-to-date
// pages resolve to an outcome immediately; others become jobs.
func (s *Scheduler) plan(ctx context.Context, page int) (*job, *Outcome, error) {
	rendered, err := s.source.Render(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}

	fp := fingerprint.Compute(rendered.PNG)

	if s.opts.ImagesDir != "" {
		if _, err := document.SavePage(rendered, s.opts.ImagesDir, s.opts.DocName); err != nil {
			s.logger.WithError(err).Warn("failed to cache page image")
		}
	}

	rec := s.store.Get(page)
	switch {
	case rec == nil:
		return &job{page: page, state: StatePending, fp: fp, png: rendered.PNG}, nil, nil

	case rec.IsUpToDate(fp):
		// Skip entirely: no rate limiter, no external call. Re-link the
		// existing section into the main document in case a prior run was
		// interrupted before assembly.
		if s.opts.CreateMainDoc && rec.Result != "" {
			if _, err := os.Stat(rec.Result); err == nil {
				if err := s.integrator.AppendToMain(rec.Result, s.opts.MainDocPath, s.opts.DocTitle); err != nil {
					s.logger.WithError(err).Warn("failed to re-link section into main document")
				}
			}
		}
		return nil, &Outcome{
			Page:   page,
			State:  StateUpToDate,
			Status: checkpoint.StatusSucceeded,
			Result: rec.Result,
		}, nil

	default:
		return &job{page: page, state: StateStale, fp: fp, png: rendered.PNG}, nil, nil
	}
}

// process converts one page and records the outcome before returning.
// The external call itself runs on an uncancellable context: once started,
// a conversion finishes naturally and its result is still recorded even if
// the run was cancelled meanwhile.
func (s *Scheduler) process(ctx context.Context, j job) Outcome {
	attempts := 0
	latexCode, err := retry.DoWithResult(ctx, s.executor, func(ctx context.Context) (string, error) {
		attempts++
		return s.conv.Convert(context.WithoutCancel(ctx), j.png)
	})

	if err != nil {
		if attempts == 0 {
			// Cancelled before the first attempt was admitted
			return Outcome{Page: j.page, State: j.state, Status: checkpoint.StatusPending, Err: err}
		}
		if recordErr := s.store.RecordFailure(j.page, j.fp, err.Error(), attempts); recordErr != nil {
			s.logger.WithError(recordErr).Error("failed to record page failure")
		}
		return Outcome{
			Page:     j.page,
			State:    j.state,
			Status:   checkpoint.StatusFailed,
			Attempts: attempts,
			Err:      err,
		}
	}

	sectionPath, err := s.integrator.SaveSection(latexCode, s.opts.SectionPrefix, j.page)
	if err == nil && s.opts.CreateMainDoc {
		err = s.integrator.AppendToMain(sectionPath, s.opts.MainDocPath, s.opts.DocTitle)
	}
	if err != nil {
		if recordErr := s.store.RecordFailure(j.page, j.fp, err.Error(), attempts); recordErr != nil {
			s.logger.WithError(recordErr).Error("failed to record page failure")
		}
		return Outcome{
			Page:     j.page,
			State:    j.state,
			Status:   checkpoint.StatusFailed,
			Attempts: attempts,
			Err:      err,
		}
	}

	if recordErr := s.store.RecordSuccess(j.page, j.fp, sectionPath, attempts); recordErr != nil {
		s.logger.WithError(recordErr).Error("failed to record page success")
	}
	return Outcome{
		Page:     j.page,
		State:    j.state,
		Status:   checkpoint.StatusSucceeded,
		Result:   sectionPath,
		Attempts: attempts,
	}
}
