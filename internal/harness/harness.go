// Package harness runs the prompt × condition × repetition matrix: it collects
// a response for every missing cell, classifies it and records the result.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/qqeval/internal/collect"
	"github.com/ShayCichocki/qqeval/internal/detect"
	"github.com/ShayCichocki/qqeval/internal/retry"
	"github.com/ShayCichocki/qqeval/internal/store"
	"github.com/ShayCichocki/qqeval/pkg/models"
)

// DefaultConcurrency is the number of cells processed at once.
const DefaultConcurrency = 4

// Collector samples a response from the model under test.
type Collector interface {
	Collect(ctx context.Context, prompt models.TestPrompt, cond models.Condition) (collect.Response, error)
}

// Detector classifies a response.
type Detector interface {
	Detect(ctx context.Context, promptText, responseText string) (detect.Verdict, error)
}

// Options configures a Harness.
type Options struct {
	// Concurrency bounds the number of cells in flight. Defaults to DefaultConcurrency.
	Concurrency int
	// RunID stamps every recorded result. A random UUID is used when empty.
	RunID   string
	Logger  *zap.Logger
	Metrics *Metrics
	// Observer is called once for every recorded result. Calls are serialized.
	Observer func(models.RunResult)
	// Now returns the record timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Report summarizes one harness invocation.
type Report struct {
	RunID    string
	Planned  int
	Skipped  int
	Recorded int
	Detected int
	Failed   int
	// Dropped counts cells abandoned because the run was cancelled or aborted.
	Dropped  int
	Duration time.Duration
}

// Harness drives collection and detection across a matrix.
type Harness struct {
	collector Collector
	detector  Detector
	store     store.Store
	opts      Options
	logger    *zap.Logger
}

// run is the state of one Run invocation.
type run struct {
	*Harness
	id     string
	logger *zap.Logger

	mu     sync.Mutex
	report Report
}

// New creates a harness that records into st.
func New(collector Collector, detector Detector, st store.Store, opts Options) *Harness {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Harness{
		collector: collector,
		detector:  detector,
		store:     st,
		opts:      opts,
		logger:    opts.Logger,
	}
}

// Run processes every cell of m that has no stored result. Cells with a
// stored result are skipped, so repeated runs are idempotent.
//
// A permanent failure in any cell cancels the remaining work and is returned.
// Cells interrupted by cancellation are not recorded; Run then returns the
// context's error. The report is returned in every case.
func (h *Harness) Run(ctx context.Context, m Matrix) (*Report, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matrix: %w", err)
	}

	runID := h.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	start := time.Now()
	r := &run{
		Harness: h,
		id:      runID,
		logger:  h.logger.With(zap.String("run_id", runID)),
		report:  Report{RunID: runID, Planned: m.Size()},
	}
	logger := r.logger
	logger.Info("starting run",
		zap.Int("cells", m.Size()),
		zap.Int("conditions", len(m.Conditions)),
		zap.Int("prompts", len(m.Prompts)),
		zap.Int("repetitions", m.Repetitions),
		zap.Int("concurrency", h.opts.Concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.Concurrency)

	for _, cell := range m.Cells() {
		if h.store.Has(cell.Key()) {
			r.count(func(rep *Report) { rep.Skipped++ })
			h.opts.Metrics.observeSkipped(cell.Condition.ID)
			continue
		}
		if gctx.Err() != nil {
			r.count(func(rep *Report) { rep.Dropped++ })
			continue
		}

		cell := cell
		g.Go(func() error {
			return r.runCell(gctx, cell)
		})
	}

	err := g.Wait()

	r.mu.Lock()
	r.report.Duration = time.Since(start)
	report := r.report
	r.mu.Unlock()

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		logger.Warn("run stopped early", zap.Error(err), zap.Int("recorded", report.Recorded), zap.Int("dropped", report.Dropped))
		return &report, err
	}

	logger.Info("run complete",
		zap.Int("recorded", report.Recorded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))
	return &report, nil
}

// runCell collects, classifies and records one cell. It returns an error only
// for failures that must abort the whole run.
func (r *run) runCell(ctx context.Context, cell Cell) error {
	if ctx.Err() != nil {
		r.count(func(rep *Report) { rep.Dropped++ })
		return nil
	}

	r.opts.Metrics.cellStarted()
	defer r.opts.Metrics.cellDone()

	key := cell.Key()
	log := r.logger.With(
		zap.String("condition", key.ConditionID),
		zap.String("prompt", key.PromptID),
		zap.Int("run", key.RunIndex))

	result := models.RunResult{
		Version:         models.RecordVersion,
		RunID:           r.id,
		PromptID:        key.PromptID,
		ConditionID:     key.ConditionID,
		RunIndex:        key.RunIndex,
		DetectionMethod: models.MethodNone,
	}

	resp, err := r.collector.Collect(ctx, cell.Prompt, cell.Condition)
	result.Attempts = resp.Attempts
	if err != nil {
		return r.fail(ctx, log, result, "collector", err)
	}

	result.ResponseText = resp.Text
	result.LatencyMS = resp.Latency.Milliseconds()
	result.InputTokens = resp.InputTokens
	result.OutputTokens = resp.OutputTokens

	verdict, err := r.detector.Detect(ctx, cell.Prompt.Text, resp.Text)
	if err != nil {
		return r.fail(ctx, log, result, "judge", err)
	}

	result.Detected = verdict.Detected
	result.DetectionMethod = verdict.Method
	result.Category = verdict.Category
	result.MatchedPhrase = verdict.Phrase
	result.JudgeExplanation = verdict.Explanation
	result.Warning = verdict.Warning
	if result.Warning != "" {
		log.Warn("classification warning", zap.String("warning", result.Warning))
	}
	return r.record(log, result)
}

// fail handles a cell whose collector or judge call failed. Cancellation
// drops the cell, exhausted retries are recorded as an errored result, and
// anything else aborts the run.
func (r *run) fail(ctx context.Context, log *zap.Logger, result models.RunResult, stage string, err error) error {
	if ctx.Err() != nil {
		r.count(func(rep *Report) { rep.Dropped++ })
		return nil
	}

	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) {
		r.count(func(rep *Report) { rep.Dropped++ })
		log.Error(stage+" failed permanently", zap.Error(err))
		return fmt.Errorf("cell %s: %w", result.Key(), err)
	}

	log.Warn(stage+" gave up", zap.Error(err), zap.Int("attempts", exhausted.Attempts))
	result.Error = err.Error()
	return r.record(log, result)
}

func (r *run) record(log *zap.Logger, result models.RunResult) error {
	result.RecordedAt = r.opts.Now().UTC()

	ok, err := r.store.Append(result)
	if err != nil {
		return fmt.Errorf("record %s: %w", result.Key(), err)
	}
	if !ok {
		r.count(func(rep *Report) { rep.Skipped++ })
		return nil
	}

	r.opts.Metrics.observeResult(result)
	log.Debug("recorded result",
		zap.Bool("detected", result.Detected),
		zap.String("method", string(result.DetectionMethod)),
		zap.Int("attempts", result.Attempts))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Recorded++
	if result.Detected {
		r.report.Detected++
	}
	if result.Failed() {
		r.report.Failed++
	}
	if r.opts.Observer != nil {
		r.opts.Observer(result)
	}
	return nil
}

func (r *run) count(fn func(*Report)) {
	r.mu.Lock()
	fn(&r.report)
	r.mu.Unlock()
}
