package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/qqeval/internal/aggregate"
	"github.com/ShayCichocki/qqeval/internal/api"
	"github.com/ShayCichocki/qqeval/internal/collect"
	"github.com/ShayCichocki/qqeval/internal/config"
	"github.com/ShayCichocki/qqeval/internal/detect"
	"github.com/ShayCichocki/qqeval/internal/fixtures"
	"github.com/ShayCichocki/qqeval/internal/harness"
	"github.com/ShayCichocki/qqeval/internal/report"
	"github.com/ShayCichocki/qqeval/internal/store"
	"github.com/ShayCichocki/qqeval/pkg/models"
)

var (
	runRuns           int
	runTemperature    float64
	runModel          string
	runProvider       string
	runJudgeModel     string
	runNoLLM          bool
	runConditionsFile string
	runPromptsFile    string
	runOnly           []string
	runStorePath      string
	runBackend        string
	runConcurrency    int
	runRPS            float64
	runBaseline       string
	runSummaryPath    string
	runMetricsAddr    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the experiment",
	Long: `Send every prompt under every condition --runs times, classify each
response and append the results to the store.

Cells already in the store are skipped, so an interrupted run resumes where
it stopped when started again with the same store. Transient API failures are
retried with exponential backoff; cells that still fail are recorded with an
error and left out of the rates. Authentication and other permanent errors
stop the run.

Conditions come from a YAML file:

  baseline: baseline
  conditions:
    - id: baseline
    - id: v2a_tone_only
      instruction_file: instructions/v2a_tone_only.txt

Without --conditions, a single baseline without a system instruction is used.`,
	RunE: runExperiment,
}

func init() {
	runCmd.Flags().IntVarP(&runRuns, "runs", "r", 3, "Runs per prompt and condition")
	runCmd.Flags().Float64VarP(&runTemperature, "temperature", "t", 0.7, "Sampling temperature for the model under test")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model under test (default from config)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "Provider of the model under test: anthropic or openai")
	runCmd.Flags().StringVar(&runJudgeModel, "judge-model", "", "Classification model (default from config)")
	runCmd.Flags().BoolVar(&runNoLLM, "no-llm", false, "Use pattern detection only")
	runCmd.Flags().StringVar(&runConditionsFile, "conditions", "", "Conditions YAML file")
	runCmd.Flags().StringVar(&runPromptsFile, "prompts", "", "Prompt set YAML file (default: built-in set)")
	runCmd.Flags().StringSliceVar(&runOnly, "only", nil, "Run only these condition ids (the baseline is always kept)")
	runCmd.Flags().StringVar(&runStorePath, "store", "", "Result store path (default from config)")
	runCmd.Flags().StringVar(&runBackend, "backend", "", "Store backend: jsonl or sqlite (default: from --store extension)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Cells in flight (default from config)")
	runCmd.Flags().Float64Var(&runRPS, "rps", 0, "Request rate limit shared by both models, 0 for none")
	runCmd.Flags().StringVar(&runBaseline, "baseline", "", "Baseline condition id (default from conditions file)")
	runCmd.Flags().StringVar(&runSummaryPath, "summary", "", "Write the summary JSON to this path")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

// applyRunFlags overlays explicitly set flags on cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("runs") {
		cfg.Harness.Runs = runRuns
	}
	if flags.Changed("temperature") {
		cfg.Subject.Temperature = runTemperature
	}
	if flags.Changed("model") {
		cfg.Subject.Model = runModel
	}
	if flags.Changed("provider") {
		cfg.Subject.Provider = runProvider
	}
	if flags.Changed("judge-model") {
		cfg.Judge.Model = runJudgeModel
	}
	if runNoLLM {
		cfg.Judge.Enabled = false
	}
	if flags.Changed("concurrency") {
		cfg.Harness.Concurrency = runConcurrency
	}
	if flags.Changed("rps") {
		cfg.Harness.RequestsPerSecond = runRPS
	}
	if flags.Changed("store") {
		cfg.Store.Path = runStorePath
		if !flags.Changed("backend") {
			cfg.Store.Backend = string(store.BackendForPath(runStorePath))
		}
	}
	if flags.Changed("backend") {
		backend, err := store.ParseBackend(runBackend)
		if err != nil {
			return err
		}
		cfg.Store.Backend = string(backend)
	}
	return cfg.Validate()
}

// loadExperiment resolves the prompt set and conditions for a run.
func loadExperiment() ([]models.TestPrompt, fixtures.ConditionSet, error) {
	prompts, err := loadPrompts(runPromptsFile)
	if err != nil {
		return nil, fixtures.ConditionSet{}, err
	}

	set, err := loadConditions(runConditionsFile)
	if err != nil {
		return nil, fixtures.ConditionSet{}, err
	}
	if runBaseline != "" {
		set.Baseline = runBaseline
	}
	set, err = set.Filter(runOnly)
	if err != nil {
		return nil, fixtures.ConditionSet{}, err
	}
	for _, c := range set.Conditions {
		if c.ID == set.Baseline {
			return prompts, set, nil
		}
	}
	return nil, fixtures.ConditionSet{}, fmt.Errorf("baseline %q is not a listed condition", set.Baseline)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	prompts, set, err := loadExperiment()
	if err != nil {
		return err
	}
	matrix := harness.Matrix{Prompts: prompts, Conditions: set.Conditions, Repetitions: cfg.Harness.Runs}
	if err := matrix.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := api.NewLimiter(cfg.Harness.RequestsPerSecond, cfg.Harness.Burst)

	subject, err := newCompleter(cfg, cfg.Subject.Provider, cfg.Subject.Model, limiter)
	if err != nil {
		return err
	}
	collector, err := collect.New(subject, collect.Config{
		Model:       cfg.Subject.Model,
		Temperature: cfg.Subject.Temperature,
		MaxTokens:   cfg.Subject.MaxTokens,
		Timeout:     cfg.Subject.Timeout,
		Retry:       cfg.Retry.Policy(),
	}, logger.Named("collect"))
	if err != nil {
		return err
	}

	var judge detect.Classifier
	var judgeClient api.Completer
	judgeModel := ""
	if cfg.Judge.Enabled {
		judgeClient, err = newCompleter(cfg, cfg.Judge.Provider, cfg.Judge.Model, limiter)
		if err != nil {
			return fmt.Errorf("classification model: %w (use --no-llm for pattern detection only)", err)
		}
		jc := detect.DefaultJudgeConfig()
		jc.Model = cfg.Judge.Model
		jc.Timeout = cfg.Judge.Timeout
		jc.Retry = cfg.Retry.Policy()
		judge = detect.NewSemanticJudge(judgeClient, jc, logger.Named("judge"))
		judgeModel = cfg.Judge.Model
	}
	pipeline := detect.NewPipeline(nil, judge)

	st, err := store.Open(store.Backend(cfg.Store.Backend), cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	metrics := harness.NewMetrics(reg)
	if runMetricsAddr != "" {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		shutdown := serveMetrics(runMetricsAddr, reg)
		defer shutdown()
	}

	out := cmd.OutOrStdout()
	printHeader(out, cfg, matrix, set, st)

	progress := newProgressPrinter(out, matrix.Size(), storedCells(st, matrix))
	h := harness.New(collector, pipeline, st, harness.Options{
		Concurrency: cfg.Harness.Concurrency,
		Logger:      logger.Named("harness"),
		Metrics:     metrics,
		Observer:    progress.print,
	})

	rep, runErr := h.Run(ctx, matrix)
	if rep != nil {
		printReport(out, rep)
	}
	printTokens(out, "model under test", subject)
	if judgeClient != nil {
		printTokens(out, "classification model", judgeClient)
	}

	results, err := st.Results()
	if err != nil {
		return err
	}
	results = matrixResults(results, matrix)
	report.Comparison(out, aggregate.Summarize(results, set.Baseline), set.Baseline)

	if runSummaryPath != "" {
		meta := report.Meta{
			Model:         cfg.Subject.Model,
			JudgeModel:    judgeModel,
			Temperature:   cfg.Subject.Temperature,
			RunsPerPrompt: cfg.Harness.Runs,
			Baseline:      set.Baseline,
			Prompts:       prompts,
			Conditions:    set.Conditions,
		}
		if err := report.WriteJSON(runSummaryPath, report.Build(meta, results, time.Now())); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nSummary saved to: %s\n", runSummaryPath)
	}

	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(out, "\n%s Interrupted. Run the same command again to resume.\n", color.YellowString("⚠"))
	}
	return runErr
}

// matrixResults keeps the results belonging to cells of m.
func matrixResults(results []models.RunResult, m harness.Matrix) []models.RunResult {
	cells := make(map[models.CellKey]bool, m.Size())
	for _, c := range m.Cells() {
		cells[c.Key()] = true
	}
	out := make([]models.RunResult, 0, len(results))
	for _, r := range results {
		if cells[r.Key()] {
			out = append(out, r)
		}
	}
	return out
}

// storedCells counts the cells of m that already have a result.
func storedCells(st store.Store, m harness.Matrix) int {
	n := 0
	for _, c := range m.Cells() {
		if st.Has(c.Key()) {
			n++
		}
	}
	return n
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printHeader(w io.Writer, cfg *config.Config, m harness.Matrix, set fixtures.ConditionSet, st store.Store) {
	bold := color.New(color.Bold)
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("#", 60))
	bold.Fprintln(w, "QUESTION QUALITY COMMENTING TEST")
	fmt.Fprintf(w, "%s\n", strings.Repeat("#", 60))
	fmt.Fprintf(w, "Prompts: %d\n", len(m.Prompts))
	fmt.Fprintf(w, "Runs per prompt: %d\n", m.Repetitions)
	fmt.Fprintf(w, "Conditions: %s (baseline: %s)\n", strings.Join(set.IDs(), ", "), set.Baseline)
	fmt.Fprintf(w, "Total cells: %d\n", m.Size())
	fmt.Fprintf(w, "Model: %s, Temperature: %g\n", cfg.Subject.Model, cfg.Subject.Temperature)
	if cfg.Judge.Enabled {
		fmt.Fprintf(w, "LLM Detection: Enabled (%s)\n", cfg.Judge.Model)
	} else {
		fmt.Fprintln(w, "LLM Detection: Disabled")
	}
	fmt.Fprintf(w, "Store: %s (%s, %d results)\n\n", filepath.Clean(st.Path()), cfg.Store.Backend, st.Len())
}

func printReport(w io.Writer, rep *harness.Report) {
	fmt.Fprintf(w, "\nRun %s: %d recorded, %d detected, %d failed, %d skipped",
		rep.RunID, rep.Recorded, rep.Detected, rep.Failed, rep.Skipped)
	if rep.Dropped > 0 {
		fmt.Fprintf(w, ", %d not run", rep.Dropped)
	}
	fmt.Fprintf(w, " in %s\n", rep.Duration.Round(time.Second))
}

func printTokens(w io.Writer, label string, c api.Completer) {
	t, ok := c.(api.Tracked)
	if !ok || t.Tracker() == nil {
		return
	}
	in, out := t.Tracker().Total()
	fmt.Fprintf(w, "Tokens (%s): %d in, %d out over %d calls\n", label, in, out, t.Tracker().Calls())
}

// progressPrinter prints one line per recorded cell. Calls are serialized by
// the harness.
type progressPrinter struct {
	w     io.Writer
	total int
	done  int
}

func newProgressPrinter(w io.Writer, total, stored int) *progressPrinter {
	return &progressPrinter{w: w, total: total, done: stored}
}

func (p *progressPrinter) print(r models.RunResult) {
	p.done++
	fmt.Fprintf(p.w, "  [%d/%d] %s/%s #%d  %s\n",
		p.done, p.total, r.ConditionID, r.PromptID, r.RunIndex+1, report.Progress(r))
}
