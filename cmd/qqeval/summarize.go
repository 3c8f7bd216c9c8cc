package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qqeval/internal/aggregate"
	"github.com/ShayCichocki/qqeval/internal/fixtures"
	"github.com/ShayCichocki/qqeval/internal/report"
	"github.com/ShayCichocki/qqeval/internal/store"
	"github.com/ShayCichocki/qqeval/pkg/models"
)

var (
	sumBackend        string
	sumBaseline       string
	sumSummaryPath    string
	sumConditionsFile string
	sumPromptsFile    string
	sumModel          string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <store>",
	Short: "Summarize a result store",
	Long: `Read a result store, print the comparison table and optionally write
the summary JSON. The store is not modified.`,
	Args: cobra.ExactArgs(1),
	RunE: summarizeStore,
}

func init() {
	summarizeCmd.Flags().StringVar(&sumBackend, "backend", "", "Store backend: jsonl or sqlite (default: from extension)")
	summarizeCmd.Flags().StringVar(&sumBaseline, "baseline", "", "Baseline condition id (default: from --conditions, else \"baseline\")")
	summarizeCmd.Flags().StringVar(&sumSummaryPath, "summary", "", "Write the summary JSON to this path")
	summarizeCmd.Flags().StringVar(&sumConditionsFile, "conditions", "", "Conditions YAML file, for names and the baseline")
	summarizeCmd.Flags().StringVar(&sumPromptsFile, "prompts", "", "Prompt set YAML file (default: built-in set)")
	summarizeCmd.Flags().StringVar(&sumModel, "model", "", "Model label recorded in the summary")
}

func summarizeStore(cmd *cobra.Command, args []string) error {
	path := args[0]

	backend := store.BackendForPath(path)
	if sumBackend != "" {
		b, err := store.ParseBackend(sumBackend)
		if err != nil {
			return err
		}
		backend = b
	}

	results, err := store.ReadAll(backend, path)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("%s: no results", path)
	}

	set := fixtures.DefaultConditions()
	if sumConditionsFile != "" {
		if set, err = fixtures.LoadConditions(sumConditionsFile); err != nil {
			return err
		}
	}
	baseline := set.Baseline
	if sumBaseline != "" {
		baseline = sumBaseline
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d results\n", path, len(results))
	report.Comparison(out, aggregate.Summarize(results, baseline), baseline)

	if sumSummaryPath == "" {
		return nil
	}

	prompts, err := loadPrompts(sumPromptsFile)
	if err != nil {
		return err
	}
	meta := report.Meta{
		Model:         sumModel,
		RunsPerPrompt: runsPerPrompt(results),
		Baseline:      baseline,
		Prompts:       presentPrompts(prompts, results),
		Conditions:    set.Conditions,
	}
	if err := report.WriteJSON(sumSummaryPath, report.Build(meta, results, time.Now())); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSummary saved to: %s\n", sumSummaryPath)
	return nil
}

// runsPerPrompt infers the repetition count from the highest run index.
func runsPerPrompt(results []models.RunResult) int {
	n := 0
	for _, r := range results {
		if r.RunIndex+1 > n {
			n = r.RunIndex + 1
		}
	}
	return n
}

// presentPrompts keeps the prompts that have at least one result. Prompt ids
// without a known text are listed by id alone.
func presentPrompts(prompts []models.TestPrompt, results []models.RunResult) []models.TestPrompt {
	known := make(map[string]models.TestPrompt, len(prompts))
	for _, p := range prompts {
		known[p.ID] = p
	}

	seen := make(map[string]bool)
	out := make([]models.TestPrompt, 0, len(prompts))
	for _, r := range results {
		if seen[r.PromptID] {
			continue
		}
		seen[r.PromptID] = true
		p, ok := known[r.PromptID]
		if !ok {
			p = models.TestPrompt{ID: r.PromptID}
		}
		out = append(out, p)
	}
	return out
}
