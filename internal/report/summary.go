// Package report renders experiment results: the summary JSON document read
// by the dashboard and the terminal comparison table.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ShayCichocki/qqeval/internal/aggregate"
	"github.com/ShayCichocki/qqeval/pkg/models"
)

// Meta describes the experiment that produced a set of results.
type Meta struct {
	Model         string
	JudgeModel    string
	Temperature   float64
	RunsPerPrompt int
	Baseline      string
	Prompts       []models.TestPrompt
	Conditions    []models.Condition
}

// Summary is the summary document. Field names are stable.
type Summary struct {
	Timestamp       string                      `json:"timestamp"`
	Model           string                      `json:"model"`
	JudgeModel      string                      `json:"judge_model,omitempty"`
	Temperature     float64                     `json:"temperature"`
	RunsPerPrompt   int                         `json:"runs_per_prompt"`
	Baseline        string                      `json:"baseline"`
	Prompts         []string                    `json:"prompts"`
	Conditions      map[string]ConditionSummary `json:"summary"`
	ByPrompt        []models.PromptStat         `json:"by_prompt"`
	ConditionOrder  []string                    `json:"condition_order"`
	DetailedResults map[string][]Run            `json:"detailed_results"`
}

// OpeningLength is the number of characters of a response kept as its
// opening in the detailed results.
const OpeningLength = 200

// Run is one entry of the detailed results. The dashboard groups runs by
// matching Prompt against the prompt texts in Summary.Prompts.
type Run struct {
	Prompt             string  `json:"prompt"`
	PromptID           string  `json:"prompt_id"`
	RunIndex           int     `json:"run_index"`
	ResponseText       string  `json:"response_text"`
	ResponseOpening    string  `json:"response_opening"`
	HasQualityComment  bool    `json:"has_quality_comment"`
	PatternMatch       bool    `json:"pattern_match"`
	PatternMatchedText *string `json:"pattern_matched_text"`
	LLMMatch           bool    `json:"llm_match"`
	LLMMatchedText     *string `json:"llm_matched_text"`
	LLMCategory        *string `json:"llm_category"`
	LLMExplanation     *string `json:"llm_explanation"`
	Warning            string  `json:"warning,omitempty"`
	Error              string  `json:"error,omitempty"`
}

func newRun(r models.RunResult, text string) Run {
	run := Run{
		Prompt:            text,
		PromptID:          r.PromptID,
		RunIndex:          r.RunIndex,
		ResponseText:      r.ResponseText,
		ResponseOpening:   prefix(r.ResponseText, OpeningLength),
		HasQualityComment: r.Detected,
		Warning:           r.Warning,
		Error:             r.Error,
	}
	switch r.DetectionMethod {
	case models.MethodPattern:
		run.PatternMatch = true
		run.PatternMatchedText = optional(r.MatchedPhrase)
	case models.MethodSemantic:
		run.LLMMatch = true
		run.LLMMatchedText = optional(r.MatchedPhrase)
		run.LLMCategory = optional(string(r.Category))
	}
	run.LLMExplanation = optional(r.JudgeExplanation)
	return run
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ConditionSummary is the per-condition block of the summary document.
type ConditionSummary struct {
	Name                string   `json:"name,omitempty"`
	TotalRuns           int      `json:"total_runs"`
	QualityCommentCount int      `json:"quality_comment_count"`
	QualityCommentRate  float64  `json:"quality_comment_rate"`
	PatternMatches      int      `json:"pattern_matches"`
	LLMMatches          int      `json:"llm_matches"`
	Errors              int      `json:"errors"`
	Warnings            int      `json:"warnings"`
	DeltaVsBaselinePPT  *float64 `json:"delta_vs_baseline_ppt"`
	PromptRateStdDev    float64  `json:"prompt_rate_stddev"`
}

// Build assembles the summary document from stored results.
func Build(meta Meta, results []models.RunResult, now time.Time) Summary {
	names := make(map[string]string, len(meta.Conditions))
	for _, c := range meta.Conditions {
		names[c.ID] = c.Label()
	}

	stats := aggregate.Summarize(results, meta.Baseline)
	order := make([]string, 0, len(stats))
	for _, s := range aggregate.Ordered(stats, meta.Baseline) {
		order = append(order, s.ConditionID)
	}
	conds := make(map[string]ConditionSummary, len(stats))
	for id, s := range stats {
		conds[id] = ConditionSummary{
			Name:                names[id],
			TotalRuns:           s.TotalRuns,
			QualityCommentCount: s.DetectedCount,
			QualityCommentRate:  s.Rate,
			PatternMatches:      s.PatternCount,
			LLMMatches:          s.SemanticCount,
			Errors:              s.ErrorCount,
			Warnings:            s.WarningCount,
			DeltaVsBaselinePPT:  s.DeltaVsBaseline,
			PromptRateStdDev:    s.PromptRateStdDev,
		}
	}

	texts := make(map[string]string, len(meta.Prompts))
	prompts := make([]string, 0, len(meta.Prompts))
	for _, p := range meta.Prompts {
		texts[p.ID] = p.Text
		prompts = append(prompts, p.Text)
	}

	// Runs of prompts missing from meta keep their id as the prompt text.
	detailed := make(map[string][]Run)
	for _, r := range results {
		text, ok := texts[r.PromptID]
		if !ok {
			text = r.PromptID
		}
		detailed[r.ConditionID] = append(detailed[r.ConditionID], newRun(r, text))
	}

	return Summary{
		Timestamp:       now.UTC().Format(time.RFC3339),
		Model:           meta.Model,
		JudgeModel:      meta.JudgeModel,
		Temperature:     meta.Temperature,
		RunsPerPrompt:   meta.RunsPerPrompt,
		Baseline:        meta.Baseline,
		Prompts:         prompts,
		Conditions:      conds,
		ByPrompt:        aggregate.ByPrompt(results),
		ConditionOrder:  order,
		DetailedResults: detailed,
	}
}

// WriteJSON writes the summary to path, replacing any existing file
// atomically.
func WriteJSON(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename summary: %w", err)
	}
	return nil
}
