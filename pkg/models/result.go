package models

import (
	"fmt"
	"time"
)

// RecordVersion is the schema version written into every RunResult.
// Fields may be added without bumping it; removing or renaming a field does.
const RecordVersion = 1

// CellKey identifies one cell of the prompt × condition × repetition matrix.
type CellKey struct {
	PromptID    string
	ConditionID string
	RunIndex    int
}

// String returns a compact representation for logs.
func (k CellKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.ConditionID, k.PromptID, k.RunIndex)
}

// RunResult is one observation: a response to one prompt under one condition,
// together with its classification. Results are append-only and never mutated.
type RunResult struct {
	// Version is the record schema version.
	Version int `json:"v"`
	// RunID identifies the harness invocation that produced the record.
	RunID string `json:"run_id,omitempty"`

	PromptID    string `json:"prompt_id"`
	ConditionID string `json:"condition_id"`
	RunIndex    int    `json:"run_index"`

	// ResponseText is the full text returned by the model under test.
	ResponseText string `json:"response_text"`

	Detected        bool            `json:"detected"`
	DetectionMethod DetectionMethod `json:"detection_method"`
	Category        Category        `json:"category"`
	MatchedPhrase   string          `json:"matched_phrase,omitempty"`
	// JudgeExplanation is the classification model's reasoning, when it ran.
	JudgeExplanation string `json:"judge_explanation,omitempty"`
	// Warning marks a classification that could not be trusted, such as
	// malformed judge output. The result still counts as not detected.
	Warning string `json:"warning,omitempty"`

	// LatencyMS is the duration of the successful collector attempt.
	LatencyMS    int64 `json:"latency_ms"`
	Attempts     int   `json:"attempts,omitempty"`
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`

	// Error is set when the cell could not produce a classifiable response.
	Error string `json:"error,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// Key returns the matrix cell this result belongs to.
func (r RunResult) Key() CellKey {
	return CellKey{PromptID: r.PromptID, ConditionID: r.ConditionID, RunIndex: r.RunIndex}
}

// Failed reports whether the run ended in an unresolved transport error.
func (r RunResult) Failed() bool {
	return r.Error != ""
}

// Latency returns the recorded latency as a duration.
func (r RunResult) Latency() time.Duration {
	return time.Duration(r.LatencyMS) * time.Millisecond
}

// Validate checks the record invariants.
func (r RunResult) Validate() error {
	if r.PromptID == "" || r.ConditionID == "" {
		return fmt.Errorf("result missing prompt or condition id")
	}
	if r.RunIndex < 0 {
		return fmt.Errorf("result %s: negative run index", r.Key())
	}
	if !r.DetectionMethod.Valid() {
		return fmt.Errorf("result %s: unknown detection method %q", r.Key(), r.DetectionMethod)
	}
	if r.Detected && r.DetectionMethod == MethodNone {
		return fmt.Errorf("result %s: detected without a detection method", r.Key())
	}
	if !r.Detected && r.DetectionMethod != MethodNone {
		return fmt.Errorf("result %s: method %q set without a detection", r.Key(), r.DetectionMethod)
	}
	if r.Failed() && r.Detected {
		return fmt.Errorf("result %s: failed run marked as detected", r.Key())
	}
	return nil
}
