package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDetectionMethod_Valid(t *testing.T) {
	tests := []struct {
		name   string
		method DetectionMethod
		want   bool
	}{
		{"pattern is valid", MethodPattern, true},
		{"semantic is valid", MethodSemantic, true},
		{"none is valid", MethodNone, true},
		{"empty string is invalid", DetectionMethod(""), false},
		{"unknown method is invalid", DetectionMethod("regex"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.method.Valid(); got != tt.want {
				t.Errorf("DetectionMethod(%q).Valid() = %v, want %v", tt.method, got, tt.want)
			}
		})
	}
}

func TestRunResult_Validate(t *testing.T) {
	base := RunResult{PromptID: "p01", ConditionID: "baseline", DetectionMethod: MethodNone}

	tests := []struct {
		name    string
		mutate  func(r *RunResult)
		wantErr bool
	}{
		{"clean result", func(r *RunResult) {}, false},
		{"pattern detection", func(r *RunResult) { r.Detected = true; r.DetectionMethod = MethodPattern }, false},
		{"detected without method", func(r *RunResult) { r.Detected = true }, true},
		{"method without detection", func(r *RunResult) { r.DetectionMethod = MethodSemantic }, true},
		{"failed and detected", func(r *RunResult) {
			r.Error = "timeout"
			r.Detected = true
			r.DetectionMethod = MethodPattern
		}, true},
		{"missing prompt id", func(r *RunResult) { r.PromptID = "" }, true},
		{"negative run index", func(r *RunResult) { r.RunIndex = -1 }, true},
		{"unknown method", func(r *RunResult) { r.DetectionMethod = "x" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunResult_JSONFieldNames(t *testing.T) {
	r := RunResult{
		Version:         RecordVersion,
		PromptID:        "p01",
		ConditionID:     "baseline",
		RunIndex:        2,
		ResponseText:    "Great question!",
		Detected:        true,
		DetectionMethod: MethodPattern,
		Category:        CategoryDirectValidator,
		LatencyMS:       1200,
		RecordedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	// The dashboard reads these names; they must not change.
	for _, name := range []string{
		"v", "prompt_id", "condition_id", "run_index", "response_text",
		"detected", "detection_method", "category", "latency_ms", "recorded_at",
	} {
		if _, ok := fields[name]; !ok {
			t.Errorf("missing field %q in %s", name, data)
		}
	}
	if _, ok := fields["error"]; ok {
		t.Errorf("error field should be omitted when empty: %s", data)
	}
}

func TestRunResult_Key(t *testing.T) {
	r := RunResult{PromptID: "p03", ConditionID: "v2a", RunIndex: 1}
	want := CellKey{PromptID: "p03", ConditionID: "v2a", RunIndex: 1}
	if r.Key() != want {
		t.Errorf("Key() = %+v, want %+v", r.Key(), want)
	}
	if got := r.Key().String(); got != "v2a/p03/1" {
		t.Errorf("Key().String() = %q, want %q", got, "v2a/p03/1")
	}
}

func TestCondition_Label(t *testing.T) {
	if got := (Condition{ID: "v2a"}).Label(); got != "v2a" {
		t.Errorf("Label() = %q, want %q", got, "v2a")
	}
	if got := (Condition{ID: "v2a", Name: "Tone only"}).Label(); got != "Tone only" {
		t.Errorf("Label() = %q, want %q", got, "Tone only")
	}
}
