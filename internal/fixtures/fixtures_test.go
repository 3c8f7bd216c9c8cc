package fixtures

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefaultPrompts(t *testing.T) {
	prompts := DefaultPrompts()
	if len(prompts) != 11 {
		t.Fatalf("len = %d, want 11", len(prompts))
	}

	seen := make(map[string]bool)
	controls := 0
	for _, p := range prompts {
		if p.ID == "" || p.Text == "" {
			t.Errorf("incomplete prompt %+v", p)
		}
		if seen[p.ID] {
			t.Errorf("duplicate id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Category == CategoryControl {
			controls++
		}
	}
	if controls != 1 {
		t.Errorf("control prompts = %d, want 1", controls)
	}

	prompts[0].Text = "mutated"
	if DefaultPrompts()[0].Text == "mutated" {
		t.Error("DefaultPrompts must return a copy")
	}
}

func TestLoadConditions_ShippedExperiment(t *testing.T) {
	set, err := LoadConditions(filepath.Join("..", "..", "conditions", "experiment.yaml"))
	if err != nil {
		t.Fatalf("LoadConditions failed: %v", err)
	}

	if set.Baseline != "baseline" {
		t.Errorf("Baseline = %q", set.Baseline)
	}
	if diff := cmp.Diff([]string{"baseline", "v2a_tone_only", "v2b_with_reminders"}, set.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if set.Conditions[0].SystemInstruction != "" {
		t.Error("baseline should have no instruction")
	}
	for _, c := range set.Conditions[1:] {
		if c.SystemInstruction == "" {
			t.Errorf("condition %q has no instruction", c.ID)
		}
	}
}

func TestLoadConditions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prompts/direct.txt", "  Answer directly.\n")
	path := writeFile(t, dir, "conditions.yaml", `
conditions:
  - id: control
    instruction: ""
  - id: direct
    name: Direct
    instruction_file: prompts/direct
  - id: inline
    instruction: Skip pleasantries.
`)

	set, err := LoadConditions(path)
	if err != nil {
		t.Fatalf("LoadConditions failed: %v", err)
	}

	want := ConditionSet{
		Baseline: "control",
		Conditions: []models.Condition{
			{ID: "control", Name: "control"},
			{ID: "direct", Name: "Direct", SystemInstruction: "Answer directly."},
			{ID: "inline", Name: "inline", SystemInstruction: "Skip pleasantries."},
		},
	}
	if diff := cmp.Diff(want, set); diff != "" {
		t.Errorf("LoadConditions mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConditions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty file", "", "empty"},
		{"no conditions", "baseline: x\nconditions: []\n", "invalid"},
		{"missing id", "conditions:\n  - name: nameless\n", "invalid"},
		{"unknown field", "conditions:\n  - id: a\n    prompt: x\n", "parse"},
		{"duplicate id", "conditions:\n  - id: a\n  - id: a\n", "duplicate"},
		{"unknown baseline", "baseline: z\nconditions:\n  - id: a\n", "baseline"},
		{"both instruction forms", "conditions:\n  - id: a\n    instruction: x\n    instruction_file: y.txt\n", "invalid"},
		{"missing instruction file", "conditions:\n  - id: a\n    instruction_file: nope\n", "read instruction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "conditions.yaml", tt.content)
			_, err := LoadConditions(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPrompts(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompts.yaml", `
prompts:
  - id: tcp_udp
    text: What's the difference between TCP and UDP?
    category: control
  - id: vaccines
    text: |
      This might be more complicated than I realize, but how do vaccines work?
`)

	prompts, err := LoadPrompts(path)
	if err != nil {
		t.Fatalf("LoadPrompts failed: %v", err)
	}

	want := []models.TestPrompt{
		{ID: "tcp_udp", Text: "What's the difference between TCP and UDP?", Category: "control"},
		{ID: "vaccines", Text: "This might be more complicated than I realize, but how do vaccines work?"},
	}
	if diff := cmp.Diff(want, prompts); diff != "" {
		t.Errorf("LoadPrompts mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPrompts_Errors(t *testing.T) {
	for name, content := range map[string]string{
		"missing text": "prompts:\n  - id: a\n",
		"duplicate id": "prompts:\n  - id: a\n    text: x\n  - id: a\n    text: y\n",
		"no prompts":   "prompts: []\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "prompts.yaml", content)
			if _, err := LoadPrompts(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConditionSet_Filter(t *testing.T) {
	set := ConditionSet{
		Baseline: "baseline",
		Conditions: []models.Condition{
			{ID: "baseline"}, {ID: "v2a_tone_only"}, {ID: "v2b_with_reminders"},
		},
	}

	got, err := set.Filter([]string{"v2b_with_reminders"})
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if diff := cmp.Diff([]string{"baseline", "v2b_with_reminders"}, got.IDs()); diff != "" {
		t.Errorf("Filter mismatch (-want +got):\n%s", diff)
	}

	if _, err := set.Filter([]string{"v9"}); err == nil {
		t.Error("expected error for unknown condition")
	}
	if all, _ := set.Filter(nil); len(all.Conditions) != 3 {
		t.Errorf("Filter(nil) kept %d conditions, want 3", len(all.Conditions))
	}
}
