package aggregate

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

func clean(cond, prompt string, idx int) models.RunResult {
	return models.RunResult{
		PromptID:        prompt,
		ConditionID:     cond,
		RunIndex:        idx,
		DetectionMethod: models.MethodNone,
	}
}

func hit(cond, prompt string, idx int, method models.DetectionMethod) models.RunResult {
	r := clean(cond, prompt, idx)
	r.Detected = true
	r.DetectionMethod = method
	r.Category = models.CategoryDirectValidator
	return r
}

func failed(cond, prompt string, idx int) models.RunResult {
	r := clean(cond, prompt, idx)
	r.Error = "gave up after 4 attempts: status 529"
	return r
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarize_TwoOfThree(t *testing.T) {
	results := []models.RunResult{
		hit("baseline", "p1", 0, models.MethodPattern),
		hit("baseline", "p1", 1, models.MethodSemantic),
		clean("baseline", "p1", 2),
	}

	got := Summarize(results, "baseline")["baseline"]
	if got.TotalRuns != 3 || got.DetectedCount != 2 {
		t.Fatalf("counts = %d/%d, want 2/3", got.DetectedCount, got.TotalRuns)
	}
	if !approx(got.Rate, 2.0/3.0) {
		t.Errorf("Rate = %v, want 0.667", got.Rate)
	}
	if got.PatternCount != 1 || got.SemanticCount != 1 {
		t.Errorf("pattern/semantic = %d/%d, want 1/1", got.PatternCount, got.SemanticCount)
	}
	if got.DeltaVsBaseline == nil || *got.DeltaVsBaseline != 0 {
		t.Errorf("baseline delta = %v, want exactly 0", got.DeltaVsBaseline)
	}
}

func TestSummarize_DeltaInPercentagePoints(t *testing.T) {
	var results []models.RunResult
	// Baseline: 8 of 10 flagged.
	for i := 0; i < 10; i++ {
		if i < 8 {
			results = append(results, hit("baseline", "p1", i, models.MethodPattern))
		} else {
			results = append(results, clean("baseline", "p1", i))
		}
	}
	// Intervention: 1 of 10 flagged.
	for i := 0; i < 10; i++ {
		if i < 1 {
			results = append(results, hit("v2b_with_reminders", "p1", i, models.MethodSemantic))
		} else {
			results = append(results, clean("v2b_with_reminders", "p1", i))
		}
	}

	got := Summarize(results, "baseline")["v2b_with_reminders"]
	if !approx(got.Rate, 0.1) {
		t.Errorf("Rate = %v, want 0.1", got.Rate)
	}
	if got.DeltaVsBaseline == nil || !approx(*got.DeltaVsBaseline, -70) {
		t.Errorf("delta = %v, want -70", got.DeltaVsBaseline)
	}
}

func TestSummarize_ErroredRunsAreExcluded(t *testing.T) {
	results := []models.RunResult{
		hit("baseline", "p1", 0, models.MethodPattern),
		clean("baseline", "p1", 1),
		failed("baseline", "p1", 2),
	}

	got := Summarize(results, "baseline")["baseline"]
	if got.TotalRuns != 2 || got.ErrorCount != 1 {
		t.Errorf("total/errors = %d/%d, want 2/1", got.TotalRuns, got.ErrorCount)
	}
	if !approx(got.Rate, 0.5) {
		t.Errorf("Rate = %v, want 0.5", got.Rate)
	}
}

func TestSummarize_UndefinedDelta(t *testing.T) {
	t.Run("baseline has no completed runs", func(t *testing.T) {
		results := []models.RunResult{
			failed("baseline", "p1", 0),
			hit("v2a_tone_only", "p1", 0, models.MethodPattern),
		}
		got := Summarize(results, "baseline")
		if got["v2a_tone_only"].DeltaVsBaseline != nil {
			t.Errorf("delta = %v, want nil", *got["v2a_tone_only"].DeltaVsBaseline)
		}
		if got["baseline"].Rate != 0 {
			t.Errorf("baseline Rate = %v, want 0", got["baseline"].Rate)
		}
	})

	t.Run("baseline absent", func(t *testing.T) {
		results := []models.RunResult{hit("v2a_tone_only", "p1", 0, models.MethodPattern)}
		if d := Summarize(results, "baseline")["v2a_tone_only"].DeltaVsBaseline; d != nil {
			t.Errorf("delta = %v, want nil", *d)
		}
	})

	t.Run("condition has no completed runs", func(t *testing.T) {
		results := []models.RunResult{
			hit("baseline", "p1", 0, models.MethodPattern),
			failed("v2a_tone_only", "p1", 0),
		}
		if d := Summarize(results, "baseline")["v2a_tone_only"].DeltaVsBaseline; d != nil {
			t.Errorf("delta = %v, want nil", *d)
		}
	})
}

func TestSummarize_RatesStayInRange(t *testing.T) {
	results := []models.RunResult{
		hit("a", "p1", 0, models.MethodPattern),
		hit("a", "p2", 0, models.MethodPattern),
		clean("b", "p1", 0),
		failed("c", "p1", 0),
	}
	for id, s := range Summarize(results, "a") {
		if s.Rate < 0 || s.Rate > 1 {
			t.Errorf("%s: Rate = %v out of [0,1]", id, s.Rate)
		}
		if s.DetectedCount > s.TotalRuns {
			t.Errorf("%s: detected %d > total %d", id, s.DetectedCount, s.TotalRuns)
		}
	}
}

func TestSummarize_DuplicateCellsCountOnce(t *testing.T) {
	results := []models.RunResult{
		hit("baseline", "p1", 0, models.MethodPattern),
		clean("baseline", "p1", 0),
	}
	got := Summarize(results, "baseline")["baseline"]
	if got.TotalRuns != 1 || got.DetectedCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", got.DetectedCount, got.TotalRuns)
	}
}

func TestSummarize_PromptSpread(t *testing.T) {
	results := []models.RunResult{
		hit("baseline", "p1", 0, models.MethodPattern),
		hit("baseline", "p1", 1, models.MethodPattern),
		clean("baseline", "p2", 0),
		clean("baseline", "p2", 1),
	}
	got := Summarize(results, "baseline")["baseline"]
	// Per-prompt rates are 1 and 0.
	if !approx(got.PromptRateStdDev, 0.5) {
		t.Errorf("PromptRateStdDev = %v, want 0.5", got.PromptRateStdDev)
	}
}

func TestByPrompt(t *testing.T) {
	results := []models.RunResult{
		clean("v2a_tone_only", "vaccines", 0),
		hit("baseline", "vaccines", 0, models.MethodPattern),
		clean("baseline", "vaccines", 1),
		hit("baseline", "tcp_udp", 0, models.MethodSemantic),
		failed("baseline", "tcp_udp", 1),
	}

	want := []models.PromptStat{
		{ConditionID: "baseline", PromptID: "tcp_udp", TotalRuns: 1, DetectedCount: 1, Rate: 1},
		{ConditionID: "baseline", PromptID: "vaccines", TotalRuns: 2, DetectedCount: 1, Rate: 0.5},
		{ConditionID: "v2a_tone_only", PromptID: "vaccines", TotalRuns: 1, DetectedCount: 0, Rate: 0},
	}
	if diff := cmp.Diff(want, ByPrompt(results)); diff != "" {
		t.Errorf("ByPrompt mismatch (-want +got):\n%s", diff)
	}
}

func TestOrdered(t *testing.T) {
	byCondition := map[string]models.AggregateStat{
		"v2a_tone_only":      {ConditionID: "v2a_tone_only", Rate: 0.4},
		"baseline":           {ConditionID: "baseline", Rate: 0.8},
		"v2b_with_reminders": {ConditionID: "v2b_with_reminders", Rate: 0.1},
		"v3":                 {ConditionID: "v3", Rate: 0.1},
	}

	var got []string
	for _, s := range Ordered(byCondition, "baseline") {
		got = append(got, s.ConditionID)
	}
	want := []string{"baseline", "v2b_with_reminders", "v3", "v2a_tone_only"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Ordered mismatch (-want +got):\n%s", diff)
	}
}
