// Package aggregate computes per-condition detection rates and their
// difference from the baseline condition.
package aggregate

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

// Summarize computes one AggregateStat per condition present in results.
// Runs that ended in a transport error are counted in ErrorCount and left out
// of every rate. A cell appearing more than once is counted once.
func Summarize(results []models.RunResult, baselineID string) map[string]models.AggregateStat {
	out := make(map[string]models.AggregateStat)
	perPrompt := make(map[string]map[string]*models.PromptStat)

	for _, r := range dedupe(results) {
		s := out[r.ConditionID]
		s.ConditionID = r.ConditionID

		if r.Failed() {
			s.ErrorCount++
			out[r.ConditionID] = s
			continue
		}

		s.TotalRuns++
		if r.Warning != "" {
			s.WarningCount++
		}
		if r.Detected {
			s.DetectedCount++
			switch r.DetectionMethod {
			case models.MethodPattern:
				s.PatternCount++
			case models.MethodSemantic:
				s.SemanticCount++
			}
		}
		out[r.ConditionID] = s

		prompts := perPrompt[r.ConditionID]
		if prompts == nil {
			prompts = make(map[string]*models.PromptStat)
			perPrompt[r.ConditionID] = prompts
		}
		ps := prompts[r.PromptID]
		if ps == nil {
			ps = &models.PromptStat{ConditionID: r.ConditionID, PromptID: r.PromptID}
			prompts[r.PromptID] = ps
		}
		ps.TotalRuns++
		if r.Detected {
			ps.DetectedCount++
		}
	}

	for id, s := range out {
		s.Rate = rate(s.DetectedCount, s.TotalRuns)
		s.PromptRateStdDev = spread(perPrompt[id])
		out[id] = s
	}

	base, ok := out[baselineID]
	if !ok || base.TotalRuns == 0 {
		return out
	}
	for id, s := range out {
		if s.TotalRuns == 0 {
			continue
		}
		delta := (s.Rate - base.Rate) * 100
		s.DeltaVsBaseline = &delta
		out[id] = s
	}
	return out
}

// ByPrompt returns the detection rate of every (condition, prompt) pair,
// sorted by condition then prompt. Failed runs are excluded.
func ByPrompt(results []models.RunResult) []models.PromptStat {
	index := make(map[[2]string]*models.PromptStat)
	for _, r := range dedupe(results) {
		if r.Failed() {
			continue
		}
		k := [2]string{r.ConditionID, r.PromptID}
		ps := index[k]
		if ps == nil {
			ps = &models.PromptStat{ConditionID: r.ConditionID, PromptID: r.PromptID}
			index[k] = ps
		}
		ps.TotalRuns++
		if r.Detected {
			ps.DetectedCount++
		}
	}

	out := make([]models.PromptStat, 0, len(index))
	for _, ps := range index {
		ps.Rate = rate(ps.DetectedCount, ps.TotalRuns)
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConditionID != out[j].ConditionID {
			return out[i].ConditionID < out[j].ConditionID
		}
		return out[i].PromptID < out[j].PromptID
	})
	return out
}

// Ordered lists stats with the baseline first and the remaining conditions
// by ascending rate. Ties are broken by condition id.
func Ordered(byCondition map[string]models.AggregateStat, baselineID string) []models.AggregateStat {
	out := make([]models.AggregateStat, 0, len(byCondition))
	for _, s := range byCondition {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.ConditionID == baselineID) != (b.ConditionID == baselineID) {
			return a.ConditionID == baselineID
		}
		if a.Rate != b.Rate {
			return a.Rate < b.Rate
		}
		return a.ConditionID < b.ConditionID
	})
	return out
}

func rate(detected, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(detected) / float64(total)
}

// spread is the population standard deviation of per-prompt rates.
func spread(prompts map[string]*models.PromptStat) float64 {
	if len(prompts) < 2 {
		return 0
	}
	rates := make(stats.Float64Data, 0, len(prompts))
	for _, ps := range prompts {
		rates = append(rates, rate(ps.DetectedCount, ps.TotalRuns))
	}
	sd, err := stats.StandardDeviation(rates)
	if err != nil {
		return 0
	}
	return sd
}

func dedupe(results []models.RunResult) []models.RunResult {
	seen := make(map[models.CellKey]struct{}, len(results))
	out := make([]models.RunResult, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Key()]; ok {
			continue
		}
		seen[r.Key()] = struct{}{}
		out = append(out, r)
	}
	return out
}
