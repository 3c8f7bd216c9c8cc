package models

// AggregateStat summarizes all completed runs of one condition.
// It is always recomputed from RunResults and never persisted on its own.
type AggregateStat struct {
	ConditionID string `json:"condition_id"`
	// TotalRuns counts runs without a transport error.
	TotalRuns     int `json:"total_runs"`
	DetectedCount int `json:"detected_count"`
	PatternCount  int `json:"pattern_count"`
	SemanticCount int `json:"semantic_count"`
	// ErrorCount counts runs excluded from the rate because of transport errors.
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`

	// Rate is DetectedCount / TotalRuns, or 0 when TotalRuns is 0.
	Rate float64 `json:"rate"`
	// DeltaVsBaseline is the signed percentage-point difference from the
	// baseline rate. Nil when undefined.
	DeltaVsBaseline *float64 `json:"delta_vs_baseline_ppt"`
	// PromptRateStdDev is the spread of per-prompt rates within the condition.
	PromptRateStdDev float64 `json:"prompt_rate_stddev"`
}

// PromptStat is the detection rate of one prompt under one condition.
type PromptStat struct {
	ConditionID   string  `json:"condition_id"`
	PromptID      string  `json:"prompt_id"`
	TotalRuns     int     `json:"total_runs"`
	DetectedCount int     `json:"detected_count"`
	Rate          float64 `json:"rate"`
}
