package detect

import (
	"context"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

// Verdict is the combined detection outcome for one response.
type Verdict struct {
	Detected    bool
	Method      models.DetectionMethod
	Category    models.Category
	Phrase      string
	Explanation string
	Warning     string
	// JudgeCalled reports whether the semantic judge was consulted.
	JudgeCalled bool
}

// Pipeline runs the lexical rules first and consults the semantic judge only
// when they abstain. Lexical hits are final.
type Pipeline struct {
	pattern *PatternDetector
	judge   Classifier
}

// NewPipeline creates a detection pipeline. judge may be nil, in which case
// only the lexical rules are used.
func NewPipeline(pattern *PatternDetector, judge Classifier) *Pipeline {
	if pattern == nil {
		pattern = NewPatternDetector()
	}
	return &Pipeline{pattern: pattern, judge: judge}
}

// HasJudge reports whether a semantic judge is configured.
func (p *Pipeline) HasJudge() bool {
	return p.judge != nil
}

// Detect classifies a response to promptText. An error is returned only when
// the judge could not be reached.
func (p *Pipeline) Detect(ctx context.Context, promptText, responseText string) (Verdict, error) {
	if m := p.pattern.Classify(responseText); m.Matched {
		return Verdict{
			Detected: true,
			Method:   models.MethodPattern,
			Category: m.Category,
			Phrase:   m.Phrase,
		}, nil
	}

	if p.judge == nil {
		return Verdict{Method: models.MethodNone}, nil
	}

	j, err := p.judge.Classify(ctx, promptText, responseText)
	if err != nil {
		return Verdict{Method: models.MethodNone, JudgeCalled: true}, err
	}

	v := Verdict{
		Method:      models.MethodNone,
		Explanation: j.Explanation,
		Warning:     j.Warning,
		JudgeCalled: true,
	}
	if j.Matched {
		v.Detected = true
		v.Method = models.MethodSemantic
		v.Category = j.Category
		v.Phrase = j.Phrase
	}
	return v, nil
}
