package detect

import (
	"strings"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

// PatternWindow is the number of runes of the response opening inspected by
// the lexical rules.
const PatternWindow = 300

// Match is the result of a lexical classification.
type Match struct {
	Matched  bool
	Category models.Category
	Phrase   string
}

// PatternDetector matches response openings against a fixed rule list.
// It holds no mutable state and is safe for concurrent use.
type PatternDetector struct {
	rules []compiledRule
}

// NewPatternDetector creates a detector with the default rules.
func NewPatternDetector() *PatternDetector {
	d, err := NewPatternDetectorWithRules(DefaultRules)
	if err != nil {
		panic("detect: invalid default rules: " + err.Error())
	}
	return d
}

// NewPatternDetectorWithRules creates a detector from custom rules.
func NewPatternDetectorWithRules(rules []Rule) (*PatternDetector, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &PatternDetector{rules: compiled}, nil
}

// Classify reports whether the opening of text matches a rule. The first rule
// to match, in category priority order, wins.
func (d *PatternDetector) Classify(text string) Match {
	window := Opening(text, PatternWindow)
	if window == "" {
		return Match{}
	}

	for _, r := range d.rules {
		if phrase := r.re.FindString(window); phrase != "" {
			return Match{Matched: true, Category: r.category, Phrase: phrase}
		}
	}
	return Match{}
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// Opening returns the first n runes of text after dropping leading whitespace
// and markdown decoration. Typographic apostrophes are folded to ASCII.
func Opening(text string, n int) string {
	text = strings.TrimLeft(text, " \t\r\n*_#>`")
	text = apostrophes.Replace(text)

	if n <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
