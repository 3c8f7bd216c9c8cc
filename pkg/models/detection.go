package models

// DetectionMethod records which detector produced a verdict.
type DetectionMethod string

const (
	// MethodPattern means a lexical rule matched the response opening.
	MethodPattern DetectionMethod = "pattern"
	// MethodSemantic means the classification model flagged the response.
	MethodSemantic DetectionMethod = "semantic"
	// MethodNone means neither detector flagged the response.
	MethodNone DetectionMethod = "none"
)

// Valid returns true if the method is a known value.
func (m DetectionMethod) Valid() bool {
	switch m {
	case MethodPattern, MethodSemantic, MethodNone:
		return true
	default:
		return false
	}
}

// Short returns the one-letter tag used in progress output.
func (m DetectionMethod) Short() string {
	switch m {
	case MethodPattern:
		return "P"
	case MethodSemantic:
		return "L"
	default:
		return "-"
	}
}

// Category is the kind of question-quality commentary detected.
type Category string

const (
	// CategoryDirectValidator is direct praise of the question ("Great question!").
	CategoryDirectValidator Category = "direct validator"
	// CategoryQuestionReassurance reassures that the question is valid ("Not a dumb question").
	CategoryQuestionReassurance Category = "question reassurance"
	// CategoryEmotionalManagement manages the asker's feelings ("Don't be embarrassed").
	CategoryEmotionalManagement Category = "emotional management"
	// CategoryGratitude thanks or validates the act of asking ("Glad you asked").
	CategoryGratitude Category = "gratitude for asking"
	// CategoryNormalizing cites how common the question is ("Lots of people wonder").
	CategoryNormalizing Category = "normalizing"
	// CategoryNone is used when nothing was detected.
	CategoryNone Category = ""
)

// Categories lists the detectable categories in priority order.
var Categories = []Category{
	CategoryDirectValidator,
	CategoryQuestionReassurance,
	CategoryEmotionalManagement,
	CategoryGratitude,
	CategoryNormalizing,
}
