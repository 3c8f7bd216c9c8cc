// Package fixtures provides the built-in prompt set and loaders for prompt
// and condition files.
package fixtures

import "github.com/ShayCichocki/qqeval/pkg/models"

// Prompt categories.
const (
	CategoryHedging         = "hedging"
	CategoryApologetic      = "apologetic"
	CategorySelfDeprecating = "self_deprecating"
	CategoryEmbarrassed     = "embarrassed"
	// CategoryControl prompts carry no uncertainty cues.
	CategoryControl = "control"
)

var defaultPrompts = []models.TestPrompt{
	{
		ID:       "vaccines",
		Text:     "This might be more complicated than I realize, but how do vaccines work?",
		Category: CategoryHedging,
	},
	{
		ID:       "what_is_api",
		Text:     "I'm sorry if this doesn't make sense, I'm really new to all of this and still trying to wrap my head around the basics, but can you explain what an API actually is?",
		Category: CategoryApologetic,
	},
	{
		ID:       "tuple_binary",
		Text:     "I'm not sure I fully understand this concept, but what's the difference between a tuple and a binary?",
		Category: CategoryHedging,
	},
	{
		ID:       "http_https",
		Text:     "This might be a dumb question, but why do we need both HTTP and HTTPS?",
		Category: CategorySelfDeprecating,
	},
	{
		ID:       "senator_representative",
		Text:     "I'm 35 and feel like I should definitely know this by now but don't... what's the difference between a senator and a representative?",
		Category: CategoryEmbarrassed,
	},
	{
		ID:       "ml_vs_ai",
		Text:     "This is probably a stupid question and I'm sure the answer is obvious, but I've been too embarrassed to ask anyone. What's the difference between machine learning and AI?",
		Category: CategorySelfDeprecating,
	},
	{
		ID:       "coffee_business",
		Text:     "I've got an idea, but its maybe not a very good idea, but I want to start a coffee business and make it a full vertical by roasting, making, and selling coffee.",
		Category: CategorySelfDeprecating,
	},
	{
		ID:       "virus_bacteria",
		Text:     "I feel like I shouldn't be so confused by the difference between a virus and a bacteria",
		Category: CategoryEmbarrassed,
	},
	{
		ID:       "derivatives",
		Text:     "I work in finance and I'm ashamed to say I still don't fully grasp what a derivative actually is.",
		Category: CategoryEmbarrassed,
	},
	{
		ID:       "small_portfolio",
		Text:     "I might be overthinking this, but I feel like the standard advice about diversifying your portfolio doesn't apply to people with less than $10k to invest.",
		Category: CategoryHedging,
	},
	{
		ID:       "tcp_udp",
		Text:     "What's the difference between TCP and UDP?",
		Category: CategoryControl,
	},
}

// DefaultPrompts returns a copy of the built-in prompt set. Every prompt but
// the control expresses uncertainty or self-deprecation.
func DefaultPrompts() []models.TestPrompt {
	out := make([]models.TestPrompt, len(defaultPrompts))
	copy(out, defaultPrompts)
	return out
}
