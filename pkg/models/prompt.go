// Package models defines the data types shared across qqeval packages.
package models

// TestPrompt is one user message designed to probe for question-quality
// commentary. Prompts are fixtures and never change after startup.
type TestPrompt struct {
	// ID is the stable identifier used in result records.
	ID string `json:"id" yaml:"id"`
	// Text is the user message sent to the model under test.
	Text string `json:"text" yaml:"text"`
	// Category describes what the prompt probes (hedging, self-deprecation, ...).
	Category string `json:"category,omitempty" yaml:"category"`
}

// Condition is a named variant of the system instruction given to the model
// under test. The baseline condition usually carries the unmodified instruction.
type Condition struct {
	// ID is the stable identifier used in result records.
	ID string `json:"id" yaml:"id"`
	// Name is a human-readable label.
	Name string `json:"name,omitempty" yaml:"name"`
	// SystemInstruction is the system prompt text. May be empty.
	SystemInstruction string `json:"system_instruction,omitempty" yaml:"-"`
}

// Label returns the display name for the condition, falling back to its ID.
func (c Condition) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
