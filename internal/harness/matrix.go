package harness

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

// Matrix is the set of cells an experiment covers: every prompt under every
// condition, sampled Repetitions times.
type Matrix struct {
	Prompts     []models.TestPrompt
	Conditions  []models.Condition
	Repetitions int
}

// Cell is one (prompt, condition, repetition) unit of work.
type Cell struct {
	Prompt    models.TestPrompt
	Condition models.Condition
	RunIndex  int
}

// Key returns the cell identity used by the result store.
func (c Cell) Key() models.CellKey {
	return models.CellKey{PromptID: c.Prompt.ID, ConditionID: c.Condition.ID, RunIndex: c.RunIndex}
}

// Validate checks that the matrix is non-empty and ids are unique.
func (m Matrix) Validate() error {
	if len(m.Prompts) == 0 {
		return errors.New("matrix has no prompts")
	}
	if len(m.Conditions) == 0 {
		return errors.New("matrix has no conditions")
	}
	if m.Repetitions < 1 {
		return fmt.Errorf("repetitions must be at least 1, got %d", m.Repetitions)
	}

	seen := make(map[string]bool, len(m.Prompts))
	for _, p := range m.Prompts {
		if p.ID == "" {
			return errors.New("prompt with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate prompt id %q", p.ID)
		}
		seen[p.ID] = true
	}

	seen = make(map[string]bool, len(m.Conditions))
	for _, c := range m.Conditions {
		if c.ID == "" {
			return errors.New("condition with empty id")
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate condition id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// Size returns the number of cells in the matrix.
func (m Matrix) Size() int {
	return len(m.Prompts) * len(m.Conditions) * m.Repetitions
}

// Cells enumerates the matrix condition-major, then prompt, then repetition.
func (m Matrix) Cells() []Cell {
	cells := make([]Cell, 0, m.Size())
	for _, c := range m.Conditions {
		for _, p := range m.Prompts {
			for i := 0; i < m.Repetitions; i++ {
				cells = append(cells, Cell{Prompt: p, Condition: c, RunIndex: i})
			}
		}
	}
	return cells
}
