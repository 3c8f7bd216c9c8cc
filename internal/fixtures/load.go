package fixtures

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

// DefaultBaselineID is the condition id used when no conditions file is given.
const DefaultBaselineID = "baseline"

// ConditionSet is the list of conditions for an experiment and the id of the
// baseline among them.
type ConditionSet struct {
	Baseline   string
	Conditions []models.Condition
}

// IDs returns the condition ids in file order.
func (s ConditionSet) IDs() []string {
	ids := make([]string, len(s.Conditions))
	for i, c := range s.Conditions {
		ids[i] = c.ID
	}
	return ids
}

// Filter keeps only the named conditions. The baseline is always kept.
func (s ConditionSet) Filter(ids []string) (ConditionSet, error) {
	if len(ids) == 0 {
		return s, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := ConditionSet{Baseline: s.Baseline}
	for _, c := range s.Conditions {
		if want[c.ID] || c.ID == s.Baseline {
			out.Conditions = append(out.Conditions, c)
			delete(want, c.ID)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for id := range want {
			missing = append(missing, id)
		}
		sort.Strings(missing)
		return ConditionSet{}, fmt.Errorf("unknown conditions: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// DefaultConditions is a single baseline condition without a system instruction.
func DefaultConditions() ConditionSet {
	return ConditionSet{
		Baseline:   DefaultBaselineID,
		Conditions: []models.Condition{{ID: DefaultBaselineID, Name: "Baseline"}},
	}
}

// conditionsFile is the on-disk conditions format.
type conditionsFile struct {
	Baseline   string           `yaml:"baseline"`
	Conditions []conditionEntry `yaml:"conditions" validate:"required,min=1,dive"`
}

type conditionEntry struct {
	ID              string `yaml:"id" validate:"required"`
	Name            string `yaml:"name"`
	Instruction     string `yaml:"instruction" validate:"excluded_with=InstructionFile"`
	InstructionFile string `yaml:"instruction_file"`
}

// promptsFile is the on-disk prompt set format.
type promptsFile struct {
	Prompts []promptEntry `yaml:"prompts" validate:"required,min=1,dive"`
}

type promptEntry struct {
	ID       string `yaml:"id" validate:"required"`
	Text     string `yaml:"text" validate:"required"`
	Category string `yaml:"category"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConditions reads a conditions file. Relative instruction files are
// resolved against the file's directory, with or without a .txt suffix.
// When no baseline is named, a condition with id "baseline" is used, or else
// the first condition.
func LoadConditions(path string) (ConditionSet, error) {
	var f conditionsFile
	if err := decodeYAML(path, &f); err != nil {
		return ConditionSet{}, err
	}

	dir := filepath.Dir(path)
	set := ConditionSet{Baseline: f.Baseline}
	seen := make(map[string]bool, len(f.Conditions))

	for _, e := range f.Conditions {
		if seen[e.ID] {
			return ConditionSet{}, fmt.Errorf("%s: duplicate condition id %q", path, e.ID)
		}
		seen[e.ID] = true

		instruction := e.Instruction
		if e.InstructionFile != "" {
			text, err := readInstruction(dir, e.InstructionFile)
			if err != nil {
				return ConditionSet{}, fmt.Errorf("%s: condition %q: %w", path, e.ID, err)
			}
			instruction = text
		}

		name := e.Name
		if name == "" {
			name = e.ID
		}
		set.Conditions = append(set.Conditions, models.Condition{
			ID:                e.ID,
			Name:              name,
			SystemInstruction: strings.TrimSpace(instruction),
		})
	}

	if set.Baseline == "" {
		set.Baseline = set.Conditions[0].ID
		if seen[DefaultBaselineID] {
			set.Baseline = DefaultBaselineID
		}
	}
	if !seen[set.Baseline] {
		return ConditionSet{}, fmt.Errorf("%s: baseline %q is not a listed condition", path, set.Baseline)
	}
	return set, nil
}

// LoadPrompts reads a prompt set file.
func LoadPrompts(path string) ([]models.TestPrompt, error) {
	var f promptsFile
	if err := decodeYAML(path, &f); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(f.Prompts))
	prompts := make([]models.TestPrompt, 0, len(f.Prompts))
	for _, e := range f.Prompts {
		if seen[e.ID] {
			return nil, fmt.Errorf("%s: duplicate prompt id %q", path, e.ID)
		}
		seen[e.ID] = true
		prompts = append(prompts, models.TestPrompt{
			ID:       e.ID,
			Text:     strings.TrimSpace(e.Text),
			Category: e.Category,
		})
	}
	return prompts, nil
}

// decodeYAML strictly decodes a YAML file into v and validates it.
func decodeYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: file is empty", path)
		}
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid %s: %w", path, err)
	}
	return nil
}

func readInstruction(dir, name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && filepath.Ext(path) == "" {
		data, err = os.ReadFile(path + ".txt")
	}
	if err != nil {
		return "", fmt.Errorf("read instruction: %w", err)
	}
	return string(data), nil
}
