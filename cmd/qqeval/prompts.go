package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qqeval/internal/fixtures"
	"github.com/ShayCichocki/qqeval/pkg/models"
)

var promptsFile string

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List the prompt set",
	Long: `List the prompts an experiment would send. Without --prompts, the
built-in set is shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompts, err := loadPrompts(promptsFile)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATEGORY\tTEXT")
		for _, p := range prompts {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Category, p.Text)
		}
		return w.Flush()
	},
}

func init() {
	promptsCmd.Flags().StringVar(&promptsFile, "prompts", "", "Prompt set YAML file")
}

// loadPrompts reads path, or returns the built-in set when path is empty.
func loadPrompts(path string) ([]models.TestPrompt, error) {
	if path == "" {
		return fixtures.DefaultPrompts(), nil
	}
	return fixtures.LoadPrompts(path)
}

// loadConditions reads path, or returns a lone baseline when path is empty.
func loadConditions(path string) (fixtures.ConditionSet, error) {
	if path == "" {
		return fixtures.DefaultConditions(), nil
	}
	return fixtures.LoadConditions(path)
}
