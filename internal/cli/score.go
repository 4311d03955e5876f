package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"dus-exam-service/internal/domain"
	"dus-exam-service/internal/scoring"
	"github.com/spf13/cobra"
)

// NewScoreCmd scores an answer ledger against an exam file offline.
func NewScoreCmd() *cobra.Command {
	var examPath, answersPath, name string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an answers file against an exam file and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			var exam domain.Exam
			if err := readJSON(examPath, &exam); err != nil {
				return fmt.Errorf("read exam: %w", err)
			}
			ledger := domain.Ledger{}
			if answersPath != "" {
				if err := readJSON(answersPath, &ledger); err != nil {
					return fmt.Errorf("read answers: %w", err)
				}
			}
			result := scoring.Compute(exam, name, ledger, time.Now().UTC())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&examPath, "exam", "", "exam JSON file")
	cmd.Flags().StringVar(&answersPath, "answers", "", "answers JSON file mapping question id to option index")
	cmd.Flags().StringVar(&name, "name", "", "student name recorded on the result")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
