package cli

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"dus-exam-service/internal/app"
	"dus-exam-service/internal/domain"
	"dus-exam-service/internal/infra/memory"
	"dus-exam-service/internal/logger"
	"github.com/spf13/cobra"
)

// NewParseCmd decodes one pasted question from a file or stdin and prints the draft as JSON.
func NewParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a pasted question (A) .. E) options, optional Cevap: X)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			raw, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			log := logger.New(cmd.ErrOrStderr(), "warn", "pretty")
			service := app.NewExamService(
				memory.NewSessionStore(),
				memory.NewExamRepository(memory.NewStaticExamLoader(nil), time.Minute),
				memory.NewResultStore(),
				log,
			)
			draft, err := service.ParseQuestion(domain.Actor{Name: "cli", Role: domain.RoleAdmin}, string(raw))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(draft)
		},
	}
}
