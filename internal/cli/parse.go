package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"quizbook-service/internal/parser"
)

// NewParseCmd prints the question records recovered from a quiz text file.
// "-" reads standard input.
func NewParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse quiz text and print the recovered questions as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			records, n, err := parser.ParseReader(in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if err := enc.Encode(records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "recovered %d questions\n", n)
			return nil
		},
	}
}
