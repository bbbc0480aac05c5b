package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/census/internal/core"
)

func newParseCommand(a *app) *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "parse nationality|agesex <file>",
		Short: "Scan a single table and print what was extracted.",
		Long: `Scans one census table and prints the extracted data as JSON.
The scan report goes to standard error. Nothing is written to the database.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, path := args[0], args[1]
			s := a.scanner(nil)

			var data any
			var rep fmt.Stringer
			switch kind {
			case core.KindNationality:
				d, r := s.ReadNationalityData(path)
				data, rep = d, r
				if !r.Usable() {
					return fmt.Errorf("%s: %s", r.Status, r.Failure)
				}
			case core.KindAgeSex:
				d, r := s.ReadAgeSexData(path)
				data, rep = d, r
				if !r.Usable() {
					return fmt.Errorf("%s: %s", r.Status, r.Failure)
				}
			default:
				return fmt.Errorf("%w: %q", core.ErrUnknownTable, kind)
			}

			fmt.Fprintln(a.stderr, rep)
			if summary {
				return nil
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "Print only the scan report.")
	return cmd
}
