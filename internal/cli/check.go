package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/census/internal/core"
)

func newCheckCommand(a *app) *cobra.Command {
	var flags inputFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Scan both tables, reconcile regions and plan a load without writing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(a)
			rt, err := a.newRuntime(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			scan, plan, err := rt.service.Plan(cmd.Context(), flags.inputs(a))
			if scan != nil {
				printScan(a, scan)
			}
			if err != nil {
				if errors.Is(err, core.ErrNoData) {
					return errors.New(core.FormatUserError(err))
				}
				return err
			}

			fmt.Fprintf(a.stdout, "facts: %d (regions without total %d, unparsed ages %d, zero counts %d, duplicate keys %d)\n",
				len(plan.Facts), plan.Skips.RegionsWithoutTotal, plan.Skips.UnparsedAges,
				plan.Skips.ZeroCounts, plan.Skips.DuplicateKeys)
			return nil
		},
	}
	addInputFlags(cmd, &flags)
	return cmd
}

func addInputFlags(cmd *cobra.Command, f *inputFlags) {
	cmd.Flags().StringVar(&f.nationality, "nationality", "", "Nationality table (default CENSUS_NATIONALITY_FILE).")
	cmd.Flags().StringVar(&f.agesex, "agesex", "", "Age/sex table (default CENSUS_AGESEX_FILE).")
	cmd.Flags().IntVar(&f.baseYear, "base-year", 0, "Reference year (default CENSUS_BASE_YEAR).")
	cmd.Flags().StringVar(&f.match, "match", "", "Region matching: exact, canonical or fuzzy (default MATCH_MODE).")
}

func printScan(a *app, scan *core.ScanResult) {
	fmt.Fprintln(a.stdout, scan.NationalityReport)
	fmt.Fprintln(a.stdout, scan.AgeSexReport)

	rec := scan.Reconciliation
	fmt.Fprintf(a.stdout, "regions: %d matched, %d only in nationality, %d only in agesex\n",
		len(rec.Pairs), len(rec.OnlyNationality), len(rec.OnlyAgeSex))
	for _, p := range rec.Pairs {
		if p.Nationality != p.AgeSex {
			fmt.Fprintf(a.stdout, "  %s = %s (%s)\n", p.Nationality, p.AgeSex, p.Mode)
		}
	}
	for _, name := range rec.OnlyNationality {
		fmt.Fprintf(a.stdout, "  nationality only: %s\n", name)
	}
	for _, name := range rec.OnlyAgeSex {
		fmt.Fprintf(a.stdout, "  agesex only: %s\n", name)
	}
}
