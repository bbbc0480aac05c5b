package cli

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/census/internal/census"
)

func newAgeGroupsCommand(a *app) *cobra.Command {
	var baseYear int

	cmd := &cobra.Command{
		Use:   "agegroups [label...]",
		Short: "Convert age-group labels into birth-year ranges.",
		Long: `Parses each label the way the age/sex scanner does and prints the
age interval and the birth-year range relative to the base year.

With no arguments, labels are read from standard input, one per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseYear == 0 {
				baseYear = a.cfg.Census.BaseYear
			}

			labels := args
			if len(labels) == 0 {
				sc := bufio.NewScanner(a.stdin)
				for sc.Scan() {
					if l := strings.TrimSpace(sc.Text()); l != "" {
						labels = append(labels, l)
					}
				}
				if err := sc.Err(); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tAGES\tYEARS")
			unparsed := 0
			for _, l := range labels {
				interval, ok := census.ParseAgeGroup(l)
				if !ok {
					unparsed++
					fmt.Fprintf(tw, "%s\t-\t-\n", l)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l, interval, interval.YearRange(baseYear))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if unparsed > 0 {
				return fmt.Errorf("%d of %d labels not recognized", unparsed, len(labels))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&baseYear, "base-year", 0, "Reference year (default CENSUS_BASE_YEAR).")
	return cmd
}
