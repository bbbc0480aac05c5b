package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the star schema and seed the gender dimension.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.newRuntime(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.service.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "schema ready")
			return nil
		},
	}
}

func newLoadCommand(a *app) *cobra.Command {
	var flags inputFlags

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Scan both tables and load population facts in one transaction.",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(a)
			rt, err := a.newRuntime(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.service.Load(cmd.Context(), flags.inputs(a))
			if err != nil {
				return err
			}
			printScan(a, res.Scan)
			fmt.Fprintln(a.stdout, res.Summary())
			return nil
		},
	}
	addInputFlags(cmd, &flags)
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent loads.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.newRuntime(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			runs, err := rt.service.History(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tBASE YEAR\tPLANNED\tINSERTED\tIGNORED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
					r.RunID, r.StartedAt.Format(time.RFC3339), r.BaseYear, r.Planned, r.Inserted, r.Ignored)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show.")
	return cmd
}

func newResetCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every population fact. Dimensions and load history are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset is destructive; pass --yes to confirm")
			}
			rt, err := a.newRuntime(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.service.ResetFacts(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "population facts deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset.")
	return cmd
}
