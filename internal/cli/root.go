// Package cli implements the censusload command line.
package cli

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/census/internal/config"
	"github.com/JonMunkholm/census/internal/logging"
)

// app is built once by the root command and shared by every subcommand.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	envFile string
	cfg     *config.Config
	log     *slog.Logger
	closer  io.Closer
}

// NewRootCommand returns the censusload command tree.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	rc := &cobra.Command{
		Use:   "censusload",
		Short: "Parse census spreadsheets and load them into PostgreSQL.",
		Long: `censusload reads the census "population by nationality" and
"population by age and sex" tables, reconciles their regions and loads
population estimates into a star schema (gender, nation, territory, year).

Settings come from the environment, optionally read from a .env file.
Flags override the corresponding environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}
	rc.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file to read before loading settings.")

	rc.AddCommand(newAgeGroupsCommand(a))
	rc.AddCommand(newParseCommand(a))
	rc.AddCommand(newCheckCommand(a))
	rc.AddCommand(newMigrateCommand(a))
	rc.AddCommand(newLoadCommand(a))
	rc.AddCommand(newHistoryCommand(a))
	rc.AddCommand(newResetCommand(a))
	rc.AddCommand(newServeCommand(a))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// setup reads the env file, loads the config and builds the logger.
// A missing env file is not an error; values then come from the environment.
func (a *app) setup() error {
	if a.envFile != "" {
		if err := godotenv.Overload(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log, a.closer = logging.Setup(a.stderr, logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		MaxBackups: cfg.Logging.FileMaxBackups,
	})
	slog.SetDefault(a.log)
	a.log.Debug("configuration loaded", "config", cfg.String())
	return nil
}
