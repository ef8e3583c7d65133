// Package cli implements the cropstudy command line: one subcommand per
// kind of study, each building a StudySpec and handing it to the coordinator.
package cli

import (
	"context"
	"cropstudy/internal/apperrors"
	"cropstudy/internal/config"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by all subcommands.
type rootOptions struct {
	envFile      string
	logLevel     string
	outputDir    string
	format       string
	listen       string
	apiKey       string
	name         string
	title        string
	batchSize    int
	maxBatches   int
	batchTimeout time.Duration

	poolSubmit  int
	poolPoll    int
	poolLog     int
	poolSummary int
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "cropstudy",
		Short: "Run crop simulation studies on a remote processing service",
		Long: `cropstudy splits a study into batches, submits each batch as a job to a
remote processing service, waits for the jobs, post-processes their
artifacts and writes one report for the whole study.

Examples:
  cropstudy fields 1001 1002 --year 2023
  cropstudy geometry --wkt "POLYGON((...))" --crop 233 --year 2023
  cropstudy sweep base.yaml --parameter TSUM1 --min 800 --max 1200 --steps 5
  cropstudy study pilot.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}
			return setupLogging(opts.logLevel)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.Validation("flags", err.Error())
	})

	f := cmd.PersistentFlags()
	f.StringVar(&opts.envFile, "env-file", ".env", "Load environment variables from this file if it exists")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.outputDir, "output-dir", "", "Directory for report, states and progress files (default: $CROPSTUDY_OUTPUT_DIR)")
	f.StringVar(&opts.format, "format", "", "Report format, html or json (default: $CROPSTUDY_REPORT_FORMAT or html)")
	f.StringVar(&opts.listen, "listen", "", "Serve run status and metrics on this address while running, e.g. :9090")
	f.StringVar(&opts.apiKey, "api-key", "", "Bearer token required by the status API")
	f.StringVar(&opts.name, "name", "study", "Study name, used as job id prefix and in file names")
	f.StringVar(&opts.title, "title", "", "Human readable title (default: the study name)")
	f.IntVar(&opts.batchSize, "batch-size", 1000, "Items per batch job")
	f.IntVar(&opts.maxBatches, "max-batches", 10, "Maximum number of batch jobs")
	f.DurationVar(&opts.batchTimeout, "batch-timeout", time.Hour, "Time budget per batch")
	f.IntVar(&opts.poolSubmit, "pool-submit", 0, "Submission workers (default: $POOL_SUBMIT or 8)")
	f.IntVar(&opts.poolPoll, "pool-poll", 0, "Polling workers (default: $POOL_POLL or 64)")
	f.IntVar(&opts.poolLog, "pool-log", 0, "Log processing workers (default: $POOL_LOG or 8)")
	f.IntVar(&opts.poolSummary, "pool-summary", 0, "Summary processing workers (default: $POOL_SUMMARY or 8)")

	cmd.AddCommand(
		newFieldsCmd(opts),
		newGeometryCmd(opts),
		newFileCmd(opts),
		newSweepCmd(opts),
		newStudyCmd(opts),
		newDoctorCmd(),
	)
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		slog.Error("Command failed", "error", err)
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return apperrors.ExitCode(err)
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return apperrors.Validation("log-level", fmt.Sprintf("unknown log level %q", level))
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// validArgs wraps a cobra positional-args check so that a mismatch is
// reported as invalid input.
func validArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			var appErr *apperrors.Error
			if errors.As(err, &appErr) {
				return err
			}
			return apperrors.Validation("args", err.Error())
		}
		return nil
	}
}
