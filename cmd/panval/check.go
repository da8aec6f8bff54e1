package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"panval/internal/platform/logger"
	"panval/internal/screening/report"
	"panval/internal/screening/service"
	"panval/internal/screening/store/memory"
)

// errInvalidIdentifiers makes check exit non-zero when anything fails.
var errInvalidIdentifiers = errors.New("one or more identifiers are invalid")

// checkCmd classifies identifiers passed on the command line
var checkCmd = &cobra.Command{
	Use:   "check PAN...",
	Short: "Classify identifiers given as arguments",
	Long: `Runs the pipeline over the identifiers given as arguments and prints one
line per distinct identifier with its status and violated rules, followed by
the summary. Exits non-zero if any identifier is invalid.

Example:
  panval check AHGVE1276F abcde1234f`,
	Args: cobra.MinimumNArgs(1),
	RunE: checkIdentifiers,
}

func checkIdentifiers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	raw := make([]*string, len(args))
	for i := range args {
		raw[i] = &args[i]
	}

	svc, err := service.New(
		memory.NewSource(raw),
		report.New(cmd.OutOrStdout(), report.WithDetails(true)),
		service.WithLogger(logger.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)),
	)
	if err != nil {
		return err
	}
	rep, err := svc.Run(cmd.Context())
	if err != nil {
		return err
	}
	if rep.Summary.TotalInvalid > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidIdentifiers, rep.Summary.TotalInvalid, len(rep.Results))
	}
	return nil
}
