package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"panval/internal/platform/logger"
	"panval/internal/screening/store/file"
	"panval/internal/screening/store/postgres"
)

var (
	seedFormat  string
	seedColumn  string
	seedTarget  string
	seedReplace bool
)

// seedCmd loads a local file into the input table of a database source
var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load raw identifiers from a file into the database input table",
	Long: `Reads FILE (one identifier per line, or one CSV column) and appends every
record to the input table of the target database. A line holding \N is stored
as NULL.

Example:
  panval seed pans.txt --target postgres --replace
  panval seed export.csv --format csv --column pan --target sqlite`,
	Args: cobra.ExactArgs(1),
	RunE: seedDataset,
}

func init() {
	seedCmd.Flags().StringVar(&seedFormat, "format", string(file.FormatLines), "input file format (lines, csv)")
	seedCmd.Flags().StringVar(&seedColumn, "column", "", "csv header of the PAN column")
	seedCmd.Flags().StringVar(&seedTarget, "target", "postgres", "database to seed (postgres, sqlite)")
	seedCmd.Flags().BoolVar(&seedReplace, "replace", false, "remove existing rows before loading")
}

func seedDataset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	log := logger.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	var opts []file.Option
	if seedColumn != "" {
		opts = append(opts, file.WithColumn(seedColumn))
	}
	src, err := file.NewSource(args[0], file.Format(seedFormat), opts...)
	if err != nil {
		return err
	}
	records, err := src.Load(ctx)
	if err != nil {
		return err
	}

	d := newDeps(cfg, log)
	defer func() { _ = d.Close() }()

	var written int64
	switch seedTarget {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("postgres dsn is required to seed postgres")
		}
		if cfg.Postgres.EnsureSchema {
			if _, err := d.postgres(ctx); err != nil {
				return err
			}
		}
		seeder, err := postgres.NewSeeder(ctx, cfg.Postgres.DSN, cfg.Postgres.InputTable, cfg.Postgres.InputColumn)
		if err != nil {
			return err
		}
		defer func() { _ = seeder.Close(ctx) }()
		written, err = seeder.Seed(ctx, records, seedReplace)
		if err != nil {
			return err
		}
	case "sqlite":
		store, err := d.sqlite(ctx)
		if err != nil {
			return err
		}
		if seedReplace {
			if err := store.Truncate(ctx); err != nil {
				return err
			}
		}
		if err := store.Insert(ctx, records); err != nil {
			return err
		}
		written = int64(len(records))
	default:
		return fmt.Errorf("unknown seed target %q", seedTarget)
	}

	log.InfoContext(ctx, "dataset seeded", "target", seedTarget, "rows", written, "replace", seedReplace)
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d records into %s\n", written, seedTarget)
	return nil
}
