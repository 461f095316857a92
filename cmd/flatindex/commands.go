package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/afscgap-dse/flatindex/internal/inspect"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/logger"
)

func renderCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render [bucket] [report.csv]",
		Short: "Join every haul with its catch and species records",
		Long: "Join every haul under haul/ with its catch and the species reference, " +
			"zero-filling species that were not caught, and write joined/{key} batches. " +
			"Per-haul counts are written to the CSV report.",
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := a.context(cmd)
			r, err := a.runner(ctx, args[0])
			if err != nil {
				return err
			}
			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("creating report: %w", err)
			}
			defer f.Close()

			res, err := r.RenderFlat(ctx, f)
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Info("render complete",
				"hauls", res.Total.Hauls,
				"complete", res.Total.Complete,
				"incomplete", res.Total.Incomplete,
				"zero", res.Total.Zero,
				"report", args[1],
			)
			return f.Close()
		},
	}
}

func indexCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index [bucket] [fields]",
		Short: "Build and shard the inverted index of one or more fields",
		Long:  "Build the index of each comma-separated field over joined/ and write it as shards with a manifest.",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := splitFields(args[1])
			if len(fields) == 0 {
				return apperrors.New(apperrors.ErrInvalidInput, "fields", "no field names given")
			}
			cmd.SilenceUsage = true
			ctx := a.context(cmd)
			r, err := a.runner(ctx, args[0])
			if err != nil {
				return err
			}
			return r.BuildIndex(ctx, fields)
		},
	}
}

func combineCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "combine [bucket] [field]",
		Short: "Combine a field's shards into index/{field}",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := a.context(cmd)
			r, err := a.runner(ctx, args[0])
			if err != nil {
				return err
			}
			n, err := r.CombineShards(ctx, args[1])
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Info("combine complete", "field", args[1], "entries", n)
			return nil
		},
	}
}

func mainIndexCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "main-index [bucket]",
		Short: "Write the list of all joined haul keys to index/main",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := a.context(cmd)
			r, err := a.runner(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = r.WriteMainIndex(ctx)
			return err
		},
	}
}

func sampleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sample [bucket] [path]",
		Short: "Print the records of one batch as JSON",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := a.context(cmd)
			s, err := a.openStore(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = inspect.Dump(ctx, s, args[1], cmd.OutOrStdout())
			return err
		},
	}
}
