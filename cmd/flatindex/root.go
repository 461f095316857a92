package main

import (
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
)

func rootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "flatindex",
		Short:         "Join survey hauls into flat observations and index them",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&a.runID, "run-id", "", "run identifier for logs, events and batch ids (default: start time)")

	root.AddCommand(
		renderCommand(a),
		indexCommand(a),
		combineCommand(a),
		mainIndexCommand(a),
		sampleCommand(a),
		dispatchCommand(a),
		workerCommand(a),
	)
	return root
}

// exactArgs rejects a wrong argument count as a usage error so the process
// exits with the usage status after cobra prints the usage text.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return apperrors.Newf(apperrors.ErrInvalidInput, cmd.Name(), "expected %d arguments, got %d", n, len(args))
		}
		return nil
	}
}

// splitFields parses a comma-separated field list.
func splitFields(arg string) []string {
	var fields []string
	for _, f := range strings.Split(arg, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
