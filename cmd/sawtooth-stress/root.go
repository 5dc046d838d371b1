/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acronis/go-sawtooth/internal/libinfo"
)

const envVarsPrefix = "sawtooth"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sawtooth-stress",
		Short:         "Stress tool for the sawtooth adaptive concurrency limiter",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCmd(), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of the limiter library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), libinfo.Version())
			return err
		},
	}
}
