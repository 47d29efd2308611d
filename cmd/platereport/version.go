package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"platereport/pkg/contracts"
)

func newVersionCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// no config or telemetry needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			if full {
				fmt.Fprintln(cmd.OutOrStdout(), contracts.GetFullVersionString())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), contracts.GetVersionString())
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "include build time and commit")
	return cmd
}
