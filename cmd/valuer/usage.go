package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Print per-provider API usage for this month",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(application.Adapter.GetUsageReport())
	},
}
