package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/valuer/internal/models"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <TICKER>",
	Short: "Fetch normalized financial data for a ticker",
	Long:  `Fetches price, fundamentals and statements from the configured providers in priority order and prints the adapter response as JSON.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

var (
	fetchTypes   []string
	fetchRefresh bool
)

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchTypes, "types", nil, "Data types: price, fundamentals, statements (default all)")
	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "Bypass fresh cache entries")
}

func runFetch(cmd *cobra.Command, args []string) error {
	application, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	types := make([]models.DataType, 0, len(fetchTypes))
	for _, t := range fetchTypes {
		types = append(types, models.DataType(strings.ToUpper(t)))
	}

	resp := application.Adapter.FetchData(cmd.Context(), models.NewRequest(args[0], fetchRefresh, types...))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.Success {
		return models.Errorf(resp.Error, "fetch", "%s", resp.ErrorMessage)
	}
	return nil
}
