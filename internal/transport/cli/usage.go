package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newUsageCommand(svc Services, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show embedding token usage for today and this month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := svc.Usage(cmd.Context())
			if err != nil {
				return err
			}
			r, err := rep.GetReport(cmd.Context())
			if err != nil {
				return err
			}

			if opts.json {
				data, err := json.MarshalIndent(r, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal usage: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			if !r.Enabled {
				cmd.Println("Usage tracking is disabled for this store driver.")
				return nil
			}
			cmd.Printf("Provider:   %s (%s)\n", r.Provider, r.Model)
			cmd.Printf("Today:      %d tokens\n", r.TokensToday)
			cmd.Printf("This month: %d tokens\n", r.TokensThisMonth)
			return nil
		},
	}
}
