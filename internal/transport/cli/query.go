package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCommand(svc Services, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question about ingested documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asker, err := svc.Asker(cmd.Context())
			if err != nil {
				return err
			}

			ans, err := asker.Ask(cmd.Context(), strings.Join(args, " "), opts.owner)
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			if opts.json {
				data, err := json.MarshalIndent(ans, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal answer: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			cmd.Println(ans.Answer)
			if len(ans.Sources) == 0 {
				return nil
			}
			cmd.Println()
			cmd.Println("Sources:")
			for i, src := range ans.Sources {
				cmd.Printf("  [%d] %s #%d (%.2f)\n", i+1, src.Title, src.Chunk, src.Score)
			}
			return nil
		},
	}
}
