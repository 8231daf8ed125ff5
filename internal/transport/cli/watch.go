package cli

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

func newWatchCommand(svc Services, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream document ingestion and deletion events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if svc.Watch == nil {
				return errors.New("events are not configured (set events.nats_url)")
			}
			out := cmd.OutOrStdout()
			return svc.Watch(cmd.Context(), func(_ context.Context, ev domain.DocumentEvent) {
				if opts.owner != "" && ev.OwnerID != opts.owner {
					return
				}
				if opts.json {
					_ = json.NewEncoder(out).Encode(ev)
					return
				}
				cmd.Printf("%s  %-8s %s/%s (%d chunks)\n",
					ev.At.Format(time.RFC3339), ev.Kind, ev.OwnerID, ev.Title, ev.Chunks)
			})
		},
	}
}
