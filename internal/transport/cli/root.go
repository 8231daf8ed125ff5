// Package cli implements the ragctl command tree.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	chatuc "github.com/kailas-cloud/pdfrag/internal/usecase/chat"
	"github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
	"github.com/kailas-cloud/pdfrag/internal/usecase/usage"
)

// Ingester is the ingestion surface the CLI drives.
type Ingester interface {
	IngestMany(ctx context.Context, reqs []ingest.Request) []ingest.Result
	DeleteDocument(ctx context.Context, ownerID, title string) (int, error)
}

// Asker answers questions over ingested documents.
type Asker interface {
	Ask(ctx context.Context, question, ownerID string) (chatuc.Answer, error)
}

// UsageReporter reports embedding token usage.
type UsageReporter interface {
	GetReport(ctx context.Context) (usage.Report, error)
}

// WatchFunc blocks, delivering document events to handler until ctx is done.
type WatchFunc func(ctx context.Context, handler func(context.Context, domain.DocumentEvent)) error

// Services are lazily resolved so that commands like "version" need no backend.
type Services struct {
	Ingester func(ctx context.Context) (Ingester, error)
	Asker    func(ctx context.Context) (Asker, error)
	Usage    func(ctx context.Context) (UsageReporter, error)
	Watch    WatchFunc // nil when events are not configured
	DataDir  string
	Owner    string
	Version  string
}

type options struct {
	owner string
	json  bool
}

// NewRootCommand builds ragctl.
func NewRootCommand(svc Services) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Ingest PDFs and ask questions about them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.owner, "owner", svc.Owner, "owner id that scopes documents")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output as JSON")

	root.AddCommand(
		newIngestCommand(svc, opts),
		newQueryCommand(svc, opts),
		newDeleteCommand(svc, opts),
		newWatchCommand(svc, opts),
		newUsageCommand(svc, opts),
		newVersionCommand(svc),
	)
	return root
}

func newVersionCommand(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("ragctl version %s\n", svc.Version)
		},
	}
}
