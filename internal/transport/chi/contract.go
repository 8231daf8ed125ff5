package chi

import (
	"context"

	"github.com/kailas-cloud/pdfrag/internal/usecase/chat"
	"github.com/kailas-cloud/pdfrag/internal/usecase/health"
	"github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
	"github.com/kailas-cloud/pdfrag/internal/usecase/usage"
)

// Ingester runs document ingestion and deletion.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
	IngestMany(ctx context.Context, reqs []ingest.Request) []ingest.Result
	DeleteDocument(ctx context.Context, ownerID, title string) (int, error)
}

// Asker answers questions over ingested documents.
type Asker interface {
	Ask(ctx context.Context, question, ownerID string) (chat.Answer, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// UsageReporter reports embedding token usage.
type UsageReporter interface {
	GetReport(ctx context.Context) (usage.Report, error)
}
