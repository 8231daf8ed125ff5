package pdfrag

import (
	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/usecase/chat"
	"github.com/kailas-cloud/pdfrag/internal/usecase/health"
	"github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
	"github.com/kailas-cloud/pdfrag/internal/usecase/usage"
)

// IngestResult is the per-document ingestion outcome.
type IngestResult = ingest.Result

// Answer is a generated answer with the passages it was grounded on.
type Answer = chat.Answer

// Source identifies one passage behind an Answer.
type Source = chat.Source

// Passage is a retrieved chunk with its similarity score.
type Passage = domain.Passage

// HealthReport is the status of the vector store and the embedding provider.
type HealthReport = health.Report

// UsageReport is the embedding token usage for the current day and month.
type UsageReport = usage.Report

// Ingestion result statuses.
const (
	StatusOK    = ingest.StatusOK
	StatusError = ingest.StatusError
)
