package pdfrag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/kailas-cloud/pdfrag/internal/app"
	"github.com/kailas-cloud/pdfrag/internal/usecase/health"
	"github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
	"github.com/kailas-cloud/pdfrag/internal/usecase/retrieve"
	"github.com/kailas-cloud/pdfrag/internal/usecase/usage"
)

// Внутренние интерфейсы для подмены в тестах.
type ingestUseCase interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
	IngestMany(ctx context.Context, reqs []ingest.Request) []ingest.Result
	DeleteDocument(ctx context.Context, ownerID, title string) (int, error)
}

type retrieveUseCase interface {
	Retrieve(ctx context.Context, req retrieve.Request) ([]Passage, error)
}

type chatUseCase interface {
	Ask(ctx context.Context, question, ownerID string) (Answer, error)
}

type healthUseCase interface {
	Check(ctx context.Context) health.Report
}

type usageUseCase interface {
	GetReport(ctx context.Context) (usage.Report, error)
}

// Client is the pdfrag entry point.
type Client struct {
	ingestSvc   ingestUseCase
	retrieveSvc retrieveUseCase
	chatSvc     chatUseCase
	healthSvc   healthUseCase
	usageSvc    usageUseCase
	close       func() error
	obs         *observer
}

// New connects to the configured vector store, creates the index if needed and returns a Client.
// The provided context bounds the initial connection.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}
	if cc.cfg.Store.Driver == "" {
		return nil, errors.New("pdfrag: vector store required (use WithValkey, WithRedis, WithQdrant or WithSQLite)")
	}
	if cc.cfg.Embedding.APIKey == "" {
		return nil, errors.New("pdfrag: api key required (use WithOpenAI)")
	}

	cc.cfg.ApplyDefaults()
	if err := cc.cfg.ValidatePipeline(); err != nil {
		return nil, fmt.Errorf("pdfrag: %w", err)
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cc.cfg, obs.logger)
	if err != nil {
		return nil, fmt.Errorf("pdfrag: %w", err)
	}

	return &Client{
		ingestSvc:   a.Ingest,
		retrieveSvc: a.Retrieve,
		chatSvc:     a.Chat,
		healthSvc:   a.Health,
		usageSvc:    a.Usage,
		close:       a.Close,
		obs:         obs,
	}, nil
}

// Close releases all connections.
func (c *Client) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// IngestFile ingests a PDF from disk. The document title is the file's base name.
func (c *Client) IngestFile(ctx context.Context, ownerID, path string) (res IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err) }()

	return c.ingestSvc.Ingest(ctx, ingest.Request{
		OwnerID:  ownerID,
		Filename: filepath.Base(path),
		Path:     path,
	})
}

// IngestBytes ingests an in-memory PDF under the given file name.
func (c *Client) IngestBytes(ctx context.Context, ownerID, filename string, data []byte) (res IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err) }()

	return c.ingestSvc.Ingest(ctx, ingest.Request{
		OwnerID:  ownerID,
		Filename: filename,
		Data:     bytes.NewReader(data),
		Size:     int64(len(data)),
	})
}

// IngestDir ingests every *.pdf in dir concurrently. Results follow file name order.
func (c *Client) IngestDir(ctx context.Context, ownerID, dir string) (results []IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest_dir", start, err) }()

	paths, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	reqs := make([]ingest.Request, len(paths))
	for i, p := range paths {
		reqs[i] = ingest.Request{OwnerID: ownerID, Filename: filepath.Base(p), Path: p}
	}
	return c.ingestSvc.IngestMany(ctx, reqs), nil
}

// Ask answers a question from the owner's documents.
func (c *Client) Ask(ctx context.Context, ownerID, question string) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	return c.chatSvc.Ask(ctx, question, ownerID)
}

// Retrieve returns the best-scoring passages without generating an answer. topK 0 uses the default.
func (c *Client) Retrieve(ctx context.Context, ownerID, question string, topK int) (passages []Passage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retrieve", start, err) }()

	return c.retrieveSvc.Retrieve(ctx, retrieve.Request{Question: question, OwnerID: ownerID, TopK: topK})
}

// Delete removes one titled document, or all of the owner's documents when title is empty.
// Returns the number of chunks removed.
func (c *Client) Delete(ctx context.Context, ownerID, title string) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()

	return c.ingestSvc.DeleteDocument(ctx, ownerID, title)
}

// Health probes the vector store and the embedding provider.
func (c *Client) Health(ctx context.Context) HealthReport {
	return c.healthSvc.Check(ctx)
}

// Usage reports embedding tokens consumed today and this month.
func (c *Client) Usage(ctx context.Context) (UsageReport, error) {
	return c.usageSvc.GetReport(ctx)
}
