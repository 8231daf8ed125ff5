package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Skip("sqlite not available:", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	if err := r.EnsureIndex(context.Background(), 2); err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	return r
}

func records(owner, title, docID string, vecs ...[]float32) []domain.VectorRecord {
	d := domain.Document{ID: docID, OwnerID: owner, Title: title}
	out := make([]domain.VectorRecord, len(vecs))
	for i, v := range vecs {
		out[i] = domain.NewVectorRecord(d, domain.Chunk{Index: i, Text: "chunk"}, v)
	}
	return out
}

func TestUpsertQuery_RanksByCosine(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	recs := records("alice", "a.pdf", "doc1", []float32{1, 0}, []float32{0.7, 0.7}, []float32{0, 1})
	if err := r.Upsert(ctx, recs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := r.Query(ctx, []float32{1, 0}, 2, 0.5, domain.Filter{OwnerID: "alice"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID != "doc1#c000000" || got[1].ID != "doc1#c000001" {
		t.Errorf("unexpected order %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Score < 0.999 {
		t.Errorf("expected ~1.0, got %f", got[0].Score)
	}
	if got[1].Metadata.ChunkNumber != 1 || got[1].Metadata.DocumentTitle != "a.pdf" {
		t.Errorf("metadata not round-tripped: %+v", got[1].Metadata)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	recs := records("alice", "a.pdf", "doc1", []float32{1, 0})

	for range 3 {
		if err := r.Upsert(ctx, recs); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	got, err := r.Query(ctx, []float32{1, 0}, 10, 0, domain.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
}

func TestQuery_OwnerIsolation(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	_ = r.Upsert(ctx, records("alice", "a.pdf", "doc1", []float32{1, 0}))
	_ = r.Upsert(ctx, records("bob", "a.pdf", "doc2", []float32{1, 0}))

	got, err := r.Query(ctx, []float32{1, 0}, 10, 0, domain.Filter{OwnerID: "bob"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Metadata.OwnerID != "bob" {
		t.Fatalf("expected only bob's record, got %+v", got)
	}
}

func TestDelete_ByOwnerAndTitle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	_ = r.Upsert(ctx, records("alice", "a.pdf", "doc1", []float32{1, 0}, []float32{0, 1}))
	_ = r.Upsert(ctx, records("alice", "b.pdf", "doc2", []float32{1, 0}))

	n, err := r.Delete(ctx, domain.Filter{OwnerID: "alice", DocumentTitle: "a.pdf"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	n, err = r.Delete(ctx, domain.Filter{OwnerID: "alice", DocumentTitle: "a.pdf"})
	if err != nil || n != 0 {
		t.Errorf("second delete should be a no-op, got %d, %v", n, err)
	}
}

func TestDelete_RequiresOwner(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.Delete(context.Background(), domain.Filter{DocumentTitle: "a.pdf"}); !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestQuery_MissingTable(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Skip("sqlite not available:", err)
	}
	defer r.Close()

	_, err = r.Query(context.Background(), []float32{1, 0}, 5, 0, domain.Filter{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCosine(t *testing.T) {
	if got := cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal: got %f", got)
	}
	if got := cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero vector: got %f", got)
	}
}
