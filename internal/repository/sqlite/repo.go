package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kailas-cloud/pdfrag/internal/db"
	"github.com/kailas-cloud/pdfrag/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS vectors (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	document_id    TEXT NOT NULL,
	document_title TEXT NOT NULL,
	chunk_number   INTEGER NOT NULL,
	chunk_text     TEXT NOT NULL,
	source         TEXT NOT NULL,
	dim            INTEGER NOT NULL,
	vector         BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vectors_owner_title ON vectors(owner_id, document_title);
`

const upsertSQL = `
INSERT INTO vectors(id, owner_id, document_id, document_title, chunk_number, chunk_text, source, dim, vector)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	owner_id=excluded.owner_id, document_id=excluded.document_id, document_title=excluded.document_title,
	chunk_number=excluded.chunk_number, chunk_text=excluded.chunk_text, source=excluded.source,
	dim=excluded.dim, vector=excluded.vector`

// Repo is a single-file vector store gateway for local use.
// Similarity is brute-force cosine over the rows passing the metadata filter.
type Repo struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. ":memory:" yields a private in-memory database.
func Open(path string) (*Repo, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc serializes writers anyway; one connection also keeps ":memory:" coherent.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	return &Repo{db: conn}, nil
}

// Close closes the database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// Ping checks the database handle.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: sqlite ping: %w", domain.ErrGateway, err)
	}
	return nil
}

// EnsureIndex creates the vectors table. The dimension is stored per row instead of in the schema.
func (r *Repo) EnsureIndex(ctx context.Context, _ int) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: create schema: %w", domain.ErrGateway, err)
	}
	return nil
}

// Upsert writes records in one transaction, so a batch is all-or-nothing.
func (r *Repo) Upsert(ctx context.Context, records []domain.VectorRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.wrap("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return r.wrap("prepare upsert", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		md := rec.Metadata
		if _, err = stmt.ExecContext(ctx,
			rec.ID, md.OwnerID, md.DocumentID, md.DocumentTitle, md.ChunkNumber,
			md.ChunkText, md.Source, len(rec.Values), db.VectorToBytes(rec.Values),
		); err != nil {
			return r.wrap("upsert "+rec.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return r.wrap("commit", err)
	}
	return nil
}

// Delete removes all rows matching the filter.
func (r *Repo) Delete(ctx context.Context, f domain.Filter) (int, error) {
	if err := f.ValidateForDelete(); err != nil {
		return 0, err
	}
	where, args := buildWhere(f)
	res, err := r.db.ExecContext(ctx, "DELETE FROM vectors"+where, args...)
	if err != nil {
		return 0, r.wrap("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.wrap("rows affected", err)
	}
	return int(n), nil
}

// Query scores every candidate row and returns the best topK at or above minScore.
func (r *Repo) Query(
	ctx context.Context, vector []float32, topK int, minScore float64, f domain.Filter,
) ([]domain.Match, error) {
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}

	where, args := buildWhere(f)
	if where == "" {
		where = " WHERE dim = ?"
	} else {
		where += " AND dim = ?"
	}
	args = append(args, len(vector))

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, document_id, document_title, chunk_number, chunk_text, source, vector
		 FROM vectors`+where, args...)
	if err != nil {
		return nil, r.wrap("query", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var (
			m    domain.Match
			blob []byte
		)
		if err := rows.Scan(&m.ID, &m.Metadata.OwnerID, &m.Metadata.DocumentID, &m.Metadata.DocumentTitle,
			&m.Metadata.ChunkNumber, &m.Metadata.ChunkText, &m.Metadata.Source, &blob); err != nil {
			return nil, r.wrap("scan row", err)
		}
		vec, err := db.BytesToVector(blob)
		if err != nil {
			continue
		}
		m.Score = cosine(vector, vec)
		if m.Score < minScore {
			continue
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap("iterate rows", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (r *Repo) wrap(op string, err error) error {
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("table vectors: %w", domain.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("sqlite %s: %w", op, err)
	}
	return fmt.Errorf("%w: sqlite %s: %w", domain.ErrGateway, op, err)
}

func buildWhere(f domain.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.DocumentTitle != "" {
		conds = append(conds, "document_title = ?")
		args = append(args, f.DocumentTitle)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
