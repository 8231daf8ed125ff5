package vector

import (
	"github.com/kailas-cloud/pdfrag/internal/db"
)

// buildIndex declares the FT schema: fingerprint TAGs for owner/document pre-filters,
// chunk_number for ordering and an HNSW/COSINE vector aliased as "vector".
// Fingerprints are lowercase hex, so the tags match case-sensitively without folding.
func buildIndex(cfg Config, prefix string, dim int) (*db.IndexDefinition, error) {
	return db.NewIndex(cfg.IndexName).
		Prefix(prefix).
		TagWithOpts(fieldOwnerKey, ",", true).
		TagWithOpts(fieldDocKey, ",", true).
		Numeric(fieldChunkNumber).
		VectorHNSW(fieldVector, dim, db.DistanceCosine, cfg.HNSW.M, cfg.HNSW.EFConstruct).
		As("vector").
		Build()
}
