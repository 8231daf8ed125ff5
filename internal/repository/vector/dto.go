package vector

import (
	"crypto/sha1" //nolint:gosec // tag fingerprint, not a security boundary
	"encoding/hex"
	"strconv"

	"github.com/kailas-cloud/pdfrag/internal/db"
	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// Hash field names. TAG fields hold hex fingerprints so owner ids and titles
// never need query escaping; the raw values live alongside for display.
const (
	fieldOwnerID     = "owner_id"
	fieldOwnerKey    = "owner_key"
	fieldDocumentID  = "document_id"
	fieldTitle       = "document_title"
	fieldDocKey      = "doc_key"
	fieldChunkNumber = "chunk_number"
	fieldChunkText   = "chunk_text"
	fieldSource      = "source"
	fieldVector      = "__vector"
)

var metadataFields = []string{
	fieldOwnerID, fieldDocumentID, fieldTitle, fieldChunkNumber, fieldChunkText, fieldSource,
}

const tagKeyLen = 16

func hashTag(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])[:tagKeyLen]
}

// buildHashFields flattens a record into HSET field/value pairs.
func buildHashFields(rec *domain.VectorRecord) map[string]string {
	md := rec.Metadata
	return map[string]string{
		fieldOwnerID:     md.OwnerID,
		fieldOwnerKey:    hashTag(md.OwnerID),
		fieldDocumentID:  md.DocumentID,
		fieldTitle:       md.DocumentTitle,
		fieldDocKey:      hashTag(md.DocumentTitle),
		fieldChunkNumber: strconv.Itoa(md.ChunkNumber),
		fieldChunkText:   md.ChunkText,
		fieldSource:      md.Source,
		fieldVector:      string(db.VectorToBytes(rec.Values)),
	}
}

// parseMetadata rebuilds typed metadata from returned search fields.
func parseMetadata(m map[string]string) domain.Metadata {
	n, _ := strconv.Atoi(m[fieldChunkNumber])
	return domain.Metadata{
		OwnerID:       m[fieldOwnerID],
		DocumentID:    m[fieldDocumentID],
		DocumentTitle: m[fieldTitle],
		ChunkNumber:   n,
		ChunkText:     m[fieldChunkText],
		Source:        m[fieldSource],
	}
}
