package domain

import "fmt"

// Chunk is one bounded span of a document's text.
type Chunk struct {
	Index int
	Text  string
}

// ChunkID builds the composite record id: document id plus zero-padded sequence index.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s#c%06d", documentID, index)
}

// Metadata is the fixed field set stored with every vector record.
type Metadata struct {
	OwnerID       string `json:"owner_id"`
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	ChunkNumber   int    `json:"chunk_number"`
	ChunkText     string `json:"chunk_text"`
	Source        string `json:"source"`
}

// VectorRecord is the persisted unit of the vector store.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// NewVectorRecord builds the record for chunk c of document d.
func NewVectorRecord(d Document, c Chunk, values []float32) VectorRecord {
	return VectorRecord{
		ID:     ChunkID(d.ID, c.Index),
		Values: values,
		Metadata: Metadata{
			OwnerID:       d.OwnerID,
			DocumentID:    d.ID,
			DocumentTitle: d.Title,
			ChunkNumber:   c.Index,
			ChunkText:     c.Text,
			Source:        d.Title,
		},
	}
}

// Filter is an exact-match filter over record metadata. Empty fields match anything.
type Filter struct {
	OwnerID       string
	DocumentTitle string
}

// IsEmpty reports whether the filter matches every record.
func (f Filter) IsEmpty() bool {
	return f.OwnerID == "" && f.DocumentTitle == ""
}

// ValidateForDelete rejects filters that would wipe records across owners.
func (f Filter) ValidateForDelete() error {
	if f.OwnerID == "" {
		return fmt.Errorf("%w: owner is required for delete", ErrInvalidFilter)
	}
	return nil
}

// Match is a single query hit returned by a vector store.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Passage is a retrieved chunk with provenance, handed to the answer generator.
type Passage struct {
	Text        string  `json:"text"`
	Title       string  `json:"title"`
	Score       float64 `json:"score"`
	ChunkNumber int     `json:"chunk"`
	DocumentID  string  `json:"document_id"`
}

// PassageFromMatch converts a store hit into a passage.
func PassageFromMatch(m Match) Passage {
	return Passage{
		Text:        m.Metadata.ChunkText,
		Title:       m.Metadata.DocumentTitle,
		Score:       m.Score,
		ChunkNumber: m.Metadata.ChunkNumber,
		DocumentID:  m.Metadata.DocumentID,
	}
}
