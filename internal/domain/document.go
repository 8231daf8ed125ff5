package domain

import (
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IdentityStrategy selects how a document id is derived.
type IdentityStrategy string

const (
	// IdentityContentHash derives the id from owner and full text, so identical uploads share an id.
	IdentityContentHash IdentityStrategy = "content_hash"
	// IdentityRandom issues a fresh id per ingestion.
	IdentityRandom IdentityStrategy = "random"
)

const (
	contentHashIDLen = 16
	randomIDLen      = 12
)

// ParseIdentityStrategy validates a configured strategy name. Empty means content hash.
func ParseIdentityStrategy(s string) (IdentityStrategy, error) {
	switch IdentityStrategy(s) {
	case "", IdentityContentHash:
		return IdentityContentHash, nil
	case IdentityRandom:
		return IdentityRandom, nil
	default:
		return "", fmt.Errorf("unknown identity strategy %q", s)
	}
}

// Document is a single ingested file. It is superseded, never mutated, on re-ingestion.
type Document struct {
	ID      string
	OwnerID string
	Title   string
	Text    string
}

// NewDocument assigns an identity to extracted text using the given strategy.
func NewDocument(ownerID, title, text string, strategy IdentityStrategy) Document {
	return Document{
		ID:      DocumentID(strategy, ownerID, text),
		OwnerID: ownerID,
		Title:   title,
		Text:    text,
	}
}

// DocumentID computes a document identity.
func DocumentID(strategy IdentityStrategy, ownerID, text string) string {
	if strategy == IdentityRandom {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")
		return id[:randomIDLen]
	}
	sum := sha1.Sum([]byte(ownerID + "|" + text)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])[:contentHashIDLen]
}

// IsBlank reports whether the document carries no retrievable text.
func (d Document) IsBlank() bool {
	return strings.TrimSpace(d.Text) == ""
}
