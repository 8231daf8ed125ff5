package domain

import "time"

// EventKind names a document lifecycle notification.
type EventKind string

const (
	// EventIngested fires after every batch of a document has been committed.
	EventIngested EventKind = "ingested"
	// EventDeleted fires after an explicit document delete.
	EventDeleted EventKind = "deleted"
)

// DocumentEvent is published after a document changes in the vector store.
type DocumentEvent struct {
	Kind       EventKind `json:"kind"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	DocumentID string    `json:"document_id,omitempty"`
	Chunks     int       `json:"chunks"`
	At         time.Time `json:"at"`
}
