package domain

import (
	"errors"
	"testing"
)

func TestDocumentID_ContentHashIsStable(t *testing.T) {
	a := DocumentID(IdentityContentHash, "u1", "some text")
	b := DocumentID(IdentityContentHash, "u1", "some text")
	if a != b {
		t.Errorf("expected stable id, got %q and %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("expected 16 chars, got %d", len(a))
	}
	if c := DocumentID(IdentityContentHash, "u2", "some text"); c == a {
		t.Error("different owners must produce different ids")
	}
}

func TestDocumentID_Random(t *testing.T) {
	a := DocumentID(IdentityRandom, "u1", "x")
	b := DocumentID(IdentityRandom, "u1", "x")
	if a == b {
		t.Error("random ids must differ")
	}
	if len(a) != 12 {
		t.Errorf("expected 12 chars, got %d", len(a))
	}
}

func TestParseIdentityStrategy(t *testing.T) {
	s, err := ParseIdentityStrategy("")
	if err != nil || s != IdentityContentHash {
		t.Errorf("empty should default to content hash, got %q, %v", s, err)
	}
	if s, _ := ParseIdentityStrategy("random"); s != IdentityRandom {
		t.Errorf("got %q", s)
	}
	if _, err := ParseIdentityStrategy("sequential"); err == nil {
		t.Error("expected error")
	}
}

func TestDocument_IsBlank(t *testing.T) {
	if !(Document{Text: " \n\t "}).IsBlank() {
		t.Error("whitespace text should be blank")
	}
	if (Document{Text: "x"}).IsBlank() {
		t.Error("non-empty text should not be blank")
	}
}

func TestErrors_Wrapping(t *testing.T) {
	cause := errors.New("bad xref")
	err := error(&ExtractionError{Filename: "a.pdf", Err: cause})
	if !errors.Is(err, ErrExtraction) {
		t.Error("ExtractionError should match ErrExtraction")
	}
	if !errors.Is(err, cause) {
		t.Error("ExtractionError should unwrap to its cause")
	}

	ie := error(&IngestError{Stage: StageUpsert, Batch: 2, Committed: 200, Err: ErrGateway})
	if !errors.Is(ie, ErrGateway) {
		t.Error("IngestError should unwrap to its cause")
	}
	var target *IngestError
	if !errors.As(ie, &target) || target.Committed != 200 {
		t.Errorf("errors.As failed: %+v", target)
	}
}
