// Package chunker splits extracted text into overlapping, size-bounded chunks.
//
// Splitting is recursive over a descending-priority separator list: paragraphs,
// then lines, then spaces, then single characters. Pieces that already fit are
// merged greedily up to the size budget; adjacent chunks share up to overlap
// characters of context. Lengths are counted in runes.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 800

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// DefaultSeparators is tried in order; the empty separator splits into single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter is a deterministic recursive character splitter. Safe for concurrent use.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator priority list.
func WithSeparators(seps ...string) Option {
	return func(s *Splitter) {
		if len(seps) > 0 {
			s.separators = append([]string(nil), seps...)
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Overlap must stay below the budget or the merge loop never advances.
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// ChunkSize returns the effective size budget.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the effective overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns trimmed, non-empty chunks in document order.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	raw := s.split(text, s.separators)

	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Chunks splits text and numbers the result from zero.
func (s *Splitter) Chunks(text string) []domain.Chunk {
	parts := s.Split(text)
	chunks := make([]domain.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = domain.Chunk{Index: i, Text: p}
	}
	return chunks
}

func (s *Splitter) split(text string, seps []string) []string {
	pieces := []string{text}
	sep, rest, ok := pickSeparator(text, seps)
	if ok {
		pieces = splitKeep(text, sep)
	}

	var final, good []string
	for _, piece := range pieces {
		if utf8.RuneCountInString(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			// unsplittable run, passed through whole
			final = append(final, piece)
			continue
		}
		final = append(final, s.split(piece, rest)...)
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge greedily packs pieces up to the size budget, carrying at most overlap
// characters from the tail of one chunk into the head of the next.
func (s *Splitter) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		lens    []int
		total   int
	)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > s.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.overlap || (total+n > s.chunkSize && total > 0) {
				total -= lens[0]
				current, lens = current[1:], lens[1:]
			}
		}
		current = append(current, p)
		lens = append(lens, n)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// pickSeparator returns the first separator present in text and the lower-priority ones after it.
// ok is false when none applies and no character-level fallback is configured.
func pickSeparator(text string, seps []string) (sep string, rest []string, ok bool) {
	for i, s := range seps {
		if s == "" {
			return "", nil, true
		}
		if strings.Contains(text, s) {
			return s, seps[i+1:], true
		}
	}
	return "", nil, false
}

// splitKeep splits on sep and re-attaches the separator to the start of each following piece,
// so concatenating the pieces restores text exactly.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
