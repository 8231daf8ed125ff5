package vector

import (
	"context"
	"path"
	"sort"
	"testing"

	"github.com/kailas-cloud/pdfrag/internal/db"
	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// memStore is an in-memory stand-in for the hash and set commands the repo issues.
type memStore struct {
	hashes  map[string]map[string]string
	sets    map[string]map[string]bool
	indexes map[string]*db.IndexDefinition

	pingErr      error
	hsetErr      error
	hmgetErr     error
	createErr    error
	searchFn     func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	lastKNNQuery *db.KNNQuery
}

func newMemStore() *memStore {
	return &memStore{
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]bool),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

func (m *memStore) Ping(_ context.Context) error { return m.pingErr }

func (m *memStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	if m.hsetErr != nil {
		return m.hsetErr
	}
	for _, it := range items {
		h := make(map[string]string, len(it.Fields))
		for k, v := range it.Fields {
			h[k] = v
		}
		m.hashes[it.Key] = h
	}
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := m.hashes[k]; ok {
			delete(m.hashes, k)
			n++
		}
		if _, ok := m.sets[k]; ok {
			delete(m.sets, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	var out []string
	for k := range m.sets {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) SAdd(_ context.Context, key string, members ...string) error {
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]bool)
		m.sets[key] = s
	}
	for _, mem := range members {
		s[mem] = true
	}
	return nil
}

func (m *memStore) SMembers(_ context.Context, key string) ([]string, error) {
	out := make([]string, 0, len(m.sets[key]))
	for mem := range m.sets[key] {
		out = append(out, mem)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) HMGetMulti(_ context.Context, keys []string, fields ...string) ([]map[string]string, error) {
	if m.hmgetErr != nil {
		return nil, m.hmgetErr
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		h, ok := m.hashes[k]
		if !ok {
			continue
		}
		out[i] = make(map[string]string, len(fields))
		for _, f := range fields {
			if v, ok := h[f]; ok {
				out[i][f] = v
			}
		}
	}
	return out, nil
}

func (m *memStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.indexes[def.Name] = def
	return nil
}

func (m *memStore) IndexExists(_ context.Context, name string) (bool, error) {
	_, ok := m.indexes[name]
	return ok, nil
}

func (m *memStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.lastKNNQuery = q
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *memStore) {
	t.Helper()
	ms := newMemStore()
	repo := New(ms, Config{IndexName: "rag-demo", KeyPrefix: "t:", HNSW: HNSWConfig{M: 16, EFConstruct: 200}})
	return repo, ms
}

func testRecords(owner, title, docID string, n int) []domain.VectorRecord {
	d := domain.Document{ID: docID, OwnerID: owner, Title: title}
	out := make([]domain.VectorRecord, n)
	for i := range out {
		out[i] = domain.NewVectorRecord(d, domain.Chunk{Index: i, Text: "chunk"}, []float32{float32(i), 1})
	}
	return out
}
