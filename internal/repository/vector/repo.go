package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/pdfrag/internal/db"
	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// store is the consumer interface for vector records (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	HMGetMulti(ctx context.Context, keys []string, fields ...string) ([]map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig holds HNSW index tuning parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config names the index and key space the gateway owns.
type Config struct {
	IndexName string
	KeyPrefix string
	HNSW      HNSWConfig
}

// Repo is the vector store gateway over Valkey or Redis hashes with an FT index.
// Every record is a hash; a per-(owner, title) set tracks record keys so deletes
// never depend on FT.SEARCH without a KNN clause.
type Repo struct {
	store store
	cfg   Config
}

// New creates a vector repository.
func New(s store, cfg Config) *Repo {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "pdfrag:"
	}
	return &Repo{store: s, cfg: cfg}
}

// Ping checks the underlying store.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrGateway, err)
	}
	return nil
}

// EnsureIndex creates the FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, dim int) error {
	exists, err := r.store.IndexExists(ctx, r.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("%w: index info %s: %w", domain.ErrGateway, r.cfg.IndexName, err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.cfg, r.chunkPrefix(), dim)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("%w: create index %s: %w", domain.ErrGateway, r.cfg.IndexName, err)
	}
	return nil
}

// Upsert writes records by id. Rewriting an id replaces the hash in place.
// The write is pipelined, not transactional; callers retry a failed batch as a whole.
func (r *Repo) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(records))
	members := make(map[string][]string)
	order := make([]string, 0, 1)
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			return fmt.Errorf("record %d: empty id", i)
		}
		key := r.chunkKey(rec.ID)
		items[i] = db.HashSetItem{Key: key, Fields: buildHashFields(rec)}

		setKey := r.docSetKey(rec.Metadata.OwnerID, rec.Metadata.DocumentTitle)
		if _, ok := members[setKey]; !ok {
			order = append(order, setKey)
		}
		members[setKey] = append(members[setKey], key)
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: hset %d records: %w", domain.ErrGateway, len(items), err)
	}
	for _, setKey := range order {
		if err := r.store.SAdd(ctx, setKey, members[setKey]...); err != nil {
			return fmt.Errorf("%w: sadd %s: %w", domain.ErrGateway, setKey, err)
		}
	}
	return nil
}

// Delete removes every record matching the filter and returns how many were removed.
// The owner is mandatory; an absent title widens the delete to all of the owner's documents.
func (r *Repo) Delete(ctx context.Context, f domain.Filter) (int, error) {
	if err := f.ValidateForDelete(); err != nil {
		return 0, err
	}

	var setKeys []string
	if f.DocumentTitle != "" {
		setKeys = []string{r.docSetKey(f.OwnerID, f.DocumentTitle)}
	} else {
		keys, err := r.store.Scan(ctx, r.ownerSetPattern(f.OwnerID))
		if err != nil {
			return 0, fmt.Errorf("%w: scan owner sets: %w", domain.ErrGateway, err)
		}
		setKeys = keys
	}

	var removed int
	for _, setKey := range setKeys {
		members, err := r.store.SMembers(ctx, setKey)
		if err != nil {
			return removed, fmt.Errorf("%w: smembers %s: %w", domain.ErrGateway, setKey, err)
		}
		keys, err := r.matchingKeys(ctx, members, f)
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := r.store.Del(ctx, keys...)
			if err != nil {
				return removed, fmt.Errorf("%w: del records: %w", domain.ErrGateway, err)
			}
			removed += int(n)
		}
		if _, err := r.store.Del(ctx, setKey); err != nil {
			return removed, fmt.Errorf("%w: del %s: %w", domain.ErrGateway, setKey, err)
		}
	}
	return removed, nil
}

// matchingKeys keeps the set members whose stored metadata still matches the filter.
// A record rewritten under another title stays listed in its old set and must survive.
func (r *Repo) matchingKeys(ctx context.Context, members []string, f domain.Filter) ([]string, error) {
	if len(members) == 0 {
		return nil, nil
	}
	stored, err := r.store.HMGetMulti(ctx, members, fieldOwnerID, fieldTitle)
	if err != nil {
		return nil, fmt.Errorf("%w: read record owners: %w", domain.ErrGateway, err)
	}

	keys := make([]string, 0, len(members))
	for i, h := range stored {
		if h == nil || h[fieldOwnerID] != f.OwnerID {
			continue
		}
		if f.DocumentTitle != "" && h[fieldTitle] != f.DocumentTitle {
			continue
		}
		keys = append(keys, members[i])
	}
	return keys, nil
}

// Query returns up to topK records scoring at least minScore, best first.
func (r *Repo) Query(
	ctx context.Context, vector []float32, topK int, minScore float64, f domain.Filter,
) ([]domain.Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	var filters []db.TagFilter
	if f.OwnerID != "" {
		filters = append(filters, db.TagFilter{Field: fieldOwnerKey, Value: hashTag(f.OwnerID)})
	}
	if f.DocumentTitle != "" {
		filters = append(filters, db.TagFilter{Field: fieldDocKey, Value: hashTag(f.DocumentTitle)})
	}

	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		Filters:      filters,
		Vector:       vector,
		K:            topK,
		ReturnFields: metadataFields,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("index %s: %w", r.cfg.IndexName, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: knn search: %w", domain.ErrGateway, err)
	}

	matches := make([]domain.Match, 0, len(result.Entries))
	for _, e := range result.Entries {
		if e.Score < minScore {
			continue
		}
		matches = append(matches, domain.Match{
			ID:       strings.TrimPrefix(e.Key, r.chunkPrefix()),
			Score:    e.Score,
			Metadata: parseMetadata(e.Fields),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (r *Repo) chunkPrefix() string {
	return r.cfg.KeyPrefix + "chunk:"
}

func (r *Repo) chunkKey(id string) string {
	return r.chunkPrefix() + id
}

func (r *Repo) docSetKey(owner, title string) string {
	return fmt.Sprintf("%sdocs:%s:%s", r.cfg.KeyPrefix, hashTag(owner), hashTag(title))
}

func (r *Repo) ownerSetPattern(owner string) string {
	return fmt.Sprintf("%sdocs:%s:*", r.cfg.KeyPrefix, hashTag(owner))
}
