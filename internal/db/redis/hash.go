package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/pdfrag/internal/db"
)

// HSetMulti stores multiple hashes in a single DoMulti round-trip.
// The round-trip is pipelined, not transactional: on error some items may already be written.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	results := s.doMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// HMGetMulti reads the given fields of several hashes in one DoMulti round-trip.
// The result is aligned with keys; a missing hash yields a nil map.
func (s *Store) HMGetMulti(ctx context.Context, keys []string, fields ...string) ([]map[string]string, error) {
	if len(keys) == 0 || len(fields) == 0 {
		return make([]map[string]string, len(keys)), nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hmget().Key(key).Field(fields...).Build()
	}

	out := make([]map[string]string, len(keys))
	for i, res := range s.doMulti(ctx, cmds...) {
		msgs, err := res.ToArray()
		if err != nil {
			return nil, &db.Error{Op: db.OpHMGet, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		for j, msg := range msgs {
			if j >= len(fields) || msg.IsNil() {
				continue
			}
			v, err := msg.ToString()
			if err != nil {
				continue
			}
			if out[i] == nil {
				out[i] = make(map[string]string, len(fields))
			}
			out[i][fields[j]] = v
		}
	}
	return out, nil
}

// delChunk caps DEL arity so a large document does not build one huge command.
const delChunk = 500

// Del deletes keys and returns how many existed.
func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	var total int64
	for start := 0; start < len(keys); start += delChunk {
		end := min(start+delChunk, len(keys))
		cmd := s.b().Del().Key(keys[start:end]...).Build()
		n, err := s.do(ctx, cmd).AsInt64()
		if err != nil {
			return total, &db.Error{Op: db.OpDel, Err: err}
		}
		total += n
	}
	return total, nil
}

// Scan iterates keys matching a pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
