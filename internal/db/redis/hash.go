package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/kbase/internal/db"
)

// HSetMulti stores multiple hashes in one MULTI/EXEC transaction sent as a
// single DoMulti round-trip. Items marked Replace are deleted first inside
// the same transaction.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}
	cmds, keys := s.txCommands(items)
	return execResult(s.client.DoMulti(ctx, cmds...), keys)
}

// HSetNew stores the hashes only if none of their keys exist. The keys are
// WATCHed on a dedicated connection, so a concurrent write between the
// check and EXEC aborts the transaction with db.ErrWriteConflict.
func (s *Store) HSetNew(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	keys := make([]string, len(items))
	exists := make([]rueidis.Completed, len(items))
	for i, item := range items {
		keys[i] = item.Key
		exists[i] = s.b().Exists().Key(item.Key).Build()
	}

	return s.client.Dedicated(func(c rueidis.DedicatedClient) error {
		if err := c.Do(ctx, s.b().Watch().Key(keys...).Build()).Error(); err != nil {
			return &db.Error{Op: db.OpWatch, Err: err}
		}
		for i, res := range c.DoMulti(ctx, exists...) {
			n, err := res.AsInt64()
			if err != nil {
				unwatch(ctx, s, c)
				return &db.Error{Op: db.OpExists, Err: fmt.Errorf("key %s: %w", keys[i], err)}
			}
			if n > 0 {
				unwatch(ctx, s, c)
				return &db.KeyExistsError{Key: keys[i]}
			}
		}
		cmds, cmdKeys := s.txCommands(items)
		return execResult(c.DoMulti(ctx, cmds...), cmdKeys)
	})
}

func unwatch(ctx context.Context, s *Store, c rueidis.DedicatedClient) {
	_ = c.Do(ctx, s.b().Unwatch().Build()).Error()
}

// txCommands builds MULTI, the per-item DEL/HSET commands and EXEC. keys
// holds the target key of each queued command, in EXEC reply order.
func (s *Store) txCommands(items []db.HashSetItem) ([]rueidis.Completed, []string) {
	cmds := make([]rueidis.Completed, 0, len(items)+2)
	keys := make([]string, 0, len(items))
	cmds = append(cmds, s.b().Multi().Build())
	for _, item := range items {
		if item.Replace {
			cmds = append(cmds, s.b().Del().Key(item.Key).Build())
			keys = append(keys, item.Key)
		}
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds = append(cmds, cmd.Build())
		keys = append(keys, item.Key)
	}
	cmds = append(cmds, s.b().Exec().Build())
	return cmds, keys
}

// execResult checks the replies of a txCommands pipeline. A queueing error
// is reported before the EXECABORT it causes; a nil EXEC reply means a
// WATCHed key changed.
func execResult(results []rueidis.RedisResult, keys []string) error {
	last := len(results) - 1
	for i, res := range results[:last] {
		if err := res.Error(); err != nil {
			if i == 0 {
				return &db.Error{Op: db.OpMulti, Err: err}
			}
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", keys[i-1], err)}
		}
	}

	exec := results[last]
	if err := exec.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return &db.Error{Op: db.OpExec, Err: db.ErrWriteConflict}
		}
		return &db.Error{Op: db.OpExec, Err: err}
	}
	replies, err := exec.ToArray()
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	for i, r := range replies {
		if err := r.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
	}
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.b().Exists().Key(key).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return count > 0, nil
}

// ExistsMulti checks several keys in one round-trip, preserving order.
func (s *Store) ExistsMulti(ctx context.Context, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Exists().Key(key).Build()
	}

	out := make([]bool, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		n, err := res.AsInt64()
		if err != nil {
			return nil, &db.Error{Op: db.OpExists, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = n > 0
	}
	return out, nil
}
