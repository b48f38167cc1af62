// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

package auth

import (
	"hash/fnv"
	"sync"
)

const keyedShards = 32

// keyedStore is a map partitioned into mutex-guarded shards. Every mutation of
// a key happens inside one closure under its shard lock, so operations on the
// same key are linearizable and keys in different shards never contend.
type keyedStore[V any] struct {
	shards [keyedShards]keyedShard[V]
}

type keyedShard[V any] struct {
	mu    sync.Mutex
	items map[string]V
}

func newKeyedStore[V any]() *keyedStore[V] {
	s := &keyedStore[V]{}
	for i := range s.shards {
		s.shards[i].items = make(map[string]V)
	}
	return s
}

func (s *keyedStore[V]) shardFor(key string) *keyedShard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key)) //nolint:errcheck // hash.Hash never returns an error
	return &s.shards[h.Sum32()%keyedShards]
}

// update applies fn to the current value for key. fn returns the next value
// and whether it should be kept; returning keep=false deletes the key.
func (s *keyedStore[V]) update(key string, fn func(cur V, ok bool) (next V, keep bool)) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cur, ok := sh.items[key]
	next, keep := fn(cur, ok)
	switch {
	case keep:
		sh.items[key] = next
	case ok:
		delete(sh.items, key)
	}
}

// delete removes key and reports whether it was present.
func (s *keyedStore[V]) delete(key string) bool {
	var existed bool
	s.update(key, func(_ V, ok bool) (V, bool) {
		existed = ok
		var zero V
		return zero, false
	})
	return existed
}

// scan visits every entry one shard at a time, holding that shard's lock.
// fn follows the same keep contract as update.
func (s *keyedStore[V]) scan(fn func(key string, cur V) (next V, keep bool)) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, v := range sh.items {
			next, keep := fn(k, v)
			if keep {
				sh.items[k] = next
			} else {
				delete(sh.items, k)
			}
		}
		sh.mu.Unlock()
	}
}
