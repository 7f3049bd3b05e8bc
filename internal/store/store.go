// Package store implements the fact store (C1): O(1) id lookup, indexed
// field probes, and transparent partitioning for large fact populations.
package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ruleengine/internal/value"
)

// Fact is an immutable record inserted into the engine. Facts are never
// mutated after insertion; "updates" are modeled by the terminal layer as
// retract+assert (see internal/rete).
type Fact struct {
	ID         uint64
	ExternalID string
	Timestamp  time.Time
	Data       map[string]value.Value
}

// Clone returns a deep-enough copy of f suitable for building a "new
// version" of a fact after a SetField action (Data is copied; Value itself
// is already immutable).
func (f *Fact) Clone() *Fact {
	data := make(map[string]value.Value, len(f.Data))
	for k, v := range f.Data {
		data[k] = v
	}
	return &Fact{
		ID:         f.ID,
		ExternalID: f.ExternalID,
		Timestamp:  f.Timestamp,
		Data:       data,
	}
}

// DefaultIndexedFields mirrors the spec's default indexed field set.
var DefaultIndexedFields = []string{"entity_id", "id", "user_id", "customer_id", "status", "category"}

// Config controls store construction.
type Config struct {
	// Partitions shards the id space across independent sub-stores. 1 (the
	// default) means no partitioning. The spec leaves the choice between a
	// "simple" and "optimized" store to the implementer (see DESIGN.md);
	// this store is the single implementation, with Partitions as its only
	// capacity knob.
	Partitions int
	// IndexedFields is the set of fields maintained in the inverted index.
	// Defaults to DefaultIndexedFields when empty.
	IndexedFields []string
}

// Store is the fact store. It is safe for concurrent use: reads take a
// shard's read lock, writes take its write lock, matching the
// read-mostly workload the alpha/beta layers drive against it.
type Store struct {
	nextID  uint64 // atomic, shared across all shards to keep ids globally monotonic
	shards  []*shard
	indexed map[string]struct{}
}

type shard struct {
	mu    sync.RWMutex
	facts map[uint64]*Fact
	// index[field][valueHash] -> candidate ids sharing that hash bucket.
	// Membership is verified against the actual fact value on read so hash
	// collisions never produce incorrect results.
	index map[string]map[uint64][]uint64
}

func newShard() *shard {
	return &shard{
		facts: make(map[uint64]*Fact),
		index: make(map[string]map[uint64][]uint64),
	}
}

// New constructs a Store per cfg.
func New(cfg Config) *Store {
	n := cfg.Partitions
	if n <= 0 {
		n = 1
	}
	fields := cfg.IndexedFields
	if len(fields) == 0 {
		fields = DefaultIndexedFields
	}
	s := &Store{
		shards:  make([]*shard, n),
		indexed: make(map[string]struct{}, len(fields)),
	}
	for i := range s.shards {
		s.shards[i] = newShard()
	}
	for _, f := range fields {
		s.indexed[f] = struct{}{}
	}
	return s
}

func (s *Store) shardFor(id uint64) *shard {
	return s.shards[id%uint64(len(s.shards))]
}

// Insert assigns f.ID, backfills ExternalID with a generated uuid when
// absent, and inserts it into the appropriate shard, updating every
// applicable field index.
func (s *Store) Insert(f Fact) *Fact {
	id := atomic.AddUint64(&s.nextID, 1)
	f.ID = id
	if f.ExternalID == "" {
		f.ExternalID = uuid.NewString()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	stored := &Fact{ID: f.ID, ExternalID: f.ExternalID, Timestamp: f.Timestamp, Data: f.Data}

	sh := s.shardFor(id)
	sh.mu.Lock()
	sh.facts[id] = stored
	for field := range s.indexed {
		v, ok := stored.Data[field]
		if !ok {
			continue
		}
		h := v.Hash()
		bucket := sh.index[field]
		if bucket == nil {
			bucket = make(map[uint64][]uint64)
			sh.index[field] = bucket
		}
		bucket[h] = append(bucket[h], id)
	}
	sh.mu.Unlock()
	return stored
}

// Get returns the fact with the given id, if present.
func (s *Store) Get(id uint64) (*Fact, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	f, ok := sh.facts[id]
	return f, ok
}

// Remove deletes the fact with the given id, pruning its index entries, and
// returns it if it existed.
func (s *Store) Remove(id uint64) (*Fact, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	f, ok := sh.facts[id]
	if !ok {
		return nil, false
	}
	delete(sh.facts, id)
	for field := range s.indexed {
		v, ok := f.Data[field]
		if !ok {
			continue
		}
		h := v.Hash()
		bucket := sh.index[field]
		if bucket == nil {
			continue
		}
		ids := bucket[h]
		for i, cand := range ids {
			if cand == id {
				ids = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(ids) == 0 {
			delete(bucket, h)
		} else {
			bucket[h] = ids
		}
	}
	return f, true
}

// Clear removes every fact and resets all indexes. The id counter is not
// reset, so ids remain monotonic across a Clear.
func (s *Store) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.facts = make(map[uint64]*Fact)
		sh.index = make(map[string]map[uint64][]uint64)
		sh.mu.Unlock()
	}
}

// Len returns the total number of facts currently stored.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.facts)
		sh.mu.RUnlock()
	}
	return n
}

// Snapshot returns a copy of every fact currently held, for the engine's
// batch-abort rollback path (see internal/engine).
func (s *Store) Snapshot() []Fact {
	var out []Fact
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, f := range sh.facts {
			out = append(out, *f.Clone())
		}
		sh.mu.RUnlock()
	}
	return out
}

// Restore replaces the store's contents with exactly facts, preserving their
// original ids (unlike Insert, which always assigns a fresh one) and
// advancing the id counter past the highest id restored. Used to undo a
// batch by returning the store to a pre-batch snapshot without disturbing
// ids any caller may already hold.
func (s *Store) Restore(facts []Fact) {
	s.Clear()
	var maxID uint64
	for _, f := range facts {
		stored := f.Clone()
		sh := s.shardFor(stored.ID)
		sh.mu.Lock()
		sh.facts[stored.ID] = stored
		for field := range s.indexed {
			v, ok := stored.Data[field]
			if !ok {
				continue
			}
			h := v.Hash()
			bucket := sh.index[field]
			if bucket == nil {
				bucket = make(map[uint64][]uint64)
				sh.index[field] = bucket
			}
			bucket[h] = append(bucket[h], stored.ID)
		}
		sh.mu.Unlock()
		if stored.ID > maxID {
			maxID = stored.ID
		}
	}
	for {
		cur := atomic.LoadUint64(&s.nextID)
		if cur >= maxID {
			break
		}
		if atomic.CompareAndSwapUint64(&s.nextID, cur, maxID) {
			break
		}
	}
}

// IsIndexed reports whether field is part of the maintained index set.
func (s *Store) IsIndexed(field string) bool {
	_, ok := s.indexed[field]
	return ok
}

// FindByField returns the ids of every fact whose Data[field] equals v,
// fanning out across partitions. Field need not be in the index set: if it
// is not, this falls back to a full scan of that field only (still correct,
// just not O(1)).
func (s *Store) FindByField(field string, v value.Value) []uint64 {
	var out []uint64
	if s.IsIndexed(field) {
		h := v.Hash()
		for _, sh := range s.shards {
			sh.mu.RLock()
			if bucket, ok := sh.index[field]; ok {
				for _, id := range bucket[h] {
					if f, ok := sh.facts[id]; ok {
						if fv, ok := f.Data[field]; ok && fv.Equal(v) {
							out = append(out, id)
						}
					}
				}
			}
			sh.mu.RUnlock()
		}
		return out
	}
	for _, sh := range s.shards {
		sh.mu.RLock()
		for id, f := range sh.facts {
			if fv, ok := f.Data[field]; ok && fv.Equal(v) {
				out = append(out, id)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// FindByCriteria returns ids whose fact satisfies every (field, value) pair,
// intersecting candidate lists starting from the shortest to minimize work.
func (s *Store) FindByCriteria(criteria []Criterion) []uint64 {
	if len(criteria) == 0 {
		return nil
	}
	lists := make([][]uint64, len(criteria))
	for i, c := range criteria {
		lists[i] = s.FindByField(c.Field, c.Value)
	}
	sortBySizeAsc(lists)
	set := toSet(lists[0])
	for _, l := range lists[1:] {
		set = intersect(set, toSet(l))
		if len(set) == 0 {
			return nil
		}
	}
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Criterion is one (field, value) equality constraint for FindByCriteria.
type Criterion struct {
	Field string
	Value value.Value
}

func sortBySizeAsc(lists [][]uint64) {
	for i := 1; i < len(lists); i++ {
		j := i
		for j > 0 && len(lists[j-1]) > len(lists[j]) {
			lists[j-1], lists[j] = lists[j], lists[j-1]
			j--
		}
	}
}

func toSet(ids []uint64) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func intersect(a, b map[uint64]struct{}) map[uint64]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[uint64]struct{}, len(a))
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}
