package core

import (
	"sort"
	"strconv"

	"filecabinet/pkg/common"
	"filecabinet/pkg/core/index"
	"filecabinet/pkg/monitor"
)

// Table is the ordered record set shared by both backends, together with the
// index set and lookup cache it owns. Every mutating method leaves the index
// consistent with the current field values and clears the cache.
type Table struct {
	rows  []*common.Record
	pos   map[int32]int
	index *index.Set
	cache *index.Cache
	stats *monitor.WorkloadStats
}

func NewTable(degree int, cache bool, stats *monitor.WorkloadStats) *Table {
	if stats == nil {
		stats = monitor.NewWorkloadStats(nil, "table")
	}
	return &Table{
		pos:   make(map[int32]int),
		index: index.New(degree),
		cache: index.NewCache(cache),
		stats: stats,
	}
}

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) Stats() *monitor.WorkloadStats { return t.stats }

func (t *Table) Has(id int32) bool {
	_, ok := t.pos[id]
	return ok
}

// Get returns a copy of the record with the given id.
func (t *Table) Get(id int32) (common.Record, bool) {
	i, ok := t.pos[id]
	if !ok {
		return common.Record{}, false
	}
	return *t.rows[i], true
}

// NextID returns the smallest positive id not in use.
func (t *Table) NextID() int32 {
	id := int32(1)
	for t.Has(id) {
		id++
	}
	return id
}

// Insert appends r; its id must be positive and unused.
func (t *Table) Insert(r common.Record) {
	t.Load(r)
	t.touch()
}

// Load appends r like Insert without counting a write. Stores use it while
// rebuilding from persisted records.
func (t *Table) Load(r common.Record) {
	rec := r
	t.pos[rec.ID] = len(t.rows)
	t.rows = append(t.rows, &rec)
	t.index.Add(&rec)
	t.cache.Clear()
}

// Replace copies the field values of r onto the stored record with id,
// keeping its identity and position.
func (t *Table) Replace(id int32, r common.Record) bool {
	i, ok := t.pos[id]
	if !ok {
		return false
	}
	rec := t.rows[i]
	t.index.Remove(rec)
	r.ID = id
	*rec = r
	t.index.Add(rec)
	t.touch()
	return true
}

// Remove deletes the record with id and returns its last value.
func (t *Table) Remove(id int32) (common.Record, bool) {
	i, ok := t.pos[id]
	if !ok {
		return common.Record{}, false
	}
	rec := t.rows[i]
	t.index.Remove(rec)
	delete(t.pos, id)
	copy(t.rows[i:], t.rows[i+1:])
	t.rows[len(t.rows)-1] = nil
	t.rows = t.rows[:len(t.rows)-1]
	for j := i; j < len(t.rows); j++ {
		t.pos[t.rows[j].ID] = j
	}
	t.touch()
	return *rec, true
}

// Reset empties the table.
func (t *Table) Reset() {
	t.rows = nil
	t.pos = make(map[int32]int)
	t.index.Reset()
	t.cache.Clear()
}

// Invalidate clears the lookup cache without changing any record.
func (t *Table) Invalidate() {
	t.cache.Clear()
}

// All returns copies of every record in table order.
func (t *Table) All() []common.Record {
	out := make([]common.Record, len(t.rows))
	for i, r := range t.rows {
		out[i] = *r
	}
	return out
}

// Find returns the records whose field matches key, in table order.
func (t *Table) Find(f common.Field, raw string) []common.Record {
	t.stats.RecordRead()
	if !f.Valid() {
		return nil
	}
	key, ok := f.Normalize(raw)
	if !ok {
		return nil
	}
	if cached, ok := t.cache.Get(f, key); ok {
		t.stats.RecordHit()
		return cached
	}
	t.stats.RecordMiss()

	var out []common.Record
	if !f.Indexed() {
		id, _ := strconv.ParseInt(key, 10, 32)
		if r, found := t.Get(int32(id)); found {
			out = append(out, r)
		}
	} else {
		ids := t.index.Lookup(f, key)
		positions := make([]int, 0, len(ids))
		for _, id := range ids {
			if i, ok := t.pos[id]; ok {
				positions = append(positions, i)
			}
		}
		sort.Ints(positions)
		out = make([]common.Record, 0, len(positions))
		for _, i := range positions {
			out = append(out, *t.rows[i])
		}
	}
	t.cache.Put(f, key, out)
	return out
}

// Keys lists the distinct normalized keys of an indexed field, ascending.
func (t *Table) Keys(f common.Field) []string {
	return t.index.Keys(f)
}

func (t *Table) touch() {
	t.cache.Clear()
	t.stats.RecordWrite()
}
