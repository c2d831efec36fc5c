// Package index keeps the per-field secondary indexes and the lookup cache
// owned by a single store.
package index

import (
	"filecabinet/pkg/common"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/btree"
)

// bucket holds the ids of every record sharing one normalized key.
type bucket struct {
	key string
	ids *roaring.Bitmap
}

func (b *bucket) Less(than btree.Item) bool {
	return b.key < than.(*bucket).key
}

// Set maps normalized keys to record ids, one ordered tree per indexed field.
type Set struct {
	degree int
	trees  map[common.Field]*btree.BTree
}

func New(degree int) *Set {
	s := &Set{degree: degree}
	s.Reset()
	return s
}

// Reset drops every entry.
func (s *Set) Reset() {
	s.trees = make(map[common.Field]*btree.BTree, len(common.IndexedFields))
	for _, f := range common.IndexedFields {
		s.trees[f] = btree.New(s.degree)
	}
}

// Add files r under the key of each of its current field values.
func (s *Set) Add(r *common.Record) {
	id := uint32(r.ID)
	for f, tree := range s.trees {
		key := f.Key(r)
		needle := &bucket{key: key}
		if item := tree.Get(needle); item != nil {
			item.(*bucket).ids.Add(id)
			continue
		}
		needle.ids = roaring.BitmapOf(id)
		tree.ReplaceOrInsert(needle)
	}
}

// Remove takes r out of the buckets keyed by its current field values. It
// must be called before the fields of r change.
func (s *Set) Remove(r *common.Record) {
	id := uint32(r.ID)
	for f, tree := range s.trees {
		needle := &bucket{key: f.Key(r)}
		item := tree.Get(needle)
		if item == nil {
			continue
		}
		b := item.(*bucket)
		b.ids.Remove(id)
		if b.ids.IsEmpty() {
			tree.Delete(needle)
		}
	}
}

// Lookup returns the ids filed under key, ascending. key must already be normalized.
func (s *Set) Lookup(f common.Field, key string) []int32 {
	tree, ok := s.trees[f]
	if !ok {
		return nil
	}
	item := tree.Get(&bucket{key: key})
	if item == nil {
		return nil
	}
	raw := item.(*bucket).ids.ToArray()
	ids := make([]int32, len(raw))
	for i, id := range raw {
		ids[i] = int32(id)
	}
	return ids
}

// Keys lists the distinct keys of a field in ascending order.
func (s *Set) Keys(f common.Field) []string {
	tree, ok := s.trees[f]
	if !ok {
		return nil
	}
	keys := make([]string, 0, tree.Len())
	tree.Ascend(func(i btree.Item) bool {
		keys = append(keys, i.(*bucket).key)
		return true
	})
	return keys
}

// Count returns how many ids are filed under key.
func (s *Set) Count(f common.Field, key string) int {
	tree, ok := s.trees[f]
	if !ok {
		return 0
	}
	item := tree.Get(&bucket{key: key})
	if item == nil {
		return 0
	}
	return int(item.(*bucket).ids.GetCardinality())
}
