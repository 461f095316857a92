package index

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/afscgap-dse/flatindex/internal/record"
)

// KeyDictionary assigns dense ids to haul Keys in sorted Key order, so that
// iterating ids ascending yields Keys ascending.
type KeyDictionary struct {
	keys []record.Key
}

// NewKeyDictionary sorts and deduplicates keys.
func NewKeyDictionary(keys []record.Key) *KeyDictionary {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, record.CompareKeys)
	sorted = slices.Compact(sorted)
	return &KeyDictionary{keys: sorted}
}

// ID returns the id of k.
func (d *KeyDictionary) ID(k record.Key) (uint32, bool) {
	i, ok := slices.BinarySearchFunc(d.keys, k, record.CompareKeys)
	return uint32(i), ok
}

func (d *KeyDictionary) Key(id uint32) record.Key { return d.keys[id] }

func (d *KeyDictionary) Len() int { return len(d.keys) }

// KeySet is an immutable set of dictionary ids.
type KeySet struct {
	bm *roaring.Bitmap
}

func NewKeySet(ids ...uint32) KeySet {
	return KeySet{bm: roaring.BitmapOf(ids...)}
}

func (s KeySet) bitmap() *roaring.Bitmap {
	if s.bm == nil {
		return roaring.New()
	}
	return s.bm
}

// Union returns a new set; neither operand is modified.
func (s KeySet) Union(o KeySet) KeySet {
	return KeySet{bm: roaring.Or(s.bitmap(), o.bitmap())}
}

func (s KeySet) Contains(id uint32) bool { return s.bm != nil && s.bm.Contains(id) }

func (s KeySet) Len() int {
	if s.bm == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

func (s KeySet) Equal(o KeySet) bool {
	return s.bitmap().Equals(o.bitmap())
}

// Keys resolves the set through d, in ascending Key order.
func (s KeySet) Keys(d *KeyDictionary) []record.Key {
	ids := s.bitmap().ToArray()
	keys := make([]record.Key, len(ids))
	for i, id := range ids {
		keys[i] = d.Key(id)
	}
	return keys
}

// Keys returns every key in id order. Callers must not modify the result.
func (d *KeyDictionary) Keys() []record.Key { return d.keys }
