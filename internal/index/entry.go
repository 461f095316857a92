package index

import (
	"github.com/afscgap-dse/flatindex/internal/record"
)

// Entry is a value and the set of hauls carrying it, before resolution to
// Keys.
type Entry struct {
	Value record.Value
	Keys  KeySet
}

// Combine merges two entries for the same value by set union of their keys.
// It is pure, associative and commutative.
func Combine(a, b Entry) Entry {
	return Entry{Value: a.Value, Keys: a.Keys.Union(b.Keys)}
}

// Project maps one Observation of haul id to an Entry. The second result is
// false when the Observation does not contribute to the field's index.
func Project(p Policy, id uint32, o *record.Observation) (Entry, bool, error) {
	if p.IgnoreZeros && !IsNonZero(o) {
		return Entry{}, false, nil
	}
	v, err := o.Field(p.Field)
	if err != nil {
		return Entry{}, false, err
	}
	if !p.Flat {
		v = Normalize(p, v)
	}
	return Entry{Value: v, Keys: NewKeySet(id)}, true, nil
}

// Resolve converts e to its stored form.
func Resolve(e Entry, d *KeyDictionary) record.IndexEntry {
	return record.IndexEntry{Value: e.Value, Keys: e.Keys.Keys(d)}
}
