package index

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/afscgap-dse/flatindex/internal/executor"
	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ptr[T any](v T) *T { return &v }

func obs(k record.Key, species int64, count int64, depth float64) record.Observation {
	return record.Observation{
		HaulRecord: record.HaulRecord{
			Year:     ptr(k.Year),
			Survey:   ptr(k.Survey),
			Haul:     ptr(k.Haul),
			DepthM:   ptr(depth),
			DateTime: ptr("2023-07-14T09:30:00"),
		},
		CatchMeasures: record.CatchMeasures{
			SpeciesCode: ptr(species),
			Count:       ptr(count),
			CpueKgKM2:   ptr(float64(count)),
			CpueNoKM2:   ptr(float64(count)),
			WeightKg:    ptr(float64(count)),
		},
		Complete: ptr(true),
	}
}

func putJoined(t testing.TB, s store.RecordStore, k record.Key, rows ...record.Observation) {
	t.Helper()
	data, err := codec.Encode(codec.NewEncoder(codec.CompressionNone), record.ObservationSchema, rows)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), record.JoinedPath(k), data))
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor("depth_m")
	require.NoError(t, err)
	assert.Equal(t, Policy{Field: "depth_m", Round: true}, p)

	p, _ = PolicyFor("date_time")
	assert.True(t, p.TruncateDate)
	p, _ = PolicyFor("hauljoin")
	assert.True(t, p.Flat)
	p, _ = PolicyFor("common_name")
	assert.True(t, p.IgnoreZeros)
	p, _ = PolicyFor("year")
	assert.Equal(t, Policy{Field: "year"}, p)

	_, err = PolicyFor("depth")
	assert.ErrorIs(t, err, apperrors.ErrUnknownField)
}

func TestNormalize(t *testing.T) {
	rounded := Policy{Field: "depth_m", Round: true}
	dated := Policy{Field: "date_time", TruncateDate: true}
	plain := Policy{Field: "year"}

	tests := []struct {
		name   string
		policy Policy
		in     record.Value
		want   record.Value
	}{
		{"rounds down", rounded, record.DoubleValue(31.234), record.StringValue("31.23")},
		{"rounds up", rounded, record.DoubleValue(31.236), record.StringValue("31.24")},
		{"pads", rounded, record.DoubleValue(2), record.StringValue("2.00")},
		{"long", rounded, record.LongValue(7), record.StringValue("7.00")},
		{"null rounded", rounded, record.Null(), record.Null()},
		{"truncates date", dated, record.StringValue("2023-07-14T09:30:00"), record.StringValue("2023-07-14")},
		{"date only", dated, record.StringValue("2023-07-14"), record.StringValue("2023-07-14")},
		{"untouched", plain, record.LongValue(2023), record.LongValue(2023)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.policy, tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize(tt.policy, got), "normalize must be idempotent")
		})
	}
}

func TestNormalizeIdempotentRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	p := Policy{Field: "cpue_kgkm2", Round: true}
	for range 1000 {
		v := record.DoubleValue((rng.Float64() - 0.5) * 1e6)
		once := Normalize(p, v)
		assert.Equal(t, once, Normalize(p, once))
	}
}

func randomSet(rng *rand.Rand) KeySet {
	ids := make([]uint32, rng.IntN(20))
	for i := range ids {
		ids[i] = uint32(rng.IntN(64))
	}
	return NewKeySet(ids...)
}

func TestCombineAssociativeAndCommutative(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	v := record.LongValue(102)
	for range 200 {
		a := Entry{Value: v, Keys: randomSet(rng)}
		b := Entry{Value: v, Keys: randomSet(rng)}
		c := Entry{Value: v, Keys: randomSet(rng)}

		left := Combine(Combine(a, b), c)
		right := Combine(a, Combine(b, c))
		assert.True(t, left.Keys.Equal(right.Keys))
		assert.True(t, Combine(a, b).Keys.Equal(Combine(b, a).Keys))
		assert.True(t, Combine(a, a).Keys.Equal(a.Keys), "union is idempotent")
	}
}

func TestCombineDoesNotMutateOperands(t *testing.T) {
	a := Entry{Value: record.LongValue(1), Keys: NewKeySet(1)}
	b := Entry{Value: record.LongValue(1), Keys: NewKeySet(2)}
	c := Combine(a, b)
	assert.Equal(t, 2, c.Keys.Len())
	assert.Equal(t, 1, a.Keys.Len())
	assert.Equal(t, 1, b.Keys.Len())
	assert.False(t, a.Keys.Contains(2))
}

func TestKeyDictionary(t *testing.T) {
	d := NewKeyDictionary([]record.Key{
		{Year: 2023, Survey: "NBS", Haul: 7},
		{Year: 2022, Survey: "EBS", Haul: 1},
		{Year: 2023, Survey: "NBS", Haul: 7},
	})
	assert.Equal(t, 2, d.Len())
	id, ok := d.ID(record.Key{Year: 2022, Survey: "EBS", Haul: 1})
	require.True(t, ok)
	assert.Equal(t, uint32(0), id)
	_, ok = d.ID(record.Key{Year: 1999, Survey: "GOA", Haul: 1})
	assert.False(t, ok)

	keys := NewKeySet(1, 0).Keys(d)
	assert.Equal(t, []record.Key{{Year: 2022, Survey: "EBS", Haul: 1}, {Year: 2023, Survey: "NBS", Haul: 7}}, keys)
}

func TestBuildScenarioC(t *testing.T) {
	s := store.NewMemoryStore()
	h1 := record.Key{Year: 2023, Survey: "NBS", Haul: 1}
	h2 := record.Key{Year: 2023, Survey: "NBS", Haul: 2}
	h3 := record.Key{Year: 2023, Survey: "NBS", Haul: 3}
	putJoined(t, s, h1, obs(h1, 101, 2, 10), obs(h1, 102, 1, 10))
	putJoined(t, s, h2, obs(h2, 102, 5, 20), obs(h2, 103, 0, 20))
	putJoined(t, s, h3, obs(h3, 103, 4, 30))

	b := NewBuilder(s, executor.New(4), 3, nil)
	// h1 listed twice: reprocessing a haul must not duplicate its key.
	entries, err := b.Build(context.Background(), "species_code", []record.Key{h3, h1, h2, h1})
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, record.IndexEntry{Value: record.LongValue(101), Keys: []record.Key{h1}}, entries[0])
	assert.Equal(t, record.IndexEntry{Value: record.LongValue(102), Keys: []record.Key{h1, h2}}, entries[1])
	// The zero-count row of 103 on h2 is ignored for species_code.
	assert.Equal(t, record.IndexEntry{Value: record.LongValue(103), Keys: []record.Key{h3}}, entries[2])
}

func TestBuildRoundedField(t *testing.T) {
	s := store.NewMemoryStore()
	h1 := record.Key{Year: 2023, Survey: "NBS", Haul: 1}
	h2 := record.Key{Year: 2023, Survey: "NBS", Haul: 2}
	putJoined(t, s, h1, obs(h1, 101, 0, 31.231))
	putJoined(t, s, h2, obs(h2, 101, 0, 31.229))

	entries, err := NewBuilder(s, executor.New(2), 2, nil).Build(context.Background(), "depth_m", []record.Key{h1, h2})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, record.StringValue("31.23"), entries[0].Value)
	assert.Equal(t, []record.Key{h1, h2}, entries[0].Keys)
}

func TestBuildFlatField(t *testing.T) {
	s := store.NewMemoryStore()
	h1 := record.Key{Year: 2023, Survey: "NBS", Haul: 1}
	h2 := record.Key{Year: 2023, Survey: "NBS", Haul: 2}
	putJoined(t, s, h1, obs(h1, 101, 1, 1), obs(h1, 102, 1, 1))
	putJoined(t, s, h2, obs(h2, 101, 1, 1))

	entries, err := NewBuilder(s, executor.New(2), 2, nil).Build(context.Background(), "haul", []record.Key{h2, h1})
	require.NoError(t, err)
	assert.Equal(t, []record.IndexEntry{
		{Value: record.LongValue(1), Keys: []record.Key{h1}},
		{Value: record.LongValue(1), Keys: []record.Key{h1}},
		{Value: record.LongValue(2), Keys: []record.Key{h2}},
	}, entries)
}

func TestBuildIndependentOfPartitioning(t *testing.T) {
	s := store.NewMemoryStore()
	rng := rand.New(rand.NewPCG(42, 42))
	var keys []record.Key
	for h := int64(1); h <= 60; h++ {
		k := record.Key{Year: 2020 + int32(h%3), Survey: []string{"NBS", "EBS"}[h%2], Haul: h}
		keys = append(keys, k)
		var rows []record.Observation
		for range 1 + rng.IntN(6) {
			rows = append(rows, obs(k, 100+rng.Int64N(8), rng.Int64N(3), rng.Float64()*5))
		}
		putJoined(t, s, k, rows...)
	}

	fields := []string{"species_code", "depth_m", "year", "survey", "date_time"}
	for _, field := range fields {
		want, err := NewBuilder(s, executor.New(1), 1, nil).Build(context.Background(), field, keys)
		require.NoError(t, err)
		for range 5 {
			shuffled := slices.Clone(keys)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			got, err := NewBuilder(s, executor.New(1+rng.IntN(8)), 1+rng.IntN(30), nil).Build(context.Background(), field, shuffled)
			require.NoError(t, err)
			assert.Equal(t, want, got, field)
		}
	}
}

func TestBuildMissingJoinedBatch(t *testing.T) {
	_, err := NewBuilder(store.NewMemoryStore(), executor.New(2), 2, nil).
		Build(context.Background(), "year", []record.Key{{Year: 2023, Survey: "NBS", Haul: 1}})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
