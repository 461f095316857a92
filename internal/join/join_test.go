package join

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/metrics"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

var enc = codec.NewEncoder(codec.CompressionZstd)

func haulFor(k record.Key) record.HaulRecord {
	return record.HaulRecord{
		Year:     ptr(k.Year),
		Survey:   ptr(k.Survey),
		Haul:     ptr(k.Haul),
		HaulJoin: ptr(k.Haul * 1000),
		DepthM:   ptr(31.2),
		DateTime: ptr("2023-07-14T09:30:00"),
	}
}

func speciesRef(code int64, name string) record.SpeciesRecord {
	return record.SpeciesRecord{
		SpeciesCode: code,
		SpeciesDescription: record.SpeciesDescription{
			ScientificName: ptr(name),
			CommonName:     ptr("common " + name),
			IDRank:         ptr("species"),
			Worms:          ptr(code * 10),
			Itis:           ptr(code * 100),
		},
	}
}

func catchRow(code, count int64) record.CatchRecord {
	return record.CatchRecord{CatchMeasures: record.CatchMeasures{
		SpeciesCode:     ptr(code),
		Count:           ptr(count),
		CpueKgKM2:       ptr(1.5),
		CpueNoKM2:       ptr(2.5),
		WeightKg:        ptr(0.75),
		TaxonConfidence: ptr("High"),
	}}
}

func put[T any](t *testing.T, s store.RecordStore, path string, schema codec.Schema, rows []T) {
	t.Helper()
	data, err := codec.Encode(enc, schema, rows)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), path, data))
}

func readJoined(t *testing.T, s store.RecordStore, k record.Key) []record.Observation {
	t.Helper()
	data, err := s.Get(context.Background(), record.JoinedPath(k))
	require.NoError(t, err)
	obs, err := codec.Decode[record.Observation](data, record.ObservationSchema)
	require.NoError(t, err)
	return obs
}

func TestJoinScenarioA(t *testing.T) {
	s := store.NewMemoryStore()
	k := record.Key{Year: 2023, Survey: "NBS", Haul: 5}
	put(t, s, record.HaulPath(k), record.HaulSchema, []record.HaulRecord{haulFor(k)})
	put(t, s, record.CatchPath(5), record.CatchSchema, []record.CatchRecord{catchRow(101, 3)})
	table, _ := NewSpeciesTable([]record.SpeciesRecord{speciesRef(101, "a"), speciesRef(102, "b")})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	summary, err := NewEngine(s, enc, table, m).Join(context.Background(), k)
	require.NoError(t, err)

	obs := readJoined(t, s, k)
	require.Len(t, obs, 2)

	assert.Equal(t, int64(101), *obs[0].SpeciesCode)
	assert.Equal(t, int64(3), *obs[0].Count)
	assert.True(t, *obs[0].Complete)
	assert.Equal(t, "a", *obs[0].ScientificName)
	assert.Equal(t, "High", *obs[0].TaxonConfidence)

	assert.Equal(t, int64(102), *obs[1].SpeciesCode)
	assert.Equal(t, int64(0), *obs[1].Count)
	assert.Equal(t, 0.0, *obs[1].CpueKgKM2)
	assert.Equal(t, 0.0, *obs[1].CpueNoKM2)
	assert.Equal(t, 0.0, *obs[1].WeightKg)
	assert.Nil(t, obs[1].TaxonConfidence)
	assert.Equal(t, "common b", *obs[1].CommonName)
	assert.True(t, *obs[1].Complete)
	assert.Equal(t, 31.2, *obs[1].DepthM)

	assert.Equal(t, Summary{Key: k, Path: "joined/2023_NBS_5.batch", Complete: 2, Zero: 1}, summary)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HaulsJoinedTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ObservationsTotal.WithLabelValues("zero")))
}

func TestJoinScenarioBNoCatchFile(t *testing.T) {
	s := store.NewMemoryStore()
	k := record.Key{Year: 2023, Survey: "NBS", Haul: 6}
	put(t, s, record.HaulPath(k), record.HaulSchema, []record.HaulRecord{haulFor(k)})
	table, _ := NewSpeciesTable([]record.SpeciesRecord{speciesRef(101, "a"), speciesRef(102, "b")})

	summary, err := NewEngine(s, enc, table, nil).Join(context.Background(), k)
	require.NoError(t, err)

	obs := readJoined(t, s, k)
	require.Len(t, obs, 1)
	assert.False(t, *obs[0].Complete)
	assert.Equal(t, record.CatchMeasures{}, obs[0].CatchMeasures)
	assert.Equal(t, record.SpeciesDescription{}, obs[0].SpeciesDescription)
	assert.Equal(t, int64(6), *obs[0].Haul)
	assert.Equal(t, 1, summary.Incomplete)
	assert.Equal(t, 1, summary.Zero)
}

func TestJoinEmptyCatchFileZeroFillsEverything(t *testing.T) {
	s := store.NewMemoryStore()
	k := record.Key{Year: 2023, Survey: "NBS", Haul: 7}
	put(t, s, record.HaulPath(k), record.HaulSchema, []record.HaulRecord{haulFor(k)})
	put(t, s, record.CatchPath(7), record.CatchSchema, []record.CatchRecord{})
	table, _ := NewSpeciesTable([]record.SpeciesRecord{speciesRef(102, "b"), speciesRef(101, "a")})

	summary, err := NewEngine(s, enc, table, nil).Join(context.Background(), k)
	require.NoError(t, err)
	obs := readJoined(t, s, k)
	require.Len(t, obs, 2)
	assert.Equal(t, int64(101), *obs[0].SpeciesCode)
	assert.Equal(t, int64(102), *obs[1].SpeciesCode)
	assert.Equal(t, 2, summary.Complete)
	assert.Equal(t, 2, summary.Zero)
}

func TestJoinUnknownSpeciesIsIncomplete(t *testing.T) {
	k := record.Key{Year: 2023, Survey: "NBS", Haul: 5}
	table, _ := NewSpeciesTable([]record.SpeciesRecord{speciesRef(101, "a")})

	obs := Build(haulFor(k), []record.CatchRecord{catchRow(101, 2), catchRow(999, 4)}, table)
	require.Len(t, obs, 2)
	assert.True(t, *obs[0].Complete)
	assert.False(t, *obs[1].Complete)
	assert.Equal(t, int64(999), *obs[1].SpeciesCode)
	assert.Equal(t, int64(4), *obs[1].Count)
	assert.Nil(t, obs[1].ScientificName)

	s := Summarize(k, obs)
	assert.Equal(t, 1, s.Complete)
	assert.Equal(t, 1, s.Incomplete)
	assert.Equal(t, 0, s.Zero)
}

func TestSummarizeZeroCounts(t *testing.T) {
	k := record.Key{Year: 2023, Survey: "NBS", Haul: 5}
	table, _ := NewSpeciesTable([]record.SpeciesRecord{speciesRef(101, "a"), speciesRef(102, "b")})

	nullCount := catchRow(101, 0)
	nullCount.Count = nil
	s := Summarize(k, Build(haulFor(k), []record.CatchRecord{nullCount, catchRow(102, 0)}, table))
	assert.Equal(t, 1, s.Zero, "only the explicit zero count is counted")

	s = Summarize(k, Build(haulFor(k), nil, table))
	assert.Equal(t, 1, s.Zero, "the catch-less haul row counts as zero")
}

func TestJoinHaulPreconditions(t *testing.T) {
	s := store.NewMemoryStore()
	table, _ := NewSpeciesTable(nil)
	engine := NewEngine(s, enc, table, nil)

	missing := record.Key{Year: 2023, Survey: "NBS", Haul: 1}
	_, err := engine.Join(context.Background(), missing)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
	assert.Equal(t, "2023_NBS_1", apperrors.Identity(err))

	dup := record.Key{Year: 2023, Survey: "NBS", Haul: 2}
	put(t, s, record.HaulPath(dup), record.HaulSchema, []record.HaulRecord{haulFor(dup), haulFor(dup)})
	_, err = engine.Join(context.Background(), dup)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
	assert.True(t, apperrors.IsIntegrity(err))

	_, err = s.Get(context.Background(), record.JoinedPath(dup))
	assert.ErrorIs(t, err, store.ErrNotFound, "nothing is written on failure")
}

func TestZeroFillIsReferenceMinusObserved(t *testing.T) {
	var refs []record.SpeciesRecord
	for code := int64(1); code <= 50; code++ {
		refs = append(refs, speciesRef(code, "s"))
	}
	table, _ := NewSpeciesTable(refs)
	k := record.Key{Year: 2023, Survey: "EBS", Haul: 9}

	var catches []record.CatchRecord
	for code := int64(3); code <= 60; code += 7 {
		catches = append(catches, catchRow(code, code))
	}
	obs := Build(haulFor(k), catches, table)

	seen := map[int64]int{}
	for _, o := range obs {
		seen[*o.SpeciesCode]++
	}
	for code, n := range seen {
		assert.Equal(t, 1, n, "species %d appears more than once", code)
	}
	for code := int64(1); code <= 50; code++ {
		assert.Contains(t, seen, code)
	}

	zeros := obs[len(catches):]
	for i, z := range zeros {
		assert.Zero(t, *z.Count)
		assert.True(t, *z.Complete)
		if i > 0 {
			assert.Less(t, *zeros[i-1].SpeciesCode, *z.SpeciesCode)
		}
	}
	assert.Len(t, zeros, 50-len([]int64{3, 10, 17, 24, 31, 38, 45}))
}

func TestSpeciesLoaderLoadsOnce(t *testing.T) {
	s := store.NewMemoryStore()
	put(t, s, "species/part-0.batch", record.SpeciesSchema, []record.SpeciesRecord{speciesRef(101, "a")})
	put(t, s, "species/part-1.batch", record.SpeciesSchema, []record.SpeciesRecord{speciesRef(102, "b"), speciesRef(101, "a2")})
	require.NoError(t, s.Put(context.Background(), "species/_SUCCESS", nil))

	loader := NewSpeciesLoader(s)
	var wg sync.WaitGroup
	tables := make([]*SpeciesTable, 8)
	for i := range tables {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table, err := loader.Load(context.Background())
			assert.NoError(t, err)
			tables[i] = table
		}()
	}
	wg.Wait()

	for _, table := range tables {
		assert.Same(t, tables[0], table)
	}
	assert.Equal(t, []int64{101, 102}, tables[0].Codes())
	ref, ok := tables[0].Lookup(101)
	require.True(t, ok)
	assert.Equal(t, "a2", *ref.ScientificName)
}
