package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

func ptr[T any](v T) *T { return &v }

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{registry: prometheus.NewRegistry()}
	defer a.close()
	root := rootCommand(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWrongArgumentCount(t *testing.T) {
	tests := [][]string{
		{"render", "bucket"},
		{"index", "bucket"},
		{"combine", "bucket", "depth_m", "extra"},
		{"main-index"},
		{"sample", "bucket"},
	}
	for _, args := range tests {
		t.Run(args[0], func(t *testing.T) {
			out, err := run(t, args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, apperrors.ExitUsage, apperrors.ExitCode(err))
			assert.Contains(t, out, "Usage:")
		})
	}
}

func TestSplitFields(t *testing.T) {
	assert.Equal(t, []string{"depth_m", "year"}, splitFields(" depth_m, ,year,"))
	assert.Empty(t, splitFields(","))
}

func seedBucket(t *testing.T, root string) {
	t.Helper()
	s := store.NewLocalStore(filepath.Join(root, "survey"))
	enc := codec.NewEncoder(codec.CompressionZstd)
	put := func(path string, data []byte, err error) {
		require.NoError(t, err)
		require.NoError(t, s.Put(context.Background(), path, data))
	}
	k := record.Key{Year: 2023, Survey: "NBS", Haul: 5}
	data, err := codec.Encode(enc, record.SpeciesSchema, []record.SpeciesRecord{{SpeciesCode: 101}, {SpeciesCode: 102}})
	put(record.SpeciesPrefix+"ref"+record.Ext, data, err)
	data, err = codec.Encode(enc, record.HaulSchema, []record.HaulRecord{{
		Year: ptr(k.Year), Survey: ptr(k.Survey), Haul: ptr(k.Haul), DepthM: ptr(31.234),
	}})
	put(record.HaulPath(k), data, err)
	data, err = codec.Encode(enc, record.CatchSchema, []record.CatchRecord{{CatchMeasures: record.CatchMeasures{
		SpeciesCode: ptr(int64(101)), Count: ptr(int64(4)),
	}}})
	put(record.CatchPath(5), data, err)
}

func TestCommandsAgainstLocalStore(t *testing.T) {
	root := t.TempDir()
	t.Setenv("FI_STORE_DRIVER", "local")
	t.Setenv("FI_STORE_ROOT", root)
	t.Setenv("FI_LOGGING_LEVEL", "error")
	seedBucket(t, root)

	report := filepath.Join(root, "report.csv")
	_, err := run(t, "render", "survey", report)
	require.NoError(t, err)
	csv, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Equal(t, "loc,complete,incomplete,zero\njoined/2023_NBS_5.batch,2,0,1\n", string(csv))

	_, err = run(t, "index", "survey", "species_code,depth_m")
	require.NoError(t, err)
	_, err = run(t, "combine", "survey", "depth_m")
	require.NoError(t, err)
	_, err = run(t, "main-index", "survey")
	require.NoError(t, err)

	out, err := run(t, "sample", "survey", record.IndexPath("depth_m"))
	require.NoError(t, err)
	assert.Contains(t, out, `"string": "31.23"`)

	out, err = run(t, "sample", "survey", record.MainIndexPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 records")
}

func TestCombineBeforeIndexIsIntegrityFailure(t *testing.T) {
	root := t.TempDir()
	t.Setenv("FI_STORE_ROOT", root)
	t.Setenv("FI_LOGGING_LEVEL", "error")

	_, err := run(t, "combine", "survey", "depth_m")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitIntegrity, apperrors.ExitCode(err))
}

func TestUnknownFieldIsUsageError(t *testing.T) {
	t.Setenv("FI_STORE_ROOT", t.TempDir())
	t.Setenv("FI_LOGGING_LEVEL", "error")
	_, err := run(t, "index", "survey", "depth")
	assert.Equal(t, apperrors.ExitUsage, apperrors.ExitCode(err))
}
