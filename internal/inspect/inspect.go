// Package inspect prints stored record batches for humans.
package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/afscgap-dse/flatindex/pkg/codec"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

// Dump writes the header line of the batch at path followed by each record
// as indented JSON. It returns the number of records printed.
func Dump(ctx context.Context, s store.RecordStore, path string, w io.Writer) (int, error) {
	data, err := s.Get(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	header, records, err := codec.DecodeRaw(data)
	if err != nil {
		return 0, fmt.Errorf("decoding %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(w, "# %s v%d, %d records\n", header.Schema, header.Version, header.Count); err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	for i, raw := range records {
		buf.Reset()
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return i, fmt.Errorf("formatting record %d of %s: %w", i, path, err)
		}
		buf.WriteByte('\n')
		if _, err := w.Write(buf.Bytes()); err != nil {
			return i, err
		}
	}
	return len(records), nil
}
