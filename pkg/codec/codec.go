// Package codec reads and writes record batches: a fixed-schema,
// self-describing container of JSON records.
//
// Layout:
//
//	"FIB1" | compression byte | payload
//
// The payload, compressed as the header byte says, is one JSON header object
// naming the schema and its ordered fields, followed by one JSON object per
// record. Records are written in schema field order. Decoding rejects a
// schema name or field list that differs from the caller's, and any record
// carrying a field the schema does not declare.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
)

const (
	Magic   = "FIB1"
	Version = 1

	// maxPrealloc caps the record slice sized from an untrusted header.
	maxPrealloc = 4096
)

var ErrBadMagic = errors.New("not a record batch")

// Schema names a record type and its ordered field list.
type Schema struct {
	Name   string
	Fields []string
}

// Header is the first JSON value in every batch payload.
type Header struct {
	Schema  string   `json:"schema"`
	Version int      `json:"version"`
	Fields  []string `json:"fields"`
	Count   int      `json:"count"`
}

func (h Header) matches(s Schema) error {
	if h.Schema != s.Name {
		return apperrors.Newf(apperrors.ErrSchemaMismatch, s.Name, "batch holds %q records", h.Schema)
	}
	if !slices.Equal(h.Fields, s.Fields) {
		return apperrors.Newf(apperrors.ErrSchemaMismatch, s.Name, "field list differs: got %v", h.Fields)
	}
	if h.Version != Version {
		return apperrors.Newf(apperrors.ErrSchemaMismatch, s.Name, "unsupported batch version %d", h.Version)
	}
	return nil
}

// Encoder writes batches with one compression setting. It is safe for
// concurrent use.
type Encoder struct {
	compression Compression
}

func NewEncoder(c Compression) *Encoder {
	return &Encoder{compression: c}
}

// Encode serializes records under schema. T must marshal to a JSON object
// whose keys are exactly schema.Fields.
func Encode[T any](e *Encoder, schema Schema, records []T) ([]byte, error) {
	var payload bytes.Buffer
	enc := json.NewEncoder(&payload)
	enc.SetEscapeHTML(false)
	header := Header{Schema: schema.Name, Version: Version, Fields: schema.Fields, Count: len(records)}
	if err := enc.Encode(header); err != nil {
		return nil, fmt.Errorf("encoding %s header: %w", schema.Name, err)
	}
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return nil, fmt.Errorf("encoding %s record %d: %w", schema.Name, i, err)
		}
	}

	body, err := compress(e.compression, payload.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compressing %s batch: %w", schema.Name, err)
	}
	out := make([]byte, 0, len(Magic)+1+len(body))
	out = append(out, Magic...)
	out = append(out, byte(e.compression))
	return append(out, body...), nil
}

func open(data []byte) (*json.Decoder, Header, error) {
	if len(data) < len(Magic)+1 || string(data[:len(Magic)]) != Magic {
		return nil, Header{}, ErrBadMagic
	}
	payload, err := decompress(Compression(data[len(Magic)]), data[len(Magic)+1:])
	if err != nil {
		return nil, Header{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	var header Header
	if err := dec.Decode(&header); err != nil {
		return nil, Header{}, fmt.Errorf("decoding batch header: %w", err)
	}
	if header.Count < 0 {
		return nil, Header{}, apperrors.Newf(apperrors.ErrSchemaMismatch, header.Schema,
			"header declares negative record count %d", header.Count)
	}
	return dec, header, nil
}

// Decode parses a batch written under schema.
func Decode[T any](data []byte, schema Schema) ([]T, error) {
	dec, header, err := open(data)
	if err != nil {
		return nil, err
	}
	if err := header.matches(schema); err != nil {
		return nil, err
	}
	dec.DisallowUnknownFields()
	records := make([]T, 0, min(header.Count, maxPrealloc))
	for {
		var r T
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrSchemaMismatch, schema.Name, "record %d: %v", len(records), err)
		}
		records = append(records, r)
	}
	if len(records) != header.Count {
		return nil, apperrors.Newf(apperrors.ErrSchemaMismatch, schema.Name,
			"header declares %d records, found %d", header.Count, len(records))
	}
	return records, nil
}

// DecodeRaw returns the header and undecoded records of any batch.
func DecodeRaw(data []byte) (Header, []json.RawMessage, error) {
	dec, header, err := open(data)
	if err != nil {
		return Header{}, nil, err
	}
	records := make([]json.RawMessage, 0, min(header.Count, maxPrealloc))
	for {
		var r json.RawMessage
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Header{}, nil, fmt.Errorf("decoding %s record %d: %w", header.Schema, len(records), err)
		}
		records = append(records, r)
	}
	return header, records, nil
}
