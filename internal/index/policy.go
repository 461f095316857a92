// Package index builds inverted indices from joined Observations: for one
// field, every distinct value maps to the set of haul Keys where it occurs.
package index

import (
	"fmt"
	"strings"

	"github.com/afscgap-dse/flatindex/internal/record"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
)

// Policy carries the per-field indexing rules.
type Policy struct {
	Field string
	// Round formats numbers with two decimals before grouping.
	Round bool
	// TruncateDate cuts date-time strings to the calendar date.
	TruncateDate bool
	// Flat fields are identifiers: one output record per Observation with no
	// grouping and no normalization.
	Flat bool
	// IgnoreZeros drops Observations with no positive catch magnitude, so
	// zero-filled rows do not claim every haul for every species.
	IgnoreZeros bool
}

var (
	roundedFields = set(
		"latitude_dd_start", "longitude_dd_start", "latitude_dd_end", "longitude_dd_end",
		"bottom_temperature_c", "surface_temperature_c", "depth_m",
		"distance_fished_km", "duration_hr", "net_width_m", "net_height_m",
		"area_swept_km2", "cpue_kgkm2", "cpue_nokm2", "weight_kg",
	)
	dateFields       = set("date_time")
	flatFields       = set("performance", "cruise", "cruisejoin", "hauljoin", "haul")
	ignoreZeroFields = set("species_code", "scientific_name", "common_name")
)

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// PolicyFor returns the rules for field, which must be an Observation field.
func PolicyFor(field string) (Policy, error) {
	if !record.IsObservationField(field) {
		return Policy{}, apperrors.New(apperrors.ErrUnknownField, field, "cannot index a field outside the observation schema")
	}
	return Policy{
		Field:        field,
		Round:        roundedFields[field],
		TruncateDate: dateFields[field],
		Flat:         flatFields[field],
		IgnoreZeros:  ignoreZeroFields[field],
	}, nil
}

// Normalize maps v to its grouping representation. It is idempotent.
func Normalize(p Policy, v record.Value) record.Value {
	switch {
	case v.IsNull():
		return v
	case p.Round:
		switch v.Kind {
		case record.KindDouble:
			return record.StringValue(fmt.Sprintf("%.2f", v.Double))
		case record.KindLong:
			return record.StringValue(fmt.Sprintf("%.2f", float64(v.Long)))
		}
	case p.TruncateDate:
		if v.Kind == record.KindString {
			date, _, _ := strings.Cut(v.Str, "T")
			return record.StringValue(date)
		}
	}
	return v
}

// IsNonZero reports whether any catch magnitude of o is positive.
func IsNonZero(o *record.Observation) bool {
	return (o.CpueKgKM2 != nil && *o.CpueKgKM2 > 0) ||
		(o.CpueNoKM2 != nil && *o.CpueNoKM2 > 0) ||
		(o.WeightKg != nil && *o.WeightKg > 0) ||
		(o.Count != nil && *o.Count > 0)
}
