// Package record defines the typed survey records, their fixed batch
// schemas and the store paths they live at.
//
// Every nullable field is a pointer; nil encodes as null.
package record

import (
	"github.com/afscgap-dse/flatindex/pkg/codec"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
)

// HaulRecord describes one net deployment.
type HaulRecord struct {
	Year                *int32   `json:"year"`
	Srvy                *string  `json:"srvy"`
	Survey              *string  `json:"survey"`
	SurveyName          *string  `json:"survey_name"`
	SurveyDefinitionID  *int64   `json:"survey_definition_id"`
	Cruise              *int64   `json:"cruise"`
	CruiseJoin          *int64   `json:"cruisejoin"`
	HaulJoin            *int64   `json:"hauljoin"`
	Haul                *int64   `json:"haul"`
	Stratum             *int64   `json:"stratum"`
	Station             *string  `json:"station"`
	VesselID            *int64   `json:"vessel_id"`
	VesselName          *string  `json:"vessel_name"`
	DateTime            *string  `json:"date_time"`
	LatitudeDDStart     *float64 `json:"latitude_dd_start"`
	LongitudeDDStart    *float64 `json:"longitude_dd_start"`
	LatitudeDDEnd       *float64 `json:"latitude_dd_end"`
	LongitudeDDEnd      *float64 `json:"longitude_dd_end"`
	BottomTemperatureC  *float64 `json:"bottom_temperature_c"`
	SurfaceTemperatureC *float64 `json:"surface_temperature_c"`
	DepthM              *float64 `json:"depth_m"`
	DistanceFishedKM    *float64 `json:"distance_fished_km"`
	DurationHr          *float64 `json:"duration_hr"`
	NetWidthM           *float64 `json:"net_width_m"`
	NetHeightM          *float64 `json:"net_height_m"`
	AreaSweptKM2        *float64 `json:"area_swept_km2"`
	Performance         *float64 `json:"performance"`
}

// CatchMeasures are the per-species fields of a catch row.
type CatchMeasures struct {
	SpeciesCode     *int64   `json:"species_code"`
	CpueKgKM2       *float64 `json:"cpue_kgkm2"`
	CpueNoKM2       *float64 `json:"cpue_nokm2"`
	Count           *int64   `json:"count"`
	WeightKg        *float64 `json:"weight_kg"`
	TaxonConfidence *string  `json:"taxon_confidence"`
}

// CatchRecord is one species caught on one haul.
type CatchRecord struct {
	HaulJoin *int64 `json:"hauljoin"`
	CatchMeasures
}

// SpeciesDescription is the descriptive part of a species reference row.
type SpeciesDescription struct {
	ScientificName *string `json:"scientific_name"`
	CommonName     *string `json:"common_name"`
	IDRank         *string `json:"id_rank"`
	Worms          *int64  `json:"worms"`
	Itis           *int64  `json:"itis"`
}

// SpeciesRecord is reference data keyed by species code.
type SpeciesRecord struct {
	SpeciesCode int64 `json:"species_code"`
	SpeciesDescription
}

// Observation is one species at one haul after the join. Field order is the
// batch schema order.
type Observation struct {
	HaulRecord
	CatchMeasures
	SpeciesDescription
	Complete *bool `json:"complete"`
}

// Key returns the haul identity carried by o. It fails when year, survey or
// haul is missing.
func (o *Observation) Key() (Key, error) {
	return o.HaulRecord.Key()
}

// Key returns the identity of the haul.
func (h *HaulRecord) Key() (Key, error) {
	if h.Year == nil || h.Survey == nil || h.Haul == nil {
		return Key{}, apperrors.New(apperrors.ErrInvalidInput, "haul", "year, survey and haul are required")
	}
	return Key{Year: *h.Year, Survey: *h.Survey, Haul: *h.Haul}, nil
}

var (
	HaulSchema = codec.Schema{Name: "Haul", Fields: []string{
		"year", "srvy", "survey", "survey_name", "survey_definition_id",
		"cruise", "cruisejoin", "hauljoin", "haul", "stratum", "station",
		"vessel_id", "vessel_name", "date_time",
		"latitude_dd_start", "longitude_dd_start", "latitude_dd_end", "longitude_dd_end",
		"bottom_temperature_c", "surface_temperature_c", "depth_m",
		"distance_fished_km", "duration_hr", "net_width_m", "net_height_m",
		"area_swept_km2", "performance",
	}}

	CatchSchema = codec.Schema{Name: "Catch", Fields: []string{
		"hauljoin", "species_code", "cpue_kgkm2", "cpue_nokm2", "count",
		"weight_kg", "taxon_confidence",
	}}

	SpeciesSchema = codec.Schema{Name: "Species", Fields: []string{
		"species_code", "scientific_name", "common_name", "id_rank", "worms", "itis",
	}}

	ObservationSchema = codec.Schema{Name: "Observation", Fields: concat(
		HaulSchema.Fields,
		CatchSchema.Fields[1:],
		SpeciesSchema.Fields[1:],
		[]string{"complete"},
	)}

	KeySchema = codec.Schema{Name: "Key", Fields: []string{"year", "survey", "haul"}}

	IndexSchema = codec.Schema{Name: "Index", Fields: []string{"value", "keys"}}
)

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// IndexEntry maps one field value to the hauls where it occurs. Keys hold no
// duplicates.
type IndexEntry struct {
	Value Value `json:"value"`
	Keys  []Key `json:"keys"`
}

var observationFields = map[string]func(*Observation) Value{
	"year":                  func(o *Observation) Value { return optInt(o.Year) },
	"srvy":                  func(o *Observation) Value { return optString(o.Srvy) },
	"survey":                func(o *Observation) Value { return optString(o.Survey) },
	"survey_name":           func(o *Observation) Value { return optString(o.SurveyName) },
	"survey_definition_id":  func(o *Observation) Value { return optLong(o.SurveyDefinitionID) },
	"cruise":                func(o *Observation) Value { return optLong(o.Cruise) },
	"cruisejoin":            func(o *Observation) Value { return optLong(o.CruiseJoin) },
	"hauljoin":              func(o *Observation) Value { return optLong(o.HaulJoin) },
	"haul":                  func(o *Observation) Value { return optLong(o.Haul) },
	"stratum":               func(o *Observation) Value { return optLong(o.Stratum) },
	"station":               func(o *Observation) Value { return optString(o.Station) },
	"vessel_id":             func(o *Observation) Value { return optLong(o.VesselID) },
	"vessel_name":           func(o *Observation) Value { return optString(o.VesselName) },
	"date_time":             func(o *Observation) Value { return optString(o.DateTime) },
	"latitude_dd_start":     func(o *Observation) Value { return optDouble(o.LatitudeDDStart) },
	"longitude_dd_start":    func(o *Observation) Value { return optDouble(o.LongitudeDDStart) },
	"latitude_dd_end":       func(o *Observation) Value { return optDouble(o.LatitudeDDEnd) },
	"longitude_dd_end":      func(o *Observation) Value { return optDouble(o.LongitudeDDEnd) },
	"bottom_temperature_c":  func(o *Observation) Value { return optDouble(o.BottomTemperatureC) },
	"surface_temperature_c": func(o *Observation) Value { return optDouble(o.SurfaceTemperatureC) },
	"depth_m":               func(o *Observation) Value { return optDouble(o.DepthM) },
	"distance_fished_km":    func(o *Observation) Value { return optDouble(o.DistanceFishedKM) },
	"duration_hr":           func(o *Observation) Value { return optDouble(o.DurationHr) },
	"net_width_m":           func(o *Observation) Value { return optDouble(o.NetWidthM) },
	"net_height_m":          func(o *Observation) Value { return optDouble(o.NetHeightM) },
	"area_swept_km2":        func(o *Observation) Value { return optDouble(o.AreaSweptKM2) },
	"performance":           func(o *Observation) Value { return optDouble(o.Performance) },
	"species_code":          func(o *Observation) Value { return optLong(o.SpeciesCode) },
	"cpue_kgkm2":            func(o *Observation) Value { return optDouble(o.CpueKgKM2) },
	"cpue_nokm2":            func(o *Observation) Value { return optDouble(o.CpueNoKM2) },
	"count":                 func(o *Observation) Value { return optLong(o.Count) },
	"weight_kg":             func(o *Observation) Value { return optDouble(o.WeightKg) },
	"taxon_confidence":      func(o *Observation) Value { return optString(o.TaxonConfidence) },
	"scientific_name":       func(o *Observation) Value { return optString(o.ScientificName) },
	"common_name":           func(o *Observation) Value { return optString(o.CommonName) },
	"id_rank":               func(o *Observation) Value { return optString(o.IDRank) },
	"worms":                 func(o *Observation) Value { return optLong(o.Worms) },
	"itis":                  func(o *Observation) Value { return optLong(o.Itis) },
	"complete":              func(o *Observation) Value { return optBool(o.Complete) },
}

// Field returns the value of the named Observation field.
func (o *Observation) Field(name string) (Value, error) {
	get, ok := observationFields[name]
	if !ok {
		return Value{}, apperrors.New(apperrors.ErrUnknownField, name, "not an observation field")
	}
	return get(o), nil
}

// IsObservationField reports whether name is in ObservationSchema.
func IsObservationField(name string) bool {
	_, ok := observationFields[name]
	return ok
}
