package join

import "github.com/afscgap-dse/flatindex/internal/record"

// ZeroFill synthesizes one Observation for every reference species not in
// observed, in ascending species-code order. Catch magnitudes are exactly
// zero, taxon confidence is null and the rows are complete: a species looked
// for and not caught is a meaningful observation.
//
// The returned Observations share the haul's pointer fields with haul; none
// of them are written through.
func ZeroFill(haul record.HaulRecord, species *SpeciesTable, observed map[int64]struct{}) []record.Observation {
	var out []record.Observation
	for _, code := range species.Codes() {
		if _, seen := observed[code]; seen {
			continue
		}
		ref, _ := species.Lookup(code)
		out = append(out, record.Observation{
			HaulRecord: haul,
			CatchMeasures: record.CatchMeasures{
				SpeciesCode: ptr(code),
				CpueKgKM2:   ptr(0.0),
				CpueNoKM2:   ptr(0.0),
				Count:       ptr(int64(0)),
				WeightKg:    ptr(0.0),
			},
			SpeciesDescription: ref.SpeciesDescription,
			Complete:           ptr(true),
		})
	}
	return out
}

func ptr[T any](v T) *T { return &v }
