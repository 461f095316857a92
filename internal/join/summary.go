package join

import "github.com/afscgap-dse/flatindex/internal/record"

// Summary counts the Observations written for one haul.
type Summary struct {
	Key        record.Key
	Path       string
	Complete   int
	Incomplete int
	Zero       int
}

// Summarize tallies observations. Zero counts rows with an explicit count of
// 0, plus the catch-less row written for a haul without a catch file. A catch
// row whose count is null is not zero.
func Summarize(key record.Key, observations []record.Observation) Summary {
	s := Summary{Key: key, Path: record.JoinedPath(key)}
	for i := range observations {
		o := &observations[i]
		if o.Complete != nil && *o.Complete {
			s.Complete++
		} else {
			s.Incomplete++
		}
		if o.CatchMeasures == (record.CatchMeasures{}) || (o.Count != nil && *o.Count == 0) {
			s.Zero++
		}
	}
	return s
}
