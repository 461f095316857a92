// Package summary reports the per-haul counts produced by the join stage, as
// a CSV file and optionally as rows in PostgreSQL.
package summary

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/afscgap-dse/flatindex/internal/join"
)

// Header is the first CSV row.
var Header = []string{"loc", "complete", "incomplete", "zero"}

// WriteCSV writes one row per summary, in the given order.
func WriteCSV(w io.Writer, summaries []join.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing summary header: %w", err)
	}
	for _, s := range summaries {
		row := []string{
			s.Path,
			strconv.Itoa(s.Complete),
			strconv.Itoa(s.Incomplete),
			strconv.Itoa(s.Zero),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing summary for %s: %w", s.Path, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Total aggregates a run.
type Total struct {
	Hauls      int
	Complete   int
	Incomplete int
	Zero       int
}

func Totals(summaries []join.Summary) Total {
	t := Total{Hauls: len(summaries)}
	for _, s := range summaries {
		t.Complete += s.Complete
		t.Incomplete += s.Incomplete
		t.Zero += s.Zero
	}
	return t
}
