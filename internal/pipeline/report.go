package pipeline

import (
	"fmt"
	"strings"
)

// maxReportedFailures caps the failures listed in FormatReport.
const maxReportedFailures = 20

// FormatReport renders a human-readable run summary.
func FormatReport(res *Result) string {
	var b strings.Builder
	s := res.Summary

	fmt.Fprintf(&b, "# OD Table Run: %s\n", s.RunID)
	fmt.Fprintf(&b, "Duration: %dms\n\n", s.DurationMs)

	b.WriteString("## Zones\n")
	fmt.Fprintf(&b, "- Lookup records: %d\n", s.Zones)
	fmt.Fprintf(&b, "- Geometries read: %d (non-MSA %d, invalid ID %d, no centroid %d)\n",
		s.ZoneBuild.Geometries, s.ZoneBuild.NonMSA, s.ZoneBuild.InvalidID, s.ZoneBuild.NoCentroid)
	fmt.Fprintf(&b, "- Population rows: %d (unmatched %d, duplicates %d)\n\n",
		s.ZoneBuild.Populations, s.ZoneBuild.Unmatched, s.ZoneBuild.Duplicates)

	b.WriteString("## Trips\n")
	fmt.Fprintf(&b, "- Batches: %d (%d failed)\n", s.Batches, s.FailedBatches)
	fmt.Fprintf(&b, "- Rows read: %d\n", s.RowsRead)
	fmt.Fprintf(&b, "- Rows outside MSAs: %d\n", s.RowsFiltered)
	fmt.Fprintf(&b, "- Rows without a zone: %d\n", s.RowsUnmatched)
	fmt.Fprintf(&b, "- OD rows written: %d\n", s.RowsOutput)
	fmt.Fprintf(&b, "- Total passengers: %.0f\n", s.TotalPassengers)
	fmt.Fprintf(&b, "- Mean trip distance: %.2f %s (max %.2f)\n\n", s.MeanDistance, s.Unit, s.MaxDistance)

	b.WriteString("## Exceptions\n")
	if len(res.Failures) == 0 {
		b.WriteString("None.\n")
		return b.String()
	}
	for i, f := range res.Failures {
		if i == maxReportedFailures {
			fmt.Fprintf(&b, "- ... %d more\n", len(res.Failures)-maxReportedFailures)
			break
		}
		fmt.Fprintf(&b, "- batch %d [%s]: %s\n", f.Index, f.Kind, f.Message)
	}
	return b.String()
}
