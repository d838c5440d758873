package grid

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
)

// Report is the run summary, returned by value from Run instead of
// being accumulated in shared counters. Human-readable and diagnostic
// only; distances use the constant 111 km/degree approximation.
type Report struct {
	Bound       orb.Bound
	Spacing     float64
	Cols        int
	Rows        int
	Candidates  int64
	Generated   int64
	Accepted    int64
	Dispatched  int64
	AreaKm2     float64
	Filtered    bool
	Incremental bool
	Duration    time.Duration
}

func (r *Report) SpacingMeters() float64 {
	return r.Spacing * metersPerDegree
}

func (r *Report) Mode() string {
	if r.Incremental {
		return "incremental"
	}
	return "batch"
}

func (r *Report) String() string {
	var sb strings.Builder
	line := strings.Repeat("=", 60) + "\n"

	sb.WriteString(line)
	sb.WriteString("grid run summary\n")
	sb.WriteString(line)
	fmt.Fprintf(&sb, "bounding box:     [%v, %v, %v, %v]\n",
		r.Bound.Min[0], r.Bound.Min[1], r.Bound.Max[0], r.Bound.Max[1])
	fmt.Fprintf(&sb, "spacing:          %g deg (~%.1f m)\n", r.Spacing, r.SpacingMeters())
	fmt.Fprintf(&sb, "grid size:        %d x %d points\n", r.Cols, r.Rows)
	fmt.Fprintf(&sb, "candidate points: %s\n", humanize.Comma(r.Candidates))
	if r.Filtered {
		fmt.Fprintf(&sb, "accepted points:  %s (country filter applied)\n", humanize.Comma(r.Accepted))
	}
	fmt.Fprintf(&sb, "dispatched:       %s\n", humanize.Comma(r.Dispatched))
	fmt.Fprintf(&sb, "coverage area:    ~%.2f km2 (constant 111 km/deg approximation)\n", r.AreaKm2)
	fmt.Fprintf(&sb, "mode:             %s\n", r.Mode())
	if r.Duration > 0 {
		fmt.Fprintf(&sb, "duration:         %s\n", r.Duration.Round(time.Millisecond))
	}
	sb.WriteString(line)
	return sb.String()
}
