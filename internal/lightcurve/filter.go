// Package lightcurve prepares long-baseline photometry for summary statistics.
//
// Survey photometry is sampled at a slow, roughly regular cadence, but the same
// series often embeds short bursts of targeted follow-up (for example transit
// observations at minute cadence). RemoveHighCadence strips those bursts so
// they do not dominate per-night statistics, and Bin reduces the remaining
// points to a robust fixed-width summary series.
package lightcurve

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rewired-gh/spotfit/internal/models"
)

// Defaults for RemoveHighCadence.
const (
	DefaultClusterPoints    = 30
	DefaultClusterThreshold = 30 * time.Minute
)

const secondsPerDay = 86400.0

// DaysOf converts a duration to days, the time unit of light curves.
func DaysOf(d time.Duration) float64 {
	return d.Seconds() / secondsPerDay
}

// Report describes what RemoveHighCadence dropped.
type Report struct {
	WindowStarts []int `json:"window_starts"` // indices i whose forward window [i, i+n] is high cadence
	Flagged      []int `json:"flagged"`       // indices inside a high-cadence window, far end excluded
	Removed      []int `json:"removed"`       // Flagged plus the far end i+n of each window, ascending
}

// RemoveHighCadence drops clusters of densely sampled points.
//
// A forward window [i, i+n] is high cadence when every step inside it is
// shorter than threshold. Each index in such a window other than its far end
// is flagged as "followed by high cadence", and the far end i+n is excluded
// along with it. Windows running past the end of the series are never
// evaluated, so the last n points only go when an earlier window reaches them.
//
// The result is a subsequence of lc in original order. At most
// min(len, 2×flagged) points are removed.
//
// The rule only sees step lengths, so a survey point closer than threshold
// to the start of a burst is indistinguishable from the burst and goes with
// it. Bursts must be separated from the survey cadence by at least threshold
// for every survey point to survive.
func RemoveHighCadence(lc models.LightCurve, n int, threshold time.Duration) (models.LightCurve, Report) {
	var report Report
	total := len(lc.Points)
	if n < 1 || total <= n {
		return lc.Clone(), report
	}

	limit := DaysOf(threshold)
	fast := make([]bool, total-1) // fast[j]: step j -> j+1 is below threshold
	for j := 0; j < total-1; j++ {
		fast[j] = lc.Points[j+1].Time-lc.Points[j].Time < limit
	}

	// run counts consecutive fast steps starting at j.
	run := make([]int, total)
	for j := total - 2; j >= 0; j-- {
		if fast[j] {
			run[j] = run[j+1] + 1
		}
	}

	flagged := make([]bool, total)
	removed := make([]bool, total)
	for i := 0; i+n < total; i++ {
		if run[i] < n {
			continue
		}
		report.WindowStarts = append(report.WindowStarts, i)
		for k := i; k < i+n; k++ {
			flagged[k] = true
			removed[k] = true
		}
		removed[i+n] = true
	}

	kept := make([]models.Point, 0, total)
	for i, p := range lc.Points {
		if flagged[i] {
			report.Flagged = append(report.Flagged, i)
		}
		if removed[i] {
			report.Removed = append(report.Removed, i)
			continue
		}
		kept = append(kept, p)
	}

	return models.LightCurve{Source: lc.Source, Points: kept}, report
}

// Aggregator reduces the values falling in one bin to a single value.
type Aggregator func(values []float64) float64

// Median is the default, outlier-robust aggregator. For an even count it
// averages the two middle values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Mean is the arithmetic mean aggregator.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Bin groups points into fixed-width, non-overlapping bins anchored at the
// first point's time and aggregates each bin into one point. Time and flux
// go through agg (Median when nil); the error is propagated as sqrt(Σσ²)/n.
// Empty bins produce no output, so the result never contains placeholders.
func Bin(lc models.LightCurve, width time.Duration, agg Aggregator) (models.LightCurve, error) {
	if width <= 0 {
		return models.LightCurve{}, fmt.Errorf("invalid bin width %v: must be positive", width)
	}
	if agg == nil {
		agg = Median
	}
	out := models.LightCurve{Source: lc.Source}
	if len(lc.Points) == 0 {
		return out, nil
	}

	w := DaysOf(width)
	anchor := lc.Points[0].Time

	var (
		current = int64(math.MinInt64)
		times   []float64
		fluxes  []float64
		sumVar  float64
	)
	flush := func() {
		if len(times) == 0 {
			return
		}
		n := float64(len(times))
		out.Points = append(out.Points, models.Point{
			Time:      agg(times),
			Flux:      agg(fluxes),
			FluxError: math.Sqrt(sumVar) / n,
		})
		times, fluxes, sumVar = times[:0], fluxes[:0], 0
	}

	for i, p := range lc.Points {
		if i > 0 && p.Time < lc.Points[i-1].Time {
			return models.LightCurve{}, fmt.Errorf("point %d is out of time order", i)
		}
		idx := int64(math.Floor((p.Time - anchor) / w))
		if idx != current {
			flush()
			current = idx
		}
		times = append(times, p.Time)
		fluxes = append(fluxes, p.Flux)
		sumVar += p.FluxError * p.FluxError
	}
	flush()

	return out, nil
}

// BinIndex returns the bin each point of lc would be assigned to by Bin.
func BinIndex(lc models.LightCurve, width time.Duration) []int64 {
	if len(lc.Points) == 0 || width <= 0 {
		return nil
	}
	w := DaysOf(width)
	anchor := lc.Points[0].Time
	idx := make([]int64, len(lc.Points))
	for i, p := range lc.Points {
		idx[i] = int64(math.Floor((p.Time - anchor) / w))
	}
	return idx
}
