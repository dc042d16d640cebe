package lightcurve

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/spotfit/internal/models"
)

// dailyWithBurst builds 40 daily points plus a burst of 35 points spaced
// 10 minutes apart, starting gap after the day-20 point.
func dailyWithBurst(gap time.Duration) models.LightCurve {
	var pts []models.Point
	for d := 0; d < 40; d++ {
		pts = append(pts, models.Point{Time: float64(d), Flux: 1, FluxError: 0.01})
		if d == 20 {
			start := 20 + DaysOf(gap)
			for k := 0; k < 35; k++ {
				pts = append(pts, models.Point{
					Time:      start + float64(k)*DaysOf(10*time.Minute),
					Flux:      0.99,
					FluxError: 0.002,
				})
			}
		}
	}
	return models.LightCurve{Source: "MEarth", Points: pts}
}

func isSubsequence(sub, full []models.Point) bool {
	j := 0
	for _, p := range full {
		if j < len(sub) && sub[j] == p {
			j++
		}
	}
	return j == len(sub)
}

func TestRemoveHighCadence_DropsBurstKeepsDaily(t *testing.T) {
	lc := dailyWithBurst(3 * time.Hour)
	require.Equal(t, 75, lc.Len())

	out, report := RemoveHighCadence(lc, DefaultClusterPoints, DefaultClusterThreshold)

	require.Equal(t, 40, out.Len())
	for d, p := range out.Points {
		assert.Equal(t, float64(d), p.Time)
	}
	assert.Equal(t, []int{21, 22, 23, 24, 25}, report.WindowStarts)
	assert.Len(t, report.Removed, 35)
	assert.Equal(t, "MEarth", out.Source)
	assert.Equal(t, 75, lc.Len(), "input must not be modified")
}

func TestRemoveHighCadence_AdjacentBurstTakesPrecedingPoint(t *testing.T) {
	tests := []struct {
		name      string
		gap       time.Duration
		wantKept  int
		wantFirst int
	}{
		{"one cadence after", 10 * time.Minute, 39, 20},
		{"just under threshold", 20 * time.Minute, 39, 20},
		{"one hour after", time.Hour, 40, 21},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, report := RemoveHighCadence(dailyWithBurst(tt.gap), DefaultClusterPoints, DefaultClusterThreshold)
			assert.Equal(t, tt.wantKept, out.Len())
			require.NotEmpty(t, report.WindowStarts)
			assert.Equal(t, tt.wantFirst, report.WindowStarts[0])
		})
	}
}

func TestRemoveHighCadence_SurveyCadenceUntouched(t *testing.T) {
	var pts []models.Point
	for i := 0; i < 100; i++ {
		pts = append(pts, models.Point{Time: float64(i) * 0.9, Flux: 1, FluxError: 0.01})
	}
	lc := models.LightCurve{Points: pts}

	out, report := RemoveHighCadence(lc, 30, 30*time.Minute)
	assert.Equal(t, lc.Points, out.Points)
	assert.Empty(t, report.Flagged)
	assert.Empty(t, report.Removed)
}

func TestRemoveHighCadence_ShortSeries(t *testing.T) {
	lc := models.LightCurve{Points: []models.Point{{Time: 0}, {Time: 0.001}, {Time: 0.002}}}
	out, report := RemoveHighCadence(lc, 3, time.Hour)
	assert.Equal(t, lc.Points, out.Points)
	assert.Empty(t, report.Removed)
}

func TestRemoveHighCadence_TailNeverStartsWindow(t *testing.T) {
	// Dense tail of exactly n points after a slow prefix holds only n-1
	// fast steps, so no window fits and nothing is removed.
	var pts []models.Point
	for i := 0; i < 10; i++ {
		pts = append(pts, models.Point{Time: float64(i)})
	}
	for k := 0; k < 5; k++ {
		pts = append(pts, models.Point{Time: 9.5 + float64(k)*DaysOf(time.Minute)})
	}
	out, _ := RemoveHighCadence(models.LightCurve{Points: pts}, 5, 30*time.Minute)
	assert.Len(t, out.Points, len(pts))
}

func TestRemoveHighCadence_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 200; trial++ {
		size := rng.IntN(120)
		times := make([]float64, size)
		for i := range times {
			times[i] = rng.Float64() * 10
		}
		sort.Float64s(times)
		pts := make([]models.Point, size)
		for i, tm := range times {
			pts[i] = models.Point{Time: tm, Flux: rng.Float64(), FluxError: 0.01}
		}
		lc := models.LightCurve{Points: pts}
		n := 1 + rng.IntN(10)

		out, report := RemoveHighCadence(lc, n, time.Duration(rng.IntN(240))*time.Minute)

		require.True(t, isSubsequence(out.Points, lc.Points), "trial %d: output is not a subsequence", trial)
		removed := size - out.Len()
		assert.Equal(t, len(report.Removed), removed)
		assert.LessOrEqual(t, removed, min(size, 2*len(report.Flagged)), "trial %d", trial)
	}
}

func TestBin_SinglePointBinsReproducePoints(t *testing.T) {
	lc := models.LightCurve{Points: []models.Point{
		{Time: 0.1, Flux: 1.01, FluxError: 0.003},
		{Time: 2.5, Flux: 0.98, FluxError: 0.004},
		{Time: 7.2, Flux: 1.00, FluxError: 0.005},
	}}
	out, err := Bin(lc, 24*time.Hour, nil)
	require.NoError(t, err)
	require.Equal(t, lc.Points, out.Points)
}

func TestBin_MedianAndPropagatedError(t *testing.T) {
	lc := models.LightCurve{Source: "TESS", Points: []models.Point{
		{Time: 0.0, Flux: 1.0, FluxError: 0.01},
		{Time: 0.2, Flux: 5.0, FluxError: 0.01},
		{Time: 0.4, Flux: 1.2, FluxError: 0.01},
		{Time: 0.6, Flux: 1.1, FluxError: 0.01},
		// day 1 is empty
		{Time: 2.1, Flux: 0.9, FluxError: 0.02},
	}}
	out, err := Bin(lc, 24*time.Hour, Median)
	require.NoError(t, err)
	require.Len(t, out.Points, 2)

	assert.InDelta(t, 0.3, out.Points[0].Time, 1e-12)
	assert.InDelta(t, 1.15, out.Points[0].Flux, 1e-12)
	assert.InDelta(t, math.Sqrt(4*0.01*0.01)/4, out.Points[0].FluxError, 1e-15)
	assert.Equal(t, models.Point{Time: 2.1, Flux: 0.9, FluxError: 0.02}, out.Points[1])
	assert.Equal(t, "TESS", out.Source)
}

func TestBin_MonotonicAndExhaustive(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	times := make([]float64, 500)
	for i := range times {
		times[i] = rng.Float64() * 60
	}
	sort.Float64s(times)
	pts := make([]models.Point, len(times))
	for i, tm := range times {
		pts[i] = models.Point{Time: tm, Flux: 1 + rng.NormFloat64()*0.01, FluxError: 0.01}
	}
	lc := models.LightCurve{Points: pts}

	width := 36 * time.Hour
	out, err := Bin(lc, width, Mean)
	require.NoError(t, err)

	for i := 1; i < out.Len(); i++ {
		assert.Less(t, out.Points[i-1].Time, out.Points[i].Time)
	}

	idx := BinIndex(lc, width)
	distinct := map[int64]int{}
	for _, b := range idx {
		distinct[b]++
	}
	total := 0
	for _, c := range distinct {
		total += c
	}
	assert.Equal(t, len(pts), total, "every point belongs to exactly one bin")
	assert.Equal(t, len(distinct), out.Len(), "one output point per non-empty bin")
}

func TestBin_Errors(t *testing.T) {
	_, err := Bin(models.LightCurve{}, 0, nil)
	assert.Error(t, err)

	unordered := models.LightCurve{Points: []models.Point{{Time: 2}, {Time: 1}}}
	_, err = Bin(unordered, time.Hour, nil)
	assert.Error(t, err)

	empty, err := Bin(models.LightCurve{Source: "x"}, time.Hour, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Points)
}

func TestMedian(t *testing.T) {
	assert.True(t, math.IsNaN(Median(nil)))
	assert.Equal(t, 3.0, Median([]float64{5, 3, 1}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
}
