package likelihood

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/spotfit/internal/dataset"
	"github.com/rewired-gh/spotfit/internal/models"
	"github.com/rewired-gh/spotfit/internal/stellar"
)

func testModel(t *testing.T) *stellar.Model {
	t.Helper()
	m, err := stellar.New(stellar.Star{StellarRadius: 0.21, PlanetRadius: 2.68, LogG: 5})
	require.NoError(t, err)
	return m
}

func truth() models.Params {
	return models.Params{DeltaT: -600, TPhot: 3250, F: 0.2, DeltaF: 0.03, F1: 0.01, Offsets: map[string]float64{"wfc3": 1e-4}}
}

func fullData(t *testing.T) dataset.DataSet {
	t.Helper()
	ds, err := dataset.NewBuilder("all").Add(
		dataset.AmplitudeRow{Band: models.NamedBandpass("MEarth"), Value: 0.02, Error: 0.003},
		dataset.TemperatureRow{Value: 3150, Error: 100},
		dataset.DepthRow{Band: models.NamedBandpass("IRAC1"), Value: 0.0135, Error: 0.0003},
		dataset.RelativeDepthRow{Group: "wfc3", Band: models.NewBandpass(1.2, 0.02), Value: 0.0136, Error: 0.0002},
	).Build()
	require.NoError(t, err)
	return ds
}

func TestLogPosterior_OnlyAmplitudeAndTemperature(t *testing.T) {
	ds := fullData(t).Subset(dataset.CategoryAmplitude, dataset.CategoryTemperature)
	e, err := New(testModel(t), ds, DefaultBounds(), true)
	require.NoError(t, err)

	p := truth()
	p.Offsets = nil
	lp := e.LogPosterior(p)
	assert.False(t, math.IsInf(lp, 0) || math.IsNaN(lp), "got %v", lp)
	assert.Equal(t, []string{"bounds", "poisson", "oot", "teff"}, e.ActiveTerms())
	assert.Equal(t, 5, e.Layout().Dim())

	m := testModel(t)
	amp, err := m.Amplitude(p, models.NamedBandpass("MEarth"))
	require.NoError(t, err)
	teff, err := m.EffectiveTemperature(p)
	require.NoError(t, err)
	want := GaussianLogPDF(0.02, amp, 0.003) + GaussianLogPDF(3150, teff, 100) + PoissonPrior(p.F, p.DeltaF, p.F1)
	assert.InDelta(t, want, lp, 1e-9)
}

func TestLogPosterior_SumsCategoriesIndependently(t *testing.T) {
	ds := fullData(t)
	m := testModel(t)
	p := truth()

	full, err := New(m, ds, DefaultBounds(), false)
	require.NoError(t, err)

	var parts float64
	for _, c := range ds.Categories() {
		e, err := New(m, ds.Subset(c), DefaultBounds(), false)
		require.NoError(t, err)
		parts += e.LogLikelihood(p)
	}
	assert.InDelta(t, parts, full.LogPosterior(p), 1e-9)
	assert.Equal(t, 6, full.Layout().Dim())
}

func TestLogPosterior_BoundsGiveNegativeInfinity(t *testing.T) {
	ds := fullData(t)
	b := DefaultBounds()
	e, err := New(testModel(t), ds, b, true)
	require.NoError(t, err)

	inside := truth()
	require.False(t, math.IsInf(e.LogPosterior(inside), -1))

	mutations := map[string]func(p *models.Params){
		"temperature offset":  func(p *models.Params) { p.DeltaT = -b.MaxTemperatureOffset - 1e-9 },
		"photosphere too hot": func(p *models.Params) { p.TPhot = b.MaxTemperature + 1 },
		"f below zero":        func(p *models.Params) { p.F = -1e-12 },
		"f above one":         func(p *models.Params) { p.F = 1 + 1e-12 },
		"delta f negative":    func(p *models.Params) { p.DeltaF = -1e-12 },
		"spot too small":      func(p *models.Params) { p.F1 = b.MinSpotFraction / 2 },
		"offset too large":    func(p *models.Params) { p.Offsets["wfc3"] = b.MaxDepthOffset * 1.01 },
		"nan":                 func(p *models.Params) { p.F = math.NaN() },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := truth().Clone()
			mutate(&p)
			assert.True(t, math.IsInf(e.LogPosterior(p), -1))
		})
	}

	edge := truth()
	edge.DeltaT = -b.MaxTemperatureOffset
	assert.False(t, math.IsInf(e.LogPrior(edge), -1), "bound itself is allowed")
}

func TestLogPosterior_InvalidModelIsZeroProbability(t *testing.T) {
	e, err := New(testModel(t), fullData(t), DefaultBounds(), false)
	require.NoError(t, err)

	// Inside the bounds but f-Δf/2 < 0, which the model rejects.
	p := truth()
	p.F = 0.01
	p.DeltaF = 0.1
	assert.True(t, math.IsInf(e.LogPosterior(p), -1))
}

func TestLogProb_MatchesLogPosterior(t *testing.T) {
	e, err := New(testModel(t), fullData(t), DefaultBounds(), true)
	require.NoError(t, err)
	p := truth()
	assert.Equal(t, e.LogPosterior(p), e.LogProb(e.Layout().Vector(p)))
}

func TestPoissonPrior(t *testing.T) {
	assert.True(t, math.IsInf(PoissonPrior(0.2, 0, 0.01), -1))
	assert.True(t, math.IsInf(PoissonPrior(0, 0.01, 0.01), -1))

	// At Δf = √(f·f1) only the normalisation remains.
	sigma := math.Sqrt(0.2 * 0.01)
	assert.InDelta(t, -math.Log(sigma*poissonLogWidth)-lnSqrt2Pi, PoissonPrior(0.2, sigma, 0.01), 1e-12)

	// Integrates to one over Δf.
	var total float64
	const step = 1e-5
	for x := step / 2; x < 1; x += step {
		total += math.Exp(PoissonPrior(0.2, x, 0.01)) * step
	}
	assert.InDelta(t, 1, total, 1e-3)
}

func TestPoissonPrior_PeaksInSpotSize(t *testing.T) {
	f, deltaF := 0.2, 0.05
	peak := deltaF * deltaF / f

	tests := []struct {
		name string
		f1   float64
	}{
		{"much smaller spots", peak / 100},
		{"smaller spots", peak / 4},
		{"larger spots", peak * 4},
		{"much larger spots", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Less(t, PoissonPrior(f, deltaF, tt.f1), PoissonPrior(f, deltaF, peak))
		})
	}
	// Symmetric in ln f1 about the peak.
	assert.InDelta(t, PoissonPrior(f, deltaF, peak/3), PoissonPrior(f, deltaF, peak*3), 1e-12)
}

func TestNew_Errors(t *testing.T) {
	m := testModel(t)
	empty, err := dataset.NewBuilder("none").Build()
	require.NoError(t, err)

	_, err = New(m, empty, DefaultBounds(), true)
	assert.Error(t, err)

	_, err = New(nil, fullData(t), DefaultBounds(), true)
	assert.Error(t, err)

	bad := DefaultBounds()
	bad.MinTemperature = bad.MaxTemperature
	_, err = New(m, fullData(t), bad, true)
	assert.Error(t, err)
}

func TestGaussianLogPDF(t *testing.T) {
	assert.InDelta(t, -math.Log(math.Sqrt(2*math.Pi)), GaussianLogPDF(1, 1, 1), 1e-15)
	assert.InDelta(t, -0.5-math.Log(2)-lnSqrt2Pi, GaussianLogPDF(3, 1, 2), 1e-15)
}
