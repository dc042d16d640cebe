package sampler

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/spotfit/internal/dataset"
	"github.com/rewired-gh/spotfit/internal/models"
)

// maxCurveDraws caps the posterior draws used to reconstruct model curves.
const maxCurveDraws = 500

// Interval is a median with a credible interval.
type Interval struct {
	Median float64 `json:"median"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// CurvePoint is the posterior model prediction at one wavelength.
type CurvePoint struct {
	Wavelength float64  `json:"wavelength"` // microns
	Amplitude  Interval `json:"amplitude"`
	Depth      Interval `json:"depth"`
}

// BandPrediction is the posterior prediction for one data row, for overlay
// against the observed value.
type BandPrediction struct {
	Category dataset.Category `json:"category"`
	Band     string           `json:"band,omitempty"`
	Group    string           `json:"group,omitempty"`
	Observed float64          `json:"observed"`
	Error    float64          `json:"error"`
	Interval
}

// interval summarises values; ok is false when none are finite.
func interval(values []float64, level float64) (Interval, bool) {
	finite := values[:0:0]
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return Interval{}, false
	}
	sort.Float64s(finite)
	tail := (1 - level) / 2
	return Interval{
		Median: stat.Quantile(0.5, stat.Empirical, finite, nil),
		Lower:  stat.Quantile(tail, stat.Empirical, finite, nil),
		Upper:  stat.Quantile(1-tail, stat.Empirical, finite, nil),
	}, true
}

// Summaries returns the marginal median and credible interval of every
// parameter.
func (o *Orchestrator) Summaries() ([]models.ParamSummary, error) {
	if err := o.requireChain(); err != nil {
		return nil, err
	}
	level := o.settings.CredibleLevel
	out := make([]models.ParamSummary, 0, len(o.chain.ParamNames))
	for i, name := range o.chain.ParamNames {
		iv, _ := interval(o.chain.Column(i), level)
		out = append(out, models.ParamSummary{Name: name, Median: iv.Median, Lower: iv.Lower, Upper: iv.Upper, Level: level})
	}
	return out, nil
}

// draws returns up to maxCurveDraws evenly spaced posterior samples.
func (o *Orchestrator) draws() []models.Params {
	layout := o.engine.Layout()
	n := len(o.chain.Samples)
	stride := 1
	if n > maxCurveDraws {
		stride = n / maxCurveDraws
	}
	out := make([]models.Params, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		out = append(out, layout.Params(o.chain.Samples[i]))
	}
	return out
}

// Curves reconstructs amplitude and depth over a wavelength grid in
// microns, each band of the given width.
func (o *Orchestrator) Curves(grid []float64, width float64) ([]CurvePoint, error) {
	if err := o.requireChain(); err != nil {
		return nil, err
	}
	params := o.draws()
	amps := make([]float64, len(params))
	depths := make([]float64, len(params))
	out := make([]CurvePoint, 0, len(grid))
	for _, lambda := range grid {
		band := models.NewBandpass(lambda, width)
		for k, p := range params {
			amps[k] = predictOrNaN(o.model.Amplitude(p, band))
			depths[k] = predictOrNaN(o.model.Depth(p, band))
		}
		amp, okA := interval(amps, o.settings.CredibleLevel)
		depth, okD := interval(depths, o.settings.CredibleLevel)
		if !okA && !okD {
			continue
		}
		out = append(out, CurvePoint{Wavelength: lambda, Amplitude: amp, Depth: depth})
	}
	return out, nil
}

// BandPredictions returns the posterior prediction for every data row.
func (o *Orchestrator) BandPredictions() ([]BandPrediction, error) {
	if err := o.requireChain(); err != nil {
		return nil, err
	}
	params := o.draws()
	values := make([]float64, len(params))
	var out []BandPrediction
	o.data.Each(func(c dataset.Category, _ int, r dataset.Row) {
		for k, p := range params {
			values[k] = predictOrNaN(r.Predict(o.model, p))
		}
		iv, ok := interval(values, o.settings.CredibleLevel)
		if !ok {
			return
		}
		obs, sigma := r.Observation()
		bp := BandPrediction{Category: c, Observed: obs, Error: sigma, Interval: iv}
		if band, ok := dataset.BandOf(r); ok {
			bp.Band = band.Label()
		}
		if rd, ok := r.(dataset.RelativeDepthRow); ok {
			bp.Group = rd.Group
		}
		out = append(out, bp)
	})
	return out, nil
}

func predictOrNaN(v float64, err error) float64 {
	if err != nil {
		return math.NaN()
	}
	return v
}
