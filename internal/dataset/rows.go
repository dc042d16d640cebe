package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rewired-gh/spotfit/internal/models"
)

// Category names a kind of constraint.
type Category string

const (
	CategoryAmplitude     Category = "oot"
	CategoryTemperature   Category = "teff"
	CategoryDepth         Category = "depth"
	CategoryRelativeDepth Category = "relative-depth"
)

// Categories lists every category in canonical order.
var Categories = []Category{CategoryAmplitude, CategoryTemperature, CategoryDepth, CategoryRelativeDepth}

// ParseCategory accepts the canonical names and a few spelled-out aliases.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oot", "amplitude":
		return CategoryAmplitude, nil
	case "teff", "temperature":
		return CategoryTemperature, nil
	case "depth":
		return CategoryDepth, nil
	case "relative-depth", "relative_depth", "reldepth":
		return CategoryRelativeDepth, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Predictor produces model values for each observable.
type Predictor interface {
	Amplitude(p models.Params, band models.Bandpass) (float64, error)
	EffectiveTemperature(p models.Params) (float64, error)
	Depth(p models.Params, band models.Bandpass) (float64, error)
	RelativeDepth(p models.Params, group string, band models.Bandpass) (float64, error)
}

// Row is one constraint. The set of implementations is closed: each
// category has exactly one row type and its own prediction function, but all
// of them compose the same way in the likelihood sum.
type Row interface {
	Category() Category
	// Observation returns the measured value and its 1σ error.
	Observation() (value, sigma float64)
	Predict(pred Predictor, p models.Params) (float64, error)
	Validate() error
	withValue(v float64) Row
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func checkRow(row any, band *models.Bandpass, value float64) error {
	if err := validate.Struct(row); err != nil {
		return err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("value %v is not finite", value)
	}
	if band != nil {
		if _, err := band.Resolve(); err != nil {
			return err
		}
	}
	return nil
}

// AmplitudeRow is a peak-to-peak out-of-transit modulation amplitude.
type AmplitudeRow struct {
	Band  models.Bandpass `json:"band"`
	Value float64         `json:"value" validate:"gte=0"`
	Error float64         `json:"error" validate:"gt=0"`
}

func (r AmplitudeRow) Category() Category              { return CategoryAmplitude }
func (r AmplitudeRow) Observation() (float64, float64) { return r.Value, r.Error }
func (r AmplitudeRow) Validate() error                 { return checkRow(r, &r.Band, r.Value) }
func (r AmplitudeRow) withValue(v float64) Row         { r.Value = v; return r }
func (r AmplitudeRow) Predict(pred Predictor, p models.Params) (float64, error) {
	return pred.Amplitude(p, r.Band)
}

// TemperatureRow is a spectroscopic effective temperature in Kelvin.
type TemperatureRow struct {
	Value float64 `json:"value" validate:"gt=0"`
	Error float64 `json:"error" validate:"gt=0"`
}

func (r TemperatureRow) Category() Category              { return CategoryTemperature }
func (r TemperatureRow) Observation() (float64, float64) { return r.Value, r.Error }
func (r TemperatureRow) Validate() error                 { return checkRow(r, nil, r.Value) }
func (r TemperatureRow) withValue(v float64) Row         { r.Value = v; return r }
func (r TemperatureRow) Predict(pred Predictor, p models.Params) (float64, error) {
	return pred.EffectiveTemperature(p)
}

// DepthRow is an absolutely calibrated transit depth.
type DepthRow struct {
	Band  models.Bandpass `json:"band"`
	Value float64         `json:"value" validate:"gt=0"`
	Error float64         `json:"error" validate:"gt=0"`
}

func (r DepthRow) Category() Category              { return CategoryDepth }
func (r DepthRow) Observation() (float64, float64) { return r.Value, r.Error }
func (r DepthRow) Validate() error                 { return checkRow(r, &r.Band, r.Value) }
func (r DepthRow) withValue(v float64) Row         { r.Value = v; return r }
func (r DepthRow) Predict(pred Predictor, p models.Params) (float64, error) {
	return pred.Depth(p, r.Band)
}

// RelativeDepthRow is a transit depth known only up to an additive offset
// shared by every row of the same Group.
type RelativeDepthRow struct {
	Group string          `json:"group" validate:"required"`
	Band  models.Bandpass `json:"band"`
	Value float64         `json:"value"`
	Error float64         `json:"error" validate:"gt=0"`
}

func (r RelativeDepthRow) Category() Category              { return CategoryRelativeDepth }
func (r RelativeDepthRow) Observation() (float64, float64) { return r.Value, r.Error }
func (r RelativeDepthRow) Validate() error                 { return checkRow(r, &r.Band, r.Value) }
func (r RelativeDepthRow) withValue(v float64) Row         { r.Value = v; return r }
func (r RelativeDepthRow) Predict(pred Predictor, p models.Params) (float64, error) {
	return pred.RelativeDepth(p, r.Group, r.Band)
}

// BandOf returns the row's bandpass and whether it has one.
func BandOf(r Row) (models.Bandpass, bool) {
	switch v := r.(type) {
	case AmplitudeRow:
		return v.Band, true
	case DepthRow:
		return v.Band, true
	case RelativeDepthRow:
		return v.Band, true
	}
	return models.Bandpass{}, false
}
