// Package analysis wires configuration, inputs, sampler and reports into a
// single run.
package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rewired-gh/spotfit/internal/config"
	"github.com/rewired-gh/spotfit/internal/dataset"
	"github.com/rewired-gh/spotfit/internal/ingest"
	"github.com/rewired-gh/spotfit/internal/lightcurve"
	"github.com/rewired-gh/spotfit/internal/likelihood"
	"github.com/rewired-gh/spotfit/internal/logger"
	"github.com/rewired-gh/spotfit/internal/models"
	"github.com/rewired-gh/spotfit/internal/report"
	"github.com/rewired-gh/spotfit/internal/sampler"
	"github.com/rewired-gh/spotfit/internal/stellar"
)

// Settings converts configuration into sampler settings.
func Settings(cfg *config.Config) sampler.Settings {
	s := sampler.DefaultSettings()
	s.Star = stellar.Star{
		StellarRadius: cfg.Star.StellarRadius,
		PlanetRadius:  cfg.Star.PlanetRadius,
		LogG:          cfg.Star.LogG,
	}
	s.Bounds = likelihood.Bounds{
		MaxTemperatureOffset: cfg.Model.MaxTemperatureOffset,
		MinTemperature:       cfg.Model.MinTemperature,
		MaxTemperature:       cfg.Model.MaxTemperature,
		MinSpotFraction:      cfg.Model.MinSpotFraction,
		MaxSpotFraction:      cfg.Model.MaxSpotFraction,
		MaxDepthOffset:       cfg.Model.MaxDepthOffset,
	}
	s.IncludePoisson = cfg.Model.IncludePoisson
	s.QuadratureNodes = cfg.Model.QuadratureNodes
	s.Walkers = cfg.Sampler.Walkers
	s.Seed = cfg.Sampler.Seed
	s.MaxSteps = cfg.Sampler.MaxSteps
	s.StretchScale = cfg.Sampler.StretchScale
	s.InitAttempts = cfg.Sampler.InitAttempts
	s.CredibleLevel = cfg.Sampler.CredibleLevel
	g := cfg.Sampler.Guess
	s.Guess = models.Params{DeltaT: g.DeltaT, TPhot: g.TPhot, F: g.F, DeltaF: g.DeltaF, F1: g.F1}
	sp := cfg.Sampler.Spread
	s.Spread = models.Params{DeltaT: sp.DeltaT, TPhot: sp.TPhot, F: sp.F, DeltaF: sp.DeltaF, F1: sp.F1}
	return s
}

// Aggregator returns the bin aggregator named in the configuration.
func Aggregator(name string) lightcurve.Aggregator {
	if strings.EqualFold(name, "mean") {
		return lightcurve.Mean
	}
	return lightcurve.Median
}

// Model builds the stellar model the sampler will use for these settings.
func Model(s sampler.Settings) (*stellar.Model, error) {
	m, err := stellar.New(s.Star)
	if err != nil {
		return nil, err
	}
	m.Spectrum = stellar.Blackbody{Nodes: s.QuadratureNodes}
	return m, nil
}

// LoadDataSet reads every constraint table and restricts the result to the
// configured categories.
func LoadDataSet(cfg *config.Config) (dataset.DataSet, error) {
	b := dataset.NewBuilder(cfg.Data.Label)
	for _, src := range cfg.Data.Constraints {
		c, err := dataset.ParseCategory(src.Category)
		if err != nil {
			return dataset.DataSet{}, fmt.Errorf("constraint table %s: %w", src.Path, err)
		}
		rows, err := ingest.LoadConstraints(src.Path, c, src.Group)
		if err != nil {
			return dataset.DataSet{}, err
		}
		logger.Debug("Loaded %d %s rows from %s", len(rows), c, src.Path)
		b.Add(rows...)
	}
	ds, err := b.Build()
	if err != nil {
		return dataset.DataSet{}, fmt.Errorf("failed to build dataset: %w", err)
	}
	if len(cfg.Sampler.Categories) == 0 {
		return ds, nil
	}
	cats := make([]dataset.Category, 0, len(cfg.Sampler.Categories))
	for _, name := range cfg.Sampler.Categories {
		c, err := dataset.ParseCategory(name)
		if err != nil {
			return dataset.DataSet{}, fmt.Errorf("sampler.categories: %w", err)
		}
		cats = append(cats, c)
	}
	return ds.Subset(cats...), nil
}

// PrepareLightCurves declusters and bins every configured light curve and
// writes the binned series next to the report.
func PrepareLightCurves(cfg *config.Config) ([]report.LightCurveSummary, error) {
	perm := os.FileMode(cfg.Output.DirPermission)
	agg := Aggregator(cfg.Filter.Aggregate)
	var out []report.LightCurveSummary
	for _, src := range cfg.Data.LightCurves {
		source := src.Source
		if source == "" {
			source = strings.TrimSuffix(filepath.Base(src.Path), filepath.Ext(src.Path))
		}
		raw, err := ingest.LoadLightCurve(src.Path, source)
		if err != nil {
			return nil, err
		}
		kept, rep := lightcurve.RemoveHighCadence(raw, cfg.Filter.ClusterPoints, cfg.Filter.ClusterThreshold)
		binned, err := lightcurve.Bin(kept, cfg.Filter.BinWidth, agg)
		if err != nil {
			return nil, fmt.Errorf("failed to bin %s: %w", source, err)
		}
		logger.Info("Light curve %s: %d points, %d removed as high cadence, %d bins", source, raw.Len(), len(rep.Removed), binned.Len())

		file := filepath.Join(cfg.Output.Dir, FileName(source)+"-binned.csv")
		if err := report.WriteLightCurveCSV(file, binned, perm); err != nil {
			return nil, err
		}
		out = append(out, report.LightCurveSummary{
			Source:      source,
			RawPoints:   raw.Len(),
			KeptPoints:  kept.Len(),
			Filter:      rep,
			BinnedFile:  file,
			BinnedCurve: binned,
		})
	}
	return out, nil
}

// Run performs a full analysis and writes its report. A nil cache disables
// chain caching.
func Run(ctx context.Context, cfg *config.Config, cache sampler.ChainCache) (*report.Run, error) {
	lightCurves, err := PrepareLightCurves(cfg)
	if err != nil {
		return nil, err
	}
	ds, err := LoadDataSet(cfg)
	if err != nil {
		return nil, err
	}

	orch := sampler.New(cache)
	if err := orch.Configure(ds, Settings(cfg)); err != nil {
		return nil, err
	}
	chain, err := orch.Sample(ctx, cfg.Sampler.BurnIn, cfg.Sampler.Production)
	if err != nil {
		return nil, err
	}

	run := report.NewRun(ds.Label(), chain, orch.FromCache())
	run.ActiveTerms = orch.ActiveTerms()
	run.LightCurves = lightCurves
	if run.Summaries, err = orch.Summaries(); err != nil {
		return nil, err
	}
	if run.Predictions, err = orch.BandPredictions(); err != nil {
		return nil, err
	}
	if run.Curves, err = orch.Curves(cfg.CurveGrid(), cfg.Output.CurveWidth); err != nil {
		return nil, err
	}
	if run.Diagnostics, err = orch.Diagnostics(); err != nil {
		return nil, err
	}
	for _, w := range run.Diagnostics.Warnings {
		logger.Warn("Diagnostics: %s", w)
	}
	for _, s := range run.Summaries {
		logger.Info("%s = %.5g (%.5g to %.5g)", s.Name, s.Median, s.Lower, s.Upper)
	}

	perm := os.FileMode(cfg.Output.DirPermission)
	base := filepath.Join(cfg.Output.Dir, FileName(ds.Label()))
	if err := report.WriteCurvesCSV(base+"-curves.csv", run.Curves, perm); err != nil {
		return nil, err
	}
	if err := report.WriteJSON(base+".json", run, perm); err != nil {
		return nil, err
	}
	logger.Info("Report written to %s.json", base)
	return run, nil
}

// FileName turns a label into a safe file name stem.
func FileName(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "run"
	}
	return b.String()
}
