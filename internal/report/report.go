// Package report writes run results to disk: a JSON run report and CSV
// exports of binned light curves for external plotting.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rewired-gh/spotfit/internal/diagnostics"
	"github.com/rewired-gh/spotfit/internal/lightcurve"
	"github.com/rewired-gh/spotfit/internal/models"
	"github.com/rewired-gh/spotfit/internal/sampler"
)

// Version of the report layout.
const Version = "1.0"

// LightCurveSummary records what filtering did to one light curve.
type LightCurveSummary struct {
	Source      string            `json:"source"`
	RawPoints   int               `json:"raw_points"`
	KeptPoints  int               `json:"kept_points"`
	Filter      lightcurve.Report `json:"filter"`
	BinnedFile  string            `json:"binned_file,omitempty"`
	BinnedCurve models.LightCurve `json:"binned"`
}

// Run is the full result of one analysis.
type Run struct {
	Version     string                   `json:"version"`
	Label       string                   `json:"label"`
	RunID       string                   `json:"run_id"`
	Fingerprint string                   `json:"fingerprint"`
	FromCache   bool                     `json:"from_cache"`
	SampledAt   time.Time                `json:"sampled_at"`
	WrittenAt   time.Time                `json:"written_at"`
	Walkers     int                      `json:"walkers"`
	Steps       int                      `json:"steps"`
	ActiveTerms []string                 `json:"active_terms"`
	Summaries   []models.ParamSummary    `json:"summaries"`
	Predictions []sampler.BandPrediction `json:"predictions"`
	Curves      []sampler.CurvePoint     `json:"curves"`
	Diagnostics diagnostics.Report       `json:"diagnostics"`
	LightCurves []LightCurveSummary      `json:"light_curves,omitempty"`
}

// NewRun fills the chain-derived fields of a report.
func NewRun(label string, chain *models.Chain, fromCache bool) *Run {
	return &Run{
		Version:     Version,
		Label:       label,
		RunID:       chain.RunID,
		Fingerprint: chain.Fingerprint,
		FromCache:   fromCache,
		SampledAt:   chain.CreatedAt,
		Walkers:     chain.Walkers,
		Steps:       chain.Steps,
	}
}

// WriteJSON writes the report atomically via a temp file.
func WriteJSON(path string, run *Run, dirPermissions os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	run.WrittenAt = time.Now().UTC()

	jsonData, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename report: %w", err)
	}
	return nil
}

// ReadJSON loads a report written by WriteJSON.
func ReadJSON(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &run, nil
}

// WriteLightCurveCSV writes a light curve as time,flux,flux_err rows.
func WriteLightCurveCSV(path string, lc models.LightCurve, dirPermissions os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "flux", "flux_err"}); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, p := range lc.Points {
		row := []string{formatFloat(p.Time), formatFloat(p.Flux), formatFloat(p.FluxError)}
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return f.Close()
}

// WriteCurvesCSV writes model curves as one row per wavelength.
func WriteCurvesCSV(path string, curves []sampler.CurvePoint, dirPermissions os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	_ = w.Write([]string{"wavelength", "amplitude", "amplitude_lo", "amplitude_hi", "depth", "depth_lo", "depth_hi"})
	for _, c := range curves {
		_ = w.Write([]string{
			formatFloat(c.Wavelength),
			formatFloat(c.Amplitude.Median), formatFloat(c.Amplitude.Lower), formatFloat(c.Amplitude.Upper),
			formatFloat(c.Depth.Median), formatFloat(c.Depth.Lower), formatFloat(c.Depth.Upper),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write curves: %w", err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
