// Package ingest reads photometry and constraint tables from delimited files.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rewired-gh/spotfit/internal/lightcurve"
	"github.com/rewired-gh/spotfit/internal/models"
)

// Accepted header names, lower-cased.
var (
	timeColumns    = []string{"time", "bjd", "hjd", "mjd", "jd"}
	magColumns     = []string{"mag", "magnitude"}
	magErrColumns  = []string{"mag_err", "magerr", "e_mag", "mag_error"}
	fluxColumns    = []string{"flux", "rel_flux"}
	fluxErrColumns = []string{"flux_err", "fluxerr", "e_flux", "flux_error"}
)

// header maps column names to indices.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	names, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	h := make(header, len(names))
	for i, n := range names {
		h[strings.ToLower(strings.TrimSpace(n))] = i
	}
	return h, nil
}

// find returns the index of the first present alias.
func (h header) find(aliases []string) (int, bool) {
	for _, a := range aliases {
		if i, ok := h[a]; ok {
			return i, true
		}
	}
	return 0, false
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return cr
}

func parseField(record []string, i int, name string) (float64, error) {
	if i >= len(record) {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", name, record[i], err)
	}
	return v, nil
}

// ReadLightCurve parses a light curve with a time column and either
// magnitudes (mag, mag_err) or fluxes (flux, flux_err). Magnitudes are
// converted to flux relative to the median magnitude. Rows are sorted by
// time.
func ReadLightCurve(r io.Reader, source string) (models.LightCurve, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return models.LightCurve{}, err
	}
	ti, ok := h.find(timeColumns)
	if !ok {
		return models.LightCurve{}, errors.New("no time column")
	}
	vi, magnitudes := h.find(magColumns)
	ei, _ := h.find(magErrColumns)
	if !magnitudes {
		if vi, ok = h.find(fluxColumns); !ok {
			return models.LightCurve{}, errors.New("no magnitude or flux column")
		}
		if ei, ok = h.find(fluxErrColumns); !ok {
			return models.LightCurve{}, errors.New("no flux error column")
		}
	} else if _, ok := h.find(magErrColumns); !ok {
		return models.LightCurve{}, errors.New("no magnitude error column")
	}

	var points []models.Point
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.LightCurve{}, fmt.Errorf("line %d: %w", line, err)
		}
		var p models.Point
		if p.Time, err = parseField(record, ti, "time"); err != nil {
			return models.LightCurve{}, fmt.Errorf("line %d: %w", line, err)
		}
		if p.Flux, err = parseField(record, vi, "value"); err != nil {
			return models.LightCurve{}, fmt.Errorf("line %d: %w", line, err)
		}
		if p.FluxError, err = parseField(record, ei, "error"); err != nil {
			return models.LightCurve{}, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return models.LightCurve{}, errors.New("no data rows")
	}

	if magnitudes {
		MagnitudesToFlux(points)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time < points[j].Time })

	lc := models.LightCurve{Source: source, Points: points}
	if err := lc.Validate(); err != nil {
		return models.LightCurve{}, err
	}
	return lc, nil
}

// MagnitudesToFlux converts Flux/FluxError holding magnitudes in place to
// flux relative to the median magnitude.
func MagnitudesToFlux(points []models.Point) {
	mags := make([]float64, len(points))
	for i, p := range points {
		mags[i] = p.Flux
	}
	ref := lightcurve.Median(mags)
	for i := range points {
		f := math.Pow(10, -0.4*(points[i].Flux-ref))
		points[i].FluxError = 0.4 * math.Ln10 * f * points[i].FluxError
		points[i].Flux = f
	}
}

// LoadLightCurve reads a light curve file.
func LoadLightCurve(path, source string) (models.LightCurve, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.LightCurve{}, fmt.Errorf("failed to open light curve: %w", err)
	}
	defer f.Close()

	lc, err := ReadLightCurve(f, source)
	if err != nil {
		return models.LightCurve{}, fmt.Errorf("%s: %w", path, err)
	}
	return lc, nil
}
