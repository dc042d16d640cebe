package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rewired-gh/spotfit/internal/dataset"
	"github.com/rewired-gh/spotfit/internal/models"
)

var (
	filterColumns     = []string{"filter", "band", "bandpass"}
	wavelengthColumns = []string{"wavelength", "wave", "lambda"}
	widthColumns      = []string{"width", "bandwidth", "wavelength_width"}
	valueColumns      = []string{"value", "depth", "amplitude", "teff"}
	errorColumns      = []string{"error", "err", "uncertainty", "depth_err", "amplitude_err", "teff_err"}
	groupColumns      = []string{"group", "dataset"}
)

// ReadConstraints parses a constraint table into rows of one category.
// Bands come from a filter name, or from wavelength and width columns in
// microns; an explicit range wins when both are present. group is the
// default relative-depth group, overridden per row by a group column.
// Rows are not validated here; dataset.Builder does that.
func ReadConstraints(r io.Reader, category dataset.Category, group string) ([]dataset.Row, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	vi, ok := h.find(valueColumns)
	if !ok {
		return nil, errors.New("no value column")
	}
	ei, ok := h.find(errorColumns)
	if !ok {
		return nil, errors.New("no error column")
	}
	fi, hasFilter := h.find(filterColumns)
	wi, hasWave := h.find(wavelengthColumns)
	di, hasWidth := h.find(widthColumns)
	gi, hasGroup := h.find(groupColumns)

	var rows []dataset.Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		value, err := parseField(record, vi, "value")
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		sigma, err := parseField(record, ei, "error")
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var band models.Bandpass
		if hasFilter && fi < len(record) {
			band.Name = strings.TrimSpace(record[fi])
		}
		if hasWave && hasWidth && wi < len(record) && strings.TrimSpace(record[wi]) != "" {
			if band.Center, err = parseField(record, wi, "wavelength"); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if band.Width, err = parseField(record, di, "width"); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		g := group
		if hasGroup && gi < len(record) && strings.TrimSpace(record[gi]) != "" {
			g = strings.TrimSpace(record[gi])
		}

		row, err := newRow(category, band, g, value, sigma)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newRow(c dataset.Category, band models.Bandpass, group string, value, sigma float64) (dataset.Row, error) {
	switch c {
	case dataset.CategoryAmplitude:
		return dataset.AmplitudeRow{Band: band, Value: value, Error: sigma}, nil
	case dataset.CategoryTemperature:
		return dataset.TemperatureRow{Value: value, Error: sigma}, nil
	case dataset.CategoryDepth:
		return dataset.DepthRow{Band: band, Value: value, Error: sigma}, nil
	case dataset.CategoryRelativeDepth:
		return dataset.RelativeDepthRow{Group: group, Band: band, Value: value, Error: sigma}, nil
	default:
		return nil, fmt.Errorf("unknown category %q", c)
	}
}

// LoadConstraints reads a constraint table file.
func LoadConstraints(path string, category dataset.Category, group string) ([]dataset.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open constraints: %w", err)
	}
	defer f.Close()

	rows, err := ReadConstraints(f, category, group)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}
