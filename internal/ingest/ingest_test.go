package ingest

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/spotfit/internal/dataset"
	"github.com/rewired-gh/spotfit/internal/models"
)

func TestReadLightCurve_Magnitudes(t *testing.T) {
	in := `# MEarth photometry
bjd, mag, mag_err, airmass
2455002.0, 12.00, 0.01, 1.1
2455001.0, 12.10, 0.01, 1.2
2455003.0, 11.90, 0.02, 1.0
`
	lc, err := ReadLightCurve(strings.NewReader(in), "MEarth")
	require.NoError(t, err)
	require.Equal(t, 3, lc.Len())
	assert.Equal(t, "MEarth", lc.Source)
	assert.Equal(t, []float64{2455001, 2455002, 2455003}, lc.Times())

	// Median magnitude maps to unit flux; fainter is less flux.
	assert.InDelta(t, 1.0, lc.Points[1].Flux, 1e-12)
	assert.InDelta(t, math.Pow(10, -0.04), lc.Points[0].Flux, 1e-12)
	assert.Greater(t, lc.Points[2].Flux, 1.0)
	assert.InDelta(t, 0.4*math.Ln10*0.01, lc.Points[1].FluxError, 1e-12)
}

func TestReadLightCurve_Flux(t *testing.T) {
	in := "time,flux,flux_err\n1,1.01,0.001\n2,0.99,0.001\n"
	lc, err := ReadLightCurve(strings.NewReader(in), "TESS")
	require.NoError(t, err)
	assert.Equal(t, 1.01, lc.Points[0].Flux)
	assert.Equal(t, 0.001, lc.Points[1].FluxError)
}

func TestReadLightCurve_Errors(t *testing.T) {
	tests := map[string]string{
		"no time":      "mag,mag_err\n1,0.1\n",
		"no values":    "time,airmass\n1,1\n",
		"no mag error": "time,mag\n1,12\n",
		"bad number":   "time,flux,flux_err\n1,abc,0.1\n",
		"empty":        "time,flux,flux_err\n",
		"nan error":    "time,flux,flux_err\n1,1,NaN\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadLightCurve(strings.NewReader(in), "x")
			assert.Error(t, err)
		})
	}
}

func TestReadConstraints(t *testing.T) {
	in := `filter,wavelength,width,depth,depth_err,group
,1.15,0.02,0.0136,0.0002,wfc3
,1.17,0.02,0.0137,0.0002,
IRAC1,,,0.0135,0.0003,
`
	rows, err := ReadConstraints(strings.NewReader(in), dataset.CategoryRelativeDepth, "default")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0].(dataset.RelativeDepthRow)
	assert.Equal(t, "wfc3", first.Group)
	assert.Equal(t, models.NewBandpass(1.15, 0.02), first.Band)
	assert.Equal(t, "default", rows[1].(dataset.RelativeDepthRow).Group)
	assert.Equal(t, "IRAC1", rows[2].(dataset.RelativeDepthRow).Band.Name)

	ds, err := dataset.NewBuilder("hst").Add(rows...).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "wfc3"}, ds.Groups())
}

func TestReadConstraints_Categories(t *testing.T) {
	amp, err := ReadConstraints(strings.NewReader("filter,amplitude,amplitude_err\nMEarth,0.02,0.003\n"), dataset.CategoryAmplitude, "")
	require.NoError(t, err)
	assert.IsType(t, dataset.AmplitudeRow{}, amp[0])

	teff, err := ReadConstraints(strings.NewReader("value,error\n3150,100\n"), dataset.CategoryTemperature, "")
	require.NoError(t, err)
	obs, sigma := teff[0].Observation()
	assert.Equal(t, 3150.0, obs)
	assert.Equal(t, 100.0, sigma)

	_, err = ReadConstraints(strings.NewReader("value,error\n1,1\n"), dataset.Category("bogus"), "")
	assert.Error(t, err)
	_, err = ReadConstraints(strings.NewReader("filter,value\nJ,1\n"), dataset.CategoryDepth, "")
	assert.Error(t, err)
}

func TestReadConstraints_UnresolvableBandIsMalformed(t *testing.T) {
	rows, err := ReadConstraints(strings.NewReader("filter,depth,depth_err\nnope,0.01,0.001\n"), dataset.CategoryDepth, "")
	require.NoError(t, err)
	_, err = dataset.NewBuilder("bad").Add(rows...).Build()
	assert.ErrorIs(t, err, dataset.ErrMalformedRow)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	lcPath := filepath.Join(dir, "lc.csv")
	require.NoError(t, os.WriteFile(lcPath, []byte("time,mag,mag_err\n1,12,0.01\n"), 0o644))
	lc, err := LoadLightCurve(lcPath, "MEarth")
	require.NoError(t, err)
	assert.Equal(t, 1, lc.Len())

	_, err = LoadConstraints(filepath.Join(dir, "missing.csv"), dataset.CategoryDepth, "")
	assert.Error(t, err)
}
