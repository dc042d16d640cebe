// Package dataset holds the observational constraints of one analysis run.
//
// A DataSet maps each category (amplitude, effective temperature, absolute
// and relative transit depth) to an ordered list of rows. It is built once
// through a Builder, which rejects malformed rows, and is immutable
// afterwards: subsets, relabelled copies and faked datasets are new values.
package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/rewired-gh/spotfit/internal/models"
)

// ErrMalformedRow marks a row that cannot be used for fitting. Dropping such
// a row silently would bias the fit, so it is always fatal.
var ErrMalformedRow = errors.New("malformed input row")

// MalformedRowError locates a malformed row.
type MalformedRowError struct {
	Category Category
	Index    int
	Err      error
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed %s row %d: %v", e.Category, e.Index, e.Err)
}

func (e *MalformedRowError) Unwrap() []error {
	return []error{ErrMalformedRow, e.Err}
}

// DataSet is an immutable set of constraints.
type DataSet struct {
	label string
	rows  map[Category][]Row
}

// Label names the data subset; it is part of the sampler cache key.
func (d DataSet) Label() string {
	return d.label
}

// Categories returns the non-empty categories in canonical order.
func (d DataSet) Categories() []Category {
	var out []Category
	for _, c := range Categories {
		if len(d.rows[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Has reports whether category c has rows.
func (d DataSet) Has(c Category) bool {
	return len(d.rows[c]) > 0
}

// Rows returns a copy of the rows of category c.
func (d DataSet) Rows(c Category) []Row {
	src := d.rows[c]
	out := make([]Row, len(src))
	copy(out, src)
	return out
}

// Each calls fn for every row in canonical category order.
func (d DataSet) Each(fn func(c Category, i int, r Row)) {
	for _, c := range Categories {
		for i, r := range d.rows[c] {
			fn(c, i, r)
		}
	}
}

// Len returns the total row count.
func (d DataSet) Len() int {
	n := 0
	for _, rs := range d.rows {
		n += len(rs)
	}
	return n
}

// Empty reports whether the set has no rows.
func (d DataSet) Empty() bool {
	return d.Len() == 0
}

// Groups returns the relative-depth offset groups, sorted. Each group gets
// one free offset parameter.
func (d DataSet) Groups() []string {
	seen := map[string]bool{}
	var groups []string
	for _, r := range d.rows[CategoryRelativeDepth] {
		g := r.(RelativeDepthRow).Group
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	sort.Strings(groups)
	return groups
}

// Bands returns the distinct bandpasses used by category c, in first-seen order.
func (d DataSet) Bands(c Category) []models.Bandpass {
	seen := map[string]bool{}
	var out []models.Bandpass
	for _, r := range d.rows[c] {
		b, ok := BandOf(r)
		if !ok {
			continue
		}
		if key := b.Label(); !seen[key] {
			seen[key] = true
			out = append(out, b)
		}
	}
	return out
}

// WithLabel returns a copy carrying a different label.
func (d DataSet) WithLabel(label string) DataSet {
	return DataSet{label: label, rows: d.copyRows(Categories)}
}

// Subset returns a copy restricted to cats. The label becomes the base label
// followed by the kept categories, e.g. "all[oot+teff]".
func (d DataSet) Subset(cats ...Category) DataSet {
	keep := map[Category]bool{}
	for _, c := range cats {
		keep[c] = true
	}
	var ordered []Category
	var names []string
	for _, c := range Categories {
		if keep[c] {
			ordered = append(ordered, c)
			names = append(names, string(c))
		}
	}
	return DataSet{
		label: fmt.Sprintf("%s[%s]", d.label, strings.Join(names, "+")),
		rows:  d.copyRows(ordered),
	}
}

func (d DataSet) copyRows(cats []Category) map[Category][]Row {
	out := make(map[Category][]Row, len(cats))
	for _, c := range cats {
		if rs := d.rows[c]; len(rs) > 0 {
			out[c] = append([]Row(nil), rs...)
		}
	}
	return out
}

// Fake returns a dataset with the same rows and errors whose values are the
// predictions of pred at p. With a non-nil rng each value is perturbed by
// Gaussian noise of the row's own σ; with nil the data are noiseless.
func (d DataSet) Fake(pred Predictor, p models.Params, rng *rand.Rand) (DataSet, error) {
	out := DataSet{label: d.label + "-faked", rows: make(map[Category][]Row, len(d.rows))}
	for _, c := range Categories {
		src := d.rows[c]
		if len(src) == 0 {
			continue
		}
		faked := make([]Row, len(src))
		for i, r := range src {
			v, err := r.Predict(pred, p)
			if err != nil {
				return DataSet{}, fmt.Errorf("failed to fake %s row %d: %w", c, i, err)
			}
			if rng != nil {
				_, sigma := r.Observation()
				v += sigma * rng.NormFloat64()
			}
			faked[i] = r.withValue(v)
		}
		out.rows[c] = faked
	}
	return out, nil
}

// Digest is a stable hash of every row, so that cached chains are
// invalidated when the underlying numbers change under an unchanged label.
func (d DataSet) Digest() string {
	h := xxhash.New()
	d.Each(func(c Category, _ int, r Row) {
		v, s := r.Observation()
		band := ""
		if b, ok := BandOf(r); ok {
			band = fmt.Sprintf("%s/%.17g/%.17g", b.Name, b.Center, b.Width)
		}
		group := ""
		if rr, ok := r.(RelativeDepthRow); ok {
			group = rr.Group
		}
		fmt.Fprintf(h, "%s|%s|%s|%.17g|%.17g\n", c, band, group, v, s)
	})
	return fmt.Sprintf("%016x", h.Sum64())
}

// Builder assembles a DataSet from several sources.
type Builder struct {
	label string
	rows  map[Category][]Row
}

// NewBuilder starts a dataset with the given label.
func NewBuilder(label string) *Builder {
	return &Builder{label: label, rows: make(map[Category][]Row)}
}

// Add appends rows; each goes to its own category.
func (b *Builder) Add(rows ...Row) *Builder {
	for _, r := range rows {
		b.rows[r.Category()] = append(b.rows[r.Category()], r)
	}
	return b
}

// Build validates every row and returns the dataset. All malformed rows are
// reported together; any of them makes the build fail.
func (b *Builder) Build() (DataSet, error) {
	if strings.TrimSpace(b.label) == "" {
		return DataSet{}, errors.New("dataset label must not be empty")
	}
	var errs []error
	for _, c := range Categories {
		for i, r := range b.rows[c] {
			if err := r.Validate(); err != nil {
				errs = append(errs, &MalformedRowError{Category: c, Index: i, Err: err})
			}
		}
	}
	if len(errs) > 0 {
		return DataSet{}, errors.Join(errs...)
	}
	ds := DataSet{label: b.label, rows: make(map[Category][]Row, len(b.rows))}
	for c, rs := range b.rows {
		ds.rows[c] = append([]Row(nil), rs...)
	}
	return ds, nil
}
