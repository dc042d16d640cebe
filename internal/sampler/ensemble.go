package sampler

import (
	"math"
	"math/rand/v2"
)

// ensemble advances walkers with the affine-invariant stretch move of
// Goodman & Weare (2010), updating walkers one at a time against the
// current positions of the others.
type ensemble struct {
	logProb func([]float64) float64
	a       float64
	rng     *rand.Rand

	pos [][]float64
	lp  []float64

	accepted int
	proposed int
}

func newEnsemble(logProb func([]float64) float64, a float64, rng *rand.Rand) *ensemble {
	return &ensemble{logProb: logProb, a: a, rng: rng}
}

// initialize scatters walkers around guess until each has a finite
// log-probability. It returns false if any walker exhausts its attempts.
func (e *ensemble) initialize(walkers int, guess, spread []float64, attempts int) bool {
	e.pos = make([][]float64, walkers)
	e.lp = make([]float64, walkers)
	for w := 0; w < walkers; w++ {
		found := false
		for try := 0; try < attempts; try++ {
			v := make([]float64, len(guess))
			for i := range v {
				v[i] = guess[i] + spread[i]*e.rng.NormFloat64()
			}
			if lp := e.logProb(v); !math.IsInf(lp, 0) && !math.IsNaN(lp) {
				e.pos[w], e.lp[w] = v, lp
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// stretch draws z from g(z) ∝ 1/√z on [1/a, a].
func (e *ensemble) stretch() float64 {
	u := e.rng.Float64()
	z := (e.a-1)*u + 1
	return z * z / e.a
}

// step proposes one move for every walker.
func (e *ensemble) step() {
	n := len(e.pos)
	dim := len(e.pos[0])
	for k := 0; k < n; k++ {
		j := e.rng.IntN(n - 1)
		if j >= k {
			j++
		}
		z := e.stretch()
		y := make([]float64, dim)
		for i := range y {
			y[i] = e.pos[j][i] + z*(e.pos[k][i]-e.pos[j][i])
		}
		lpy := e.logProb(y)
		e.proposed++
		if math.IsInf(lpy, -1) || math.IsNaN(lpy) {
			continue
		}
		lnq := float64(dim-1)*math.Log(z) + lpy - e.lp[k]
		if math.Log(e.rng.Float64()) < lnq {
			e.pos[k], e.lp[k] = y, lpy
			e.accepted++
		}
	}
}

// snapshot copies the current positions and log-probabilities.
func (e *ensemble) snapshot() ([][]float64, []float64) {
	pos := make([][]float64, len(e.pos))
	for i, p := range e.pos {
		pos[i] = append([]float64(nil), p...)
	}
	return pos, append([]float64(nil), e.lp...)
}
