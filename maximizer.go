package fabolas

import (
	"math"
	"math/rand/v2"
	"sort"
)

//////
// DIRECT.
//////

// Direct maximizes a function with the DIRECT (dividing rectangles)
// algorithm: the box is split into thirds along its longest sides, and at
// every iteration the potentially optimal rectangles, those on the lower
// right convex hull of (size, value), are divided further.
//
// Usage example:
//
//	best := (&Direct{MaxEvaluations: 400}).Maximize(f, lower, upper)
type Direct struct {
	// MaxEvaluations is the function evaluation budget. Default 400.
	MaxEvaluations int

	// MaxIterations caps the number of division rounds. Default 200.
	MaxIterations int
}

// rectangle is a hyperrectangle of the unit cube. Side i has length
// 3^-levels[i].
type rectangle struct {
	center []float64
	levels []int
	value  float64
	size   float64
}

func (r *rectangle) computeSize() {
	var sum float64
	for _, l := range r.levels {
		side := math.Pow(3, -float64(l))
		sum += side * side
	}
	r.size = 0.5 * math.Sqrt(sum)
}

// Maximize implements Maximizer.
func (d *Direct) Maximize(f func(x []float64) float64, lower, upper []float64) []float64 {
	maxEvals := d.MaxEvaluations
	if maxEvals <= 0 {
		maxEvals = 400
	}
	maxIters := d.MaxIterations
	if maxIters <= 0 {
		maxIters = 200
	}

	dims := len(lower)
	scale := func(u []float64) []float64 {
		x := make([]float64, dims)
		for i := range x {
			x[i] = lower[i] + u[i]*(upper[i]-lower[i])
		}
		return x
	}

	evals := 0
	// DIRECT minimizes, undefined values are pushed to the back.
	eval := func(u []float64) float64 {
		evals++
		v := f(scale(u))
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return -v
	}

	center := make([]float64, dims)
	for i := range center {
		center[i] = 0.5
	}
	first := &rectangle{center: center, levels: make([]int, dims)}
	first.value = eval(center)
	first.computeSize()

	rects := []*rectangle{first}
	best := first

	for iter := 0; iter < maxIters && evals < maxEvals; iter++ {
		for _, r := range potentiallyOptimal(rects) {
			if evals >= maxEvals {
				break
			}

			children := divide(r, eval)
			for _, c := range children {
				if c.value < best.value {
					best = c
				}
			}
			rects = append(rects, children...)
		}
	}

	x := scale(best.center)
	clampVec(x, lower, upper)

	return x
}

// divide splits r along all of its longest sides, the side with the best
// sampled value first so that it ends up in the largest rectangle.
func divide(r *rectangle, eval func([]float64) float64) []*rectangle {
	minLevel := r.levels[0]
	for _, l := range r.levels {
		minLevel = min(minLevel, l)
	}

	delta := math.Pow(3, -float64(minLevel+1))

	type probe struct {
		dim         int
		left, right *rectangle
		best        float64
	}

	var probes []probe
	for i, l := range r.levels {
		if l != minLevel {
			continue
		}

		left := &rectangle{center: cloneVec(r.center)}
		left.center[i] -= delta
		left.value = eval(left.center)

		right := &rectangle{center: cloneVec(r.center)}
		right.center[i] += delta
		right.value = eval(right.center)

		probes = append(probes, probe{dim: i, left: left, right: right, best: math.Min(left.value, right.value)})
	}

	sort.SliceStable(probes, func(a, b int) bool { return probes[a].best < probes[b].best })

	children := make([]*rectangle, 0, 2*len(probes))
	for _, p := range probes {
		r.levels[p.dim]++
		for _, c := range []*rectangle{p.left, p.right} {
			c.levels = make([]int, len(r.levels))
			copy(c.levels, r.levels)
			c.computeSize()
			children = append(children, c)
		}
	}
	r.computeSize()

	return children
}

// potentiallyOptimal returns the rectangles on the lower right convex hull of
// the (size, value) plane, keeping the best rectangle of each size and
// ignoring sizes below the one holding the overall minimum.
func potentiallyOptimal(rects []*rectangle) []*rectangle {
	bySize := map[float64]*rectangle{}
	for _, r := range rects {
		key := math.Round(r.size*1e12) / 1e12
		if cur, ok := bySize[key]; !ok || r.value < cur.value {
			bySize[key] = r
		}
	}

	candidates := make([]*rectangle, 0, len(bySize))
	for _, r := range bySize {
		candidates = append(candidates, r)
	}
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].size < candidates[b].size })

	start := 0
	for i, r := range candidates {
		if r.value < candidates[start].value {
			start = i
		}
	}
	candidates = candidates[start:]

	// Lower convex hull, monotone chain.
	hull := make([]*rectangle, 0, len(candidates))
	for _, r := range candidates {
		for len(hull) >= 2 {
			a, b := hull[len(hull)-2], hull[len(hull)-1]
			cross := (b.size-a.size)*(r.value-a.value) - (b.value-a.value)*(r.size-a.size)
			if cross > 0 {
				break
			}
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, r)
	}

	return hull
}

//////
// Random search.
//////

// RandomSearch maximizes by evaluating uniformly drawn points. Cheap, used
// for quick runs and tests.
type RandomSearch struct {
	// Points is the number of evaluations. Default 500.
	Points int

	RandomState *rand.Rand
}

// Maximize implements Maximizer.
func (r *RandomSearch) Maximize(f func(x []float64) float64, lower, upper []float64) []float64 {
	n := r.Points
	if n <= 0 {
		n = 500
	}
	rng := r.RandomState
	if rng == nil {
		rng = newRandomState()
	}

	var best []float64
	bestValue := math.Inf(-1)
	for i := 0; i < n; i++ {
		x := uniformSample(rng, lower, upper)
		if v := f(x); best == nil || v > bestValue {
			best, bestValue = x, v
		}
	}

	return best
}
