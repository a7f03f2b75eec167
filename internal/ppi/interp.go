package ppi

// MonotoneCubic builds a Fritsch-Carlson monotone piecewise-cubic
// interpolant through the points (xs[i], ys[i]). xs must be strictly
// increasing and len(xs) == len(ys) >= 2.
//
// Monotonicity matters here: a reconstructed interval must stay between its
// accepted neighbors instead of overshooting the way an unconstrained cubic
// spline can around a removed ectopic beat. Queries outside [xs[0], xs[n-1]]
// clamp to the boundary values.
func MonotoneCubic(xs, ys []float64) func(x float64) float64 {
	n := len(xs)

	// Secant slopes between knots.
	h := make([]float64, n-1)
	delta := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		h[i] = xs[i+1] - xs[i]
		delta[i] = (ys[i+1] - ys[i]) / h[i]
	}

	// Tangents: weighted harmonic mean of adjacent secants, zeroed across
	// local extrema (Fritsch-Carlson).
	m := make([]float64, n)
	m[0] = delta[0]
	m[n-1] = delta[n-2]
	for i := 1; i < n-1; i++ {
		if delta[i-1]*delta[i] <= 0 {
			m[i] = 0
			continue
		}
		w1 := 2*h[i] + h[i-1]
		w2 := h[i] + 2*h[i-1]
		m[i] = (w1 + w2) / (w1/delta[i-1] + w2/delta[i])
	}

	return func(x float64) float64 {
		if x <= xs[0] {
			return ys[0]
		}
		if x >= xs[n-1] {
			return ys[n-1]
		}

		// Locate the containing segment by binary search.
		lo, hi := 0, n-1
		for hi-lo > 1 {
			mid := (lo + hi) / 2
			if xs[mid] <= x {
				lo = mid
			} else {
				hi = mid
			}
		}

		t := (x - xs[lo]) / h[lo]
		t2 := t * t
		t3 := t2 * t

		h00 := 2*t3 - 3*t2 + 1
		h10 := t3 - 2*t2 + t
		h01 := -2*t3 + 3*t2
		h11 := t3 - t2

		return h00*ys[lo] + h10*h[lo]*m[lo] + h01*ys[lo+1] + h11*h[lo]*m[lo+1]
	}
}
