// Package stats provides the shared numeric primitives every analytic
// component funnels through. All functions are defined for empty input
// and never produce NaN or Inf.
package stats

import "math"

// Mean returns the arithmetic mean, 0 for empty input
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDevSample returns the Bessel-corrected sample standard deviation,
// 0 for fewer than two samples
func StdDevSample(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// StdDevPop returns the population standard deviation, 0 for empty input
func StdDevPop(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// Min returns the smallest sample, 0 for empty input
func Min(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// Max returns the largest sample, 0 for empty input
func Max(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// RateOfChange returns (last-first)/first, 0 when first is 0 or input
// has fewer than two samples
func RateOfChange(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return SafeDivide(xs[len(xs)-1]-xs[0], xs[0])
}

// SafeDivide returns a/b, 0 when b is 0. Report consumers expect numeric
// fields, not nulls, so division never propagates Inf.
func SafeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Clamp bounds x to [lo, hi]
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
