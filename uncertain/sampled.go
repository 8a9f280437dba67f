// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package uncertain

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Value is a scalar of the Sampled arithmetic.
//
// The zero value is the exact number 0. A Value either is exact or carries
// N samples; sample k of every Value produced by the same Sampled belongs to
// the same joint draw, so correlations between operands are preserved.
type Value struct {
	x float64   // Exact value, or the mean of s.
	s []float64 // nil when exact.
}

// Exactly returns the exact Value v.
func Exactly(v float64) Value {
	return Value{x: v}
}

// FromSamples returns a Value carrying a copy of s.
func FromSamples(s []float64) Value {
	if len(s) == 0 {
		return Value{}
	}
	c := make([]float64, len(s))
	copy(c, s)
	return newValue(c)
}

func newValue(s []float64) Value {
	return Value{x: stat.Mean(s, nil), s: s}
}

// IsExact returns true if the Value carries no distribution.
func (v Value) IsExact() bool {
	return v.s == nil
}

// Mean returns the exact value or the mean of the samples.
func (v Value) Mean() float64 {
	return v.x
}

// Samples returns a copy of the samples, or nil if the Value is exact.
func (v Value) Samples() []float64 {
	if v.s == nil {
		return nil
	}
	c := make([]float64, len(v.s))
	copy(c, v.s)
	return c
}

// Quantile returns the p-quantile, 0 <= p <= 1, interpolated linearly
// between the sorted samples: Quantile(0) is the smallest sample and
// Quantile(1) the largest. It returns NaN if a sample is NaN.
func (v Value) Quantile(p float64) float64 {
	if v.s == nil {
		return v.x
	}
	s := v.Samples()
	sort.Float64s(s)
	// stat.LinInterp puts p at position p*n-1; map it to p*(n-1).
	n := float64(len(s))
	p = (math.Max(0, math.Min(1, p))*(n-1) + 1) / n
	return stat.Quantile(p, stat.LinInterp, s, nil)
}

// Median is Quantile(0.5).
func (v Value) Median() float64 {
	return v.Quantile(0.5)
}

// StdDev returns the population standard deviation of the samples.
func (v Value) StdDev() float64 {
	if v.s == nil {
		return 0
	}
	return stat.PopStdDev(v.s, nil)
}

// Support returns the smallest and largest sample. NaN samples are ignored
// unless all of them are NaN.
func (v Value) Support() (lo, hi float64) {
	if v.s == nil {
		return v.x, v.x
	}
	return floats.Min(v.s), floats.Max(v.s)
}

func (v Value) String() string {
	if v.s == nil {
		return fmt.Sprintf("%g", v.x)
	}
	return fmt.Sprintf("%.4f±%.4f", v.x, v.StdDev())
}

// MarshalJSON encodes an exact Value as a number and a distribution as an
// object with its mean, standard deviation, support and samples. NaN and
// infinities are encoded as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.s == nil {
		return json.Marshal(jsonNumber(v.x))
	}
	lo, hi := v.Support()
	d := distribution{
		Mean:    jsonNumber(v.x),
		StdDev:  jsonNumber(v.StdDev()),
		Support: [2]*float64{jsonNumber(lo), jsonNumber(hi)},
		Samples: make([]*float64, len(v.s)),
	}
	for i, x := range v.s {
		d.Samples[i] = jsonNumber(x)
	}
	return json.Marshal(&d)
}

type distribution struct {
	Mean    *float64    `json:"mean"`
	StdDev  *float64    `json:"stddev"`
	Support [2]*float64 `json:"support"`
	Samples []*float64  `json:"samples"`
}

// jsonNumber returns nil for the values JSON cannot represent.
func jsonNumber(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

// Sampled is the Arithmetic on Value, using N samples per distribution.
//
// It is not safe for concurrent use.
type Sampled struct {
	n   int
	rnd *rand.Rand
}

// NewSampled returns a Sampled arithmetic drawing n samples per uniform
// distribution. The same seed always produces the same draws.
func NewSampled(n int, seed int64) *Sampled {
	if n < 1 {
		panic("uncertain: need at least one sample")
	}
	return &Sampled{n: n, rnd: rand.New(rand.NewSource(seed))}
}

// N returns the number of samples per distribution.
func (s *Sampled) N() int {
	return s.n
}

func (s *Sampled) Const(v float64) Value {
	return Value{x: v}
}

// Uniform returns a stratified draw of the uniform distribution on
// [lo, hi]: exactly one sample falls in each of the N sub-intervals, in a
// random order.
func (s *Sampled) Uniform(lo, hi float64) Value {
	if lo == hi {
		return Value{x: lo}
	}
	w := (hi - lo) / float64(s.n)
	out := make([]float64, s.n)
	for i, k := range s.rnd.Perm(s.n) {
		out[i] = lo + w*(float64(k)+s.rnd.Float64())
	}
	return newValue(out)
}

func (s *Sampled) Add(a, b Value) Value {
	return s.apply2(a, b, func(x, y float64) float64 { return x + y })
}

func (s *Sampled) Sub(a, b Value) Value {
	return s.apply2(a, b, func(x, y float64) float64 { return x - y })
}

func (s *Sampled) Mul(a, b Value) Value {
	return s.apply2(a, b, func(x, y float64) float64 { return x * y })
}

func (s *Sampled) Div(a, b Value) Value {
	return s.apply2(a, b, func(x, y float64) float64 { return x / y })
}

func (s *Sampled) Sqrt(a Value) Value {
	if a.s == nil {
		return Value{x: math.Sqrt(a.x)}
	}
	out := make([]float64, len(a.s))
	for i, x := range a.s {
		out[i] = math.Sqrt(x)
	}
	return newValue(out)
}

func (s *Sampled) Mean(a Value) float64 {
	return a.x
}

func (s *Sampled) apply2(a, b Value, f func(x, y float64) float64) Value {
	if a.s == nil && b.s == nil {
		return Value{x: f(a.x, b.x)}
	}
	n := len(a.s)
	if n == 0 {
		n = len(b.s)
	} else if b.s != nil && len(b.s) != n {
		panic("uncertain: mismatched sample counts")
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = f(a.at(i), b.at(i))
	}
	return newValue(out)
}

func (v Value) at(i int) float64 {
	if v.s == nil {
		return v.x
	}
	return v.s[i]
}
