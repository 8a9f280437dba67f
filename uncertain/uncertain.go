// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package uncertain implements the scalar arithmetic used by the conversion
// routines.
//
// A scalar is either an exact real number or a real number carrying an
// empirical distribution. Code written once against Arithmetic runs
// unchanged on plain float64 (Exact) or on sample based distributions
// (Sampled).
package uncertain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Arithmetic is the set of operations the conversion needs on its scalar
// type T.
//
// Mean returns the representative value of a scalar. It is the value used
// whenever the computation needs to take a branch.
type Arithmetic[T any] interface {
	Const(v float64) T
	Uniform(lo, hi float64) T
	Add(a, b T) T
	Sub(a, b T) T
	Mul(a, b T) T
	Div(a, b T) T
	Sqrt(a T) T
	Mean(a T) float64
}

// Exact is the Arithmetic on plain float64.
//
// Uniform(lo, hi) degenerates to the middle of the interval, so modeling an
// uncertainty with Exact is a no-op.
type Exact struct{}

func (Exact) Const(v float64) float64 { return v }

func (Exact) Uniform(lo, hi float64) float64 { return (lo + hi) / 2 }

func (Exact) Add(a, b float64) float64 { return a + b }

func (Exact) Sub(a, b float64) float64 { return a - b }

func (Exact) Mul(a, b float64) float64 { return a * b }

func (Exact) Div(a, b float64) float64 { return a / b }

func (Exact) Sqrt(a float64) float64 { return math.Sqrt(a) }

func (Exact) Mean(a float64) float64 { return a }

// ParseInterval parses either a real number or "UniformDist(lo, hi)".
//
// A real number v is returned as the degenerate interval [v, v].
func ParseInterval(s string) (lo, hi float64, err error) {
	s = strings.TrimSpace(s)
	const prefix = "UniformDist("
	if !strings.HasPrefix(s, prefix) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid number %q", s)
		}
		return v, v, nil
	}
	if !strings.HasSuffix(s, ")") {
		return 0, 0, fmt.Errorf("missing ')' in %q", s)
	}
	args := strings.Split(s[len(prefix):len(s)-1], ",")
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("UniformDist takes 2 arguments, got %d", len(args))
	}
	if lo, err = strconv.ParseFloat(strings.TrimSpace(args[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid lower bound in %q", s)
	}
	if hi, err = strconv.ParseFloat(strings.TrimSpace(args[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid upper bound in %q", s)
	}
	if lo > hi {
		return 0, 0, errors.New("UniformDist lower bound is above upper bound")
	}
	return lo, hi, nil
}
