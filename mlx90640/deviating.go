// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640

import (
	"math"
	"sort"

	"github.com/maruel/go-mlx90640/uncertain"
)

// CorrectDeviatingPixels replaces the temperature of each pixel in pixels
// with an estimate from its neighbors.
//
// In chess mode the estimate comes from the diagonal neighbors, which were
// measured on the same sub-page. In interleaved mode it comes from the
// horizontal neighbors, extrapolated from the flattest side when both
// pixels two columns away are healthy. deviating is the set of all pixels
// known to be unreliable.
func CorrectDeviatingPixels[T any](a uncertain.Arithmetic[T], pixels []int, mode ReadingPattern, to []T, deviating *PixelSet) {
	two := a.Const(2)
	avg := func(x, y T) T {
		return a.Div(a.Add(x, y), two)
	}
	for _, p := range pixels {
		line := p / Width
		column := p % Width
		if mode == Chess {
			switch {
			case line == 0 && column == 0:
				to[p] = to[33]
			case line == 0 && column == Width-1:
				to[p] = to[62]
			case line == 0:
				to[p] = avg(to[p+31], to[p+33])
			case line == Height-1 && column == 0:
				to[p] = to[705]
			case line == Height-1 && column == Width-1:
				to[p] = to[734]
			case line == Height-1:
				to[p] = avg(to[p-33], to[p-31])
			case column == 0:
				to[p] = avg(to[p-31], to[p+33])
			case column == Width-1:
				to[p] = avg(to[p-33], to[p+31])
			default:
				to[p] = median4(a, [4]T{to[p-33], to[p-31], to[p+31], to[p+33]})
			}
			continue
		}
		switch column {
		case 0:
			to[p] = to[p+1]
		case 1, Width - 2:
			to[p] = avg(to[p-1], to[p+1])
		case Width - 1:
			to[p] = to[p-1]
		default:
			if deviating.Has(p-2) || deviating.Has(p+2) {
				to[p] = avg(to[p-1], to[p+1])
				break
			}
			right := a.Sub(to[p+1], to[p+2])
			left := a.Sub(to[p-1], to[p-2])
			if math.Abs(a.Mean(right)) > math.Abs(a.Mean(left)) {
				to[p] = a.Add(to[p-1], left)
			} else {
				to[p] = a.Add(to[p+1], right)
			}
		}
	}
}

// median4 returns the average of the two middle values, ordered by their
// representative value.
func median4[T any](a uncertain.Arithmetic[T], v [4]T) T {
	s := v[:]
	sort.SliceStable(s, func(i, j int) bool { return a.Mean(s[i]) < a.Mean(s[j]) })
	return a.Div(a.Add(s[1], s[2]), a.Const(2))
}
