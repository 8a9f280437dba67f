// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640

import (
	"math/bits"
)

// PixelSet is a set of pixel indexes, 0 to 767.
type PixelSet [PixelCount / 64]uint64

// Set adds pixel i.
func (s *PixelSet) Set(i int) {
	s[i/64] |= 1 << uint(i%64)
}

// Clear removes pixel i.
func (s *PixelSet) Clear(i int) {
	s[i/64] &^= 1 << uint(i%64)
}

// Has returns true if pixel i is in the set.
func (s *PixelSet) Has(i int) bool {
	return s[i/64]&(1<<uint(i%64)) != 0
}

// Union adds all the pixels of o.
func (s *PixelSet) Union(o *PixelSet) {
	for i := range s {
		s[i] |= o[i]
	}
}

// Len returns the number of pixels in the set.
func (s *PixelSet) Len() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

// Pixels returns the pixels in increasing order.
func (s *PixelSet) Pixels() []int {
	var out []int
	for i, w := range s {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, i*64+b)
			w &^= 1 << uint(b)
		}
	}
	return out
}
