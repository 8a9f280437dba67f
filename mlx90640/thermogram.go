// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640

import (
	"image"
	"image/color"
	"math"

	"github.com/maruel/go-mlx90640/mlx90640/internal"
	"github.com/maruel/go-mlx90640/uncertain"
)

// Thermogram implements image.Image over the representative temperatures of
// an Image. Pixels are rendered with a naive linear AGC between Min and Max.
type Thermogram struct {
	Pix [PixelCount]float64 // °C, NaN for faulted pixels.
	Min float64
	Max float64
}

// NewThermogram returns the representative values of img.
func NewThermogram[T any](a uncertain.Arithmetic[T], img *Image[T]) *Thermogram {
	t := &Thermogram{}
	for i, v := range img.To {
		t.Pix[i] = a.Mean(v)
	}
	t.updateStats()
	return t
}

func (t *Thermogram) ColorModel() color.Model {
	return color.GrayModel
}

func (t *Thermogram) Bounds() image.Rectangle {
	return image.Rect(0, 0, Width, Height)
}

func (t *Thermogram) At(x, y int) color.Color {
	return color.Gray{t.GrayAt(x, y)}
}

// GrayAt returns the AGC value of a pixel. NaN pixels are black.
func (t *Thermogram) GrayAt(x, y int) uint8 {
	v := t.Pix[y*Width+x]
	delta := t.Max - t.Min
	if math.IsNaN(v) || !(delta > 0) {
		return 0
	}
	return uint8((v-t.Min)*255/delta + 0.5)
}

// Gray16 returns the image in centi-Kelvin, with NaN pixels as 0.
func (t *Thermogram) Gray16() *image.Gray16 {
	img := image.NewGray16(t.Bounds())
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			img.SetGray16(x, y, color.Gray16{uint16(internal.FromC(t.Pix[y*Width+x]))})
		}
	}
	return img
}

func (t *Thermogram) updateStats() {
	t.Min = math.Inf(1)
	t.Max = math.Inf(-1)
	for _, v := range t.Pix {
		if math.IsNaN(v) {
			continue
		}
		t.Min = math.Min(t.Min, v)
		t.Max = math.Max(t.Max, v)
	}
	if math.IsInf(t.Min, 1) {
		t.Min, t.Max = 0, 0
	}
}

// Equal returns true if both thermograms hold the same values. NaN pixels are
// equal to each other.
func (t *Thermogram) Equal(r *Thermogram) bool {
	for i, v := range t.Pix {
		w := r.Pix[i]
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			return false
		}
	}
	return true
}
