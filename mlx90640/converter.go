// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640

import (
	"fmt"
	"math"

	"github.com/maruel/go-mlx90640/uncertain"
)

// Options controls a Converter.
type Options struct {
	// Quantization models each raw pixel reading as uniform over
	// [raw-0.5, raw+0.5].
	Quantization bool
	// TaShift is subtracted from the die temperature to estimate the
	// reflected temperature.
	TaShift float64
	// CorrectDeviating replaces the broken and outlier pixels with an
	// estimate from their neighbors in Image.
	CorrectDeviating bool
}

// DefaultOptions returns the options for a sensor in open air.
//
// Deviating pixels are reported in Image.Faults but not corrected.
func DefaultOptions() Options {
	return Options{Quantization: true, TaShift: OpenAirTaShift}
}

// Image is a full 32x24 image of object temperatures in °C.
type Image[T any] struct {
	To [PixelCount]T
	// Faults are the pixels that could not be computed; their value is NaN.
	Faults PixelSet
	// SubPages tracks which sub-pages were received since the Converter was
	// created.
	SubPages [2]bool
	// Mode is the reading pattern of the last frame.
	Mode ReadingPattern
	// Ambient is the state of the sensor at the last frame.
	Ambient Ambient
}

// Ready returns true once both sub-pages were received.
func (i *Image[T]) Ready() bool {
	return i.SubPages[0] && i.SubPages[1]
}

// At returns the temperature of the pixel at column x, row y.
func (i *Image[T]) At(x, y int) T {
	return i.To[y*Width+x]
}

// Stats is the frame processing statistics of a Converter.
type Stats struct {
	LastFail    error
	Frames      int // Frames converted.
	BadSubPages int // Frames rejected.
	Faults      int // Pixel faults over all frames.
}

func (s *Stats) String() string {
	return fmt.Sprintf("%d frames, %d rejected, %d pixel faults", s.Frames, s.BadSubPages, s.Faults)
}

// Converter accumulates sub-page frames into full images.
//
// It is not safe for concurrent use.
type Converter[T any] struct {
	a          uncertain.Arithmetic[T]
	params     *Params
	emissivity T
	opts       Options
	deviating  PixelSet
	img        Image[T]
	stats      Stats
}

// NewConverter returns a Converter for the device calibrated by p.
//
// It returns ErrBadEmissivity if the representative value of emissivity is
// not in (0, 1].
func NewConverter[T any](a uncertain.Arithmetic[T], p *Params, emissivity T, opts Options) (*Converter[T], error) {
	if e := a.Mean(emissivity); !(e > 0 && e <= 1) {
		return nil, fmt.Errorf("%w: got %g", ErrBadEmissivity, e)
	}
	c := &Converter[T]{a: a, params: p, emissivity: emissivity, opts: opts, deviating: p.Deviating()}
	nan := a.Const(math.NaN())
	for i := range c.img.To {
		c.img.To[i] = nan
	}
	return c, nil
}

// Push converts frame f and updates the pixels of its sub-page.
//
// It returns ErrBadSubPage, leaving the image unchanged, if the frame's
// sub-page is neither 0 nor 1.
func (c *Converter[T]) Push(f *RawFrame) error {
	sp := f.SubPage()
	if sp != 0 && sp != 1 {
		c.stats.BadSubPages++
		c.stats.LastFail = fmt.Errorf("%w: %d", ErrBadSubPage, sp)
		return c.stats.LastFail
	}
	ta := Ta(f, c.params)
	tr := c.a.Const(ta - c.opts.TaShift)
	faults := CalculateTo(c.a, f, c.params, c.emissivity, tr, c.opts.Quantization, c.img.To[:])
	mode := f.Mode()
	for i := 0; i < PixelCount; i++ {
		if SubPageOf(i, mode) == sp {
			c.img.Faults.Clear(i)
		}
	}
	c.img.Faults.Union(&faults)
	c.img.SubPages[sp] = true
	c.img.Mode = mode
	c.img.Ambient = ReadAmbient(f, c.params)
	c.stats.Frames++
	c.stats.Faults += faults.Len()
	return nil
}

// Ready returns true once both sub-pages were received.
func (c *Converter[T]) Ready() bool {
	return c.img.Ready()
}

// Image returns a copy of the current image.
//
// When Options.CorrectDeviating is set and the image is ready, the deviating
// pixels of the copy are replaced with an estimate from their neighbors.
func (c *Converter[T]) Image() Image[T] {
	img := c.img
	if c.opts.CorrectDeviating && img.Ready() {
		pixels := c.deviating.Pixels()
		CorrectDeviatingPixels(c.a, pixels, img.Mode, img.To[:], &c.deviating)
		for _, i := range pixels {
			if math.IsNaN(c.a.Mean(img.To[i])) {
				img.Faults.Set(i)
			} else {
				img.Faults.Clear(i)
			}
		}
	}
	return img
}

// Render converts one frame of each sub-page and returns the resulting
// image.
func (c *Converter[T]) Render(f0, f1 *RawFrame) (Image[T], error) {
	if f0.SubPage() == f1.SubPage() {
		return Image[T]{}, fmt.Errorf("%w: both frames are on sub-page %d", ErrBadSubPage, f0.SubPage())
	}
	if err := c.Push(f0); err != nil {
		return Image[T]{}, err
	}
	if err := c.Push(f1); err != nil {
		return Image[T]{}, err
	}
	return c.Image(), nil
}

// Stats returns the processing statistics.
func (c *Converter[T]) Stats() Stats {
	return c.stats
}
