// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640

import (
	"math"

	"github.com/maruel/go-mlx90640/mlx90640/internal"
	"github.com/maruel/go-mlx90640/uncertain"
)

// CalculateTo converts the pixels refreshed by frame f into object
// temperatures in °C, stored in result.
//
// Only the 384 pixels of f's sub-page are written; the other entries of
// result are left untouched. emissivity and tr, the reflected temperature in
// °C, may carry a distribution. When quantization is true each raw pixel
// reading is modeled as uniform over [raw-0.5, raw+0.5] to account for the
// ADC rounding.
//
// The temperature range of each pixel is selected on the representative
// value of its first estimate, and then applied to the whole distribution.
//
// Pixels that cannot be computed are set to NaN and returned in the set:
// every pixel when f's sub-page word is neither 0 nor 1, all of the sub-page
// when the frame's gain word is 0, pixels with a null sensitivity, and pixels
// whose result is not finite.
//
// result must have PixelCount entries.
func CalculateTo[T any](a uncertain.Arithmetic[T], f *RawFrame, p *Params, emissivity, tr T, quantization bool, result []T) PixelSet {
	if len(result) != PixelCount {
		panic("mlx90640: result must have 768 entries")
	}
	var faults PixelSet
	subPage := f.SubPage()
	mode := f.Mode()
	vdd := Vdd(f, p)
	ta := Ta(f, p)
	nan := a.Const(math.NaN())

	if subPage != 0 && subPage != 1 {
		for i := 0; i < PixelCount; i++ {
			result[i] = nan
			faults.Set(i)
		}
		return faults
	}
	if f.Signed(internal.FrameGain) == 0 {
		for i := 0; i < PixelCount; i++ {
			if SubPageOf(i, mode) == subPage {
				result[i] = nan
				faults.Set(i)
			}
		}
		return faults
	}
	gain := Gain(f, p)
	irCP := compensationPixels(f, p, gain, ta, vdd)[subPage]

	ta4 := math.Pow(ta+273.15, 4)
	tr4 := a.Add(tr, a.Const(273.15))
	tr4 = a.Mul(tr4, tr4)
	tr4 = a.Mul(tr4, tr4)
	taTr := a.Sub(tr4, a.Div(a.Sub(tr4, a.Const(ta4)), emissivity))

	alphaCorrR := p.AlphaCorrR()
	ksTo1 := p.KsTo[1]
	one := a.Const(1)
	kelvin := a.Const(273.15)

	for i := 0; i < PixelCount; i++ {
		if SubPageOf(i, mode) != subPage {
			continue
		}
		if p.Alpha[i] == 0 {
			result[i] = nan
			faults.Set(i)
			continue
		}
		raw := float64(f.Signed(i))
		var irData T
		if quantization {
			irData = a.Mul(a.Uniform(raw-0.5, raw+0.5), a.Const(gain))
		} else {
			irData = a.Const(raw * gain)
		}
		irData = a.Sub(irData, a.Const(p.PixelOffset(i, ta, vdd)))
		if mode != p.CalibrationMode {
			il := float64(2*ILPattern(i) - 1)
			conv := float64(ConversionPattern(i))
			irData = a.Sub(a.Add(irData, a.Const(p.ILChessC[2]*il)), a.Const(p.ILChessC[1]*conv))
		}
		irData = a.Sub(irData, a.Const(p.TGC*irCP))
		irData = a.Div(irData, emissivity)

		alphaC := p.AlphaCompensated(i, ta)
		ac := a.Const(alphaC)
		sx := a.Mul(a.Const(alphaC*alphaC*alphaC), a.Add(irData, a.Mul(ac, taTr)))
		sx = a.Mul(a.Sqrt(a.Sqrt(sx)), a.Const(ksTo1))
		to := a.Add(a.Div(irData, a.Add(a.Const(alphaC*(1-ksTo1*273.15)), sx)), taTr)
		to = a.Sub(a.Sqrt(a.Sqrt(to)), kelvin)

		r := p.Range(a.Mean(to))
		corr := a.Add(one, a.Mul(a.Const(p.KsTo[r]), a.Sub(to, a.Const(float64(p.CT[r])))))
		corr = a.Mul(a.Const(alphaC*alphaCorrR[r]), corr)
		to = a.Add(a.Div(irData, corr), taTr)
		to = a.Sub(a.Sqrt(a.Sqrt(to)), kelvin)

		if v := a.Mean(to); math.IsNaN(v) || math.IsInf(v, 0) {
			result[i] = nan
			faults.Set(i)
			continue
		}
		result[i] = to
	}
	return faults
}
