// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640test

import (
	"math"

	"github.com/maruel/go-mlx90640/mlx90640"
	"github.com/maruel/go-mlx90640/mlx90640/internal"
)

// Conditions are the operating conditions of a Device.
type Conditions struct {
	Ta         float64 // Die temperature in °C.
	Vdd        float64 // Supply voltage in volts.
	Emissivity float64 // Emissivity of the scene.
	TaShift    float64 // Die temperature minus the reflected temperature.
	Mode       mlx90640.ReadingPattern
	Resolution uint8 // ADC resolution setting, 0 to 3.
}

// DefaultConditions returns a sensor in open air at 30°C.
func DefaultConditions() Conditions {
	return Conditions{
		Ta:         30,
		Vdd:        3.3,
		Emissivity: 0.95,
		TaShift:    mlx90640.OpenAirTaShift,
		Mode:       mlx90640.Chess,
		Resolution: 2,
	}
}

// Nominal raw values of the auxiliary words.
const (
	rawPTAT = 1711
	rawGain = 6273
	rawCP0  = -75
	rawCP1  = -78
)

// Device synthesizes the frames a sensor with a given calibration would
// produce.
type Device struct {
	Params *mlx90640.Params
	Cond   Conditions
	ee     *mlx90640.EEPROM
}

// NewDevice returns a Device for calibration c.
func NewDevice(c *Calibration, cond Conditions) (*Device, error) {
	ee := c.EEPROM()
	p, err := mlx90640.ExtractParams(ee)
	if err != nil {
		return nil, err
	}
	return &Device{Params: p, Cond: cond, ee: ee}, nil
}

// EEPROM returns a copy of the encoded calibration.
func (d *Device) EEPROM() *mlx90640.EEPROM {
	ee := *d.ee
	return &ee
}

// Frame returns the frame measured on subPage while looking at scene s.
//
// Raw pixel values are the rounded result of inverting the conversion, so
// converting the frame back recovers s within the ADC quantization.
func (d *Device) Frame(subPage int, s Scene) *mlx90640.RawFrame {
	p := d.Params
	f := &mlx90640.RawFrame{}
	ctrl := uint16(0x0101)
	internal.SetField(&ctrl, internal.CtrlResolution, int(d.Cond.Resolution))
	if d.Cond.Mode == mlx90640.Chess {
		ctrl |= internal.CtrlChessMode
	}
	f[internal.FrameControl] = ctrl
	f[internal.FrameSubPage] = uint16(subPage)

	correction := math.Ldexp(1, int(p.ResolutionEE)) / math.Ldexp(1, int(d.Cond.Resolution))
	f[internal.FrameVdd] = uint16(int16(math.Round(((d.Cond.Vdd-3.3)*float64(p.KVdd) + float64(p.Vdd25)) / correction)))
	vdd := mlx90640.Vdd(f, p)
	ptatArt := ((d.Cond.Ta-25)*p.KtPTAT + float64(p.VPTAT25)) * (1 + p.KvPTAT*(vdd-3.3))
	f[internal.FramePTAT] = rawPTAT
	f[internal.FrameVBE] = uint16(int16(math.Round(rawPTAT*(1<<18)/ptatArt - rawPTAT*p.AlphaPTAT)))
	cp0, cp1 := int16(rawCP0), int16(rawCP1)
	f[internal.FrameGain] = rawGain
	f[internal.FrameCP0] = uint16(cp0)
	f[internal.FrameCP1] = uint16(cp1)

	ta := mlx90640.Ta(f, p)
	gain := mlx90640.Gain(f, p)
	irCP := mlx90640.CompensationPixels(f, p)[subPage]
	e := d.Cond.Emissivity
	ta4 := math.Pow(ta+273.15, 4)
	tr4 := math.Pow(ta-d.Cond.TaShift+273.15, 4)
	taTr := tr4 - (tr4-ta4)/e
	alphaCorrR := p.AlphaCorrR()

	for i := 0; i < mlx90640.PixelCount; i++ {
		if mlx90640.SubPageOf(i, d.Cond.Mode) != subPage {
			continue
		}
		t4 := math.Pow(s.Temperature(i%mlx90640.Width, i/mlx90640.Width)+273.15, 4)
		ac := p.AlphaCompensated(i, ta)
		// The sensitivity depends on the range of the result, iterate until
		// it settles.
		ir := (t4 - taTr) * ac
		for j := 0; j < 8; j++ {
			to := firstEstimate(ir, ac, taTr, p.KsTo[1])
			r := p.Range(to)
			ir = (t4 - taTr) * ac * alphaCorrR[r] * (1 + p.KsTo[r]*(to-float64(p.CT[r])))
		}
		x := ir*e + p.TGC*irCP
		if d.Cond.Mode != p.CalibrationMode {
			x -= p.ILChessC[2]*float64(2*mlx90640.ILPattern(i)-1) - p.ILChessC[1]*float64(mlx90640.ConversionPattern(i))
		}
		x += p.PixelOffset(i, ta, vdd)
		raw := math.Round(x / gain)
		raw = math.Max(math.MinInt16, math.Min(math.MaxInt16, raw))
		f[i] = uint16(int16(raw))
	}
	return f
}

// firstEstimate is the temperature estimate used to select the range.
func firstEstimate(ir, ac, taTr, ksTo1 float64) float64 {
	sx := ac * ac * ac * (ir + ac*taTr)
	sx = math.Sqrt(math.Sqrt(sx)) * ksTo1
	return math.Sqrt(math.Sqrt(ir/(ac*(1-ksTo1*273.15)+sx)+taTr)) - 273.15
}
