// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640

import (
	"fmt"
	"math"

	"github.com/maruel/go-mlx90640/mlx90640/internal"
	"periph.io/x/periph/conn/physic"
)

// Vdd returns the supply voltage in volts measured while taking frame f.
func Vdd(f *RawFrame, p *Params) float64 {
	vdd := float64(f.Signed(internal.FrameVdd))
	correction := math.Ldexp(1, int(p.ResolutionEE)) / math.Ldexp(1, int(f.Resolution()))
	return (correction*vdd-float64(p.Vdd25))/float64(p.KVdd) + 3.3
}

// Ta returns the die temperature in °C measured while taking frame f.
func Ta(f *RawFrame, p *Params) float64 {
	vdd := Vdd(f, p)
	ptat := float64(f.Signed(internal.FramePTAT))
	vbe := float64(f.Signed(internal.FrameVBE))
	ptatArt := (ptat / (ptat*p.AlphaPTAT + vbe)) * (1 << 18)
	ta := ptatArt/(1+p.KvPTAT*(vdd-3.3)) - float64(p.VPTAT25)
	return ta/p.KtPTAT + 25
}

// Gain returns the gain compensation of frame f. It is infinite when the
// frame's gain word is 0.
func Gain(f *RawFrame, p *Params) float64 {
	return float64(p.GainEE) / float64(f.Signed(internal.FrameGain))
}

// CompensationPixels returns the gain and offset compensated value of the two
// compensation pixels of frame f.
func CompensationPixels(f *RawFrame, p *Params) [2]float64 {
	return compensationPixels(f, p, Gain(f, p), Ta(f, p), Vdd(f, p))
}

func compensationPixels(f *RawFrame, p *Params, gain, ta, vdd float64) [2]float64 {
	comp := (1 + p.CPKta*(ta-25)) * (1 + p.CPKv*(vdd-3.3))
	offset1 := float64(p.CPOffset[1])
	if f.Mode() != p.CalibrationMode {
		offset1 += p.ILChessC[0]
	}
	return [2]float64{
		float64(f.Signed(internal.FrameCP0))*gain - float64(p.CPOffset[0])*comp,
		float64(f.Signed(internal.FrameCP1))*gain - offset1*comp,
	}
}

// Ambient is the state of the sensor while taking a frame.
type Ambient struct {
	Vdd physic.ElectricPotential
	Ta  physic.Temperature
}

// ReadAmbient returns the supply voltage and the die temperature of frame f.
func ReadAmbient(f *RawFrame, p *Params) Ambient {
	return Ambient{
		Vdd: physic.ElectricPotential(Vdd(f, p) * float64(physic.Volt)),
		Ta:  FromCelsius(Ta(f, p)),
	}
}

func (a Ambient) String() string {
	return fmt.Sprintf("Vdd=%s Ta=%s", a.Vdd, a.Ta)
}

// FromCelsius converts a temperature in °C.
func FromCelsius(c float64) physic.Temperature {
	return physic.Temperature(c*float64(physic.Kelvin)) + physic.ZeroCelsius
}

// ToCelsius converts a temperature to °C.
func ToCelsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Kelvin)
}
