// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640

import (
	"fmt"
	"math"

	"github.com/maruel/go-mlx90640/mlx90640/internal"
)

// Params is the decoded calibration of one device.
//
// It is immutable once returned by ExtractParams and can be shared across
// goroutines.
type Params struct {
	KVdd      int16
	Vdd25     int16
	KvPTAT    float64
	KtPTAT    float64
	VPTAT25   uint16
	AlphaPTAT float64
	GainEE    int16
	TGC       float64
	CPKv      float64
	CPKta     float64
	// ResolutionEE is the ADC resolution the device was calibrated at.
	ResolutionEE uint8
	// CalibrationMode is the reading pattern the device was calibrated with.
	CalibrationMode ReadingPattern
	KsTa            float64
	KsTo            [5]float64
	CT              [5]int16

	// Per pixel sensitivity, in units of 1e-6 / 2^AlphaScale.
	Alpha      [PixelCount]uint16
	AlphaScale uint8
	Offset     [PixelCount]int16
	// Per pixel Ta coefficient, in units of 1 / 2^KtaScale.
	Kta      [PixelCount]int8
	KtaScale uint8
	// Per pixel Vdd coefficient, in units of 1 / 2^KvScale.
	Kv      [PixelCount]int8
	KvScale uint8

	CPAlpha  [2]float64
	CPOffset [2]int16
	// ILChessC are the interleaved to chess correction coefficients.
	ILChessC [3]float64

	// BrokenPixels are pixels without calibration data, OutlierPixels are
	// pixels flagged by the factory as out of specification. Both are sorted.
	BrokenPixels  []int
	OutlierPixels []int
}

// ExtractParams decodes the calibration EEPROM.
//
// It returns ErrBadEEPROM when the data is not usable. Deviating pixels are
// not an error here; see CheckDeviatingPixels.
func ExtractParams(ee *EEPROM) (*Params, error) {
	if ee[internal.EEDevice]&internal.DeviceSelect != 0 {
		return nil, fmt.Errorf("%w: device select bit set in 0x%04X", ErrBadEEPROM, ee[internal.EEDevice])
	}
	p := &Params{}
	p.extractVdd(ee)
	p.extractPTAT(ee)
	p.extractGain(ee)
	p.extractTGC(ee)
	p.extractResolution(ee)
	p.extractKsTa(ee)
	p.extractKsTo(ee)
	p.extractCP(ee)
	if p.KVdd == 0 {
		return nil, fmt.Errorf("%w: KVdd is 0", ErrBadEEPROM)
	}
	if p.KtPTAT == 0 {
		return nil, fmt.Errorf("%w: KtPTAT is 0", ErrBadEEPROM)
	}
	if err := p.extractAlpha(ee); err != nil {
		return nil, err
	}
	p.extractOffset(ee)
	if err := p.extractKtaPixel(ee); err != nil {
		return nil, err
	}
	if err := p.extractKvPixel(ee); err != nil {
		return nil, err
	}
	p.extractCILC(ee)
	p.extractDeviatingPixels(ee)
	return p, nil
}

// CheckDeviatingPixels returns ErrDeviatingPixels if the device has more
// than 4 broken or outlier pixels, or if two of them are adjacent.
func (p *Params) CheckDeviatingPixels() error {
	nb, no := len(p.BrokenPixels), len(p.OutlierPixels)
	if nb > 4 {
		return fmt.Errorf("%w: %d broken pixels", ErrDeviatingPixels, nb)
	}
	if no > 4 {
		return fmt.Errorf("%w: %d outlier pixels", ErrDeviatingPixels, no)
	}
	if nb+no > 4 {
		return fmt.Errorf("%w: %d broken and %d outlier pixels", ErrDeviatingPixels, nb, no)
	}
	all := append(append([]int(nil), p.BrokenPixels...), p.OutlierPixels...)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if adjacent(all[i], all[j]) {
				return fmt.Errorf("%w: pixels %d and %d are adjacent", ErrDeviatingPixels, all[i], all[j])
			}
		}
	}
	return nil
}

// Deviating returns the union of the broken and outlier pixels.
func (p *Params) Deviating() PixelSet {
	var s PixelSet
	for _, i := range p.BrokenPixels {
		s.Set(i)
	}
	for _, i := range p.OutlierPixels {
		s.Set(i)
	}
	return s
}

// AlphaCompensated returns the sensitivity of pixel i at die temperature ta.
func (p *Params) AlphaCompensated(i int, ta float64) float64 {
	a := scaleAlpha * math.Ldexp(1, int(p.AlphaScale)) / float64(p.Alpha[i])
	return a * (1 + p.KsTa*(ta-25))
}

// PixelOffset returns the offset of pixel i compensated for the die
// temperature and the supply voltage.
func (p *Params) PixelOffset(i int, ta, vdd float64) float64 {
	kta := float64(p.Kta[i]) / math.Ldexp(1, int(p.KtaScale))
	kv := float64(p.Kv[i]) / math.Ldexp(1, int(p.KvScale))
	return float64(p.Offset[i]) * (1 + kta*(ta-25)) * (1 + kv*(vdd-3.3))
}

// Range returns the temperature range, 0 to 3, that contains to.
func (p *Params) Range(to float64) int {
	switch {
	case to < float64(p.CT[1]):
		return 0
	case to < float64(p.CT[2]):
		return 1
	case to < float64(p.CT[3]):
		return 2
	default:
		return 3
	}
}

// AlphaCorrR returns the sensitivity correction of each temperature range.
func (p *Params) AlphaCorrR() [4]float64 {
	var r [4]float64
	r[0] = 1 / (1 + p.KsTo[0]*40)
	r[1] = 1
	r[2] = 1 + p.KsTo[1]*float64(p.CT[2])
	r[3] = r[2] * (1 + p.KsTo[2]*float64(p.CT[3]-p.CT[2]))
	return r
}

func (p *Params) extractVdd(ee *EEPROM) {
	w := ee[internal.EEVdd]
	p.KVdd = int16(internal.SignedField(w, 0xFF00) * 32)
	vdd25 := int(internal.Field(w, 0x00FF))
	p.Vdd25 = int16(((vdd25 - 256) << 5) - 8192)
}

func (p *Params) extractPTAT(ee *EEPROM) {
	w := ee[internal.EEPTAT]
	p.KvPTAT = float64(internal.SignedField(w, 0xFC00)) / 4096
	p.KtPTAT = float64(internal.SignedField(w, 0x03FF)) / 8
	p.VPTAT25 = ee[internal.EEVPTAT25]
	p.AlphaPTAT = float64(internal.Field(ee[internal.EEOffsetScale], 0xF000))/4 + 8
}

func (p *Params) extractGain(ee *EEPROM) {
	p.GainEE = int16(ee[internal.EEGain])
}

func (p *Params) extractTGC(ee *EEPROM) {
	p.TGC = float64(internal.SignedField(ee[internal.EEKsTaTGC], 0x00FF)) / 32
}

func (p *Params) extractResolution(ee *EEPROM) {
	p.ResolutionEE = uint8(internal.Field(ee[internal.EEScales], 0x3000))
}

func (p *Params) extractKsTa(ee *EEPROM) {
	p.KsTa = float64(internal.SignedField(ee[internal.EEKsTaTGC], 0xFF00)) / 8192
}

func (p *Params) extractKsTo(ee *EEPROM) {
	w := ee[internal.EECT]
	step := int(internal.Field(w, 0x3000)) * 10
	p.CT[0] = -40
	p.CT[1] = 0
	p.CT[2] = int16(int(internal.Field(w, 0x00F0)) * step)
	p.CT[3] = p.CT[2] + int16(int(internal.Field(w, 0x0F00))*step)
	p.CT[4] = 400
	scale := math.Ldexp(1, int(internal.Field(w, 0x000F))+8)
	p.KsTo[0] = float64(internal.SignedField(ee[internal.EEKsTo12], 0x00FF)) / scale
	p.KsTo[1] = float64(internal.SignedField(ee[internal.EEKsTo12], 0xFF00)) / scale
	p.KsTo[2] = float64(internal.SignedField(ee[internal.EEKsTo34], 0x00FF)) / scale
	p.KsTo[3] = float64(internal.SignedField(ee[internal.EEKsTo34], 0xFF00)) / scale
	p.KsTo[4] = -0.0002
}

func (p *Params) extractCP(ee *EEPROM) {
	alphaScale := int(internal.Field(ee[internal.EEAlphaScale], 0xF000)) + 27
	w := ee[internal.EECPAlpha]
	p.CPAlpha[0] = float64(internal.SignedField(w, 0x03FF)) / math.Ldexp(1, alphaScale)
	p.CPAlpha[1] = (1 + float64(internal.SignedField(w, 0xFC00))/128) * p.CPAlpha[0]

	w = ee[internal.EECPOffset]
	offset := internal.SignedField(w, 0x03FF)
	p.CPOffset[0] = int16(offset)
	p.CPOffset[1] = int16(internal.SignedField(w, 0xFC00) + offset)

	scales := ee[internal.EEScales]
	w = ee[internal.EECPKvKta]
	p.CPKta = float64(internal.SignedField(w, 0x00FF)) / math.Ldexp(1, int(internal.Field(scales, 0x00F0))+8)
	p.CPKv = float64(internal.SignedField(w, 0xFF00)) / math.Ldexp(1, int(internal.Field(scales, 0x0F00)))
}

func (p *Params) extractAlpha(ee *EEPROM) error {
	w := ee[internal.EEAlphaScale]
	accRemScale := uint(internal.Field(w, 0x000F))
	accColumnScale := uint(internal.Field(w, 0x00F0))
	accRowScale := uint(internal.Field(w, 0x0F00))
	alphaScale := int(internal.Field(w, 0xF000)) + 30
	alphaRef := int(ee[internal.EEAlphaRef])
	accRow := internal.Nibbles(ee[internal.EEAccRow:internal.EEAccColumn])
	accColumn := internal.Nibbles(ee[internal.EEAccColumn:internal.EEGain])
	cp := p.TGC * (p.CPAlpha[0] + p.CPAlpha[1]) / 2

	var tmp [PixelCount]float64
	max := math.Inf(-1)
	for i := 0; i < Height; i++ {
		for j := 0; j < Width; j++ {
			k := i*Width + j
			v := alphaRef + accRow[i]<<accRowScale + accColumn[j]<<accColumnScale +
				internal.SignedField(ee[internal.EEPixels+k], 0x03F0)<<accRemScale
			a := float64(v)/math.Ldexp(1, alphaScale) - cp
			tmp[k] = scaleAlpha / a
			if tmp[k] > max {
				max = tmp[k]
			}
		}
	}
	if !(max > 0) || math.IsInf(max, 1) {
		return fmt.Errorf("%w: sensitivity out of range (%g)", ErrBadEEPROM, max)
	}
	scale := 0
	for ; max < 32767.4; scale++ {
		max *= 2
	}
	m := math.Ldexp(1, scale)
	for k, a := range tmp {
		if a > 0 {
			p.Alpha[k] = uint16(a*m + 0.5)
		}
	}
	p.AlphaScale = uint8(scale)
	return nil
}

func (p *Params) extractOffset(ee *EEPROM) {
	w := ee[internal.EEOffsetScale]
	occRemScale := uint(internal.Field(w, 0x000F))
	occColumnScale := uint(internal.Field(w, 0x00F0))
	occRowScale := uint(internal.Field(w, 0x0F00))
	offsetRef := int(int16(ee[internal.EEOffsetRef]))
	occRow := internal.Nibbles(ee[internal.EEOccRow:internal.EEOccColumn])
	occColumn := internal.Nibbles(ee[internal.EEOccColumn:internal.EEAlphaScale])
	for i := 0; i < Height; i++ {
		for j := 0; j < Width; j++ {
			k := i*Width + j
			v := offsetRef + occRow[i]<<occRowScale + occColumn[j]<<occColumnScale +
				internal.SignedField(ee[internal.EEPixels+k], 0xFC00)<<occRemScale
			p.Offset[k] = int16(v)
		}
	}
}

// split returns the index of the row and column parity group of pixel i.
func split(i int) int {
	return 2*ILPattern(i) + i%2
}

func (p *Params) extractKtaPixel(ee *EEPROM) error {
	odd, even := ee[internal.EEKtaAvgOdd], ee[internal.EEKtaAvgEven]
	ktaRC := [4]int{
		internal.SignedField(odd, 0xFF00),
		internal.SignedField(even, 0xFF00),
		internal.SignedField(odd, 0x00FF),
		internal.SignedField(even, 0x00FF),
	}
	scales := ee[internal.EEScales]
	scale1 := math.Ldexp(1, int(internal.Field(scales, 0x00F0))+8)
	scale2 := uint(internal.Field(scales, 0x000F))
	var tmp [PixelCount]float64
	for k := range tmp {
		v := ktaRC[split(k)] + internal.SignedField(ee[internal.EEPixels+k], 0x000E)<<scale2
		tmp[k] = float64(v) / scale1
	}
	scale, err := rescale(tmp[:], p.Kta[:])
	if err != nil {
		return fmt.Errorf("%w: Kta %v", ErrBadEEPROM, err)
	}
	p.KtaScale = scale
	return nil
}

func (p *Params) extractKvPixel(ee *EEPROM) error {
	w := ee[internal.EEKvAvg]
	kvT := [4]int{
		internal.SignedField(w, 0xF000),
		internal.SignedField(w, 0x00F0),
		internal.SignedField(w, 0x0F00),
		internal.SignedField(w, 0x000F),
	}
	scale := math.Ldexp(1, int(internal.Field(ee[internal.EEScales], 0x0F00)))
	var tmp [PixelCount]float64
	for k := range tmp {
		tmp[k] = float64(kvT[split(k)]) / scale
	}
	s, err := rescale(tmp[:], p.Kv[:])
	if err != nil {
		return fmt.Errorf("%w: Kv %v", ErrBadEEPROM, err)
	}
	p.KvScale = s
	return nil
}

// rescale stores in dst the values of src scaled by the power of two that
// brings the largest magnitude to at least 63.4, rounded away from zero.
func rescale(src []float64, dst []int8) (uint8, error) {
	max := 0.
	for _, v := range src {
		max = math.Max(max, math.Abs(v))
	}
	if max == 0 || math.IsInf(max, 0) || math.IsNaN(max) {
		return 0, fmt.Errorf("coefficients cannot be scaled (max %g)", max)
	}
	scale := 0
	for ; max < 63.4; scale++ {
		max *= 2
	}
	if max >= 127.5 {
		return 0, fmt.Errorf("coefficients overflow (max %g)", max)
	}
	m := math.Ldexp(1, scale)
	for i, v := range src {
		v *= m
		if v < 0 {
			dst[i] = int8(v - 0.5)
		} else {
			dst[i] = int8(v + 0.5)
		}
	}
	return uint8(scale), nil
}

func (p *Params) extractCILC(ee *EEPROM) {
	if ee[internal.EEDevice]&internal.CalibrationILC == 0 {
		p.CalibrationMode = Chess
	} else {
		p.CalibrationMode = Interleaved
	}
	w := ee[internal.EEILChess]
	p.ILChessC[0] = float64(internal.SignedField(w, 0x003F)) / 16
	p.ILChessC[1] = float64(internal.SignedField(w, 0x07C0)) / 2
	p.ILChessC[2] = float64(internal.SignedField(w, 0xF800)) / 8
}

func (p *Params) extractDeviatingPixels(ee *EEPROM) {
	p.BrokenPixels = nil
	p.OutlierPixels = nil
	for k := 0; k < PixelCount; k++ {
		w := ee[internal.EEPixels+k]
		if w == 0 {
			p.BrokenPixels = append(p.BrokenPixels, k)
		} else if w&0x0001 != 0 {
			p.OutlierPixels = append(p.OutlierPixels, k)
		}
	}
}

// adjacent returns true if the two pixels touch, including diagonally.
//
// The distance is linear so the last pixel of a row is adjacent to the first
// pixel of the next row.
func adjacent(a, b int) bool {
	d := a - b
	return (d > -34 && d < -30) || (d > -2 && d < 2) || (d > 30 && d < 34)
}
