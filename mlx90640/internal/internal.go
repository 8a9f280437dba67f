// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package internal

import (
	"math/bits"

	"periph.io/x/periph/conn/physic"
)

// EEPROM word offsets, relative to 0x2400.
const (
	EEDevice       = 0x0A // Bit 11: calibration reading pattern, bit 6: device select.
	EEOffsetScale  = 0x10 // alphaPTAT, OCC scales.
	EEOffsetRef    = 0x11
	EEOccRow       = 0x12 // 6 words.
	EEOccColumn    = 0x18 // 8 words.
	EEAlphaScale   = 0x20 // Alpha scale, ACC scales.
	EEAlphaRef     = 0x21
	EEAccRow       = 0x22 // 6 words.
	EEAccColumn    = 0x28 // 8 words.
	EEGain         = 0x30
	EEVPTAT25      = 0x31
	EEPTAT         = 0x32 // KvPTAT, KtPTAT.
	EEVdd          = 0x33 // KVdd, Vdd25.
	EEKvAvg        = 0x34
	EEILChess      = 0x35
	EEKtaAvgOdd    = 0x36 // Odd columns.
	EEKtaAvgEven   = 0x37 // Even columns.
	EEScales       = 0x38 // resolutionEE, Kv and Kta scales.
	EECPAlpha      = 0x39
	EECPOffset     = 0x3A
	EECPKvKta      = 0x3B
	EEKsTaTGC      = 0x3C
	EEKsTo12       = 0x3D
	EEKsTo34       = 0x3E
	EECT           = 0x3F
	EEPixels       = 0x40 // 768 words.
	EEPixelsEnd    = EEPixels + 768
	DeviceSelect   = 0x0040
	CalibrationILC = 0x0800
)

// RAM word offsets of a frame, relative to 0x0400, followed by the control
// register and the sub-page.
const (
	FrameVBE     = 768
	FrameCP0     = 776
	FrameGain    = 778
	FramePTAT    = 800
	FrameCP1     = 808
	FrameVdd     = 810
	FrameControl = 832
	FrameSubPage = 833
)

// Control register fields.
const (
	CtrlSubPageMode = 0x0001
	CtrlRefreshRate = 0x0380
	CtrlResolution  = 0x0C00
	CtrlChessMode   = 0x1000
)

// Field returns the bits of w selected by mask, shifted down.
func Field(w, mask uint16) uint16 {
	return (w & mask) >> uint(bits.TrailingZeros16(mask))
}

// Signed interprets the low width bits of v as a two's complement number.
func Signed(v uint16, width int) int {
	x := int(v)
	if x >= 1<<uint(width-1) {
		x -= 1 << uint(width)
	}
	return x
}

// SignedField is Field followed by Signed on the width of mask.
func SignedField(w, mask uint16) int {
	return Signed(Field(w, mask), bits.OnesCount16(mask))
}

// SetField stores v in the bits of w selected by mask. v is truncated to the
// width of the mask; negative values are stored in two's complement.
func SetField(w *uint16, mask uint16, v int) {
	*w = *w&^mask | uint16(v<<uint(bits.TrailingZeros16(mask)))&mask
}

// Nibbles decodes the 4 signed 4 bits values packed in each word, least
// significant nibble first.
func Nibbles(words []uint16) []int {
	out := make([]int, 0, 4*len(words))
	for _, w := range words {
		for s := uint(0); s < 16; s += 4 {
			out = append(out, Signed((w>>s)&0xF, 4))
		}
	}
	return out
}

// SetNibbles is the reverse of Nibbles.
func SetNibbles(words []uint16, v []int) {
	for i, x := range v {
		SetField(&words[i/4], 0xF<<uint(4*(i%4)), x)
	}
}

// CentiK is temperature in 0.01°K.
type CentiK uint16

// FromC converts a temperature in °C, saturating at the type's range. NaN
// maps to 0.
func FromC(c float64) CentiK {
	v := (c+273.15)*100 + 0.5
	if !(v > 0) {
		return 0
	}
	if v >= 65535 {
		return 65535
	}
	return CentiK(v)
}

// ToT converts to a physic.Temperature.
func (c CentiK) ToT() physic.Temperature {
	return physic.Temperature(c) * 10 * physic.MilliKelvin
}
