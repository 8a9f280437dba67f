// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640

import (
	"github.com/maruel/go-mlx90640/mlx90640/internal"
)

// EEPROM is the raw calibration data, as read from 0x2400.
type EEPROM [EEPROMSize]uint16

// RawFrame is one sub-page frame as read from 0x0400, followed by the control
// register and the sub-page number.
//
// Words are stored unsigned; the pixel and auxiliary values are two's
// complement.
type RawFrame [FrameSize]uint16

// Signed returns word i as a signed value.
func (f *RawFrame) Signed(i int) int16 {
	return int16(f[i])
}

// SubPage returns the sub-page the frame was measured on. Valid values are
// 0 and 1.
func (f *RawFrame) SubPage() int {
	return int(f[internal.FrameSubPage])
}

// Mode returns the reading pattern the frame was measured with.
func (f *RawFrame) Mode() ReadingPattern {
	if f[internal.FrameControl]&internal.CtrlChessMode != 0 {
		return Chess
	}
	return Interleaved
}

// Resolution returns the ADC resolution setting, 0 to 3 for 16 to 19 bits.
func (f *RawFrame) Resolution() uint8 {
	return uint8(internal.Field(f[internal.FrameControl], internal.CtrlResolution))
}

// RefreshRate returns the refresh rate setting, 0 to 7 for 0.5Hz to 64Hz.
func (f *RawFrame) RefreshRate() uint8 {
	return uint8(internal.Field(f[internal.FrameControl], internal.CtrlRefreshRate))
}

// ReadingPattern is the way pixels are assigned to the two sub-pages.
type ReadingPattern uint8

// Valid values for ReadingPattern.
const (
	Interleaved ReadingPattern = 0 // Even rows on sub-page 0, odd rows on sub-page 1.
	Chess       ReadingPattern = 1 // Checkerboard.
)

func (r ReadingPattern) String() string {
	switch r {
	case Interleaved:
		return "Interleaved"
	case Chess:
		return "Chess"
	default:
		return "ReadingPattern(invalid)"
	}
}

// ILPattern returns the interleaved sub-page of pixel i, which is the parity
// of its row.
func ILPattern(i int) int {
	return i/32 - (i/64)*2
}

// ChessPattern returns the chess sub-page of pixel i.
func ChessPattern(i int) int {
	return ILPattern(i) ^ (i - (i/2)*2)
}

// ConversionPattern returns the ADC conversion pattern of pixel i, one of
// -1, 0 or 1.
func ConversionPattern(i int) int {
	return ((i+2)/4 - (i+3)/4 + (i+1)/4 - i/4) * (1 - 2*ILPattern(i))
}

// SubPageOf returns the sub-page refreshing pixel i in reading pattern m.
func SubPageOf(i int, m ReadingPattern) int {
	if m == Chess {
		return ChessPattern(i)
	}
	return ILPattern(i)
}
