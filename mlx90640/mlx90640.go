// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mlx90640 converts the raw data of a Melexis MLX90640 32x24
// thermopile array into object temperatures.
//
// The conversion is split in three steps:
//   - ExtractParams decodes the 832 words of calibration EEPROM into Params,
//     once per device.
//   - Vdd and Ta estimate the supply voltage and the die temperature from the
//     auxiliary words of a frame.
//   - CalculateTo converts the 384 pixels refreshed by one sub-page frame
//     into object temperatures, generic over the scalar arithmetic so the
//     emissivity and the ADC quantization can be carried as distributions.
//
// Converter ties these together and keeps the last full image.
//
// References, in the MLX90640 datasheet rev 12 at
// https://www.melexis.com/en/documents/documentation/datasheets/datasheet-mlx90640:
//   - p. 21-23: frame layout, chess and interleaved reading patterns.
//   - p. 24-41: calculation of the calibration parameters and of To.
//   - p. 42-43: bad and outlier pixels.
//
// The reference driver is https://github.com/melexis/mlx90640-library.
package mlx90640

import (
	"errors"
)

// Sensor geometry.
const (
	Width      = 32
	Height     = 24
	PixelCount = Width * Height

	// EEPROMSize is the number of 16 bits words of calibration data.
	EEPROMSize = 832
	// FrameSize is the number of 16 bits words of a frame: 768 pixels, 64
	// auxiliary words, the control register and the sub-page.
	FrameSize = 834
)

// OpenAirTaShift is the default difference between the die temperature and
// the reflected temperature, for a sensor operating in open air.
const OpenAirTaShift = 8.

// scaleAlpha is the unit of the calibrated sensitivity, 1e-6.
const scaleAlpha = 0.000001

// Errors returned by this package. They are wrapped with details; use
// errors.Is.
var (
	// ErrBadEEPROM is returned when the calibration data cannot be decoded.
	ErrBadEEPROM = errors.New("mlx90640: invalid calibration EEPROM")
	// ErrDeviatingPixels is returned when the broken and outlier pixels
	// exceed what the correction can handle.
	ErrDeviatingPixels = errors.New("mlx90640: too many deviating pixels")
	// ErrBadSubPage is returned for a frame whose sub-page is neither 0 nor 1.
	ErrBadSubPage = errors.New("mlx90640: invalid sub-page")
	// ErrBadEmissivity is returned for an emissivity outside of (0, 1].
	ErrBadEmissivity = errors.New("mlx90640: emissivity must be in (0, 1]")
)
