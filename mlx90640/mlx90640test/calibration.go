// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mlx90640test implements a synthetic MLX90640: a calibration
// encoder and a device producing the frames a real sensor would return for a
// given scene.
package mlx90640test

import (
	"github.com/maruel/go-mlx90640/mlx90640"
	"github.com/maruel/go-mlx90640/mlx90640/internal"
)

// Calibration is the content of the calibration EEPROM as the raw fields
// stored by the factory.
type Calibration struct {
	ChessCalibrated bool

	AlphaPTAT      uint8 // 4 bits.
	OccRowScale    uint8 // 4 bits.
	OccColumnScale uint8 // 4 bits.
	OccRemScale    uint8 // 4 bits.
	OffsetRef      int16
	OccRow         [mlx90640.Height]int8 // 4 bits each.
	OccColumn      [mlx90640.Width]int8  // 4 bits each.

	AlphaScale     uint8 // 4 bits.
	AccRowScale    uint8 // 4 bits.
	AccColumnScale uint8 // 4 bits.
	AccRemScale    uint8 // 4 bits.
	AlphaRef       uint16
	AccRow         [mlx90640.Height]int8 // 4 bits each.
	AccColumn      [mlx90640.Width]int8  // 4 bits each.

	GainEE   int16
	VPTAT25  uint16
	KvPTAT   int8  // 6 bits.
	KtPTAT   int16 // 10 bits.
	KVdd     int8
	Vdd25    uint8
	KvAvg    [4]int8 // 4 bits each, indexed by 2*(row%2) + column%2.
	ILChessC [3]int8 // 6, 5 and 5 bits.
	KtaAvg   [4]int8 // Indexed by 2*(row%2) + column%2.

	ResolutionEE uint8 // 2 bits.
	KvScale      uint8 // 4 bits.
	KtaScale1    uint8 // 4 bits.
	KtaScale2    uint8 // 4 bits.

	CPAlpha       int16 // 10 bits.
	CPAlphaRatio  int8  // 6 bits.
	CPOffset      int16 // 10 bits.
	CPOffsetDelta int8  // 6 bits.
	CPKv          int8
	CPKta         int8
	KsTa          int8
	TGC           int8
	KsTo          [4]int8
	CTStep        uint8 // 2 bits.
	CT3           uint8 // 4 bits.
	CT2           uint8 // 4 bits.
	KsToScale     uint8 // 4 bits.

	Pixels [mlx90640.PixelCount]Pixel
}

// Pixel is the per pixel calibration.
type Pixel struct {
	Offset  int8 // 6 bits.
	Alpha   int8 // 6 bits.
	Kta     int8 // 3 bits.
	Outlier bool
	Broken  bool // Stored as an all zero word.
}

// DefaultCalibration returns a plausible calibration, with the global
// coefficients of the datasheet example and varied per pixel coefficients.
// It has no deviating pixel.
func DefaultCalibration() *Calibration {
	c := &Calibration{
		ChessCalibrated: true,
		AlphaPTAT:       4,
		OccRowScale:     2,
		OccColumnScale:  1,
		OccRemScale:     0,
		OffsetRef:       -69,
		AlphaScale:      4,
		AccRowScale:     2,
		AccColumnScale:  0,
		AccRemScale:     2,
		AlphaRef:        2560,
		GainEE:          6383,
		VPTAT25:         12273,
		KvPTAT:          22,
		KtPTAT:          338,
		KVdd:            -99,
		Vdd25:           104,
		KvAvg:           [4]int8{5, 5, 4, 4},
		ILChessC:        [3]int8{8, -3, 4},
		KtaAvg:          [4]int8{82, 84, 80, 81},
		ResolutionEE:    2,
		KvScale:         3,
		KtaScale1:       6,
		KtaScale2:       3,
		CPAlpha:         9,
		CPAlphaRatio:    12,
		CPOffset:        -75,
		CPOffsetDelta:   -3,
		CPKv:            4,
		CPKta:           73,
		KsTa:            -16,
		TGC:             16,
		KsTo:            [4]int8{-80, -105, -100, -95},
		CTStep:          2,
		CT3:             8,
		CT2:             8,
		KsToScale:       9,
	}
	for i := range c.OccRow {
		c.OccRow[i] = int8(i%5 - 2)
		c.AccRow[i] = int8(i%3 - 1)
	}
	for j := range c.OccColumn {
		c.OccColumn[j] = int8(j%7 - 3)
		c.AccColumn[j] = int8(j%4 - 2)
	}
	for p := range c.Pixels {
		px := &c.Pixels[p]
		px.Offset = int8(p*5%11 - 5)
		px.Alpha = int8(p*7%9 - 4)
		px.Kta = int8(p*3%7 - 3)
		if px.Offset == 0 && px.Alpha == 0 && px.Kta == 0 {
			// An all zero word is a broken pixel.
			px.Kta = 1
		}
	}
	return c
}

// EEPROM encodes the calibration.
func (c *Calibration) EEPROM() *mlx90640.EEPROM {
	ee := &mlx90640.EEPROM{}
	if !c.ChessCalibrated {
		ee[internal.EEDevice] |= internal.CalibrationILC
	}

	w := &ee[internal.EEOffsetScale]
	internal.SetField(w, 0xF000, int(c.AlphaPTAT))
	internal.SetField(w, 0x0F00, int(c.OccRowScale))
	internal.SetField(w, 0x00F0, int(c.OccColumnScale))
	internal.SetField(w, 0x000F, int(c.OccRemScale))
	ee[internal.EEOffsetRef] = uint16(c.OffsetRef)
	internal.SetNibbles(ee[internal.EEOccRow:internal.EEOccColumn], toInts(c.OccRow[:]))
	internal.SetNibbles(ee[internal.EEOccColumn:internal.EEAlphaScale], toInts(c.OccColumn[:]))

	w = &ee[internal.EEAlphaScale]
	internal.SetField(w, 0xF000, int(c.AlphaScale))
	internal.SetField(w, 0x0F00, int(c.AccRowScale))
	internal.SetField(w, 0x00F0, int(c.AccColumnScale))
	internal.SetField(w, 0x000F, int(c.AccRemScale))
	ee[internal.EEAlphaRef] = c.AlphaRef
	internal.SetNibbles(ee[internal.EEAccRow:internal.EEAccColumn], toInts(c.AccRow[:]))
	internal.SetNibbles(ee[internal.EEAccColumn:internal.EEGain], toInts(c.AccColumn[:]))

	ee[internal.EEGain] = uint16(c.GainEE)
	ee[internal.EEVPTAT25] = c.VPTAT25
	internal.SetField(&ee[internal.EEPTAT], 0xFC00, int(c.KvPTAT))
	internal.SetField(&ee[internal.EEPTAT], 0x03FF, int(c.KtPTAT))
	internal.SetField(&ee[internal.EEVdd], 0xFF00, int(c.KVdd))
	internal.SetField(&ee[internal.EEVdd], 0x00FF, int(c.Vdd25))

	w = &ee[internal.EEKvAvg]
	internal.SetField(w, 0xF000, int(c.KvAvg[0]))
	internal.SetField(w, 0x00F0, int(c.KvAvg[1]))
	internal.SetField(w, 0x0F00, int(c.KvAvg[2]))
	internal.SetField(w, 0x000F, int(c.KvAvg[3]))

	w = &ee[internal.EEILChess]
	internal.SetField(w, 0x003F, int(c.ILChessC[0]))
	internal.SetField(w, 0x07C0, int(c.ILChessC[1]))
	internal.SetField(w, 0xF800, int(c.ILChessC[2]))

	internal.SetField(&ee[internal.EEKtaAvgOdd], 0xFF00, int(c.KtaAvg[0]))
	internal.SetField(&ee[internal.EEKtaAvgEven], 0xFF00, int(c.KtaAvg[1]))
	internal.SetField(&ee[internal.EEKtaAvgOdd], 0x00FF, int(c.KtaAvg[2]))
	internal.SetField(&ee[internal.EEKtaAvgEven], 0x00FF, int(c.KtaAvg[3]))

	w = &ee[internal.EEScales]
	internal.SetField(w, 0x3000, int(c.ResolutionEE))
	internal.SetField(w, 0x0F00, int(c.KvScale))
	internal.SetField(w, 0x00F0, int(c.KtaScale1))
	internal.SetField(w, 0x000F, int(c.KtaScale2))

	internal.SetField(&ee[internal.EECPAlpha], 0x03FF, int(c.CPAlpha))
	internal.SetField(&ee[internal.EECPAlpha], 0xFC00, int(c.CPAlphaRatio))
	internal.SetField(&ee[internal.EECPOffset], 0x03FF, int(c.CPOffset))
	internal.SetField(&ee[internal.EECPOffset], 0xFC00, int(c.CPOffsetDelta))
	internal.SetField(&ee[internal.EECPKvKta], 0xFF00, int(c.CPKv))
	internal.SetField(&ee[internal.EECPKvKta], 0x00FF, int(c.CPKta))
	internal.SetField(&ee[internal.EEKsTaTGC], 0xFF00, int(c.KsTa))
	internal.SetField(&ee[internal.EEKsTaTGC], 0x00FF, int(c.TGC))
	internal.SetField(&ee[internal.EEKsTo12], 0x00FF, int(c.KsTo[0]))
	internal.SetField(&ee[internal.EEKsTo12], 0xFF00, int(c.KsTo[1]))
	internal.SetField(&ee[internal.EEKsTo34], 0x00FF, int(c.KsTo[2]))
	internal.SetField(&ee[internal.EEKsTo34], 0xFF00, int(c.KsTo[3]))

	w = &ee[internal.EECT]
	internal.SetField(w, 0x3000, int(c.CTStep))
	internal.SetField(w, 0x0F00, int(c.CT3))
	internal.SetField(w, 0x00F0, int(c.CT2))
	internal.SetField(w, 0x000F, int(c.KsToScale))

	for p := range c.Pixels {
		px := &c.Pixels[p]
		if px.Broken {
			continue
		}
		w = &ee[internal.EEPixels+p]
		internal.SetField(w, 0xFC00, int(px.Offset))
		internal.SetField(w, 0x03F0, int(px.Alpha))
		internal.SetField(w, 0x000E, int(px.Kta))
		if px.Outlier {
			*w |= 0x0001
		}
	}
	return ee
}

func toInts(v []int8) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
