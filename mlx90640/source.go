// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640

import (
	"io"
)

// Source produces the calibration and the frames of one device. This
// interface can be mocked.
type Source interface {
	io.Closer

	EEPROM() (*EEPROM, error)    // EEPROM returns the calibration data.
	NextFrame(f *RawFrame) error // NextFrame reads the next frame. Returns io.EOF when there is none left.
	String() string              //
}

// Load reads the calibration of s and decodes it.
func Load(s Source) (*Params, error) {
	ee, err := s.EEPROM()
	if err != nil {
		return nil, err
	}
	return ExtractParams(ee)
}
