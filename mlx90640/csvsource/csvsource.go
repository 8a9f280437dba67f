// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package csvsource reads MLX90640 data captured as CSV files.
//
// The calibration file contains the 832 EEPROM words on its first line. The
// frame file contains one frame per line: 768 pixels, 64 auxiliary words, the
// control register and the sub-page, 834 values in total. Values are decimal
// and may be written signed or unsigned.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/maruel/go-mlx90640/mlx90640"
)

// Source implements mlx90640.Source over a pair of CSV files.
type Source struct {
	eePath  string
	rawPath string
	f       *os.File
	r       *csv.Reader
	frames  int
}

// Open opens the frame file rawPath. The calibration file eePath is read on
// the first call to EEPROM().
func Open(eePath, rawPath string) (*Source, error) {
	f, err := os.Open(rawPath)
	if err != nil {
		return nil, err
	}
	return &Source{eePath: eePath, rawPath: rawPath, f: f, r: newReader(f)}, nil
}

func (s *Source) String() string {
	return fmt.Sprintf("%s+%s", s.eePath, s.rawPath)
}

// EEPROM reads the calibration file.
func (s *Source) EEPROM() (*mlx90640.EEPROM, error) {
	f, err := os.Open(s.eePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ee := &mlx90640.EEPROM{}
	if err := ReadRecord(newReader(f), ee[:]); err != nil {
		if err == io.EOF {
			err = errors.New("no calibration data")
		}
		return nil, fmt.Errorf("%s: %w", s.eePath, err)
	}
	return ee, nil
}

// NextFrame reads the next line of the frame file. It returns io.EOF at the
// end of the file.
func (s *Source) NextFrame(f *mlx90640.RawFrame) error {
	if err := ReadRecord(s.r, f[:]); err != nil {
		if err == io.EOF {
			return err
		}
		return fmt.Errorf("%s: frame %d: %w", s.rawPath, s.frames, err)
	}
	s.frames++
	return nil
}

// Skip discards the next n frames.
func (s *Source) Skip(n int) error {
	var f mlx90640.RawFrame
	for i := 0; i < n; i++ {
		if err := s.NextFrame(&f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) Close() error {
	return s.f.Close()
}

// ReadRecord reads one non empty line from r into dst. The line must contain
// exactly len(dst) values.
func ReadRecord(r *csv.Reader, dst []uint16) error {
	rec, err := r.Read()
	if err != nil {
		return err
	}
	line, _ := r.FieldPos(0)
	n := 0
	for _, field := range rec {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if n == len(dst) {
			return fmt.Errorf("line %d: more than %d values", line, len(dst))
		}
		v, err := strconv.ParseInt(field, 10, 32)
		if err != nil || v < -32768 || v > 65535 {
			return fmt.Errorf("line %d: invalid value %q", line, field)
		}
		dst[n] = uint16(v)
		n++
	}
	if n != len(dst) {
		return fmt.Errorf("line %d: got %d values, expected %d", line, n, len(dst))
	}
	return nil
}

// WriteRecord writes values as one line.
func WriteRecord(w io.Writer, values []uint16) error {
	c := csv.NewWriter(w)
	rec := make([]string, len(values))
	for i, v := range values {
		rec[i] = strconv.Itoa(int(v))
	}
	if err := c.Write(rec); err != nil {
		return err
	}
	c.Flush()
	return c.Error()
}

func newReader(r io.Reader) *csv.Reader {
	c := csv.NewReader(r)
	c.FieldsPerRecord = -1
	c.TrimLeadingSpace = true
	c.ReuseRecord = true
	return c
}

var _ mlx90640.Source = &Source{}
