// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package csvsource

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maruel/go-mlx90640/mlx90640"
	"github.com/maruel/go-mlx90640/mlx90640/mlx90640test"
)

func TestReadRecord(t *testing.T) {
	data := []struct {
		in   string
		want []uint16
		ok   bool
	}{
		{"1,2,3\n", []uint16{1, 2, 3}, true},
		{"\n\n1, 2 ,3,\n", []uint16{1, 2, 3}, true},
		{"-1,65535,0", []uint16{0xFFFF, 0xFFFF, 0}, true},
		{"1,2\n", nil, false},
		{"1,2,3,4\n", nil, false},
		{"1,x,3\n", nil, false},
		{"1,65536,3\n", nil, false},
		{"1,-32769,3\n", nil, false},
		{"", nil, false},
	}
	for i, line := range data {
		dst := make([]uint16, 3)
		err := ReadRecord(newReader(strings.NewReader(line.in)), dst)
		if line.ok {
			if err != nil {
				t.Fatalf("#%d: %v", i, err)
			}
			for j := range dst {
				if dst[j] != line.want[j] {
					t.Fatalf("#%d: %v", i, dst)
				}
			}
		} else if err == nil {
			t.Fatalf("#%d: expected error", i)
		}
	}
}

func TestReadRecord_Line(t *testing.T) {
	dst := make([]uint16, 2)
	err := ReadRecord(newReader(strings.NewReader("\n\n1,2,3\n")), dst)
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatal(err)
	}
}

func TestWriteRecord(t *testing.T) {
	var b bytes.Buffer
	if err := WriteRecord(&b, []uint16{0, 1, 0xFFFF}); err != nil {
		t.Fatal(err)
	}
	if s := b.String(); s != "0,1,65535\n" {
		t.Fatal(s)
	}
}

func TestSource(t *testing.T) {
	d, err := mlx90640test.NewDevice(mlx90640test.DefaultCalibration(), mlx90640test.DefaultConditions())
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	eePath := filepath.Join(dir, "ee.csv")
	rawPath := filepath.Join(dir, "raw.csv")
	var b bytes.Buffer
	if err := WriteRecord(&b, d.EEPROM()[:]); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(eePath, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	b.Reset()
	var frames []*mlx90640.RawFrame
	for i := 0; i < 3; i++ {
		f := d.Frame(i%2, mlx90640test.Uniform(20+float64(i)))
		frames = append(frames, f)
		if err := WriteRecord(&b, f[:]); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(rawPath, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(eePath, rawPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ee, err := s.EEPROM()
	if err != nil {
		t.Fatal(err)
	}
	if *ee != *d.EEPROM() {
		t.Fatal("EEPROM mismatch")
	}
	if err := s.Skip(1); err != nil {
		t.Fatal(err)
	}
	var f mlx90640.RawFrame
	for i := 1; i < 3; i++ {
		if err := s.NextFrame(&f); err != nil {
			t.Fatal(err)
		}
		if f != *frames[i] {
			t.Fatalf("frame %d mismatch", i)
		}
	}
	if err := s.NextFrame(&f); err != io.EOF {
		t.Fatal(err)
	}
	if s.String() != eePath+"+"+rawPath {
		t.Fatal(s.String())
	}
}

func TestSource_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(filepath.Join(dir, "ee.csv"), filepath.Join(dir, "missing.csv")); err == nil {
		t.Fatal("expected error")
	}
	rawPath := filepath.Join(dir, "raw.csv")
	if err := os.WriteFile(rawPath, []byte("1,2,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	eePath := filepath.Join(dir, "ee.csv")
	if err := os.WriteFile(eePath, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(eePath, rawPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.EEPROM(); err == nil {
		t.Fatal("expected error")
	}
	var f mlx90640.RawFrame
	if err := s.NextFrame(&f); err == nil || err == io.EOF {
		t.Fatal(err)
	}
}
