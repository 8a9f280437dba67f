// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// mlx90640-grab captures frames of a simulated device as CSV files that
// mlx90640 can convert.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"github.com/maruel/go-mlx90640/internal/logging"
	"github.com/maruel/go-mlx90640/mlx90640"
	"github.com/maruel/go-mlx90640/mlx90640/csvsource"
	"github.com/maruel/go-mlx90640/mlx90640/mlx90640test"
	"github.com/maruel/go-mlx90640/uncertain"
	"github.com/maruel/interrupt"
)

func parseMode(s string) (mlx90640.ReadingPattern, error) {
	switch s {
	case "chess":
		return mlx90640.Chess, nil
	case "interleaved":
		return mlx90640.Interleaved, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// grab writes the calibration to eePath and n frames to rawPath.
func grab(d *mlx90640test.Device, scene mlx90640test.Scene, n int, eePath, rawPath string) ([]*mlx90640.RawFrame, error) {
	f, err := os.Create(eePath)
	if err != nil {
		return nil, err
	}
	err = csvsource.WriteRecord(f, d.EEPROM()[:])
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return nil, err
	}

	if f, err = os.Create(rawPath); err != nil {
		return nil, err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	s := d.NewSource(scene, n)
	var frames []*mlx90640.RawFrame
	for i := 0; i < n && !interrupt.IsSet(); i++ {
		raw := &mlx90640.RawFrame{}
		if err := s.NextFrame(raw); err != nil {
			return nil, err
		}
		if err := csvsource.WriteRecord(w, raw[:]); err != nil {
			return nil, err
		}
		frames = append(frames, raw)
		slog.Debug("frame", "n", i, "subpage", raw.SubPage())
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return frames, f.Close()
}

// savePNG converts the last two frames and writes them as a PNG.
func savePNG(d *mlx90640test.Device, frames []*mlx90640.RawFrame, path string, agc bool) error {
	if len(frames) < 2 {
		return errors.New("-png requires at least 2 frames")
	}
	a := uncertain.Exact{}
	c, err := mlx90640.NewConverter[float64](a, d.Params, d.Cond.Emissivity, mlx90640.DefaultOptions())
	if err != nil {
		return err
	}
	img, err := c.Render(frames[len(frames)-2], frames[len(frames)-1])
	if err != nil {
		return err
	}
	th := mlx90640.NewThermogram[float64](a, &img)
	var out image.Image = th.Gray16()
	if agc {
		out = th
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, out)
}

func mainImpl() error {
	eePath := flag.String("c", "EEPROM-calibration-data.csv", "EEPROM CSV file to write")
	rawPath := flag.String("raw", "raw-frame-data.csv", "frame CSV file to write")
	n := flag.Int("n", 2, "number of frames")
	temp := flag.Float64("t", 0, "uniform scene temperature in °C; a drifting scene when 0")
	seed := flag.Int64("seed", 1, "seed of the drifting scene")
	mode := flag.String("mode", "chess", "reading pattern, chess or interleaved")
	ta := flag.Float64("ta", 30, "die temperature in °C")
	vdd := flag.Float64("vdd", 3.3, "supply voltage")
	e := flag.Float64("e", 0.95, "emissivity of the scene")
	pngPath := flag.String("png", "", "also save the converted image as a 16 bits PNG")
	agc := flag.Bool("agc", false, "save a 8 bit PNG instead of the default 16 bits")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(logging.New(os.Stderr, level, false))

	if flag.NArg() != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}
	if *n < 1 {
		return errors.New("-n must be at least 1")
	}
	cond := mlx90640test.DefaultConditions()
	var err error
	if cond.Mode, err = parseMode(*mode); err != nil {
		return err
	}
	cond.Ta = *ta
	cond.Vdd = *vdd
	cond.Emissivity = *e
	d, err := mlx90640test.NewDevice(mlx90640test.DefaultCalibration(), cond)
	if err != nil {
		return err
	}
	var scene mlx90640test.Scene = mlx90640test.NewNoise(25, *seed)
	if *temp != 0 {
		scene = mlx90640test.Uniform(*temp)
	}

	interrupt.HandleCtrlC()
	frames, err := grab(d, scene, *n, *eePath, *rawPath)
	if err != nil {
		return err
	}
	slog.Info("captured", "frames", len(frames), "ee", *eePath, "raw", *rawPath)
	if *pngPath != "" {
		return savePNG(d, frames, *pngPath, *agc)
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nmlx90640-grab: %s.\n", err)
		os.Exit(1)
	}
}
