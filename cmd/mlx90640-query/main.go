// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// mlx90640-query prints the calibration parameters decoded from an EEPROM
// dump and the state of the sensor in the first frame.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/maruel/go-mlx90640/mlx90640"
	"github.com/maruel/go-mlx90640/mlx90640/csvsource"
	"github.com/maruel/go-mlx90640/mlx90640/mlx90640test"
)

func printParams(w io.Writer, p *mlx90640.Params) {
	fmt.Fprintf(w, "KVdd:            %d\n", p.KVdd)
	fmt.Fprintf(w, "Vdd25:           %d\n", p.Vdd25)
	fmt.Fprintf(w, "KvPTAT:          %g\n", p.KvPTAT)
	fmt.Fprintf(w, "KtPTAT:          %g\n", p.KtPTAT)
	fmt.Fprintf(w, "VPTAT25:         %d\n", p.VPTAT25)
	fmt.Fprintf(w, "AlphaPTAT:       %g\n", p.AlphaPTAT)
	fmt.Fprintf(w, "GainEE:          %d\n", p.GainEE)
	fmt.Fprintf(w, "TGC:             %g\n", p.TGC)
	fmt.Fprintf(w, "Resolution:      %d\n", p.ResolutionEE)
	fmt.Fprintf(w, "CalibrationMode: %s\n", p.CalibrationMode)
	fmt.Fprintf(w, "KsTa:            %g\n", p.KsTa)
	fmt.Fprintf(w, "KsTo:            %g\n", p.KsTo)
	fmt.Fprintf(w, "CT:              %d\n", p.CT)
	fmt.Fprintf(w, "CPAlpha:         %g\n", p.CPAlpha)
	fmt.Fprintf(w, "CPOffset:        %d\n", p.CPOffset)
	fmt.Fprintf(w, "CPKv:            %g\n", p.CPKv)
	fmt.Fprintf(w, "CPKta:           %g\n", p.CPKta)
	fmt.Fprintf(w, "ILChessC:        %g\n", p.ILChessC)
	fmt.Fprintf(w, "Scales:          alpha %d, kta %d, kv %d\n", p.AlphaScale, p.KtaScale, p.KvScale)
	fmt.Fprintf(w, "BrokenPixels:    %d\n", p.BrokenPixels)
	fmt.Fprintf(w, "OutlierPixels:   %d\n", p.OutlierPixels)
	if err := p.CheckDeviatingPixels(); err != nil {
		fmt.Fprintf(w, "Warning:         %s\n", err)
	}
}

func printPixel(w io.Writer, p *mlx90640.Params, i int) {
	fmt.Fprintf(w, "Pixel %d (%d, %d): alpha %d, offset %d, kta %d, kv %d\n", i, i%mlx90640.Width, i/mlx90640.Width, p.Alpha[i], p.Offset[i], p.Kta[i], p.Kv[i])
}

func printFrame(w io.Writer, p *mlx90640.Params, f *mlx90640.RawFrame) {
	fmt.Fprintf(w, "SubPage:         %d\n", f.SubPage())
	fmt.Fprintf(w, "Mode:            %s\n", f.Mode())
	fmt.Fprintf(w, "Resolution:      %d\n", f.Resolution())
	fmt.Fprintf(w, "RefreshRate:     %d\n", f.RefreshRate())
	a := mlx90640.ReadAmbient(f, p)
	fmt.Fprintf(w, "Vdd:             %s\n", a.Vdd)
	fmt.Fprintf(w, "Ta:              %s\n", a.Ta)
	fmt.Fprintf(w, "Gain:            %g\n", mlx90640.Gain(f, p))
	fmt.Fprintf(w, "CP:              %g\n", mlx90640.CompensationPixels(f, p))
}

func mainImpl() error {
	eePath := flag.String("c", "EEPROM-calibration-data.csv", "EEPROM CSV file")
	rawPath := flag.String("raw", "", "frame CSV file, to print the state of the first frame")
	pixel := flag.Int("p", -1, "also print the parameters of this pixel")
	fake := flag.Bool("fake", false, "use a simulated device instead of CSV files")
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}
	if *pixel >= mlx90640.PixelCount {
		return fmt.Errorf("-p must be below %d", mlx90640.PixelCount)
	}
	var s mlx90640.Source
	if *fake {
		d, err := mlx90640test.NewDevice(mlx90640test.DefaultCalibration(), mlx90640test.DefaultConditions())
		if err != nil {
			return err
		}
		s = d.NewSource(mlx90640test.Uniform(25), 1)
	} else {
		if *rawPath == "" {
			// The frame file is opened eagerly.
			*rawPath = os.DevNull
		}
		c, err := csvsource.Open(*eePath, *rawPath)
		if err != nil {
			return err
		}
		s = c
	}
	defer s.Close()
	p, err := mlx90640.Load(s)
	if err != nil {
		return err
	}
	printParams(os.Stdout, p)
	if *pixel >= 0 {
		printPixel(os.Stdout, p, *pixel)
	}
	var f mlx90640.RawFrame
	if err := s.NextFrame(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	printFrame(os.Stdout, p, &f)
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nmlx90640-query: %s.\n", err)
		os.Exit(1)
	}
}
