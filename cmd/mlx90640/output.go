// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/maruel/go-mlx90640/mlx90640"
	"github.com/maruel/go-mlx90640/uncertain"
)

// jsonFloat is written as null when it is not finite.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

type variable struct {
	Symbol      string           `json:"symbol"`
	Description string           `json:"description"`
	Type        string           `json:"type"`
	Values      []json.Marshaler `json:"values"`
}

type conversion struct {
	Description string     `json:"description"`
	Variables   []variable `json:"variables"`
}

// jsonValue returns t itself when it knows how to encode its distribution,
// else its representative value.
func jsonValue[T any](a uncertain.Arithmetic[T], t T) json.Marshaler {
	if m, ok := any(t).(json.Marshaler); ok {
		return m
	}
	return jsonFloat(a.Mean(t))
}

// printJSON writes the temperature of pixel, or of all pixels if pixel is
// negative. Exact values are numbers; distributions are objects with their
// samples.
func printJSON[T any](w io.Writer, a uncertain.Arithmetic[T], img *mlx90640.Image[T], pixel int) error {
	v := variable{Symbol: "temperature", Description: "Temperature (calibrated)", Type: "float"}
	if _, ok := any(img.To[0]).(json.Marshaler); ok {
		v.Type = "distribution"
	}
	if pixel < 0 {
		v.Symbol = "temperatures"
		v.Description = "Temperatures (calibrated)"
		v.Values = make([]json.Marshaler, 0, len(img.To))
		for _, t := range img.To {
			v.Values = append(v.Values, jsonValue(a, t))
		}
	} else {
		v.Values = []json.Marshaler{jsonValue(a, img.To[pixel])}
	}
	out := conversion{Description: "MLX90640 Conversion Values.", Variables: []variable{v}}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// printText writes a human readable report. Distributions are printed as
// mean±stddev for a single pixel.
func printText[T any](w io.Writer, a uncertain.Arithmetic[T], img *mlx90640.Image[T], emissivity T, pixel int) error {
	if _, err := fmt.Fprintf(w, "Emissivity: %v\nAmbient:    %s\n", emissivity, img.Ambient); err != nil {
		return err
	}
	if pixel >= 0 {
		_, err := fmt.Fprintf(w, "Pixel %d (%d, %d): %v°C\n", pixel, pixel%mlx90640.Width, pixel/mlx90640.Width, img.To[pixel])
		return err
	}
	for y := 0; y < mlx90640.Height; y++ {
		for x := 0; x < mlx90640.Width; x++ {
			sep := " "
			if x == mlx90640.Width-1 {
				sep = "\n"
			}
			if _, err := fmt.Fprintf(w, "%6.2f%s", a.Mean(img.At(x, y)), sep); err != nil {
				return err
			}
		}
	}
	if n := img.Faults.Len(); n != 0 {
		_, err := fmt.Fprintf(w, "Faults:     %v\n", img.Faults.Pixels())
		return err
	}
	return nil
}
