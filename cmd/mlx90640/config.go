// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
)

// Config is the content of ~/.config/mlx90640/mlx90640.json. Flags default
// to its values.
type Config struct {
	EEPROM     string // Path to the EEPROM CSV file.
	Raw        string // Path to the frame CSV file.
	Emissivity string // "0.95" or "UniformDist(0.93,0.97)".
	Samples    int    // 0 for exact arithmetic.
	Seed       int64
	Pixel      int
	TaShift    float64
	Port       int
	LogLevel   string
}

func defaultConfig() Config {
	return Config{
		EEPROM:     "EEPROM-calibration-data.csv",
		Raw:        "raw-frame-data.csv",
		Emissivity: "UniformDist(0.93,0.97)",
		Samples:    256,
		Seed:       1,
		Pixel:      400,
		TaShift:    8,
		LogLevel:   "info",
	}
}

func configPath() string {
	usr, err := user.Current()
	if err != nil {
		return ""
	}
	return filepath.Join(usr.HomeDir, ".config", "mlx90640", "mlx90640.json")
}

// loadConfig reads path on top of the defaults. A missing file is not an
// error.
func loadConfig(path string) (Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("%s is invalid json: %w", path, err)
	}
	return c, nil
}

// writeConfig normalizes the config file. It is only written when the
// content changes.
func writeConfig(path string, c *Config) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if src, err := os.ReadFile(path); err == nil && bytes.Equal(src, data) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
