// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// mlx90640 converts MLX90640 frames captured as CSV files into calibrated
// object temperatures.
//
// The emissivity may be given as an interval, e.g. "UniformDist(0.93,0.97)",
// in which case each temperature is computed as a distribution of -samples
// values.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	"github.com/maruel/go-mlx90640/internal/logging"
	"github.com/maruel/go-mlx90640/mlx90640"
	"github.com/maruel/go-mlx90640/mlx90640/csvsource"
	"github.com/maruel/go-mlx90640/mlx90640/mlx90640test"
	"github.com/maruel/go-mlx90640/uncertain"
	"github.com/maruel/interrupt"
)

// run is the processing requested on the command line.
type run struct {
	cfg    Config
	all    bool
	json   bool
	strict bool
	fake   bool
	watch  bool
	skip   int
	opts   mlx90640.Options
	out    io.Writer
}

func (r *run) open() (mlx90640.Source, error) {
	if r.fake {
		d, err := mlx90640test.NewDevice(mlx90640test.DefaultCalibration(), mlx90640test.DefaultConditions())
		if err != nil {
			return nil, err
		}
		frames := 2
		if r.cfg.Port != 0 {
			frames = 0
		}
		s := d.NewSource(mlx90640test.NewNoise(25, r.cfg.Seed), frames)
		if r.cfg.Port != 0 {
			s.Interval = 500 * time.Millisecond
		}
		return s, nil
	}
	s, err := csvsource.Open(r.cfg.EEPROM, r.cfg.Raw)
	if err != nil {
		return nil, err
	}
	if err := s.Skip(r.skip); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (r *run) load(s mlx90640.Source) (*mlx90640.Params, error) {
	p, err := mlx90640.Load(s)
	if err != nil {
		return nil, err
	}
	if err := p.CheckDeviatingPixels(); err != nil {
		if r.strict {
			return nil, err
		}
		slog.Warn("calibration", "err", err)
	}
	slog.Debug("calibration", "source", s.String(), "broken", p.BrokenPixels, "outliers", p.OutlierPixels, "mode", p.CalibrationMode)
	return p, nil
}

// pixel returns the pixel to print, -1 for all.
func (r *run) pixel() int {
	if r.all {
		return -1
	}
	return r.cfg.Pixel
}

// convert reads all the frames of the source and prints the resulting image.
func convert[T any](r *run, a uncertain.Arithmetic[T], e T) error {
	s, err := r.open()
	if err != nil {
		return err
	}
	defer s.Close()
	p, err := r.load(s)
	if err != nil {
		return err
	}
	c, err := mlx90640.NewConverter(a, p, e, r.opts)
	if err != nil {
		return err
	}
	var f mlx90640.RawFrame
	for {
		if err := s.NextFrame(&f); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if err := c.Push(&f); err != nil {
			slog.Warn("frame", "err", err)
		}
	}
	st := c.Stats()
	slog.Debug("converted", "stats", st.String())
	if st.Frames == 0 {
		return errors.New("no frame to convert")
	}
	img := c.Image()
	if !img.Ready() {
		slog.Warn("missing sub-page, some pixels are not computed", "subpages", img.SubPages)
	}
	if n := img.Faults.Len(); n != 0 {
		slog.Warn("pixel faults", "count", n)
	}
	if r.json {
		return printJSON(r.out, a, &img, r.pixel())
	}
	return printText(r.out, a, &img, e, r.pixel())
}

// serve converts frames continuously and publishes them over HTTP.
func serve[T any](r *run, a uncertain.Arithmetic[T], e T) error {
	s, err := r.open()
	if err != nil {
		return err
	}
	defer s.Close()
	p, err := r.load(s)
	if err != nil {
		return err
	}
	c, err := mlx90640.NewConverter(a, p, e, r.opts)
	if err != nil {
		return err
	}
	w := newWebServer()
	l, err := w.serve(fmt.Sprintf(":%d", r.cfg.Port))
	if err != nil {
		return err
	}
	defer l.Close()

	frames := make(chan *mlx90640.RawFrame)
	go func() {
		defer close(frames)
		for !interrupt.IsSet() {
			f := &mlx90640.RawFrame{}
			if err := s.NextFrame(f); err != nil {
				if err != io.EOF {
					slog.Error("source", "err", err)
				}
				return
			}
			select {
			case frames <- f:
			case <-interrupt.Channel:
				return
			}
		}
	}()

	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				// Keep serving the last image.
				<-interrupt.Channel
				fmt.Print("\n")
				return nil
			}
			if err := c.Push(f); err != nil {
				slog.Warn("frame", "err", err)
				continue
			}
			if c.Ready() {
				img := c.Image()
				w.update(snapshot{Img: mlx90640.NewThermogram(a, &img), Ambient: img.Ambient, Faults: img.Faults.Len(), Stats: c.Stats()})
			}
		case <-t.C:
			st := c.Stats()
			fmt.Printf("\r%s", &st)
		case <-interrupt.Channel:
			fmt.Print("\n")
			return nil
		}
	}
}

// dispatch selects the arithmetic: exact when samples is 0, Monte Carlo
// otherwise.
func (r *run) dispatch(lo, hi float64) error {
	if r.cfg.Samples == 0 {
		if lo != hi {
			slog.Warn("emissivity interval reduced to its midpoint, use -samples", "lo", lo, "hi", hi)
		}
		a := uncertain.Exact{}
		e := a.Uniform(lo, hi)
		return r.loop(func() error { return execute[float64](r, a, e) })
	}
	a := uncertain.NewSampled(r.cfg.Samples, r.cfg.Seed)
	e := a.Uniform(lo, hi)
	return r.loop(func() error { return execute[uncertain.Value](r, a, e) })
}

func execute[T any](r *run, a uncertain.Arithmetic[T], e T) error {
	if r.cfg.Port != 0 {
		return serve(r, a, e)
	}
	return convert(r, a, e)
}

// loop runs fn once, or each time the CSV files change with -watch.
func (r *run) loop(fn func() error) error {
	if r.fake || r.cfg.Port != 0 || !r.watch {
		return fn()
	}
	for !interrupt.IsSet() {
		if err := fn(); err != nil {
			slog.Error("conversion", "err", err)
		}
		if err := watchFiles(r.cfg.EEPROM, r.cfg.Raw); err != nil {
			return err
		}
	}
	return nil
}

func mainImpl() error {
	path := configPath()
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	r := &run{cfg: cfg, opts: mlx90640.DefaultOptions(), out: os.Stdout}
	flag.StringVar(&r.cfg.EEPROM, "c", cfg.EEPROM, "EEPROM CSV file")
	flag.StringVar(&r.cfg.Raw, "raw", cfg.Raw, "frame CSV file")
	flag.StringVar(&r.cfg.Emissivity, "e", cfg.Emissivity, "emissivity, a value or UniformDist(lo,hi)")
	flag.IntVar(&r.cfg.Samples, "samples", cfg.Samples, "samples per distribution, 0 for exact arithmetic")
	flag.Int64Var(&r.cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.IntVar(&r.cfg.Pixel, "p", cfg.Pixel, "pixel to print")
	flag.Float64Var(&r.cfg.TaShift, "tashift", cfg.TaShift, "die temperature minus reflected temperature")
	flag.IntVar(&r.cfg.Port, "http", cfg.Port, "serve the images on this port instead of printing")
	flag.StringVar(&r.cfg.LogLevel, "log", cfg.LogLevel, "log level")
	flag.BoolVar(&r.all, "a", false, "print all pixels")
	flag.BoolVar(&r.json, "j", false, "print as JSON")
	flag.BoolVar(&r.strict, "strict", false, "refuse devices with too many deviating pixels")
	flag.BoolVar(&r.fake, "fake", false, "use a simulated device instead of CSV files")
	flag.IntVar(&r.skip, "skip", 0, "frames to skip")
	noQuant := flag.Bool("q", false, "disable the ADC quantization uncertainty")
	flag.BoolVar(&r.opts.CorrectDeviating, "correct", false, "replace deviating pixels with an estimate from their neighbors")
	flag.BoolVar(&r.watch, "watch", false, "convert again when the CSV files change")
	logJSON := flag.Bool("logjson", false, "log as JSON")
	verbose := flag.Bool("v", false, "verbose mode")
	cpuprofile := flag.String("cpuprofile", "", "dump CPU profile in file")
	writeCfg := flag.Bool("writeConfig", false, "write the flags to "+path+" and exit")
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}
	level, err := logging.ParseLevel(r.cfg.LogLevel)
	if err != nil {
		return err
	}
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(logging.New(os.Stderr, level, *logJSON))

	if *writeCfg {
		if path == "" {
			return errors.New("no home directory")
		}
		return writeConfig(path, &r.cfg)
	}
	if r.cfg.Pixel < 0 || r.cfg.Pixel >= mlx90640.PixelCount {
		return fmt.Errorf("-p must be between 0 and %d", mlx90640.PixelCount-1)
	}
	if r.cfg.Samples < 0 {
		return errors.New("-samples must be positive")
	}
	lo, hi, err := uncertain.ParseInterval(r.cfg.Emissivity)
	if err != nil {
		return err
	}
	r.opts.TaShift = r.cfg.TaShift
	r.opts.Quantization = !*noQuant

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	interrupt.HandleCtrlC()
	return r.dispatch(lo, hi)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nmlx90640: %s.\n", err)
		os.Exit(1)
	}
}
