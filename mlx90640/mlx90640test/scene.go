// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mlx90640test

import (
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/maruel/go-mlx90640/mlx90640"
)

// Scene is the object temperature in °C seen by each pixel.
type Scene interface {
	Temperature(x, y int) float64
}

// Uniform is a scene at a single temperature.
type Uniform float64

func (u Uniform) Temperature(x, y int) float64 {
	return float64(u)
}

// Gradient is a linear scene.
type Gradient struct {
	Base   float64
	DX, DY float64
}

func (g Gradient) Temperature(x, y int) float64 {
	return g.Base + float64(x)*g.DX + float64(y)*g.DY
}

// SceneFunc adapts a function to Scene.
type SceneFunc func(x, y int) float64

func (f SceneFunc) Temperature(x, y int) float64 {
	return f(x, y)
}

//

type vector struct {
	intensity float64
	x         float64
	y         float64
}

// Noise is a background with a few hot and cold spots drifting at each
// Update. It is cheezy but gets us going for testing without a device.
type Noise struct {
	Background float64
	rand       *rand.Rand
	vectors    []vector
}

// NewNoise returns a Noise scene. The same seed always produces the same
// scene.
func NewNoise(background float64, seed int64) *Noise {
	n := &Noise{Background: background, rand: rand.New(rand.NewSource(seed))}
	n.vectors = make([]vector, 6)
	for i := range n.vectors {
		n.vectors[i].intensity = n.rand.NormFloat64() * 15
		n.vectors[i].x = n.rand.NormFloat64()*6 + mlx90640.Width/2
		n.vectors[i].y = n.rand.NormFloat64()*4 + mlx90640.Height/2
	}
	return n
}

// Update moves the spots.
func (n *Noise) Update() {
	for i := range n.vectors {
		n.vectors[i].intensity += n.rand.NormFloat64() * 0.2
		n.vectors[i].x += n.rand.NormFloat64() * 0.2
		n.vectors[i].y += n.rand.NormFloat64() * 0.2
	}
}

func (n *Noise) Temperature(x, y int) float64 {
	fx, fy := float64(x), float64(y)
	v := n.Background
	for _, vect := range n.vectors {
		d := (vect.x-fx)*(vect.x-fx) + (vect.y-fy)*(vect.y-fy)
		v += vect.intensity / (1 + d/8)
	}
	return math.Max(-40, math.Min(300, v))
}

// Source is a fake mlx90640.Source producing the frames of a Device looking
// at a scene, alternating sub-pages.
type Source struct {
	// Interval is the delay before returning each frame.
	Interval time.Duration

	dev    *Device
	scene  Scene
	frames int
	i      int
}

// NewSource returns a Source producing frames frames, or an infinite stream
// if frames is 0. When scene has an Update() method, it is called before
// each frame.
func (d *Device) NewSource(scene Scene, frames int) *Source {
	return &Source{dev: d, scene: scene, frames: frames}
}

func (s *Source) EEPROM() (*mlx90640.EEPROM, error) {
	return s.dev.EEPROM(), nil
}

func (s *Source) NextFrame(f *mlx90640.RawFrame) error {
	if s.frames > 0 && s.i >= s.frames {
		return io.EOF
	}
	if s.Interval > 0 {
		time.Sleep(s.Interval)
	}
	if u, ok := s.scene.(interface{ Update() }); ok {
		u.Update()
	}
	*f = *s.dev.Frame(s.i%2, s.scene)
	s.i++
	return nil
}

func (s *Source) Close() error {
	return nil
}

func (s *Source) String() string {
	return "mlx90640test"
}

var _ mlx90640.Source = &Source{}
