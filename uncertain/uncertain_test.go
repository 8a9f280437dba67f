// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package uncertain

import (
	"encoding/json"
	"math"
	"testing"
)

func TestExact(t *testing.T) {
	var a Exact
	if v := a.Uniform(10.5, 11.5); v != 11 {
		t.Fatal(v)
	}
	if v := a.Sqrt(a.Div(a.Mul(a.Const(8), a.Const(2)), a.Sub(a.Const(5), a.Add(a.Const(0), a.Const(1))))); v != 2 {
		t.Fatal(v)
	}
	if v := a.Mean(3); v != 3 {
		t.Fatal(v)
	}
}

func TestParseInterval(t *testing.T) {
	data := []struct {
		in     string
		lo, hi float64
	}{
		{"0.95", 0.95, 0.95},
		{" 1 ", 1, 1},
		{"UniformDist(0.93,0.97)", 0.93, 0.97},
		{"UniformDist( 0.9 , 1 )", 0.9, 1},
	}
	for i, line := range data {
		lo, hi, err := ParseInterval(line.in)
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		if lo != line.lo || hi != line.hi {
			t.Fatalf("#%d: %g, %g", i, lo, hi)
		}
	}
	for _, s := range []string{"", "x", "UniformDist(1)", "UniformDist(1,2", "UniformDist(2,1)", "UniformDist(a,1)", "UniformDist(1,b)"} {
		if _, _, err := ParseInterval(s); err == nil {
			t.Fatalf("%q: expected error", s)
		}
	}
}

func TestSampled_Uniform(t *testing.T) {
	s := NewSampled(256, 1)
	if s.N() != 256 {
		t.Fatal(s.N())
	}
	v := s.Uniform(0.93, 0.97)
	if v.IsExact() {
		t.Fatal("expected a distribution")
	}
	lo, hi := v.Support()
	if lo < 0.93 || hi > 0.97 {
		t.Fatal(lo, hi)
	}
	// Stratified: exactly one sample per bucket.
	var buckets [256]int
	for _, x := range v.Samples() {
		b := int((x - 0.93) / 0.04 * 256)
		if b == 256 {
			b = 255
		}
		buckets[b]++
	}
	for i, c := range buckets {
		if c != 1 {
			t.Fatalf("bucket %d: %d", i, c)
		}
	}
	if m := v.Mean(); math.Abs(m-0.95) > 0.04/256 {
		t.Fatal(m)
	}
	if m := v.Median(); math.Abs(m-0.95) > 0.04/256 {
		t.Fatal(m)
	}
	if d := v.StdDev(); math.Abs(d-0.04/math.Sqrt(12)) > 0.001 {
		t.Fatal(d)
	}
}

func TestSampled_Degenerate(t *testing.T) {
	s := NewSampled(16, 1)
	v := s.Uniform(2, 2)
	if !v.IsExact() || v.Mean() != 2 {
		t.Fatal(v)
	}
	if v.Samples() != nil {
		t.Fatal("unexpected samples")
	}
	if lo, hi := v.Support(); lo != 2 || hi != 2 {
		t.Fatal(lo, hi)
	}
	if r := s.Sqrt(s.Mul(v, s.Const(8))); !r.IsExact() || r.Mean() != 4 {
		t.Fatal(r)
	}
}

func TestSampled_Correlated(t *testing.T) {
	// x - x must be exactly zero for every sample, which would not be the case
	// if each operation redrew its operands.
	s := NewSampled(64, 42)
	x := s.Uniform(-1, 1)
	d := s.Sub(x, x)
	lo, hi := d.Support()
	if lo != 0 || hi != 0 {
		t.Fatal(lo, hi)
	}
	q := s.Div(x, x)
	if lo, hi := q.Support(); lo != 1 || hi != 1 {
		t.Fatal(lo, hi)
	}
}

func TestSampled_Deterministic(t *testing.T) {
	a := NewSampled(32, 7).Uniform(0, 1).Samples()
	b := NewSampled(32, 7).Uniform(0, 1).Samples()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("#%d: %g != %g", i, a[i], b[i])
		}
	}
}

func TestSampled_Mismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	a := NewSampled(4, 1)
	b := NewSampled(8, 1)
	a.Add(a.Uniform(0, 1), b.Uniform(0, 1))
}

func TestValue_Quantile(t *testing.T) {
	v := FromSamples([]float64{4, 1, 3, 2, 5})
	data := []struct {
		p, want float64
	}{
		{0, 1},
		{0.25, 2},
		{0.5, 3},
		{0.625, 3.5},
		{1, 5},
	}
	for i, line := range data {
		if q := v.Quantile(line.p); math.Abs(q-line.want) > 1e-12 {
			t.Fatalf("#%d: %g != %g", i, q, line.want)
		}
	}
	if v.Mean() != 3 {
		t.Fatal(v.Mean())
	}
	if m := v.Median(); math.Abs(m-3) > 1e-12 {
		t.Fatal(m)
	}
	if d := v.StdDev(); math.Abs(d-math.Sqrt2) > 1e-12 {
		t.Fatal(d)
	}
	if q := Exactly(7).Quantile(0.1); q != 7 {
		t.Fatal(q)
	}
	n := FromSamples([]float64{2, math.NaN(), 1})
	if q := n.Quantile(0.5); !math.IsNaN(q) {
		t.Fatal(q)
	}
	if lo, hi := n.Support(); lo != 1 || hi != 2 {
		t.Fatal(lo, hi)
	}
}

func TestValue_JSON(t *testing.T) {
	data := []struct {
		v    Value
		want string
	}{
		{Exactly(1.5), "1.5"},
		{Exactly(math.NaN()), "null"},
		{Exactly(math.Inf(-1)), "null"},
		{FromSamples([]float64{1, 3}), `{"mean":2,"stddev":1,"support":[1,3],"samples":[1,3]}`},
		{FromSamples([]float64{1, math.NaN(), 3}), `{"mean":null,"stddev":null,"support":[1,3],"samples":[1,null,3]}`},
	}
	for i, line := range data {
		b, err := json.Marshal(line.v)
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		if s := string(b); s != line.want {
			t.Fatalf("#%d: %s", i, s)
		}
	}
}

func TestValue_String(t *testing.T) {
	if s := Exactly(2.5).String(); s != "2.5" {
		t.Fatal(s)
	}
	if s := FromSamples([]float64{1, 3}).String(); s != "2.0000±1.0000" {
		t.Fatal(s)
	}
}
