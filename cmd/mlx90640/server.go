// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"html/template"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/maruel/go-mlx90640/mlx90640"
	"github.com/maruel/serve-dir/loghttp"
	"golang.org/x/net/netutil"
)

// snapshot is the last converted image.
type snapshot struct {
	Img     *mlx90640.Thermogram
	Ambient mlx90640.Ambient
	Faults  int
	Stats   mlx90640.Stats
}

type webServer struct {
	lock  sync.Mutex
	state snapshot
}

func newWebServer() *webServer {
	return &webServer{state: snapshot{Img: &mlx90640.Thermogram{}}}
}

func (s *webServer) update(st snapshot) {
	s.lock.Lock()
	s.state = st
	s.lock.Unlock()
}

func (s *webServer) snapshot() snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

func (s *webServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.root)
	mux.HandleFunc("/favicon.ico", s.still)
	mux.HandleFunc("/still.png", s.still)
	mux.HandleFunc("/still16.png", s.still16)
	mux.HandleFunc("/temperatures.json", s.temperatures)
	return &loghttp.Handler{Handler: mux}
}

// serve listens on addr, accepting at most 16 concurrent connections.
func (s *webServer) serve(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l = netutil.LimitListener(l, 16)
	slog.Info("listening", "addr", l.Addr().String())
	go func() {
		if err := http.Serve(l, s.handler()); err != nil {
			slog.Debug("server stopped", "err", err)
		}
	}()
	return l, nil
}

var rootTmpl = template.Must(template.New("name").Parse(`
	<html>
	<head>
		<title>mlx90640</title>
		<style>
			img.large {
				width: 640; /* Multiple of 32 */
				height: auto;
				image-rendering: pixelated;
			}
		</style>
		<script>
		function reload() {
			var still = document.getElementById("still");
			still.src = "/still.png#" + new Date().getTime();
		}
		</script>
	</head>
	<body>
	Still:<br>
	<a href="/still.png"><img class="large" id="still" src="/still.png" onload="setTimeout(reload, 500)"></img></a>
	<br>
	{{.Stats.String}}
	<br>
	{{.Ambient}}
	<br>
	{{printf "%.2f" .Img.Min}}°C - {{printf "%.2f" .Img.Max}}°C, {{.Faults}} faults
	</body>
	</html>`))

func (s *webServer) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	st := s.snapshot()
	if err := rootTmpl.Execute(w, &st); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *webServer) still(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	st := s.snapshot()
	if err := png.Encode(w, st.Img); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *webServer) still16(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	st := s.snapshot()
	if err := png.Encode(w, st.Img.Gray16()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *webServer) temperatures(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	st := s.snapshot()
	v := variable{Symbol: "temperatures", Description: "Temperatures (calibrated)", Type: "float", Values: make([]json.Marshaler, len(st.Img.Pix))}
	for i, t := range st.Img.Pix {
		v.Values[i] = jsonFloat(t)
	}
	out := conversion{Description: "MLX90640 Conversion Values.", Variables: []variable{v}}
	if err := json.NewEncoder(w).Encode(&out); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
