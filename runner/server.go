// Package runner is the process that owns one loaded transformer and
// answers forward-pass requests over HTTP (SPEC_FULL.md "runner (process
// that owns a loaded model and answers forward-pass requests)"). Grounded
// on the teacher's runner/llamarunner/server.go Execute/load/health shape,
// generalized from its multi-sequence batched-request server (an explicit
// spec Non-goal) down to this spec's single-stream, single-transformer
// process: one model, one in-flight forward call, enforced by
// device.Transformer's own semaphore rather than a sequence-slot pool.
package runner

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/tensorcore/calmrt/device"
	"github.com/tensorcore/calmrt/model"
)

// Status mirrors the teacher's llm.ServerStatus enum, trimmed to the
// states a single-model process actually passes through.
type Status int

const (
	StatusLaunched Status = iota
	StatusLoadingModel
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLaunched:
		return "launched"
	case StatusLoadingModel:
		return "loading model"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Loader is supplied by the out-of-scope model-file parser (spec.md §1
// "Out of scope: the model-file parser that populates the weight and
// config structures"): it produces a validated Config and host-resident
// weight table for Server.Load to upload.
type Loader func() (model.Config, model.HostWeights, error)

// Server holds the single loaded Transformer this process serves.
type Server struct {
	status Status

	load Loader
	t    *device.Transformer
}

// NewServer constructs a Server that will call load on demand (spec.md
// §4.1 "prepare(config, host_weights) → device_transformer").
func NewServer(load Loader) *Server {
	return &Server{status: StatusLaunched, load: load}
}

func (s *Server) loadModel() {
	s.status = StatusLoadingModel
	cfg, hw, err := s.load()
	if err != nil {
		slog.Error("model load failed", "error", err)
		return
	}
	t, err := device.Prepare(cfg, hw)
	if err != nil {
		slog.Error("prepare failed", "error", err)
		return
	}
	s.t = t
	s.status = StatusReady
	slog.Info("model ready", "transformer", t.ID, "arch", cfg.Arch, "memory_bytes", t.Memory.Total())
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&healthResponse{Status: s.status.String()}); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// Execute is the process entrypoint: parses flags, loads the model, and
// serves forward-pass requests (spec.md §6's three external operations,
// wrapped in one long-lived process), mirroring the teacher's
// runner.Execute shape.
func Execute(args []string, load Loader) error {
	fs := flag.NewFlagSet("runner", flag.ExitOnError)
	port := fs.Int("port", 8080, "port to expose the server on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	slog.Info("starting calmrt runner")

	s := NewServer(load)
	s.loadModel()

	addr := "127.0.0.1:" + strconv.Itoa(*port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listener.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("POST /forward", s.forward)

	slog.Info("server listening", "addr", addr)
	return http.Serve(listener, mux)
}
