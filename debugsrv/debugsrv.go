// Copyright 2026 The valkeygo Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package debugsrv exposes a gorilla/mux HTTP server for inspecting a
// running Client: pool occupancy and, in cluster mode, the current
// slot-to-shard topology. A config.Enabled gate controls whether it
// runs at all, with optional pprof routes alongside the diagnostics
// routes.
package debugsrv

import (
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/valkeygo/valkeygo/confengine"
	"github.com/valkeygo/valkeygo/logger"
)

// Config controls whether the debug server runs and how.
type Config struct {
	Enabled bool          `config:"enabled"`
	Address string        `config:"address"`
	Pprof   bool          `config:"pprof"`
	Timeout time.Duration `config:"timeout"`
}

// Inspectable is the subset of Client this package needs: pool stats
// per node address, and (in cluster mode) a JSON-able topology dump.
// Client implements it.
type Inspectable interface {
	PoolStats() map[string]NodeStats
	TopologyDump() (any, bool)
}

// NodeStats is one node's connection pool occupancy.
type NodeStats struct {
	Addr   string `json:"addr"`
	Open   int    `json:"open"`
	Leased int    `json:"leased"`
}

// Server serves /debug/pool, /debug/topology, and optionally
// /debug/pprof/* over HTTP.
type Server struct {
	config Config
	router *mux.Router
	server *http.Server
}

// New builds a Server from the "debugServer" section of conf. It
// returns a nil Server (and nil error) when that section is disabled,
// the same "check before dereferencing" contract as server.New.
func New(conf *confengine.Config, client Inspectable) (*Server, error) {
	var config Config
	if err := conf.UnpackChild("debugServer", &config); err != nil {
		return nil, err
	}
	if !config.Enabled {
		return nil, nil
	}

	router := mux.NewRouter()
	s := &Server{
		config: config,
		router: router,
		server: &http.Server{
			Handler:      router,
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
		},
	}
	s.registerRoutes(client)
	if config.Pprof {
		s.registerPprofRoutes()
	}
	return s, nil
}

// ListenAndServe blocks serving the debug server until it errors or
// is shut down.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	logger.Infof("debug server listening on %s", s.config.Address)
	return s.server.Serve(l)
}

// Close shuts the debug server's listener down.
func (s *Server) Close() error {
	return s.server.Close()
}

func (s *Server) registerRoutes(client Inspectable) {
	s.router.Methods(http.MethodGet).Path("/debug/pool").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, client.PoolStats())
	})
	s.router.Methods(http.MethodGet).Path("/debug/topology").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		topo, ok := client.TopologyDump()
		if !ok {
			http.Error(w, "not running in cluster mode", http.StatusNotFound)
			return
		}
		writeJSON(w, topo)
	})
}

func (s *Server) registerPprofRoutes() {
	s.router.Methods(http.MethodGet).Path("/debug/pprof/cmdline").HandlerFunc(pprof.Cmdline)
	s.router.Methods(http.MethodGet).Path("/debug/pprof/profile").HandlerFunc(pprof.Profile)
	s.router.Methods(http.MethodGet).Path("/debug/pprof/symbol").HandlerFunc(pprof.Symbol)
	s.router.Methods(http.MethodGet).Path("/debug/pprof/trace").HandlerFunc(pprof.Trace)
	s.router.Methods(http.MethodGet).Path("/debug/pprof/{other}").HandlerFunc(pprof.Index)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Warnf("debugsrv: encoding response: %v", err)
	}
}
