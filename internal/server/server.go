// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/blinklabs-io/utxoorder/database"
	"github.com/blinklabs-io/utxoorder/internal/config"
	"github.com/blinklabs-io/utxoorder/utxoref"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxRequestBodySize = 1 << 20
	defaultPageSize    = 100
	maxPageSize        = 1000
)

type refsRequest struct {
	Refs  []utxoref.Ref
	Dedup bool
}

// A JSON null decodes to the zero Ref without calling UnmarshalText, so refs
// are decoded as pointers and nil entries rejected
type rawRefsRequest struct {
	Refs  []*utxoref.Ref `json:"refs"`
	Dedup bool           `json:"dedup,omitempty"`
}

type refsResponse struct {
	Refs []utxoref.Ref `json:"refs"`
}

type checkResponse struct {
	Sorted bool `json:"sorted"`
}

type countResponse struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes canonical sorting and the UTxO store over HTTP
type Server struct {
	store    *database.Store
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	mux      *http.ServeMux
}

// New returns a Server backed by store. Metrics are served from gatherer.
func New(
	store *database.Store,
	logger *slog.Logger,
	gatherer prometheus.Gatherer,
) *Server {
	s := &Server{
		store:    store,
		logger:   logger,
		gatherer: gatherer,
		mux:      http.NewServeMux(),
	}
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("POST /v1/sort", s.handleSort)
	s.mux.HandleFunc("POST /v1/check", s.handleCheck)
	s.mux.HandleFunc("GET /v1/utxos", s.handleListUtxos)
	s.mux.HandleFunc("POST /v1/utxos", s.handleAddUtxos)
	s.mux.HandleFunc("DELETE /v1/utxos/{ref}", s.handleRemoveUtxo)
	return s
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(
			fmt.Sprintf("failed to write response: %s", err),
			"component", "server",
		)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJson(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) readRefs(
	w http.ResponseWriter,
	r *http.Request,
) (*refsRequest, bool) {
	var rawReq rawRefsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rawReq); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return nil, false
	}
	req := &refsRequest{
		Refs:  make([]utxoref.Ref, 0, len(rawReq.Refs)),
		Dedup: rawReq.Dedup,
	}
	for i, ref := range rawReq.Refs {
		if ref == nil {
			s.writeError(
				w,
				http.StatusBadRequest,
				fmt.Errorf(
					"invalid request: %w: null ref at position %d",
					utxoref.ErrMalformedRef,
					i,
				),
			)
			return nil, false
		}
		req.Refs = append(req.Refs, *ref)
	}
	return req, true
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRefs(w, r)
	if !ok {
		return
	}
	var sorted []utxoref.Ref
	if req.Dedup {
		sorted = utxoref.Dedup(req.Refs)
	} else {
		sorted = utxoref.Sorted(req.Refs)
	}
	if sorted == nil {
		sorted = []utxoref.Ref{}
	}
	s.writeJson(w, http.StatusOK, refsResponse{Refs: sorted})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRefs(w, r)
	if !ok {
		return
	}
	s.writeJson(
		w,
		http.StatusOK,
		checkResponse{Sorted: utxoref.IsSorted(req.Refs)},
	)
}

func (s *Server) handleListUtxos(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		tmpLimit, err := strconv.Atoi(limitStr)
		if err != nil || tmpLimit <= 0 {
			s.writeError(
				w,
				http.StatusBadRequest,
				fmt.Errorf("invalid limit: %q", limitStr),
			)
			return
		}
		limit = min(tmpLimit, maxPageSize)
	}
	var after *utxoref.Ref
	if afterStr := r.URL.Query().Get("after"); afterStr != "" {
		tmpAfter, err := utxoref.Parse(afterStr)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		after = &tmpAfter
	}
	refs, err := s.store.ListPage(r.Context(), after, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJson(w, http.StatusOK, refsResponse{Refs: refs})
}

func (s *Server) handleAddUtxos(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRefs(w, r)
	if !ok {
		return
	}
	added, err := s.store.Add(r.Context(), req.Refs...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJson(w, http.StatusOK, countResponse{Count: added})
}

func (s *Server) handleRemoveUtxo(w http.ResponseWriter, r *http.Request) {
	ref, err := utxoref.Parse(r.PathValue("ref"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	removed, err := s.store.Remove(r.Context(), ref)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if removed == 0 {
		s.writeError(
			w,
			http.StatusNotFound,
			fmt.Errorf("UTxO ref not found: %s", ref),
		)
		return
	}
	s.writeJson(w, http.StatusOK, countResponse{Count: removed})
}

// Run opens the UTxO store and serves HTTP until ctx is done, then shuts down
// within the configured shutdown timeout
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	storeOpts := []database.StoreOptionFunc{
		database.WithLogger(logger),
		// Enable metrics with default prometheus registry
		database.WithPromRegistry(prometheus.DefaultRegisterer),
	}
	if !cfg.InMemory {
		storeOpts = append(storeOpts, database.WithDataDir(cfg.DatabasePath))
	}
	store, err := database.New(storeOpts...)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := New(store, logger, prometheus.DefaultGatherer)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.Info(
		"serving HTTP API and prometheus metrics on "+cfg.ListenAddress(),
		"component", "server",
	)
	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		logger.Info(
			"signal received, initiating graceful shutdown",
			"component", "server",
		)
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("failed to start HTTP listener: %w", err)
		}
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(
			"HTTP server shutdown error",
			"error", err,
			"component", "server",
		)
		return err
	}
	logger.Info("shutdown complete", "component", "server")
	return nil
}
