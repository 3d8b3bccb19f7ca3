// Package web exposes read-only HTTP endpoints over the bot state.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vadiminshakov/pumpsniper/internal/domain"
	"go.uber.org/zap"
)

const (
	journalPollInterval = 2 * time.Second
	heartbeatInterval   = 30 * time.Second
)

type lifecycleReader interface {
	EventsAfter(index uint64) ([]domain.LifecycleRecord, error)
}

type snapshotReader interface {
	Snapshot() []domain.TokenSnapshot
}

// Server serves token snapshots and an SSE stream of lifecycle transitions.
type Server struct {
	Addr      string
	Journal   lifecycleReader
	Registry  snapshotReader
	l         *zap.Logger
	pollEvery time.Duration
}

// NewServer creates a new web server instance.
func NewServer(addr string, journal lifecycleReader, registry snapshotReader, l *zap.Logger) *Server {
	return &Server{Addr: addr, Journal: journal, Registry: registry, l: l, pollEvery: journalPollInterval}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("web server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("GET /positions", s.handlePositions)
	mux.HandleFunc("GET /lifecycle/stream", s.handleLifecycleStream)

	return mux
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if s.Registry == nil {
		http.Error(w, "registry not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Registry.Snapshot()); err != nil {
		s.l.Warn("encode positions", zap.Error(err))
	}
}

func (s *Server) handleLifecycleStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "lifecycle journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(s.pollEvery)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendEvents := func() error {
		records, err := s.Journal.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Event)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: transition\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			lastIndex = record.Index
		}
		if len(records) > 0 {
			flusher.Flush()
		}
		return nil
	}

	if err := sendEvents(); err != nil {
		http.Error(w, "failed to load lifecycle events", http.StatusInternalServerError)
		s.l.Error("lifecycle stream initial load", zap.Error(err))
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendEvents(); err != nil {
				s.l.Warn("lifecycle stream poll", zap.Error(err))
			}
		}
	}
}
