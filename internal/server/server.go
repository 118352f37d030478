// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mcp-diet-check/internal/config"
	"mcp-diet-check/internal/offclient"
	"mcp-diet-check/internal/pipeline"
	"mcp-diet-check/internal/profile"
	"mcp-diet-check/internal/rules"
	"mcp-diet-check/internal/storage"
	"mcp-diet-check/internal/version"
)

type DietCheckServer struct {
	dispatcher *Dispatcher
	httpServer *http.Server
	store      storage.Store
	config     *config.Config
	logger     *slog.Logger
}

// NewDietCheckServer wires the profile store, food database client and
// pipeline from cfg and loads any saved profile.
func NewDietCheckServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*DietCheckServer, error) {
	store, err := storage.Open(cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	conditions, err := rules.NewConditions(cfg.MedicalConditions...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to compile medical condition rules: %w", err)
	}

	profiles := profile.NewManager(store, logger)
	profiles.Load(ctx)

	p := pipeline.New(
		offclient.NewClient(cfg.ClientConfig()),
		rules.NewEvaluator(conditions),
		cfg.PipelineOptions(),
	)

	s := &DietCheckServer{
		dispatcher: NewDispatcher(profiles, p, logger),
		store:      store,
		config:     cfg,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Dispatcher exposes the operation router, mainly for tests.
func (s *DietCheckServer) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Handler is the HTTP handler of the http transport.
func (s *DietCheckServer) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *DietCheckServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	// Decode the MCP request
	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	resp := s.dispatcher.Call(r.Context(), request.Name, request.Arguments)

	result, err := createJSONResponse(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode response", slog.Any("err", err))
	}
}

// Start serves on the configured transport until ctx is done or the
// transport fails.
func (s *DietCheckServer) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting diet check server",
		slog.String("transport", s.config.Transport),
		slog.String("version", version.GetVersion()),
	)

	if s.config.Transport == config.TransportStdio {
		return s.serveStdio(ctx)
	}

	s.logger.InfoContext(ctx, "listening", slog.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

func (s *DietCheckServer) Stop(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down HTTP server: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

func createJSONResponse(resp Response) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
		IsError: !resp.Success,
	}, nil
}
