// Package main serves the HTTP+websocket dashboard API: submit backtest
// runs, poll their status, fetch equity curves, and compare runs, with
// live progress pushed over /ws.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nitinkhare/btcstrategylab/internal/backtest"
	"github.com/nitinkhare/btcstrategylab/internal/config"
	"github.com/nitinkhare/btcstrategylab/internal/guardrail"
	"github.com/nitinkhare/btcstrategylab/internal/pricetable"
	"github.com/nitinkhare/btcstrategylab/internal/progress"
	"github.com/nitinkhare/btcstrategylab/internal/runqueue"
	"github.com/nitinkhare/btcstrategylab/internal/runstore"
)

// Server holds the shared dependencies every HTTP handler needs.
type Server struct {
	cfg         *config.Config
	logger      *log.Logger
	queue       *runqueue.Queue
	store       *runstore.Store
	broadcaster *progress.Broadcaster
	listener    *progress.Listener
	port        string
}

func main() {
	configPath := flag.String("config", "config/config.json", "path to configuration file")
	port := flag.String("port", "", "override server.port from the config file")
	flag.Parse()

	logger := log.New(os.Stdout, "[dashboard] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	table, err := pricetable.Load(cfg.PriceTablePath)
	if err != nil {
		logger.Fatalf("failed to load price table: %v", err)
	}

	store, err := runstore.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	limiter := guardrail.NewExposureLimiter(cfg.Guardrail.ExposureLimit)
	executor := func(ctx context.Context, job runqueue.Job) (*backtest.Result, error) {
		engine := backtest.NewEngine(table).WithExposureLimiter(limiter)
		return engine.Run(job.Start, job.End, job.Source)
	}

	queue := runqueue.New(4, executor, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	broadcaster := progress.NewBroadcaster(logger)
	go broadcaster.Run()
	defer broadcaster.Shutdown()

	listener := progress.NewListener(cfg.DatabaseURL, broadcaster, logger)
	listener.Start(ctx)
	defer listener.Stop()

	listenPort := *port
	if listenPort == "" {
		listenPort = defaultPort(cfg.Server.Port)
	}

	srv := &Server{
		cfg:         cfg,
		logger:      logger,
		queue:       queue,
		store:       store,
		broadcaster: broadcaster,
		listener:    listener,
		port:        listenPort,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/backtest/run", srv.handleBacktestRun)
	mux.HandleFunc("/api/backtest/runs", srv.handleBacktestRuns)
	mux.HandleFunc("/api/backtest/results/", srv.handleBacktestResults)
	mux.HandleFunc("/api/backtest/results/compare", srv.handleBacktestCompare)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/ws", srv.handleWebSocket)

	httpServer := &http.Server{
		Addr:    ":" + srv.port,
		Handler: mux,
	}

	go func() {
		logger.Printf("dashboard listening on :%s", srv.port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func defaultPort(configured int) string {
	if configured <= 0 {
		return "8080"
	}
	return strconv.Itoa(configured)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatusResponse{
		QueuedRuns:       len(s.queue.List()),
		ConnectedClients: s.broadcaster.ClientCount(),
		Message:          "ok",
		Timestamp:        time.Now(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      status,
		Timestamp: time.Now(),
	})
}
