package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nitinkhare/btcstrategylab/internal/analytics"
	"github.com/nitinkhare/btcstrategylab/internal/runstore"
)

// handleBacktestRun accepts a strategy source and date range, submits it
// to the run queue, and returns immediately with a PENDING run id. The
// caller polls handleBacktestResults or watches /ws for completion.
func (s *Server) handleBacktestRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req BacktestRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Label == "" || req.Start == "" || req.End == "" || req.Source == "" {
		respondError(w, http.StatusBadRequest, "label, start, end, and source are required")
		return
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid start date: "+err.Error())
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid end date: "+err.Error())
		return
	}

	runID, err := s.queue.Submit(r.Context(), req.Label, start, end, req.Source)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to submit run: "+err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, BacktestRunResponse{
		RunID:     runID,
		Status:    "PENDING",
		Message:   "run accepted",
		Timestamp: time.Now(),
	})
}

// handleBacktestRuns lists recent runs, newest first.
func (s *Server) handleBacktestRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	records, err := s.store.List(r.Context(), 100)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list runs: "+err.Error())
		return
	}

	runs := make([]BacktestRun, 0, len(records))
	for _, rec := range records {
		runs = append(runs, toBacktestRun(rec))
	}

	respondJSON(w, http.StatusOK, BacktestListResponse{Runs: runs, Timestamp: time.Now()})
}

// handleBacktestResults serves GET /api/backtest/results/{id}: the run's
// status plus, once complete, its full equity curve and performance
// report.
func (s *Server) handleBacktestResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/backtest/results/")
	if id == "" || id == "compare" {
		respondError(w, http.StatusBadRequest, "run id is required")
		return
	}

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found: "+err.Error())
		return
	}

	detail := BacktestDetailResponse{
		Run:       toBacktestRun(*rec),
		Timestamp: time.Now(),
	}
	if rec.Result != nil {
		curve := make([]BacktestEquityCurvePoint, 0, len(rec.Result.EquityCurve))
		for _, pt := range rec.Result.EquityCurve {
			curve = append(curve, BacktestEquityCurvePoint{Date: pt.Date, TotalValueUSD: pt.TotalValueUSD})
		}
		detail.EquityCurve = curve
		detail.Report = analytics.Analyze(rec.Result)
	}

	respondJSON(w, http.StatusOK, detail)
}

// handleBacktestCompare ranks a named set of completed runs by revenue.
func (s *Server) handleBacktestCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req BacktestComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.RunIDs) == 0 {
		respondError(w, http.StatusBadRequest, "run_ids is required")
		return
	}

	var summaries []analytics.RunSummary
	for _, id := range req.RunIDs {
		rec, err := s.store.Get(r.Context(), id)
		if err != nil || rec.Result == nil {
			continue
		}
		summaries = append(summaries, analytics.Summarize(rec.Label, rec.Result))
	}

	batch := analytics.CompareRuns(summaries)
	metrics := make([]BacktestComparisonMetric, 0, len(batch.Runs))
	for _, run := range batch.Runs {
		metrics = append(metrics, BacktestComparisonMetric{
			Label:          run.Label,
			RevenuePercent: run.RevenuePercent,
			MaxDrawdownPct: run.MaxDrawdownPct,
			SharpeRatio:    run.SharpeRatio,
		})
	}

	respondJSON(w, http.StatusOK, BacktestComparisonResponse{
		Metrics:   metrics,
		Best:      batch.Best,
		Worst:     batch.Worst,
		Timestamp: time.Now(),
	})
}

func toBacktestRun(rec runstore.RunRecord) BacktestRun {
	run := BacktestRun{
		ID:        rec.ID,
		Label:     rec.Label,
		Status:    rec.Status,
		Start:     rec.Start,
		End:       rec.End,
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.Result != nil {
		pct := rec.Result.RevenuePercent
		run.RevenuePercent = &pct
	}
	return run
}
