// Package handlers provides HTTP handlers for frontier optimization.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/internal/utils"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 10 << 20

// RunRecorder persists reports on request
type RunRecorder interface {
	Record(ctx context.Context, report *optimization.Report) (string, error)
}

// Handler handles frontier optimization HTTP requests
type Handler struct {
	service  *optimization.OptimizerService
	preparer *returns.Preparer
	recorder RunRecorder
	log      zerolog.Logger
}

// NewHandler creates a new optimization handler. recorder may be nil, in which
// case save requests are rejected.
func NewHandler(
	service *optimization.OptimizerService,
	preparer *returns.Preparer,
	recorder RunRecorder,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		preparer: preparer,
		recorder: recorder,
		log:      log.With().Str("handler", "optimization").Logger(),
	}
}

// FrontierRequest is the body of POST /api/frontier
type FrontierRequest struct {
	Assets       []string            `json:"assets"`
	MeanReturns  []float64           `json:"mean_returns"`
	Covariance   [][]float64         `json:"covariance"`
	RiskFreeRate *float64            `json:"risk_free_rate,omitempty"`
	Bounds       optimization.Bounds `json:"bounds,omitempty"`
	NumPoints    int                 `json:"num_points,omitempty"`
	Save         bool                `json:"save,omitempty"`
}

// HandleFrontier handles POST /api/frontier
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	var req FrontierRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.NumPoints < 0 {
		h.writeError(w, http.StatusBadRequest, "num_points must be at least 1")
		return
	}

	stats, err := optimization.NewStatistics(req.Assets, req.MeanReturns, req.Covariance)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.run(w, r, stats, optimization.Options{
		RiskFreeRate:   req.RiskFreeRate,
		Bounds:         req.Bounds,
		FrontierPoints: req.NumPoints,
	}, req.Save)
}

// HandleFrontierFromPrices handles POST /api/frontier/prices
// The body is a CSV price table; options come from the query string.
func (h *Handler) HandleFrontierFromPrices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := optimization.Options{}

	if raw := query.Get("risk_free_rate"); raw != "" {
		rf, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "risk_free_rate must be a number")
			return
		}
		opts.RiskFreeRate = &rf
	}
	if raw := query.Get("num_points"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "num_points must be at least 1")
			return
		}
		opts.FrontierPoints = n
	}
	shrink, err := parseBool(query.Get("shrink"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "shrink must be a boolean")
		return
	}
	save, err := parseBool(query.Get("save"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "save must be a boolean")
		return
	}

	table, err := returns.LoadCSV(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid price table: %v", err))
		return
	}
	table, err = table.Select(utils.ParseCSV(query.Get("assets")))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	preparer := h.preparer
	if shrink {
		preparer = preparer.WithShrink(true)
	}
	stats, err := preparer.Prepare(table)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.run(w, r, stats, opts, save)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, stats *optimization.Statistics, opts optimization.Options, save bool) {
	if save && h.recorder == nil {
		h.writeError(w, http.StatusBadRequest, "Run history is not available")
		return
	}

	report, err := h.service.Optimize(r.Context(), stats, opts)
	if errors.Is(err, optimization.ErrMalformedInput) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Frontier optimization failed")
		h.writeError(w, http.StatusInternalServerError, "Frontier optimization failed")
		return
	}

	metadata := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if save {
		id, err := h.recorder.Record(r.Context(), report)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to save run")
			h.writeError(w, http.StatusInternalServerError, "Failed to save run")
			return
		}
		metadata["run_id"] = id
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     report,
		"metadata": metadata,
	})
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
