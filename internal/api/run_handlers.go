package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/STRATINT/eventfeed/internal/ingestion"
	"github.com/STRATINT/eventfeed/internal/models"
)

// RunHandler triggers collection runs and dedup passes.
type RunHandler struct {
	runner Runner
	dedup  Deduplicator
	logs   RunLogReader
	logger *slog.Logger
}

// Start handles POST /api/runs. With async=true the run is started in the
// background and 202 is returned at once.
func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	opts, err := ParseRunOptions(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))

	// Runs are bounded by adapter timeouts, not by the client connection.
	ctx := context.WithoutCancel(r.Context())

	if async {
		if running(h.runner.State()) {
			writeError(w, http.StatusConflict, ingestion.ErrRunInProgress.Error())
			return
		}
		go func() {
			if _, err := h.runner.Run(ctx, opts); err != nil {
				h.logger.Error("background run failed", "error", err)
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
		return
	}

	summary, err := h.runner.Run(ctx, opts)
	var fatal *ingestion.OrchestrationFatalError
	switch {
	case errors.Is(err, ingestion.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &fatal):
		h.logger.Error("run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "summary": summary})
	case err != nil:
		h.logger.Error("run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

// Latest handles GET /api/runs/latest, falling back to the persisted run log
// after a restart.
func (h *RunHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if summary, ok := h.runner.LastSummary(); ok {
		writeJSON(w, http.StatusOK, summary)
		return
	}
	if h.logs == nil {
		writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}

	row, err := h.logs.LatestRunLog(r.Context(), models.OrchestratedSource)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	if err != nil {
		h.logger.Error("failed to read run log", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var summary models.Summary
	if err := json.Unmarshal(row.Details, &summary); err != nil {
		h.logger.Error("failed to decode run log details", "id", row.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// State handles GET /api/runs/state.
func (h *RunHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runner.State())
}

// Deduplicate handles POST /api/dedup.
func (h *RunHandler) Deduplicate(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dedup.Deduplicate(context.WithoutCancel(r.Context()))
	if errors.Is(err, ingestion.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("deduplication failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "deduplication": stats})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// LatestDedup handles GET /api/dedup/latest. It serves the stats of the most
// recent dedup pass, duplicate groups included, from the run log.
func (h *RunHandler) LatestDedup(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		writeError(w, http.StatusNotFound, "no deduplication recorded")
		return
	}
	row, err := h.logs.LatestRunLog(r.Context(), models.DedupSource)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no deduplication recorded")
		return
	}
	if err != nil {
		h.logger.Error("failed to read run log", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var stats models.DedupStats
	if err := json.Unmarshal(row.Details, &stats); err != nil {
		h.logger.Error("failed to decode run log details", "id", row.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":        row.RunID,
		"timestamp":     row.Timestamp,
		"status":        row.Status,
		"deduplication": stats,
	})
}

func running(s ingestion.RunState) bool {
	return s.Phase == ingestion.PhaseCollecting || s.Phase == ingestion.PhaseDeduplicating
}
