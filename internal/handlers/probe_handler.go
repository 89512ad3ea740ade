package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/distnet/coordinator/internal/models"
	"github.com/distnet/coordinator/internal/probe"
)

const defaultRecentProbeLimit = 20

// ProbeReader is the read side of the probe sample store.
type ProbeReader interface {
	ListForTask(ctx context.Context, taskID string) ([]models.ProbeSample, error)
	Recent(ctx context.Context, taskID string, limit int) ([]models.ProbeSample, error)
}

type ProbeHandler struct {
	samples ProbeReader
	manager *probe.Manager
}

func NewProbeHandler(samples ProbeReader, manager *probe.Manager) *ProbeHandler {
	return &ProbeHandler{samples: samples, manager: manager}
}

// History returns every sample for the task plus aggregate statistics.
func (h *ProbeHandler) History(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	samples, err := h.samples.ListForTask(r.Context(), taskID)
	if err != nil {
		respondError(w, err)
		return
	}

	stats, err := h.manager.Statistics(r.Context(), taskID)
	if err != nil {
		respondError(w, err)
		return
	}

	if samples == nil {
		samples = []models.ProbeSample{}
	}

	respondData(w, map[string]any{
		"samples":    samples,
		"statistics": stats,
	})
}

// Recent returns the last N samples and whether the monitor still runs.
func (h *ProbeHandler) Recent(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultRecentProbeLimit
	}

	samples, err := h.samples.Recent(r.Context(), taskID, limit)
	if err != nil {
		respondError(w, err)
		return
	}

	if samples == nil {
		samples = []models.ProbeSample{}
	}

	respondData(w, map[string]any{
		"samples":   samples,
		"is_active": h.manager.IsActive(taskID),
	})
}
