package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/distnet/coordinator/internal/registry"
)

type WorkerHandler struct {
	registry *registry.Registry
}

func NewWorkerHandler(registry *registry.Registry) *WorkerHandler {
	return &WorkerHandler{registry: registry}
}

type connectRequest struct {
	WorkerID string `json:"worker_id"`
	Address  string `json:"address"`
	Label    string `json:"label"`
}

func (h *WorkerHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid JSON body"})
		return
	}

	if err := h.registry.Register(r.Context(), req.WorkerID, req.Address, req.Label); err != nil {
		respondError(w, err)
		return
	}

	respondMessage(w, "worker registered")
}

type workerIDRequest struct {
	WorkerID string `json:"worker_id"`
}

func (h *WorkerHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req workerIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid JSON body"})
		return
	}

	if err := h.registry.Heartbeat(r.Context(), req.WorkerID); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, response{Success: true})
}

func (h *WorkerHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	var req workerIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid JSON body"})
		return
	}

	if err := h.registry.Disconnect(r.Context(), req.WorkerID); err != nil {
		respondError(w, err)
		return
	}

	respondMessage(w, "worker disconnected")
}

func (h *WorkerHandler) List(w http.ResponseWriter, r *http.Request) {
	workers, err := h.registry.ListWorkers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, workers)
}
