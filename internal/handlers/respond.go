package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/distnet/coordinator/internal/models"
)

// response is the envelope every endpoint answers with.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondData(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, response{Success: true, Message: message})
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrNoWorkersAvailable),
		errors.Is(err, models.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrStoreUnavailable):
		// Retryable for the caller.
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, response{Success: false, Message: err.Error()})
}
