package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/distnet/coordinator/internal/models"
	"github.com/distnet/coordinator/internal/orchestrator"
)

type TaskHandler struct {
	orchestrator *orchestrator.Orchestrator
}

func NewTaskHandler(orch *orchestrator.Orchestrator) *TaskHandler {
	return &TaskHandler{orchestrator: orch}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid JSON body"})
		return
	}

	task, err := h.orchestrator.CreateTask(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "task created",
		Data: map[string]any{
			"task_id":          task.ID,
			"assigned_workers": task.AssignedWorkers,
		},
	})
}

func (h *TaskHandler) Pending(w http.ResponseWriter, r *http.Request) {
	workerID := mux.Vars(r)["worker_id"]

	descriptors, err := h.orchestrator.FetchPending(r.Context(), workerID)
	if err != nil {
		respondError(w, err)
		return
	}

	if descriptors == nil {
		descriptors = []models.TaskDescriptor{}
	}

	respondData(w, descriptors)
}

type submitResultRequest struct {
	TaskID   string `json:"task_id"`
	WorkerID string `json:"worker_id"`
	models.ResultUpdate
}

func (h *TaskHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	var req submitResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid JSON body"})
		return
	}

	if err := h.orchestrator.SubmitResult(r.Context(), req.TaskID, req.WorkerID, req.ResultUpdate); err != nil {
		respondError(w, err)
		return
	}

	respondMessage(w, "result submitted")
}

func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	view, err := h.orchestrator.GetStatus(r.Context(), taskID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, view)
}

func (h *TaskHandler) Results(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	results, err := h.orchestrator.ListResults(r.Context(), taskID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, results)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tasks, err := h.orchestrator.ListTasks(r.Context(), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, tasks)
}

func (h *TaskHandler) Stop(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	if err := h.orchestrator.StopTask(r.Context(), taskID); err != nil {
		respondError(w, err)
		return
	}

	respondMessage(w, "task stopped")
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orchestrator.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, stats)
}
