package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/taskledger/comms"
	"github.com/GoCodeAlone/taskledger/task"
)

// Error codes carried in the "code" field of error responses.
const (
	CodeInvalidContent = "invalid_content"
	CodeTaskNotFound   = "task_not_found"
	CodeAlreadyDeleted = "already_deleted"
	CodeTaskDeleted    = "task_deleted"
	CodeInvalidOwner   = "invalid_owner"
	CodeBadRequest     = "bad_request"
	CodeUnauthorized   = "unauthorized"
	CodeInternal       = "internal"
)

// Reasons refining CodeInvalidContent.
const (
	ReasonEmpty   = "empty"
	ReasonTooLong = "too_long"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// TokenRequest is the body accepted by POST /api/auth/token.
type TokenRequest struct {
	Owner  string `json:"owner"`
	APIKey string `json:"api_key"`
}

// TokenResponse is the body returned by a successful token request.
type TokenResponse struct {
	Token     string    `json:"token"`
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ContentRequest is the body accepted by create and update.
type ContentRequest struct {
	Content string `json:"content"`
}

// CountResponse reports an owner's live task count.
type CountResponse struct {
	Owner string `json:"owner"`
	Count uint64 `json:"count"`
}

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Tasks   TaskLedger
	Bus     comms.Bus
	Logger  *slog.Logger
	Version string
}

// RegisterRoutes registers all owner-scoped API routes on the given mux.
// The mux must sit behind middleware that stores the owner with
// ContextWithOwner. Status and version are public; mount them with
// StatusHandler and VersionHandler.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("GET /api/tasks/completed", h.listCompleted)
	mux.HandleFunc("GET /api/tasks/pending", h.listPending)
	mux.HandleFunc("GET /api/tasks/count", h.activeCount)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", h.updateTask)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", h.toggleTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.deleteTask)

	mux.HandleFunc("GET /api/owners/{owner}/count", h.ownerCount)

	mux.HandleFunc("GET /api/events", h.listEvents)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// writeTaskError maps ledger error kinds onto HTTP statuses.
func (h *Handlers) writeTaskError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, task.ErrEmptyContent):
		status, resp.Code, resp.Reason = http.StatusBadRequest, CodeInvalidContent, ReasonEmpty
	case errors.Is(err, task.ErrContentTooLong):
		status, resp.Code, resp.Reason = http.StatusBadRequest, CodeInvalidContent, ReasonTooLong
	case errors.Is(err, task.ErrInvalidContent):
		status, resp.Code = http.StatusBadRequest, CodeInvalidContent
	case errors.Is(err, task.ErrTaskNotFound):
		status, resp.Code = http.StatusNotFound, CodeTaskNotFound
	case errors.Is(err, task.ErrTaskDeleted):
		status, resp.Code = http.StatusConflict, CodeTaskDeleted
	case errors.Is(err, task.ErrAlreadyDeleted):
		status, resp.Code = http.StatusConflict, CodeAlreadyDeleted
	case errors.Is(err, task.ErrInvalidOwner):
		status, resp.Code = http.StatusBadRequest, CodeInvalidOwner
	default:
		resp.Code = CodeInternal
		h.logger().Error("task ledger call failed", slog.Any("err", err))
	}
	writeJSON(w, status, resp)
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// owner extracts the authenticated owner; it writes a 401 when absent.
func owner(w http.ResponseWriter, r *http.Request) (task.Owner, bool) {
	o, ok := OwnerFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "no authenticated owner")
	}
	return o, ok
}

// taskID parses the {id} path segment; it writes a 400 when malformed.
func taskID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "invalid task id "+strconv.Quote(r.PathValue("id")))
		return 0, false
	}
	return id, true
}

func decodeContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req ContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return "", false
	}
	return req.Content, true
}

// --- Mutations ---

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.CreateTask(r.Context(), o, content)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) toggleTask(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.ToggleTask(r.Context(), o, id)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.UpdateTask(r.Context(), o, id, content)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := h.Tasks.DeleteTask(r.Context(), o, id); err != nil {
		h.writeTaskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Queries ---

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.GetTask(r.Context(), o, id)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Tasks.GetAllTasks)
}

func (h *Handlers) listCompleted(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Tasks.GetCompletedTasks)
}

func (h *Handlers) listPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Tasks.GetPendingTasks)
}

type listFunc func(ctx context.Context, owner task.Owner) ([]task.Task, error)

func (h *Handlers) list(w http.ResponseWriter, r *http.Request, fn listFunc) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	tasks, err := fn(r.Context(), o)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) activeCount(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	n, err := h.Tasks.GetActiveTaskCount(r.Context(), o)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Owner: o.String(), Count: n})
}

func (h *Handlers) ownerCount(w http.ResponseWriter, r *http.Request) {
	user, err := task.ParseOwner(r.PathValue("owner"))
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	n, err := h.Tasks.GetTaskCountForUser(r.Context(), user)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Owner: user.String(), Count: n})
}

// --- Events ---

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(w, r)
	if !ok {
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var events []*comms.Event
	if h.Bus != nil {
		var err error
		events, err = h.Bus.History(o.String(), limit)
		if err != nil {
			h.writeTaskError(w, err)
			return
		}
	}
	if events == nil {
		events = []*comms.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.Version,
	})
}

// StatusHandler returns the status handler function for external registration.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return h.status
}

// VersionHandler returns the version handler function for external registration.
func (h *Handlers) VersionHandler() http.HandlerFunc {
	return h.version
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
