// ABOUTME: HTTP API handlers for the inbox dashboard, replies, tasks and ingestion
// ABOUTME: Maps service errors to status codes and writes {"error": ...} bodies

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2389/coven-inbox/internal/channel"
	"github.com/2389/coven-inbox/internal/conversation"
	"github.com/2389/coven-inbox/internal/inbox"
	"github.com/2389/coven-inbox/internal/metrics"
	"github.com/2389/coven-inbox/internal/store"
	"github.com/2389/coven-inbox/internal/tasks"
)

// maxBodyBytes caps request bodies on JSON endpoints.
const maxBodyBytes = 1 << 20

// DashboardResponse is the JSON response for GET /dashboard.
type DashboardResponse struct {
	Snapshot *store.Snapshot `json:"snapshot"`
	Metrics  *metrics.Result `json:"metrics"`
}

// ThreadsResponse is the JSON response for GET /threads.
type ThreadsResponse struct {
	Threads []*inbox.Thread `json:"threads"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task *store.Task `json:"task"`
}

// TaskListResponse is the JSON response for GET /tasks.
type TaskListResponse struct {
	Tasks []*store.Task `json:"tasks"`
}

// CompleteTaskRequest is the JSON request body for PATCH /tasks.
type CompleteTaskRequest struct {
	ID string `json:"id"`
}

// handleDashboard handles GET /dashboard.
func (g *Gateway) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap, err := g.store.Snapshot(r.Context())
	if err != nil {
		g.requestLogger(r).Error("failed to load snapshot", "error", err)
		g.sendJSONError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	g.sendJSON(w, http.StatusOK, DashboardResponse{
		Snapshot: snap,
		Metrics:  metrics.Compute(snap, g.now(), metrics.Options{DueSoonWindow: g.config.Metrics.DueSoonWindow}),
	})
}

// handleThreads handles GET /threads. With ?threadId= only that thread is
// returned, or 404 if it has no displayable messages.
func (g *Gateway) handleThreads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap, err := g.store.Snapshot(r.Context())
	if err != nil {
		g.requestLogger(r).Error("failed to load snapshot", "error", err)
		g.sendJSONError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	threads := inbox.BuildThreads(snap.Messages, snap.Contacts)
	if threadID := r.URL.Query().Get("threadId"); threadID != "" {
		th := inbox.Find(threads, threadID)
		if th == nil {
			g.sendJSONError(w, http.StatusNotFound, "thread not found")
			return
		}
		threads = []*inbox.Thread{th}
	}

	g.sendJSON(w, http.StatusOK, ThreadsResponse{Threads: threads})
}

// handleMessages handles POST /messages: draft if needed, deliver, record.
func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req conversation.ReplyRequest
	if !g.decodeJSON(w, r, &req) {
		return
	}

	result, err := g.conversation.Reply(r.Context(), &req)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	g.sendJSON(w, http.StatusOK, result)
}

// handleInbound handles POST /inbound. Duplicates answer 200 with
// duplicate=true; new messages answer 201.
func (g *Gateway) handleInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req conversation.IngestRequest
	if !g.decodeJSON(w, r, &req) {
		return
	}

	result, err := g.conversation.Ingest(r.Context(), &req)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	g.sendJSON(w, status, result)
}

// handleTasks dispatches /tasks by method.
func (g *Gateway) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListTasks(w, r)
	case http.MethodPost:
		g.handleCreateTask(w, r)
	case http.MethodPatch:
		g.handleCompleteTask(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := g.tasks.List(r.Context(), store.TaskStatus(r.URL.Query().Get("status")))
	if err != nil {
		g.writeTaskError(w, r, err)
		return
	}
	if list == nil {
		list = []*store.Task{}
	}
	g.sendJSON(w, http.StatusOK, TaskListResponse{Tasks: list})
}

func (g *Gateway) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in tasks.CreateInput
	if !g.decodeJSON(w, r, &in) {
		return
	}

	task, err := g.tasks.Create(r.Context(), &in)
	if err != nil {
		g.writeTaskError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, TaskResponse{Task: task})
}

func (g *Gateway) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req CompleteTaskRequest
	if !g.decodeJSON(w, r, &req) {
		return
	}

	task, err := g.tasks.Complete(r.Context(), req.ID)
	if err != nil {
		g.writeTaskError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, TaskResponse{Task: task})
}

// writeServiceError maps conversation service errors to HTTP responses.
// Delivery failures forward the provider's reason verbatim.
func (g *Gateway) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := g.requestLogger(r)
	var (
		validationErr *conversation.ValidationError
		deliveryErr   *channel.DeliveryError
		agentErr      *conversation.AgentError
		storeErr      *conversation.StoreError
	)

	switch {
	case errors.As(err, &validationErr):
		g.sendJSONError(w, http.StatusBadRequest, validationErr.Msg)
	case errors.Is(err, channel.ErrUnknownChannel):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &deliveryErr):
		log.Warn("delivery failed", "channel", deliveryErr.Channel, "reason", deliveryErr.Reason)
		g.sendJSONError(w, http.StatusBadGateway, deliveryErr.Reason)
	case errors.As(err, &agentErr):
		log.Warn("agent failed", "error", err)
		if agentErr.Timeout() {
			g.sendJSONError(w, http.StatusGatewayTimeout, "agent timed out")
			return
		}
		g.sendJSONError(w, http.StatusBadGateway, agentErr.Error())
	case errors.As(err, &storeErr):
		log.Error("store failure", "op", storeErr.Op, "error", storeErr.Err)
		g.sendJSONError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		log.Error("request failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeTaskError maps task ledger errors to HTTP responses.
func (g *Gateway) writeTaskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tasks.ErrIDRequired):
		g.sendJSONError(w, http.StatusBadRequest, "Task ID required")
	case errors.Is(err, tasks.ErrDescriptionRequired):
		g.sendJSONError(w, http.StatusBadRequest, "Description is required")
	case errors.Is(err, tasks.ErrInvalidPriority),
		errors.Is(err, tasks.ErrInvalidDueAt),
		errors.Is(err, tasks.ErrInvalidStatus):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "task not found")
	default:
		g.requestLogger(r).Error("task operation failed", "error", err)
		g.sendJSONError(w, http.StatusServiceUnavailable, "store unavailable")
	}
}

// decodeJSON reads a JSON body into dst, writing a 400 and returning false on failure.
func (g *Gateway) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
