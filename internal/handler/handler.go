package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"netbloom/internal/adapter"
	"netbloom/internal/codec"
	"netbloom/internal/domain"
	"netbloom/internal/engine"
	"netbloom/internal/graphstore"
	"netbloom/internal/layout"
)

// MaxSnapshotBytes bounds the size of a posted snapshot body
const MaxSnapshotBytes = 8 << 20

// Engine is the graph engine the handler drives
type Engine interface {
	View() *domain.Graph
	Status() engine.Status
	Submit(conns []domain.Connection) bool
	Update(conns []domain.Connection) (graphstore.Changes, error)
	DragStart(id string, x, y float64) error
	DragMove(id string, x, y float64) error
	DragEnd(id string) error
	WriteDOT(w io.Writer) error
}

// Renderer paints a graph view as SVG
type Renderer interface {
	SVG(ctx context.Context, g *domain.Graph, w io.Writer) error
}

// Adapters exposes the data source registry
type Adapters interface {
	ListAdapters() []adapter.AdapterInfo
	TriggerSync(ctx context.Context, name string) error
}

// GraphHandler handles graph API requests
type GraphHandler struct {
	engine   Engine
	renderer Renderer
	adapters Adapters
	events   http.Handler
	metrics  http.Handler
	logger   *slog.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(eng Engine, logger *slog.Logger) *GraphHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphHandler{engine: eng, logger: logger}
}

// SetRenderer sets the SVG renderer
func (h *GraphHandler) SetRenderer(r Renderer) {
	h.renderer = r
}

// SetAdapters sets the adapter registry
func (h *GraphHandler) SetAdapters(a Adapters) {
	h.adapters = a
}

// SetEvents sets the SSE event stream handler
func (h *GraphHandler) SetEvents(events http.Handler) {
	h.events = events
}

// SetMetrics sets the metrics exposition handler
func (h *GraphHandler) SetMetrics(metrics http.Handler) {
	h.metrics = metrics
}

// Routes registers every endpoint on mux
func (h *GraphHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/graph", h.GetGraph)
	mux.HandleFunc("GET /api/graph.dot", h.GetGraphDOT)
	mux.HandleFunc("GET /api/graph.svg", h.GetGraphSVG)
	mux.HandleFunc("GET /api/status", h.GetStatus)
	mux.HandleFunc("POST /api/snapshot", h.PostSnapshot)
	mux.HandleFunc("POST /api/nodes/{id}/drag", h.Drag)
	mux.HandleFunc("GET /api/adapters", h.ListAdapters)
	mux.HandleFunc("POST /api/adapters/{name}/sync", h.SyncAdapter)
	mux.HandleFunc("GET /healthz", h.Health)

	if h.events != nil {
		mux.Handle("GET /api/events", h.events)
	}
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// GetGraph returns the current graph view
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.engine.View(), http.StatusOK)
}

// GetGraphDOT returns the graph in Graphviz DOT form
func (h *GraphHandler) GetGraphDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	if err := h.engine.WriteDOT(w); err != nil {
		h.logger.Warn("failed to write DOT", "error", err)
	}
}

// GetGraphSVG renders the graph at its current positions
func (h *GraphHandler) GetGraphSVG(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		h.writeError(w, "Renderer not configured", "", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.SVG(r.Context(), h.engine.View(), &buf); err != nil {
		h.logger.Error("failed to render SVG", "error", err)
		h.writeError(w, "Failed to render graph", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	buf.WriteTo(w)
}

// GetStatus returns the engine status
func (h *GraphHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.engine.Status(), http.StatusOK)
}

// SnapshotResponse is returned after a snapshot is posted
type SnapshotResponse struct {
	Accepted     bool     `json:"accepted"`
	Connections  int      `json:"connections"`
	NodesCreated []string `json:"nodes_created,omitempty"`
	NodesRemoved []string `json:"nodes_removed,omitempty"`
}

// PostSnapshot accepts a connection snapshot in JSON or YAML. By default the
// snapshot is queued through the engine throttle; with ?apply=sync it is
// applied before the reply.
func (h *GraphHandler) PostSnapshot(w http.ResponseWriter, r *http.Request) {
	c := codec.ForContentType(r.Header.Get("Content-Type"))
	conns, err := c.Parse(http.MaxBytesReader(w, r.Body, MaxSnapshotBytes))
	if err != nil {
		h.writeError(w, "Invalid snapshot", err.Error(), http.StatusBadRequest)
		return
	}
	if conns == nil {
		h.writeError(w, "Empty snapshot", "Request body holds no connection list", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("apply") == "sync" {
		changes, err := h.engine.Update(conns)
		if err != nil {
			h.writeEngineError(w, "Failed to apply snapshot", err)
			return
		}
		h.writeJSON(w, SnapshotResponse{
			Accepted:     true,
			Connections:  len(conns),
			NodesCreated: changes.NodesCreated,
			NodesRemoved: changes.NodesRemoved,
		}, http.StatusOK)
		return
	}

	resp := SnapshotResponse{Accepted: h.engine.Submit(conns), Connections: len(conns)}
	if !resp.Accepted {
		h.writeJSON(w, resp, http.StatusTooManyRequests)
		return
	}
	h.writeJSON(w, resp, http.StatusAccepted)
}

// Drag phases
const (
	DragPhaseStart = "start"
	DragPhaseMove  = "move"
	DragPhaseEnd   = "end"
)

// DragRequest is a pointer event on one node
type DragRequest struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Drag applies a pointer drag event to a node
func (h *GraphHandler) Drag(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, "Invalid node ID", "Node ID is required", http.StatusBadRequest)
		return
	}

	var req DragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	var err error
	switch req.Phase {
	case DragPhaseStart:
		err = h.engine.DragStart(id, req.X, req.Y)
	case DragPhaseMove:
		err = h.engine.DragMove(id, req.X, req.Y)
	case DragPhaseEnd:
		err = h.engine.DragEnd(id)
	default:
		h.writeError(w, "Invalid drag phase", "phase must be start, move or end", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeEngineError(w, "Drag rejected", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAdapters returns the registered data source adapters
func (h *GraphHandler) ListAdapters(w http.ResponseWriter, r *http.Request) {
	if h.adapters == nil {
		h.writeJSON(w, []adapter.AdapterInfo{}, http.StatusOK)
		return
	}
	h.writeJSON(w, h.adapters.ListAdapters(), http.StatusOK)
}

// SyncAdapter runs one adapter sync immediately
func (h *GraphHandler) SyncAdapter(w http.ResponseWriter, r *http.Request) {
	if h.adapters == nil {
		h.writeError(w, "Adapters not configured", "", http.StatusServiceUnavailable)
		return
	}

	name := r.PathValue("name")
	if err := h.adapters.TriggerSync(r.Context(), name); err != nil {
		h.logger.Warn("adapter sync failed", "adapter", name, "error", err)
		h.writeError(w, "Sync failed", err.Error(), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, map[string]string{"status": "synced"}, http.StatusOK)
}

// Health reports liveness. A stopped engine is unhealthy.
func (h *GraphHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.engine.Status().Stopped {
		h.writeJSON(w, map[string]string{"status": "stopped"}, http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *GraphHandler) writeEngineError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, layout.ErrUnknownNode):
		status = http.StatusNotFound
	case errors.Is(err, layout.ErrPinnedNode):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrStopped):
		status = http.StatusServiceUnavailable
	}
	h.writeError(w, msg, err.Error(), status)
}

func (h *GraphHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode JSON", "error", err)
	}
}

func (h *GraphHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		h.logger.Warn("failed to encode error response", "error", err)
	}
}
