package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/felipe370-hub/compras-api/internal/coordinator/runlog"
	"github.com/felipe370-hub/compras-api/internal/core/domain"
	"github.com/felipe370-hub/compras-api/internal/core/domain/entity"
	"github.com/felipe370-hub/compras-api/internal/core/ports"
	"github.com/felipe370-hub/compras-api/internal/infra/postgrest"
)

const (
	defaultLimit  = 50
	defaultOffset = 0
)

// Handler serves the inbound HTTP surface: the generic resource
// passthrough plus the two composite order workflows.
type Handler struct {
	store  *postgrest.Client
	orders ports.OrderService
	runs   runlog.Reader // nil when the workflow log is disabled
}

func NewHandler(store *postgrest.Client, orders ports.OrderService, runs runlog.Reader) *Handler {
	return &Handler{
		store:  store,
		orders: orders,
		runs:   runs,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- resource passthrough ---

// ListResource forwards a paginated collection read. limit/offset
// come from the query string; everything else is the upstream's
// business.
func (h *Handler) ListResource(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := postgrest.Query{
			Limit:  queryInt(r, "limit", defaultLimit),
			Offset: queryInt(r, "offset", defaultOffset),
		}
		raw, err := h.store.Fetch(r.Context(), resource, q)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeRaw(w, http.StatusOK, raw)
	}
}

// GetResource forwards a single-row read. An empty upstream result
// becomes a local 404.
func (h *Handler) GetResource(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		raw, err := h.store.Fetch(r.Context(), resource, postgrest.ByID(id))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		var rows []json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
			writeError(w, http.StatusNotFound, "not_found", resource+" not found")
			return
		}
		writeRaw(w, http.StatusOK, rows[0])
	}
}

// CreateResource checks the basic field constraints locally, then
// forwards the insert under the anon credential.
func (h *Handler) CreateResource(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		if err := validateRecord(resource, payload); err != nil {
			writeDomainError(w, err)
			return
		}
		raw, err := h.store.Create(r.Context(), resource, payload, "")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeRaw(w, http.StatusCreated, raw)
	}
}

// UpdateResource forwards a partial update as an id-filtered PATCH.
// An empty payload is rejected before any upstream call.
func (h *Handler) UpdateResource(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		if len(payload) == 0 {
			writeError(w, http.StatusBadRequest, "empty_payload", "update payload must not be empty")
			return
		}
		raw, err := h.store.Update(r.Context(), resource, postgrest.ByID(id), payload, "")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeRaw(w, http.StatusOK, raw)
	}
}

func (h *Handler) DeleteResource(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := h.store.Delete(r.Context(), resource, postgrest.ByID(id), ""); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- order workflows ---

// ListOrderItems returns the raw item rows of one order, unenriched.
func (h *Handler) ListOrderItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	raw, err := h.store.Fetch(r.Context(), postgrest.ResourceItensPedido, postgrest.Query{
		Filters: map[string]string{"pedido_id": strconv.FormatInt(id, 10)},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

// GetOrderDetail serves the enriched line-item view.
func (h *Handler) GetOrderDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	items, err := h.orders.GetOrderDetail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateServiceOrder runs the compensated order-with-items workflow.
func (h *Handler) CreateServiceOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.ClienteID <= 0 || len(req.Itens) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "cliente_id and itens are required")
		return
	}

	items := make([]entity.CreateOrderItem, 0, len(req.Itens))
	for _, it := range req.Itens {
		items = append(items, entity.CreateOrderItem{
			ProdutoID:     it.ProdutoID,
			Quantidade:    it.Quantidade,
			PrecoUnitario: it.PrecoUnitario,
		})
	}

	// The run id keys the workflow log and is handed back in a
	// header so callers can query the run's state afterwards.
	runID := uuid.NewString()
	w.Header().Set("X-Workflow-Run-Id", runID)

	slog.InfoContext(r.Context(), "creating composite order",
		"run_id", runID, "cliente_id", req.ClienteID, "itens", len(items))

	order, err := h.orders.CreateOrderWithItems(r.Context(), runID, req.ClienteID, req.Status, items)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetWorkflowRun serves the current state of one composite-creation
// workflow run from the run log.
func (h *Handler) GetWorkflowRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "workflow_log_disabled", "workflow log is not configured")
		return
	}
	runID := chi.URLParam(r, "runID")
	entry, err := h.runs.GetLatest(r.Context(), runID)
	if err != nil {
		if errors.Is(err, runlog.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run_not_found", "no workflow run with id "+runID)
			return
		}
		writeError(w, http.StatusInternalServerError, "workflow_log_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, WorkflowRunResponse{
		RunID:         entry.RunID,
		Status:        string(entry.Status),
		CurrentStep:   entry.CurrentStep,
		ErrorMessages: json.RawMessage(entry.ErrorMessages),
		TraceID:       entry.TraceID,
		UpdatedAt:     entry.UpdatedAt.Format(time.RFC3339Nano),
	})
}

// --- helpers ---

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be an integer")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// writeDomainError maps the error taxonomy onto HTTP. Upstream
// failures relay status and body verbatim; everything unknown is a
// 502 because it means the upstream could not be reached at all.
func writeDomainError(w http.ResponseWriter, err error) {
	var upstream *domain.UpstreamError
	switch {
	case errors.As(err, &upstream):
		writeRaw(w, upstream.Status, []byte(upstream.Body))
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", "pedido not found")
	case errors.Is(err, domain.ErrServiceKeyMissing):
		writeError(w, http.StatusInternalServerError, "service_key_missing", "service credential is not configured")
	default:
		var validation *domain.ValidationError
		if errors.As(err, &validation) {
			writeError(w, http.StatusBadRequest, "invalid_request", validation.Msg)
			return
		}
		writeError(w, http.StatusBadGateway, "upstream_unreachable", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
