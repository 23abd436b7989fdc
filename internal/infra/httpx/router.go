package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felipe370-hub/compras-api/internal/infra/httpx/middlewares"
	"github.com/felipe370-hub/compras-api/internal/infra/postgrest"
	"github.com/felipe370-hub/compras-api/internal/pkg/metrics"
)

// NewRouter wires the full inbound surface. m may be nil (tests),
// in which case no metrics middleware is installed.
func NewRouter(handler *Handler, m *metrics.HTTPMetrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(middlewares.RecordHTTP(m))
	}

	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/clientes", resourceRoutes(handler, postgrest.ResourceClientes))
	r.Route("/produtos", resourceRoutes(handler, postgrest.ResourceProdutos))
	r.Route("/itens-pedido", resourceRoutes(handler, postgrest.ResourceItensPedido))

	r.Route("/pedidos", func(r chi.Router) {
		resourceRoutes(handler, postgrest.ResourcePedidos)(r)
		r.Get("/{id}/itens", handler.ListOrderItems)
		r.Get("/{id}/detalhe_detalhado", handler.GetOrderDetail)
	})

	r.Post("/service/pedidos", handler.CreateServiceOrder)
	r.Get("/service/pedidos/runs/{runID}", handler.GetWorkflowRun)

	return r
}

// resourceRoutes mounts the generic passthrough CRUD for one
// upstream collection.
func resourceRoutes(h *Handler, resource string) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.ListResource(resource))
		r.Post("/", h.CreateResource(resource))
		r.Get("/{id}", h.GetResource(resource))
		r.Put("/{id}", h.UpdateResource(resource))
		r.Delete("/{id}", h.DeleteResource(resource))
	}
}
