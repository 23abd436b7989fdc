// Package service implements ports.OrderService against the
// PostgREST data API: the enriched order-detail aggregation and the
// compensated order-with-items creation workflow.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/felipe370-hub/compras-api/internal/coordinator"
	"github.com/felipe370-hub/compras-api/internal/coordinator/runlog"
	"github.com/felipe370-hub/compras-api/internal/core/domain"
	"github.com/felipe370-hub/compras-api/internal/core/domain/entity"
	"github.com/felipe370-hub/compras-api/internal/core/ports"
	"github.com/felipe370-hub/compras-api/internal/infra/postgrest"
	"github.com/felipe370-hub/compras-api/internal/pkg/metrics"
)

// Orders created through the composite workflow start out pending.
const defaultOrderStatus = "pendente"

var _ ports.OrderService = (*OrderService)(nil)

type OrderService struct {
	client          *postgrest.Client
	serviceKey      string
	workflowTimeout time.Duration
	runLog          runlog.Repository        // nil-safe
	workflowMetrics *metrics.WorkflowMetrics // nil-safe
}

func New(client *postgrest.Client, serviceKey string, workflowTimeout time.Duration, runLog runlog.Repository, wm *metrics.WorkflowMetrics) *OrderService {
	return &OrderService{
		client:          client,
		serviceKey:      serviceKey,
		workflowTimeout: workflowTimeout,
		runLog:          runLog,
		workflowMetrics: wm,
	}
}

// GetOrderDetail builds the denormalized line-item view of one
// order. The order lookup anchors the operation and is the only
// fatal one: its upstream error is relayed verbatim and an empty
// result is a NotFound. Customer, item and product lookups degrade
// to null/empty fields so inconsistent downstream data never turns
// a detail view into an error page.
func (s *OrderService) GetOrderDetail(ctx context.Context, orderID int64) ([]entity.EnrichedOrderItem, error) {
	raw, err := s.client.Fetch(ctx, postgrest.ResourcePedidos, postgrest.ByID(orderID))
	if err != nil {
		return nil, err
	}
	var pedidos []entity.Order
	if err := json.Unmarshal(raw, &pedidos); err != nil {
		return nil, fmt.Errorf("decode pedidos: %w", err)
	}
	if len(pedidos) == 0 {
		return nil, domain.ErrOrderNotFound
	}
	order := pedidos[0]

	clienteNome := s.lookupClienteNome(ctx, order.ClienteID)
	items := s.lookupItens(ctx, orderID)

	// Items keep the order the upstream returned them in.
	enriched := make([]entity.EnrichedOrderItem, 0, len(items))
	for _, item := range items {
		nome, categoria := s.lookupProduto(ctx, item.ProdutoID)
		enriched = append(enriched, entity.EnrichedOrderItem{
			OrderItem:        item,
			ProdutoNome:      nome,
			ProdutoCategoria: categoria,
			ClienteNome:      clienteNome,
			TotalItem:        float64(item.Quantidade) * item.PrecoUnitario,
			TotalPedido:      order.Total,
			StatusPedido:     order.Status,
			CriadoEmPedido:   order.CriadoEm,
		})
	}
	return enriched, nil
}

// lookupClienteNome resolves the customer name, degrading to nil on
// any failure or missing row.
func (s *OrderService) lookupClienteNome(ctx context.Context, clienteID int64) *string {
	raw, err := s.client.Fetch(ctx, postgrest.ResourceClientes, postgrest.ByID(clienteID))
	if err != nil {
		slog.WarnContext(ctx, "cliente lookup degraded", "cliente_id", clienteID, "error", err)
		return nil
	}
	var clientes []entity.Customer
	if err := json.Unmarshal(raw, &clientes); err != nil || len(clientes) == 0 {
		return nil
	}
	return &clientes[0].Nome
}

// lookupItens returns the order's items, degrading to an empty list
// on failure.
func (s *OrderService) lookupItens(ctx context.Context, orderID int64) []entity.OrderItem {
	raw, err := s.client.Fetch(ctx, postgrest.ResourceItensPedido, postgrest.Query{
		Filters: map[string]string{"pedido_id": strconv.FormatInt(orderID, 10)},
	})
	if err != nil {
		slog.WarnContext(ctx, "itens lookup degraded", "pedido_id", orderID, "error", err)
		return nil
	}
	var items []entity.OrderItem
	if err := json.Unmarshal(raw, &items); err != nil {
		slog.WarnContext(ctx, "itens decode degraded", "pedido_id", orderID, "error", err)
		return nil
	}
	return items
}

// lookupProduto resolves name and category, both nil on any failure
// or missing row.
func (s *OrderService) lookupProduto(ctx context.Context, produtoID int64) (nome, categoria *string) {
	raw, err := s.client.Fetch(ctx, postgrest.ResourceProdutos, postgrest.ByID(produtoID))
	if err != nil {
		slog.WarnContext(ctx, "produto lookup degraded", "produto_id", produtoID, "error", err)
		return nil, nil
	}
	var produtos []entity.Product
	if err := json.Unmarshal(raw, &produtos); err != nil || len(produtos) == 0 {
		return nil, nil
	}
	return &produtos[0].Nome, produtos[0].Categoria
}

// CreateOrderWithItems runs the composite creation workflow: the
// pedido row first, then one item row per requested item, strictly
// in list order, all under the elevated credential. The first item
// failure compensates the rows created so far (items, then the
// order itself) best-effort and surfaces the original error.
//
// The guarantee is NOT transactional: a crash between item
// creations or during the compensating deletes can leave an
// orphaned order or partial items behind. The run log exists to
// find those.
func (s *OrderService) CreateOrderWithItems(ctx context.Context, runID string, customerID int64, status string, items []entity.CreateOrderItem) (*entity.Order, error) {
	if s.serviceKey == "" {
		return nil, domain.ErrServiceKeyMissing
	}
	if customerID <= 0 {
		return nil, domain.Validationf("cliente_id is required")
	}
	if len(items) == 0 {
		return nil, domain.Validationf("itens must not be empty")
	}
	for i, item := range items {
		if item.ProdutoID <= 0 {
			return nil, domain.Validationf("item %d: produto_id is required", i+1)
		}
		if item.Quantidade <= 0 {
			return nil, domain.Validationf("item %d: quantidade must be greater than zero", i+1)
		}
		if item.PrecoUnitario <= 0 {
			return nil, domain.Validationf("item %d: preco_unitario must be greater than zero", i+1)
		}
	}
	if status == "" {
		status = defaultOrderStatus
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, s.workflowTimeout)
	defer cancel()

	orderStep := coordinator.NewCreateOrderStep(s.client, s.serviceKey, customerID, status)
	steps := make([]coordinator.Step, 0, len(items)+1)
	steps = append(steps, orderStep)
	for i, item := range items {
		steps = append(steps, coordinator.NewCreateItemStep(s.client, s.serviceKey, orderStep, item, i))
	}

	run := coordinator.NewOrchestrator(runID, workflowPayload(customerID, status, items), steps, s.runLog)
	if err := run.Start(ctx); err != nil {
		// Count only runs that actually rolled something back; an
		// order creation that failed outright had nothing to undo.
		if s.workflowMetrics != nil && run.Compensated() {
			s.workflowMetrics.CompensationsRun.Inc()
		}
		return nil, err
	}

	// Fresh read: the caller gets the order as the upstream now
	// sees it (triggers may have filled total etc.).
	raw, err := s.client.Fetch(ctx, postgrest.ResourcePedidos, postgrest.ByID(orderStep.OrderID()))
	if err != nil {
		return nil, err
	}
	var pedidos []entity.Order
	if err := json.Unmarshal(raw, &pedidos); err != nil {
		return nil, fmt.Errorf("decode created pedido: %w", err)
	}
	if len(pedidos) == 0 {
		return nil, domain.ErrOrderNotFound
	}

	if s.workflowMetrics != nil {
		s.workflowMetrics.OrdersCreated.Inc()
	}
	slog.InfoContext(ctx, "composite order created",
		"pedido_id", pedidos[0].ID, "cliente_id", customerID, "itens", len(items))
	return &pedidos[0], nil
}

// workflowPayload serialises the workflow input for the STARTED
// run-log row.
func workflowPayload(customerID int64, status string, items []entity.CreateOrderItem) string {
	type itemJSON struct {
		ProdutoID     int64   `json:"produto_id"`
		Quantidade    int     `json:"quantidade"`
		PrecoUnitario float64 `json:"preco_unitario"`
	}
	payload := struct {
		ClienteID int64      `json:"cliente_id"`
		Status    string     `json:"status"`
		Itens     []itemJSON `json:"itens"`
	}{ClienteID: customerID, Status: status}
	for _, it := range items {
		payload.Itens = append(payload.Itens, itemJSON(it))
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(b)
}
