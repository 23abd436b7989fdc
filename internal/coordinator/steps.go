package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felipe370-hub/compras-api/internal/core/domain/entity"
	"github.com/felipe370-hub/compras-api/internal/infra/postgrest"
)

// --- CreateOrderStep ---

// CreateOrderStep creates the pedido row. It runs first; every item
// step reads the created id from it.
type CreateOrderStep struct {
	client     *postgrest.Client
	key        string
	customerID int64
	status     string
	orderID    int64
}

func NewCreateOrderStep(client *postgrest.Client, key string, customerID int64, status string) *CreateOrderStep {
	return &CreateOrderStep{
		client:     client,
		key:        key,
		customerID: customerID,
		status:     status,
	}
}

func (s *CreateOrderStep) Name() string { return "Create_Order_Step" }

// OrderID returns the id of the created order. Valid only after a
// successful Execute.
func (s *CreateOrderStep) OrderID() int64 { return s.orderID }

func (s *CreateOrderStep) Execute(ctx context.Context) error {
	raw, err := s.client.Create(ctx, postgrest.ResourcePedidos, map[string]any{
		"cliente_id": s.customerID,
		"status":     s.status,
	}, s.key)
	if err != nil {
		return fmt.Errorf("failed to create pedido: %w", err)
	}

	var created []entity.Order
	if err := json.Unmarshal(raw, &created); err != nil {
		return fmt.Errorf("decode created pedido: %w", err)
	}
	if len(created) == 0 {
		return fmt.Errorf("upstream returned no row for created pedido")
	}
	s.orderID = created[0].ID
	return nil
}

func (s *CreateOrderStep) Compensate(ctx context.Context) error {
	return s.client.Delete(ctx, postgrest.ResourcePedidos, postgrest.ByID(s.orderID), s.key)
}

// --- CreateItemStep ---

// CreateItemStep inserts one item_pedido row referencing the order
// created by the preceding CreateOrderStep.
type CreateItemStep struct {
	client *postgrest.Client
	key    string
	order  *CreateOrderStep
	item   entity.CreateOrderItem
	pos    int
	itemID int64
}

func NewCreateItemStep(client *postgrest.Client, key string, order *CreateOrderStep, item entity.CreateOrderItem, pos int) *CreateItemStep {
	return &CreateItemStep{
		client: client,
		key:    key,
		order:  order,
		item:   item,
		pos:    pos,
	}
}

func (s *CreateItemStep) Name() string {
	return fmt.Sprintf("Create_Item_Step_%d", s.pos+1)
}

func (s *CreateItemStep) Execute(ctx context.Context) error {
	raw, err := s.client.Create(ctx, postgrest.ResourceItensPedido, map[string]any{
		"pedido_id":      s.order.OrderID(),
		"produto_id":     s.item.ProdutoID,
		"quantidade":     s.item.Quantidade,
		"preco_unitario": s.item.PrecoUnitario,
	}, s.key)
	if err != nil {
		return fmt.Errorf("failed to create item %d: %w", s.pos+1, err)
	}

	// The created row id is kept only for compensation. A row that
	// decodes oddly is still a success; the delete filter just
	// stays empty.
	var created []entity.OrderItem
	if err := json.Unmarshal(raw, &created); err == nil && len(created) > 0 {
		s.itemID = created[0].ID
	}
	return nil
}

func (s *CreateItemStep) Compensate(ctx context.Context) error {
	if s.itemID == 0 {
		return nil
	}
	return s.client.Delete(ctx, postgrest.ResourceItensPedido, postgrest.ByID(s.itemID), s.key)
}
