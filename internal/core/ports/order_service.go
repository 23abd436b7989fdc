package ports

import (
	"context"

	"github.com/felipe370-hub/compras-api/internal/core/domain/entity"
)

type OrderService interface {
	// GetOrderDetail returns the enriched line items of one order.
	// Only a missing or failing order lookup is fatal; every other
	// lookup degrades to null/empty fields.
	GetOrderDetail(ctx context.Context, orderID int64) ([]entity.EnrichedOrderItem, error)

	// CreateOrderWithItems creates an order and its items under the
	// elevated credential, compensating with a best-effort delete of
	// the order when any item creation fails. runID keys the
	// workflow log rows so callers can look the run up afterwards;
	// an empty runID makes the service mint one.
	CreateOrderWithItems(ctx context.Context, runID string, customerID int64, status string, items []entity.CreateOrderItem) (*entity.Order, error)
}
