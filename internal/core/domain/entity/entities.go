// Package entity holds the e-commerce records as the upstream data
// API stores them. Field names follow the upstream (Portuguese)
// column names, so these structs marshal straight to and from the
// PostgREST wire format.
package entity

// Customer is a row of the clientes table.
type Customer struct {
	ID       int64   `json:"id"`
	Nome     string  `json:"nome"`
	Email    string  `json:"email"`
	Telefone *string `json:"telefone,omitempty"`
	CriadoEm string  `json:"criado_em,omitempty"`
}

// Product is a row of the produtos table.
type Product struct {
	ID        int64   `json:"id"`
	Nome      string  `json:"nome"`
	Preco     float64 `json:"preco"`
	Estoque   int     `json:"estoque"`
	Categoria *string `json:"categoria,omitempty"`
	CriadoEm  string  `json:"criado_em,omitempty"`
}

// Order is a row of the pedidos table. Timestamps stay as the raw
// strings the upstream returns; nothing here reformats them.
type Order struct {
	ID        int64   `json:"id"`
	ClienteID int64   `json:"cliente_id"`
	Total     float64 `json:"total"`
	Status    string  `json:"status"`
	CriadoEm  string  `json:"criado_em,omitempty"`
}

// OrderItem is a row of the itens_pedido table.
type OrderItem struct {
	ID            int64   `json:"id"`
	PedidoID      int64   `json:"pedido_id"`
	ProdutoID     int64   `json:"produto_id"`
	Quantidade    int     `json:"quantidade"`
	PrecoUnitario float64 `json:"preco_unitario"`
}

// EnrichedOrderItem is an OrderItem joined in memory with its
// product, customer and parent order. It is never persisted; the
// nullable fields stay null when the referenced record is missing
// or its lookup failed.
type EnrichedOrderItem struct {
	OrderItem
	ProdutoNome      *string `json:"produto_nome"`
	ProdutoCategoria *string `json:"produto_categoria"`
	ClienteNome      *string `json:"cliente_nome"`
	TotalItem        float64 `json:"total_item"`
	TotalPedido      float64 `json:"total_pedido"`
	StatusPedido     string  `json:"status_pedido"`
	CriadoEmPedido   string  `json:"criado_em_pedido"`
}

// CreateOrderItem is one requested line of a composite order
// creation. It is input only; the persisted row is an OrderItem.
type CreateOrderItem struct {
	ProdutoID     int64
	Quantidade    int
	PrecoUnitario float64
}
