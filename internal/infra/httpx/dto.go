package httpx

import "encoding/json"

// CreateServiceOrderRequest is the body of POST /service/pedidos.
type CreateServiceOrderRequest struct {
	ClienteID int64                 `json:"cliente_id"`
	Status    string                `json:"status"`
	Itens     []ServiceOrderItemDTO `json:"itens"`
}

type ServiceOrderItemDTO struct {
	ProdutoID     int64   `json:"produto_id"`
	Quantidade    int     `json:"quantidade"`
	PrecoUnitario float64 `json:"preco_unitario"`
}

// WorkflowRunResponse is the body of GET /service/pedidos/runs/{runID}:
// the latest recorded state of one composite-creation workflow run.
type WorkflowRunResponse struct {
	RunID         string          `json:"run_id"`
	Status        string          `json:"status"`
	CurrentStep   string          `json:"current_step,omitempty"`
	ErrorMessages json.RawMessage `json:"error_messages"`
	TraceID       string          `json:"trace_id,omitempty"`
	UpdatedAt     string          `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
