package httpx

import (
	"github.com/felipe370-hub/compras-api/internal/core/domain"
	"github.com/felipe370-hub/compras-api/internal/infra/postgrest"
)

// validateRecord applies the basic field constraints per resource
// before a create is forwarded. Anything beyond these is the
// upstream schema's job.
func validateRecord(resource string, record map[string]any) error {
	switch resource {
	case postgrest.ResourceClientes:
		if !hasString(record, "nome") {
			return domain.Validationf("nome is required")
		}
		if !hasString(record, "email") {
			return domain.Validationf("email is required")
		}
	case postgrest.ResourceProdutos:
		if !hasString(record, "nome") {
			return domain.Validationf("nome is required")
		}
		if numField(record, "preco") <= 0 {
			return domain.Validationf("preco must be greater than zero")
		}
		if v, ok := record["estoque"]; ok {
			if n, isNum := v.(float64); !isNum || n < 0 {
				return domain.Validationf("estoque must not be negative")
			}
		}
	case postgrest.ResourcePedidos:
		if numField(record, "cliente_id") <= 0 {
			return domain.Validationf("cliente_id is required")
		}
	case postgrest.ResourceItensPedido:
		if numField(record, "pedido_id") <= 0 {
			return domain.Validationf("pedido_id is required")
		}
		if numField(record, "produto_id") <= 0 {
			return domain.Validationf("produto_id is required")
		}
		if numField(record, "quantidade") <= 0 {
			return domain.Validationf("quantidade must be greater than zero")
		}
		if numField(record, "preco_unitario") <= 0 {
			return domain.Validationf("preco_unitario must be greater than zero")
		}
	}
	return nil
}

func hasString(record map[string]any, field string) bool {
	s, ok := record[field].(string)
	return ok && s != ""
}

// numField reads a JSON number; missing or non-numeric reads as 0.
func numField(record map[string]any, field string) float64 {
	n, _ := record[field].(float64)
	return n
}
