package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipe370-hub/compras-api/internal/core/domain"
	"github.com/felipe370-hub/compras-api/internal/core/domain/entity"
	"github.com/felipe370-hub/compras-api/internal/infra/postgrest"
	"github.com/felipe370-hub/compras-api/internal/pkg/metrics"
)

type stub struct {
	status int
	body   string
}

type apiCall struct {
	key    string
	apikey string
}

// fakeAPI is a scripted PostgREST upstream. Stubs are keyed by
// "METHOD /path?query" and consumed FIFO; the last stub for a key
// is reused once the queue drains.
type fakeAPI struct {
	mu    sync.Mutex
	stubs map[string][]stub
	calls []apiCall
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{stubs: map[string][]stub{}}
}

func (f *fakeAPI) stubResponse(key string, status int, body string) {
	f.stubs[key] = append(f.stubs[key], stub{status: status, body: body})
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}

		f.mu.Lock()
		f.calls = append(f.calls, apiCall{key: key, apikey: r.Header.Get("apikey")})
		queue := f.stubs[key]
		var s stub
		switch len(queue) {
		case 0:
			s = stub{status: http.StatusInternalServerError, body: `{"message":"no stub for ` + key + `"}`}
		case 1:
			s = queue[0]
		default:
			s = queue[0]
			f.stubs[key] = queue[1:]
		}
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.body))
	})
}

func (f *fakeAPI) callKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, len(f.calls))
	for i, c := range f.calls {
		keys[i] = c.key
	}
	return keys
}

func (f *fakeAPI) countCalls(key string) int {
	n := 0
	for _, k := range f.callKeys() {
		if k == key {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T, api *fakeAPI, serviceKey string) *OrderService {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	client := postgrest.New(srv.URL, "anon-key", time.Second)
	return New(client, serviceKey, 5*time.Second, nil, nil)
}

// --- order detail aggregation ---

const orderRow = `[{"id":1,"cliente_id":3,"total":99.5,"status":"pago","criado_em":"2026-01-02T10:00:00"}]`

func TestGetOrderDetailZeroItems(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("GET /pedidos?id=eq.1", 200, orderRow)
	api.stubResponse("GET /clientes?id=eq.3", 200, `[{"id":3,"nome":"Ana","email":"ana@example.com"}]`)
	api.stubResponse("GET /itens_pedido?pedido_id=eq.1", 200, `[]`)

	svc := newTestService(t, api, "")
	items, err := svc.GetOrderDetail(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestGetOrderDetailEnrichesItems(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("GET /pedidos?id=eq.1", 200, orderRow)
	api.stubResponse("GET /clientes?id=eq.3", 200, `[{"id":3,"nome":"Ana","email":"ana@example.com"}]`)
	api.stubResponse("GET /itens_pedido?pedido_id=eq.1", 200,
		`[{"id":10,"pedido_id":1,"produto_id":7,"quantidade":2,"preco_unitario":24.5},
		  {"id":11,"pedido_id":1,"produto_id":8,"quantidade":1,"preco_unitario":50.5}]`)
	api.stubResponse("GET /produtos?id=eq.7", 200, `[{"id":7,"nome":"Caneca","preco":24.5,"estoque":4,"categoria":"cozinha"}]`)
	api.stubResponse("GET /produtos?id=eq.8", 200, `[{"id":8,"nome":"Livro","preco":50.5,"estoque":1}]`)

	svc := newTestService(t, api, "")
	items, err := svc.GetOrderDetail(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	require.NotNil(t, first.ProdutoNome)
	assert.Equal(t, "Caneca", *first.ProdutoNome)
	require.NotNil(t, first.ProdutoCategoria)
	assert.Equal(t, "cozinha", *first.ProdutoCategoria)
	require.NotNil(t, first.ClienteNome)
	assert.Equal(t, "Ana", *first.ClienteNome)
	assert.Equal(t, 49.0, first.TotalItem)
	assert.Equal(t, 99.5, first.TotalPedido)
	assert.Equal(t, "pago", first.StatusPedido)
	assert.Equal(t, "2026-01-02T10:00:00", first.CriadoEmPedido)

	// Item order follows the upstream result order.
	assert.Equal(t, int64(10), items[0].ID)
	assert.Equal(t, int64(11), items[1].ID)
	assert.Nil(t, items[1].ProdutoCategoria)
}

func TestGetOrderDetailCustomerLookupDegrades(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("GET /pedidos?id=eq.1", 200, orderRow)
	api.stubResponse("GET /clientes?id=eq.3", 500, `{"message":"boom"}`)
	api.stubResponse("GET /itens_pedido?pedido_id=eq.1", 200,
		`[{"id":10,"pedido_id":1,"produto_id":7,"quantidade":2,"preco_unitario":24.5}]`)
	api.stubResponse("GET /produtos?id=eq.7", 200, `[{"id":7,"nome":"Caneca","preco":24.5,"estoque":4}]`)

	svc := newTestService(t, api, "")
	items, err := svc.GetOrderDetail(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].ClienteNome)
	require.NotNil(t, items[0].ProdutoNome)
	assert.Equal(t, "Caneca", *items[0].ProdutoNome)
}

func TestGetOrderDetailProductLookupDegrades(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("GET /pedidos?id=eq.1", 200, orderRow)
	api.stubResponse("GET /clientes?id=eq.3", 200, `[{"id":3,"nome":"Ana","email":"ana@example.com"}]`)
	api.stubResponse("GET /itens_pedido?pedido_id=eq.1", 200,
		`[{"id":10,"pedido_id":1,"produto_id":7,"quantidade":3,"preco_unitario":10.0}]`)
	api.stubResponse("GET /produtos?id=eq.7", 500, `{"message":"boom"}`)

	svc := newTestService(t, api, "")
	items, err := svc.GetOrderDetail(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].ProdutoNome)
	assert.Nil(t, items[0].ProdutoCategoria)
	assert.Equal(t, 30.0, items[0].TotalItem)
}

func TestGetOrderDetailItemsLookupDegradesToEmpty(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("GET /pedidos?id=eq.1", 200, orderRow)
	api.stubResponse("GET /clientes?id=eq.3", 200, `[]`)
	api.stubResponse("GET /itens_pedido?pedido_id=eq.1", 503, `{"message":"unavailable"}`)

	svc := newTestService(t, api, "")
	items, err := svc.GetOrderDetail(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGetOrderDetailIsRepeatable(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("GET /pedidos?id=eq.1", 200, orderRow)
	api.stubResponse("GET /clientes?id=eq.3", 200, `[{"id":3,"nome":"Ana","email":"ana@example.com"}]`)
	api.stubResponse("GET /itens_pedido?pedido_id=eq.1", 200,
		`[{"id":10,"pedido_id":1,"produto_id":7,"quantidade":2,"preco_unitario":24.5}]`)
	api.stubResponse("GET /produtos?id=eq.7", 200, `[{"id":7,"nome":"Caneca","preco":24.5,"estoque":4,"categoria":"cozinha"}]`)

	svc := newTestService(t, api, "")
	first, err := svc.GetOrderDetail(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.GetOrderDetail(context.Background(), 1)
	require.NoError(t, err)

	// A pure read: same upstream data, same response, no writes.
	assert.Equal(t, first, second)
	for _, key := range api.callKeys() {
		assert.Contains(t, key, "GET ")
	}
}

func TestGetOrderDetailMissingOrderIsNotFound(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("GET /pedidos?id=eq.42", 200, `[]`)

	svc := newTestService(t, api, "")
	_, err := svc.GetOrderDetail(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGetOrderDetailOrderFetchErrorIsRelayed(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("GET /pedidos?id=eq.1", 401, `{"message":"bad key"}`)

	svc := newTestService(t, api, "")
	_, err := svc.GetOrderDetail(context.Background(), 1)

	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 401, upstream.Status)
	assert.JSONEq(t, `{"message":"bad key"}`, upstream.Body)
}

// --- order-with-items creation ---

func validItems() []entity.CreateOrderItem {
	return []entity.CreateOrderItem{
		{ProdutoID: 7, Quantidade: 2, PrecoUnitario: 24.5},
		{ProdutoID: 8, Quantidade: 1, PrecoUnitario: 50.5},
	}
}

func TestCreateOrderWithItemsSuccess(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("POST /pedidos", 201, `[{"id":55,"cliente_id":3,"total":0,"status":"pendente"}]`)
	api.stubResponse("POST /itens_pedido", 201, `[{"id":101,"pedido_id":55,"produto_id":7,"quantidade":2,"preco_unitario":24.5}]`)
	api.stubResponse("POST /itens_pedido", 201, `[{"id":102,"pedido_id":55,"produto_id":8,"quantidade":1,"preco_unitario":50.5}]`)
	api.stubResponse("GET /pedidos?id=eq.55", 200, `[{"id":55,"cliente_id":3,"total":99.5,"status":"pendente"}]`)

	svc := newTestService(t, api, "service-key")
	order, err := svc.CreateOrderWithItems(context.Background(), "", 3, "", validItems())
	require.NoError(t, err)
	assert.Equal(t, int64(55), order.ID)
	assert.Equal(t, 99.5, order.Total)

	// Strictly sequential: order first, then the items in list
	// order, then the fresh read. Nothing was deleted.
	assert.Equal(t, []string{
		"POST /pedidos",
		"POST /itens_pedido",
		"POST /itens_pedido",
		"GET /pedidos?id=eq.55",
	}, api.callKeys())

	// Every write carried the elevated credential.
	for _, c := range api.calls[:3] {
		assert.Equal(t, "service-key", c.apikey)
	}
}

func TestCreateOrderWithItemsSecondItemFailureCompensates(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("POST /pedidos", 201, `[{"id":55,"cliente_id":3,"total":0,"status":"pendente"}]`)
	api.stubResponse("POST /itens_pedido", 201, `[{"id":101,"pedido_id":55,"produto_id":7,"quantidade":2,"preco_unitario":24.5}]`)
	api.stubResponse("POST /itens_pedido", 409, `{"message":"conflict"}`)
	api.stubResponse("DELETE /itens_pedido?id=eq.101", 204, ``)
	api.stubResponse("DELETE /pedidos?id=eq.55", 204, ``)

	svc := newTestService(t, api, "service-key")
	items := append(validItems(), entity.CreateOrderItem{ProdutoID: 9, Quantidade: 1, PrecoUnitario: 5})
	_, err := svc.CreateOrderWithItems(context.Background(), "", 3, "", items)

	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 409, upstream.Status)

	// The third item was never attempted; the created item and the
	// order were deleted, item first.
	assert.Equal(t, 2, api.countCalls("POST /itens_pedido"))
	assert.Equal(t, []string{
		"POST /pedidos",
		"POST /itens_pedido",
		"POST /itens_pedido",
		"DELETE /itens_pedido?id=eq.101",
		"DELETE /pedidos?id=eq.55",
	}, api.callKeys())
}

func TestCreateOrderWithItemsCompensationFailureIsSwallowed(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("POST /pedidos", 201, `[{"id":55,"cliente_id":3,"total":0,"status":"pendente"}]`)
	api.stubResponse("POST /itens_pedido", 500, `{"message":"boom"}`)
	api.stubResponse("DELETE /pedidos?id=eq.55", 500, `{"message":"delete also broken"}`)

	svc := newTestService(t, api, "service-key")
	_, err := svc.CreateOrderWithItems(context.Background(), "", 3, "", validItems()[:1])

	// The original item failure comes back, not the delete failure.
	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 500, upstream.Status)
	assert.JSONEq(t, `{"message":"boom"}`, upstream.Body)
}

func TestCreateOrderWithItemsOrderCreationFailureHasNothingToCompensate(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("POST /pedidos", 403, `{"message":"denied"}`)

	svc := newTestService(t, api, "service-key")
	_, err := svc.CreateOrderWithItems(context.Background(), "", 3, "", validItems())
	require.Error(t, err)

	assert.Equal(t, []string{"POST /pedidos"}, api.callKeys())
}

func TestCreateOrderWithItemsRequiresServiceKey(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(t, api, "")

	_, err := svc.CreateOrderWithItems(context.Background(), "", 3, "", validItems())
	assert.ErrorIs(t, err, domain.ErrServiceKeyMissing)
	assert.Empty(t, api.callKeys())
}

func TestCreateOrderWithItemsRejectsInvalidItemsBeforeUpstream(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(t, api, "service-key")

	cases := []struct {
		name  string
		items []entity.CreateOrderItem
	}{
		{"zero quantity", []entity.CreateOrderItem{{ProdutoID: 7, Quantidade: 0, PrecoUnitario: 10}}},
		{"zero price", []entity.CreateOrderItem{{ProdutoID: 7, Quantidade: 1, PrecoUnitario: 0}}},
		{"missing product", []entity.CreateOrderItem{{Quantidade: 1, PrecoUnitario: 10}}},
		{"no items", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateOrderWithItems(context.Background(), "", 3, "", tc.items)
			var validation *domain.ValidationError
			assert.True(t, errors.As(err, &validation))
		})
	}
	assert.Empty(t, api.callKeys())
}

func TestCreateOrderWithItemsDefaultsStatus(t *testing.T) {
	var gotStatus string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/pedidos" {
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			gotStatus, _ = payload["status"].(string)
			w.WriteHeader(201)
			_, _ = w.Write([]byte(`[{"id":55,"cliente_id":3,"status":"pendente"}]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":55,"cliente_id":3,"status":"pendente"}]`))
	}))
	defer srv.Close()

	client := postgrest.New(srv.URL, "anon-key", time.Second)
	svc := New(client, "service-key", 5*time.Second, nil, nil)

	_, err := svc.CreateOrderWithItems(context.Background(), "", 3, "", validItems()[:1])
	require.NoError(t, err)
	assert.Equal(t, "pendente", gotStatus)
}

func TestCreateOrderWithItemsCompensatesAfterWorkflowTimeout(t *testing.T) {
	api := newFakeAPI()
	api.stubResponse("POST /pedidos", 201, `[{"id":55,"cliente_id":3,"total":0,"status":"pendente"}]`)
	api.stubResponse("DELETE /pedidos?id=eq.55", 204, ``)

	// The item insert outlives the workflow budget, so the workflow
	// context is already dead when compensation starts.
	inner := api.handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/itens_pedido" {
			time.Sleep(300 * time.Millisecond)
		}
		inner.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	client := postgrest.New(srv.URL, "anon-key", time.Second)
	svc := New(client, "service-key", 100*time.Millisecond, nil, nil)

	_, err := svc.CreateOrderWithItems(context.Background(), "", 3, "", validItems()[:1])
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The compensating delete still reached the upstream.
	assert.Equal(t, 1, api.countCalls("DELETE /pedidos?id=eq.55"))
}

func TestCompensationsRunCountsOnlyRolledBackRuns(t *testing.T) {
	wm := metrics.NewWorkflowMetrics("order_service_rollback_test")

	api := newFakeAPI()
	api.stubResponse("POST /pedidos", 403, `{"message":"denied"}`)
	api.stubResponse("POST /pedidos", 201, `[{"id":55,"cliente_id":3,"total":0,"status":"pendente"}]`)
	api.stubResponse("POST /itens_pedido", 500, `{"message":"boom"}`)
	api.stubResponse("DELETE /pedidos?id=eq.55", 204, ``)

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	client := postgrest.New(srv.URL, "anon-key", time.Second)
	svc := New(client, "service-key", 5*time.Second, nil, wm)

	// An order creation that fails outright has nothing to undo.
	_, err := svc.CreateOrderWithItems(context.Background(), "", 3, "", validItems())
	require.Error(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(wm.CompensationsRun))

	// An item failure after the order exists rolls it back and counts.
	_, err = svc.CreateOrderWithItems(context.Background(), "", 3, "", validItems()[:1])
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(wm.CompensationsRun))
}
