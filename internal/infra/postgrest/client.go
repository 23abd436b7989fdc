// Package postgrest is a thin client for the upstream PostgREST
// data API. It speaks the PostgREST query dialect (field=eq.value
// filters, order/limit/offset params, Prefer: return=representation
// on writes) and relays every non-2xx response as a
// domain.UpstreamError, leaving the fatal-vs-degrade decision to
// the caller.
//
// The client holds no state between calls; the low-privilege anon
// key is the default credential, and privileged workflows pass an
// elevated key explicitly.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/felipe370-hub/compras-api/internal/core/domain"
)

// Resource collection names as the upstream exposes them.
const (
	ResourceClientes    = "clientes"
	ResourceProdutos    = "produtos"
	ResourcePedidos     = "pedidos"
	ResourceItensPedido = "itens_pedido"
)

type Client struct {
	baseURL     string
	anonKey     string
	callTimeout time.Duration
	hc          *http.Client
}

// New builds a client for the data API at baseURL. Every call is
// bounded by callTimeout; a timeout surfaces like any other
// upstream failure.
func New(baseURL, anonKey string, callTimeout time.Duration) *Client {
	return &Client{
		baseURL:     baseURL,
		anonKey:     anonKey,
		callTimeout: callTimeout,
		hc:          &http.Client{},
	}
}

// Query describes a filtered, ordered, paginated read or a write
// target. Filters are equality predicates keyed by field name.
type Query struct {
	Filters map[string]string
	Order   string
	Limit   int
	Offset  int
}

// ByID is the common single-row query.
func ByID(id int64) Query {
	return Query{Filters: map[string]string{"id": strconv.FormatInt(id, 10)}}
}

// encode renders the PostgREST query string. Filter keys are sorted
// so the same Query always produces the same request.
func (q Query) encode() string {
	v := url.Values{}
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, "eq."+q.Filters[k])
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v.Encode()
}

// Fetch reads rows from a resource using the anon credential.
// The upstream always answers with a JSON array.
func (c *Client) Fetch(ctx context.Context, resource string, q Query) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, resource, q, nil, "", false)
}

// Create inserts a record and returns the created row(s). An empty
// key means the anon credential.
func (c *Client) Create(ctx context.Context, resource string, payload any, key string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, resource, Query{}, payload, key, true)
}

// Update patches the rows matched by q and returns them.
func (c *Client) Update(ctx context.Context, resource string, q Query, payload any, key string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, resource, q, payload, key, true)
}

// Delete removes the rows matched by q.
func (c *Client) Delete(ctx context.Context, resource string, q Query, key string) error {
	_, err := c.do(ctx, http.MethodDelete, resource, q, nil, key, false)
	return err
}

func (c *Client) do(ctx context.Context, method, resource string, q Query, payload any, key string, representation bool) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	endpoint := c.baseURL + "/" + resource
	if qs := q.encode(); qs != "" {
		endpoint += "?" + qs
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("postgrest: marshal %s payload: %w", resource, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("postgrest: build %s %s request: %w", method, resource, err)
	}

	if key == "" {
		key = c.anonKey
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if representation {
		req.Header.Set("Prefer", "return=representation")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postgrest: %s %s: %w", method, resource, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("postgrest: read %s response: %w", resource, err)
	}

	if res.StatusCode >= 400 {
		return nil, &domain.UpstreamError{Status: res.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
