// Package odoo implements the verifier interface against an Odoo server's
// JSON-RPC endpoint. Authentication goes through the "common" service;
// follow-on model access goes through "object" execute_kw calls made with the
// credentials the handle was bound to at login.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/odoogate/odoogate/instrumentation"
	"github.com/odoogate/odoogate/verifier"
)

const jsonrpcPath = "/jsonrpc"

// Config holds Odoo verifier configuration.
type Config struct {
	// BaseURL is the Odoo server base URL (e.g. "http://odoo.internal").
	BaseURL string

	// Port overrides the port of BaseURL when non-zero. Odoo's default
	// HTTP port is 8069.
	Port int

	// Database is the Odoo database name to authenticate against.
	Database string

	// HTTPClient is used for all RPC calls. Defaults to a client with a
	// 30 second overall timeout; per-call deadlines come from the caller's
	// context.
	HTTPClient *http.Client

	// Logger for structured logging (optional).
	Logger *slog.Logger

	// Instrumentation for upstream call metrics (optional).
	Instrumentation *instrumentation.Instrumentation
}

// Verifier verifies credentials against an Odoo server.
type Verifier struct {
	endpoint   string
	database   string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics

	// JSON-RPC request IDs; purely for call/response correlation in logs.
	nextID atomic.Int64
}

// Compile-time interface check.
var _ verifier.Verifier = (*Verifier)(nil)

// New creates an Odoo verifier.
func New(cfg Config) (*Verifier, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("odoo base URL is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("odoo database is required")
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid odoo base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("odoo base URL must include scheme and host")
	}
	if cfg.Port > 0 {
		parsed.Host = parsed.Hostname() + ":" + strconv.Itoa(cfg.Port)
	}
	parsed.Path = jsonrpcPath
	parsed.RawQuery = ""

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v := &Verifier{
		endpoint:   parsed.String(),
		database:   cfg.Database,
		httpClient: httpClient,
		logger:     logger,
	}
	if cfg.Instrumentation != nil {
		v.metrics = cfg.Instrumentation.Metrics()
	}

	return v, nil
}

// Name returns "odoo".
func (v *Verifier) Name() string { return "odoo" }

// Authenticate verifies the credentials via common.authenticate and returns a
// handle bound to the resulting uid. Odoo signals bad credentials by
// returning false instead of a uid.
func (v *Verifier) Authenticate(ctx context.Context, username, password string) (verifier.Client, error) {
	start := time.Now()

	result, err := v.call(ctx, "common", "authenticate",
		[]any{v.database, username, password, map[string]any{}})

	v.metrics.RecordUpstreamCall(ctx, "authenticate", err, float64(time.Since(start).Milliseconds()))

	if err != nil {
		return nil, fmt.Errorf("odoo authenticate: %w", err)
	}

	uid, ok := asInt64(result)
	if !ok || uid <= 0 {
		return nil, verifier.ErrInvalidCredentials
	}

	v.logger.Debug("Odoo authentication succeeded", "uid", uid)

	return &client{verifier: v, uid: uid, login: username, password: password}, nil
}

// HealthCheck calls common.version to verify the server is reachable.
func (v *Verifier) HealthCheck(ctx context.Context) error {
	if _, err := v.call(ctx, "common", "version", []any{}); err != nil {
		return fmt.Errorf("odoo health check: %w", err)
	}
	return nil
}

// client is a handle bound to one authenticated uid. Odoo's RPC protocol is
// stateless, so the handle retains the credentials and replays them on each
// execute_kw call; Close has nothing to release server-side.
type client struct {
	verifier *Verifier
	uid      int64
	login    string
	password string
}

var _ verifier.Client = (*client)(nil)

func (c *client) UID() int64 { return c.uid }

func (c *client) Read(ctx context.Context, model string, id int64, fields []string) (map[string]any, error) {
	start := time.Now()

	result, err := c.executeKw(ctx, model, "read",
		[]any{[]any{id}}, map[string]any{"fields": fields})

	c.verifier.metrics.RecordUpstreamCall(ctx, "read", err, float64(time.Since(start).Milliseconds()))

	if err != nil {
		return nil, fmt.Errorf("odoo read %s/%d: %w", model, id, err)
	}

	records, ok := result.([]any)
	if !ok || len(records) == 0 {
		return nil, verifier.ErrRecordNotFound
	}

	record, ok := records[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("odoo read %s/%d: unexpected record shape", model, id)
	}

	return record, nil
}

func (c *client) SearchCount(ctx context.Context, model string, domain []any) (int, error) {
	start := time.Now()

	if domain == nil {
		domain = []any{}
	}
	result, err := c.executeKw(ctx, model, "search_count", []any{domain}, nil)

	c.verifier.metrics.RecordUpstreamCall(ctx, "search_count", err, float64(time.Since(start).Milliseconds()))

	if err != nil {
		return 0, fmt.Errorf("odoo search_count %s: %w", model, err)
	}

	count, ok := asInt64(result)
	if !ok {
		return 0, fmt.Errorf("odoo search_count %s: unexpected result shape", model)
	}

	return int(count), nil
}

func (c *client) Close() error { return nil }

// executeKw performs an object.execute_kw call with the handle's credentials.
func (c *client) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	params := []any{c.verifier.database, c.uid, c.password, model, method, args}
	if kwargs != nil {
		params = append(params, kwargs)
	}
	return c.verifier.call(ctx, "object", "execute_kw", params)
}

// rpcRequest is the JSON-RPC 2.0 envelope Odoo expects.
type rpcRequest struct {
	Jsonrpc string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result any       `json:"result"`
	Error  *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Data.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC round trip.
func (v *Verifier) call(ctx context.Context, service, method string, args []any) (any, error) {
	body, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      v.nextID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", service, method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call %s.%s: unexpected status %d", service, method, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, parsed.Error
	}

	return parsed.Result, nil
}

// asInt64 coerces the JSON result shapes Odoo uses for numeric returns.
// A bool false means "no result" and is not a number.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
