package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	// NodeURL is the node's JSON-RPC endpoint. ws:// and wss:// schemes are
	// rewritten to their HTTP equivalents.
	NodeURL string
	// FaucetURL is the faucet service base URL; empty means no faucet.
	FaucetURL string
	Timeout   time.Duration
}

// Client issues JSON-RPC calls to a node plus plain REST calls to the
// faucet service. The request id counter is owned by the Client instance
// and lives for one agent run; ids are strictly increasing and never reset.
type Client struct {
	nodeURL   string
	faucetURL string
	client    *http.Client
	nextID    atomic.Uint64
}

func NewClient(cfg Config) *Client {
	nodeURL := strings.TrimRight(cfg.NodeURL, "/")
	nodeURL = strings.Replace(nodeURL, "ws://", "http://", 1)
	nodeURL = strings.Replace(nodeURL, "wss://", "https://", 1)
	if nodeURL == "" {
		nodeURL = "http://localhost:9944"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		nodeURL:   nodeURL,
		faucetURL: strings.TrimRight(cfg.FaucetURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// NodeURL returns the normalized node endpoint.
func (c *Client) NodeURL() string {
	return c.nodeURL
}

// HasFaucet reports whether a faucet URL is configured.
func (c *Client) HasFaucet() bool {
	return c.faucetURL != ""
}

// Call performs one JSON-RPC 2.0 exchange against the node. Transport
// failures come back as *TransportError; a decoded envelope is returned
// otherwise, and may still carry a JSON-RPC error object.
func (c *Client) Call(ctx context.Context, method string, params ...any) (*Response, error) {
	if params == nil {
		params = []any{}
	}
	envelope := request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := c.exchange(ctx, http.MethodPost, c.nodeURL, envelope)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{
			Kind:    KindOther,
			Message: fmt.Sprintf("decode rpc response: %v", err),
			Err:     err,
		}
	}
	return &resp, nil
}

// FaucetGet performs a plain GET against the faucet service and decodes the
// JSON body.
func (c *Client) FaucetGet(ctx context.Context, path string) (map[string]any, error) {
	if c.faucetURL == "" {
		return nil, ErrNoFaucet
	}
	return c.faucetExchange(ctx, http.MethodGet, path, nil)
}

// FaucetPost sends a plain JSON object (no JSON-RPC envelope) to the faucet
// service.
func (c *Client) FaucetPost(ctx context.Context, path string, payload any) (map[string]any, error) {
	if c.faucetURL == "" {
		return nil, ErrNoFaucet
	}
	return c.faucetExchange(ctx, http.MethodPost, path, payload)
}

func (c *Client) faucetExchange(ctx context.Context, method, path string, payload any) (map[string]any, error) {
	body, err := c.exchange(ctx, method, c.faucetURL+path, payload)
	if err != nil {
		return nil, err
	}
	decoded := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, &TransportError{
			Kind:    KindOther,
			Message: fmt.Sprintf("decode faucet response: %v", err),
			Err:     err,
		}
	}
	return decoded, nil
}

// exchange performs exactly one HTTP request/response cycle and normalizes
// every failure mode into *TransportError.
func (c *Client) exchange(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &TransportError{
				Kind:    KindOther,
				Message: fmt.Sprintf("marshal request body: %v", err),
				Err:     err,
			}
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &TransportError{
			Kind:    KindOther,
			Message: fmt.Sprintf("build request: %v", err),
			Err:     err,
		}
	}
	if reader != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.client.Do(request)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return nil, &TransportError{
			Kind:    KindOther,
			Message: fmt.Sprintf("read response body: %v", readErr),
			Err:     readErr,
		}
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &TransportError{
			Kind:       KindHTTPStatus,
			StatusCode: response.StatusCode,
			Message:    fmt.Sprintf("%d %s", response.StatusCode, http.StatusText(response.StatusCode)),
			Err:        fmt.Errorf("unexpected status %d", response.StatusCode),
		}
	}
	return body, nil
}

func classifyRequestError(err error) *TransportError {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return &TransportError{
			Kind:    KindConnection,
			Message: err.Error(),
			Err:     err,
		}
	}
	return &TransportError{
		Kind:    KindOther,
		Message: err.Error(),
		Err:     err,
	}
}
