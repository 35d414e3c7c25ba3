package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"syscall"
)

// CodeMethodNotFound is the JSON-RPC error code a node returns for an
// unregistered method.
const CodeMethodNotFound = -32601

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// Response is the decoded JSON-RPC response envelope. Exactly one of Result
// and Error is populated on a well-behaved node; callers must check
// HasResult before treating the absence of an error as success.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// HasResult reports whether the response carried a result key. A JSON null
// result still counts as present: several node methods return null for
// empty lookups.
func (r *Response) HasResult() bool {
	return r != nil && r.Result != nil
}

// DecodeResult unmarshals the result payload into out, preserving large
// integers as json.Number when out is an untyped container.
func (r *Response) DecodeResult(out any) error {
	if !r.HasResult() {
		return errors.New("response has no result")
	}
	dec := json.NewDecoder(bytes.NewReader(r.Result))
	dec.UseNumber()
	return dec.Decode(out)
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *RPCError) IsMethodNotFound() bool {
	return e != nil && e.Code == CodeMethodNotFound
}

// ErrorKind classifies a transport failure so callers can branch on the
// failure class instead of matching substrings of the error text.
type ErrorKind int

const (
	// KindHTTPStatus marks a completed HTTP exchange with a non-2xx status.
	KindHTTPStatus ErrorKind = iota
	// KindConnection marks dial, DNS, and refused-connection failures where
	// no HTTP status was obtained.
	KindConnection
	// KindOther covers every remaining transport failure (timeouts during
	// body reads, malformed response JSON, cancelled contexts).
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindHTTPStatus:
		return "http_status"
	case KindConnection:
		return "connection"
	default:
		return "other"
	}
}

// TransportError is the uniform shape every network-level failure is
// normalized into before it crosses the client boundary.
type TransportError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether the failure was an HTTP exchange that completed
// with the given status code.
func (e *TransportError) IsStatus(code int) bool {
	return e != nil && e.Kind == KindHTTPStatus && e.StatusCode == code
}

// ConnectionRefused reports whether the underlying dial was actively
// refused, as opposed to a DNS failure or unreachable network.
func (e *TransportError) ConnectionRefused() bool {
	return e != nil && e.Kind == KindConnection && errors.Is(e.Err, syscall.ECONNREFUSED)
}

// AsTransportError unwraps err into a *TransportError when the failure
// originated in this package's transport layer.
func AsTransportError(err error) (*TransportError, bool) {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr, true
	}
	return nil, false
}

// ErrNoFaucet is returned by faucet calls when no faucet URL is configured.
var ErrNoFaucet = errors.New("no faucet URL configured")
