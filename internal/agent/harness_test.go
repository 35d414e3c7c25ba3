package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Paraxiom/quantum-harmony-node-public/internal/rpc"
)

// nodeStub is a fake node RPC endpoint. Methods registered in results get a
// result envelope, methods in rpcErrors get an error envelope, and anything
// else gets a method-not-found error, matching real node behavior.
type nodeStub struct {
	mu        sync.Mutex
	results   map[string]string
	rpcErrors map[string]string
	methods   []string
	ids       []uint64
	server    *httptest.Server
}

func newNodeStub(t *testing.T) *nodeStub {
	t.Helper()
	stub := &nodeStub{
		results:   map[string]string{},
		rpcErrors: map[string]string{},
	}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
		}
		stub.mu.Lock()
		stub.methods = append(stub.methods, req.Method)
		stub.ids = append(stub.ids, req.ID)
		result, hasResult := stub.results[req.Method]
		rpcErr, hasError := stub.rpcErrors[req.Method]
		stub.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case hasError:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":%s}`, req.ID, rpcErr)
		case hasResult:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
		default:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"Method not found"}}`, req.ID)
		}
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *nodeStub) setResult(method, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[method] = result
	delete(s.rpcErrors, method)
}

func (s *nodeStub) setError(method, rpcErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpcErrors[method] = rpcErr
	delete(s.results, method)
}

func (s *nodeStub) issuedIDs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64{}, s.ids...)
}

// healthyDefaults registers passing responses for every probe the pipelines
// touch.
func (s *nodeStub) healthyDefaults() {
	s.setResult("system_health", `{"peers":3,"isSyncing":false}`)
	s.setResult("system_chain", `"QuantumHarmony Testnet"`)
	s.setResult("chain_getHeader", `{"number":"0x1a"}`)
	s.setResult("state_getRuntimeVersion", `{"specVersion":102}`)
	s.setResult("system_name", `"quantum-harmony-node"`)
	s.setResult("system_peers", `[{"peerId":"a"},{"peerId":"b"},{"peerId":"c"}]`)
	s.setResult("system_account", `{"data":{"free":"1000"}}`)
	s.setResult("qrng_getConfig", `{"threshold_k":3,"total_devices_m":5}`)
	s.setResult("qrng_getDeviceQueues", `[{"device":"qrng-0"},{"device":"qrng-1"}]`)
	s.setResult("qrng_getReconstructionHistory", `[{"round":1}]`)
	s.setResult("notarial_getAttestationsByOwner", `[]`)
	s.setResult("quantumharmony_getGovernanceStats", `{"active_proposals":1}`)
	s.setResult("quantumharmony_getProposals", `[]`)
	s.setResult("quantumharmony_getValidatorSet", `[{"v":"a"},{"v":"b"}]`)
	s.setResult("quantumharmony_getRewardsInfo", `{"pending_rewards":"42","reward_multiplier":"1.5"}`)
	s.setResult("gateway_balance", `1000000`)
	s.setResult("gateway_nonce", `7`)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Settlement.InitialDelayMS = 10
	cfg.Settlement.DeadlineSec = 1
	return cfg
}

func newTestAgent(t *testing.T, nodeURL, faucetURL string) *Agent {
	t.Helper()
	client := rpc.NewClient(rpc.Config{
		NodeURL:   nodeURL,
		FaucetURL: faucetURL,
		Timeout:   2 * time.Second,
	})
	return New(Options{
		Client: client,
		Config: testConfig(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func lastResult(t *testing.T, a *Agent) ProbeResult {
	t.Helper()
	results := a.Results()
	if len(results) == 0 {
		t.Fatalf("no results recorded")
	}
	return results[len(results)-1]
}

func resultNames(a *Agent) []string {
	names := []string{}
	for _, result := range a.Results() {
		names = append(names, result.Name)
	}
	return names
}
