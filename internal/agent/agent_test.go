package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckAbortsOnConnectivityFailure(t *testing.T) {
	stub := newNodeStub(t) // system_health answers method-not-found
	a := newTestAgent(t, stub.server.URL, "")

	report := a.RunHealthCheck(context.Background())
	if len(report.Results) != 1 {
		t.Fatalf("aborted run must record exactly one result, got %d", len(report.Results))
	}
	if report.Results[0].Name != ProbeConnection || report.Results[0].Passed {
		t.Fatalf("unexpected first result: %+v", report.Results[0])
	}
	if report.Passed != 0 || report.Failed != 1 {
		t.Fatalf("unexpected totals: %+v", report)
	}
}

func TestHealthCheckPipelineOrder(t *testing.T) {
	stub := newNodeStub(t)
	stub.healthyDefaults()
	faucet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer faucet.Close()
	a := newTestAgent(t, stub.server.URL, faucet.URL)

	report := a.RunHealthCheck(context.Background())
	want := []string{
		ProbeConnection,
		ProbeChainInfo,
		ProbePeers,
		ProbeFaucetHealth,
		ProbeQRNGConfig,
		ProbeNotarial,
		ProbeGovernanceStats,
		ProbeValidatorSet,
	}
	got := resultNames(a)
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
	if report.Failed != 0 {
		t.Fatalf("expected clean run, failures: %v", Failures(report.Results))
	}
	if report.Mode != ModeHealthCheck {
		t.Fatalf("unexpected mode %q", report.Mode)
	}
	if report.RunID == "" || report.GeneratedAt == "" {
		t.Fatalf("report missing run metadata: %+v", report)
	}
}

func TestFullTestDripAndBalanceRecheck(t *testing.T) {
	stub := newNodeStub(t)
	stub.healthyDefaults()
	stub.setResult("system_account", `{"data":{"free":"100"}}`)
	faucet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/drip":
			// The drip settles instantly on the fake chain.
			stub.setResult("system_account", `{"data":{"free":"1100"}}`)
			_, _ = w.Write([]byte(`{"success":true,"hash":"0xabc"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer faucet.Close()
	a := newTestAgent(t, stub.server.URL, faucet.URL)

	report := a.RunFullTest(context.Background())

	balanceIdx := []int{}
	dripIdx := -1
	for i, result := range report.Results {
		switch result.Name {
		case ProbeAccountBalance:
			balanceIdx = append(balanceIdx, i)
		case ProbeFaucetDrip:
			dripIdx = i
		}
	}
	if len(balanceIdx) != 2 {
		t.Fatalf("expected two balance checks, got %d", len(balanceIdx))
	}
	if dripIdx < 0 {
		t.Fatalf("drip probe missing from log")
	}
	if !(balanceIdx[0] < dripIdx && dripIdx < balanceIdx[1]) {
		t.Fatalf("expected balance-drip-balance ordering, got balances=%v drip=%d", balanceIdx, dripIdx)
	}
	if report.Failed != 0 {
		t.Fatalf("expected clean run, failures: %v", Failures(report.Results))
	}
}

func TestFullTestSkipsDripWhenFaucetUnhealthy(t *testing.T) {
	stub := newNodeStub(t)
	stub.healthyDefaults()
	a := newTestAgent(t, stub.server.URL, "") // no faucet configured

	report := a.RunFullTest(context.Background())

	balances := 0
	for _, result := range report.Results {
		if result.Name == ProbeFaucetDrip {
			t.Fatalf("drip must be skipped when the faucet is unhealthy")
		}
		if result.Name == ProbeAccountBalance {
			balances++
		}
	}
	if balances != 1 {
		t.Fatalf("expected a single balance check, got %d", balances)
	}
	// The faucet failure is recorded, not fatal.
	table := ServiceTable(report.Results)
	for _, row := range table {
		if row.Probe == ProbeFaucetHealth && row.Status != StatusOffline {
			t.Fatalf("expected faucet OFFLINE, got %s", row.Status)
		}
	}
}

func TestFullTestIssuesUniqueIncreasingIDs(t *testing.T) {
	stub := newNodeStub(t)
	stub.healthyDefaults()
	a := newTestAgent(t, stub.server.URL, "")

	a.RunFullTest(context.Background())

	ids := stub.issuedIDs()
	if len(ids) == 0 {
		t.Fatalf("no rpc calls observed")
	}
	seen := map[uint64]bool{}
	var last uint64
	for i, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate rpc id %d", id)
		}
		seen[id] = true
		if id <= last {
			t.Fatalf("ids not strictly increasing at position %d: %d after %d", i, id, last)
		}
		last = id
	}
	if len(seen) != len(ids) {
		t.Fatalf("expected %d distinct ids, got %d", len(ids), len(seen))
	}
}

func TestFullTestSettlementPollStopsAtDeadline(t *testing.T) {
	stub := newNodeStub(t)
	stub.healthyDefaults()
	stub.setResult("system_account", `{"data":{"free":"100"}}`)
	faucet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"healthy":true}`))
		case "/drip":
			// Balance never moves: the poll must give up at its deadline.
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer faucet.Close()
	a := newTestAgent(t, stub.server.URL, faucet.URL)

	report := a.RunFullTest(context.Background())
	if report.Failed != 0 {
		t.Fatalf("unconfirmed settlement must not fail the run: %v", Failures(report.Results))
	}
	balances := 0
	for _, result := range report.Results {
		if result.Name == ProbeAccountBalance {
			balances++
			if !result.Passed {
				t.Fatalf("balance probe must pass: %+v", result)
			}
		}
	}
	if balances != 2 {
		t.Fatalf("expected the post-drip balance recheck, got %d balance entries", balances)
	}
}
