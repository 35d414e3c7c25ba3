package agent

import (
	"bytes"
	"strings"
	"testing"
)

func TestServiceTableEmptyLog(t *testing.T) {
	rows := ServiceTable(nil)
	if len(rows) != 6 {
		t.Fatalf("expected 6 fixed rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Status != StatusUnknown {
			t.Fatalf("empty log must report UNKNOWN, got %s for %s", row.Status, row.Service)
		}
	}
}

func TestServiceTableStatuses(t *testing.T) {
	results := []ProbeResult{
		{Name: ProbeConnection, Passed: true},
		{Name: ProbeFaucetHealth, Passed: false},
		{Name: ProbeQRNGConfig, Passed: true},
	}
	byService := map[string]ServiceStatus{}
	for _, row := range ServiceTable(results) {
		byService[row.Service] = row.Status
	}
	if byService["RPC"] != StatusOnline {
		t.Fatalf("expected RPC ONLINE, got %s", byService["RPC"])
	}
	if byService["Faucet"] != StatusOffline {
		t.Fatalf("expected Faucet OFFLINE, got %s", byService["Faucet"])
	}
	if byService["QRNG"] != StatusOnline {
		t.Fatalf("expected QRNG ONLINE, got %s", byService["QRNG"])
	}
	for _, absent := range []string{"Notarial", "Governance", "Validators"} {
		if byService[absent] != StatusUnknown {
			t.Fatalf("expected %s UNKNOWN, got %s", absent, byService[absent])
		}
	}
}

func TestServiceTableMostRecentEntryWins(t *testing.T) {
	results := []ProbeResult{
		{Name: ProbeConnection, Passed: true},
		{Name: ProbeValidatorSet, Passed: true},
		{Name: ProbeConnection, Passed: false},
	}
	for _, row := range ServiceTable(results) {
		if row.Probe == ProbeConnection && row.Status != StatusOffline {
			t.Fatalf("most recent connectivity entry failed; expected OFFLINE, got %s", row.Status)
		}
	}
}

func TestFailuresPreserveOrder(t *testing.T) {
	results := []ProbeResult{
		{Name: "a", Passed: false, Message: "first"},
		{Name: "b", Passed: true},
		{Name: "c", Passed: false, Message: "second"},
	}
	failures := Failures(results)
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].Message != "first" || failures[1].Message != "second" {
		t.Fatalf("failures out of order: %+v", failures)
	}
}

func TestRenderTextSummary(t *testing.T) {
	report := Report{
		RunID:       "run-1",
		GeneratedAt: "2026-01-01T00:00:00Z",
		Endpoint:    "http://localhost:9944",
		Mode:        ModeHealthCheck,
		Results: []ProbeResult{
			{Name: ProbeConnection, Passed: true, Message: "Connected - 3 peers, syncing=false"},
			{Name: ProbeFaucetHealth, Passed: false, Message: "Connection refused - Faucet not running"},
		},
		Passed: 1,
		Failed: 1,
	}

	var buf bytes.Buffer
	RenderText(&buf, report)
	out := buf.String()

	if !strings.Contains(out, "1/2 passed, 1 failed") {
		t.Fatalf("missing totals line:\n%s", out)
	}
	if !strings.Contains(out, "Faucet Health: Connection refused - Faucet not running") {
		t.Fatalf("missing failure list entry:\n%s", out)
	}
	if !strings.Contains(out, "OFFLINE") || !strings.Contains(out, "ONLINE") || !strings.Contains(out, "UNKNOWN") {
		t.Fatalf("service table incomplete:\n%s", out)
	}
}

func TestRenderTextEmptyLog(t *testing.T) {
	var buf bytes.Buffer
	RenderText(&buf, Report{Mode: ModeHealthCheck})
	if !strings.Contains(buf.String(), "0/0 passed") {
		t.Fatalf("empty report must render totals:\n%s", buf.String())
	}
}
