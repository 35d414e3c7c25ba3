package agent

import (
	"fmt"
	"io"
)

type ServiceStatus string

const (
	StatusOnline  ServiceStatus = "ONLINE"
	StatusOffline ServiceStatus = "OFFLINE"
	StatusUnknown ServiceStatus = "UNKNOWN"
)

// ServiceRow maps one canonical probe to its display name and the status
// derived from the result log.
type ServiceRow struct {
	Service string        `json:"service"`
	Probe   string        `json:"probe"`
	Status  ServiceStatus `json:"status"`
}

// serviceTableRows fixes the six services shown in the summary table and
// their display order.
var serviceTableRows = []struct {
	probe   string
	display string
}{
	{ProbeConnection, "RPC"},
	{ProbeFaucetHealth, "Faucet"},
	{ProbeQRNGConfig, "QRNG"},
	{ProbeNotarial, "Notarial"},
	{ProbeGovernanceStats, "Governance"},
	{ProbeValidatorSet, "Validators"},
}

// ServiceTable resolves the canonical service statuses from a result log.
// When a probe name occurs more than once the most recent entry wins; a
// probe that never ran reports UNKNOWN. Safe on an empty log.
func ServiceTable(results []ProbeResult) []ServiceRow {
	rows := make([]ServiceRow, 0, len(serviceTableRows))
	for _, entry := range serviceTableRows {
		status := StatusUnknown
		for i := len(results) - 1; i >= 0; i-- {
			if results[i].Name != entry.probe {
				continue
			}
			if results[i].Passed {
				status = StatusOnline
			} else {
				status = StatusOffline
			}
			break
		}
		rows = append(rows, ServiceRow{Service: entry.display, Probe: entry.probe, Status: status})
	}
	return rows
}

// Failures returns the failing entries of the log in execution order.
func Failures(results []ProbeResult) []ProbeResult {
	failed := []ProbeResult{}
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

// RenderText writes the human-readable run summary: totals, the failure
// list, and the fixed service status table.
func RenderText(w io.Writer, report Report) {
	fmt.Fprintf(w, "Node:      %s\n", report.Endpoint)
	fmt.Fprintf(w, "Mode:      %s\n", report.Mode)
	fmt.Fprintf(w, "Run:       %s\n", report.RunID)
	fmt.Fprintf(w, "Generated: %s\n\n", report.GeneratedAt)

	total := len(report.Results)
	fmt.Fprintf(w, "Results: %d/%d passed, %d failed\n\n", report.Passed, total, report.Failed)

	failures := Failures(report.Results)
	if len(failures) > 0 {
		fmt.Fprintln(w, "Failed tests:")
		for _, result := range failures {
			fmt.Fprintf(w, "  - %s: %s\n", result.Name, result.Message)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Service Status:")
	fmt.Fprintln(w, "┌────────────────────┬──────────┐")
	fmt.Fprintln(w, "│ Service            │ Status   │")
	fmt.Fprintln(w, "├────────────────────┼──────────┤")
	for _, row := range ServiceTable(report.Results) {
		fmt.Fprintf(w, "│ %-18s │ %-8s │\n", row.Service, row.Status)
	}
	fmt.Fprintln(w, "└────────────────────┴──────────┘")
}
