package agent

import (
	"context"
	"log/slog"
)

// Canonical probe names. The reporter's service table and duplicate-name
// lookups key off these, so they are fixed identifiers rather than display
// strings assembled at call sites.
const (
	ProbeConnection       = "RPC Connection"
	ProbeChainInfo        = "Chain Info"
	ProbePeers            = "Peer Connections"
	ProbeFaucetHealth     = "Faucet Health"
	ProbeFaucetDrip       = "Faucet Drip"
	ProbeAccountSelection = "Account Selection"
	ProbeAccountBalance   = "Account Balance"
	ProbeQRNGConfig       = "QRNG Config"
	ProbeQRNGQueues       = "QRNG Queues"
	ProbeQRNGHistory      = "QRNG History"
	ProbeNotarial         = "Notarial Service"
	ProbeGovernanceStats  = "Governance Stats"
	ProbeProposals        = "Proposals"
	ProbeValidatorSet     = "Validator Set"
	ProbeRewardsInfo      = "Rewards Info"
	ProbeGatewayBalance   = "Gateway Balance"
	ProbeGatewayNonce     = "Gateway Nonce"
)

// ProbeResult is one probe's verdict. Immutable once recorded; the recorder
// keeps results in execution order.
type ProbeResult struct {
	Name    string         `json:"name"`
	Passed  bool           `json:"passed"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Recorder is the append-only result log for one agent run. Entries are
// never reordered or removed, and each recorded outcome is logged
// immediately so failures surface before the final summary.
type Recorder struct {
	results []ProbeResult
	log     *slog.Logger
	obs     *Observability
}

func NewRecorder(log *slog.Logger, obs *Observability) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{log: log, obs: obs}
}

func (r *Recorder) Record(ctx context.Context, name string, passed bool, message string, details map[string]any) {
	r.results = append(r.results, ProbeResult{
		Name:    name,
		Passed:  passed,
		Message: message,
		Details: details,
	})
	if passed {
		r.log.Info(message, "probe", name)
	} else {
		r.log.Error(message, "probe", name)
	}
	r.obs.MarkProbe(ctx, name, passed)
}

// Results returns the log in execution order.
func (r *Recorder) Results() []ProbeResult {
	return r.results
}

func (r *Recorder) Len() int {
	return len(r.results)
}

// Account is a well-known test identity selected for one full-test run.
type Account struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// FundingAccount is the Alice dev account that seeds the faucet. It is
// excluded from test-account selection and used as the well-known address
// for the gateway and rewards probes.
var FundingAccount = Account{
	Name:    "Alice",
	Address: "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
}

// DevAccounts is the selectable pool of well-known dev identities from the
// chain's genesis config.
var DevAccounts = []Account{
	{Name: "Bob", Address: "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"},
	{Name: "Charlie", Address: "5FLSigC9HGRKVhB9FiEo4Y3koPsNmBmLJbpXg2mp1hXcS59Y"},
	{Name: "Dave", Address: "5DAAnrj7VHTznn2AWBemMuyBwZWs6FNFjdyVXUeYum3PTXFy"},
	{Name: "Eve", Address: "5HGjWAeFDfFCWPsjFQdVV2Msvz2XtMktvgocEZcCj68kUMaw"},
	{Name: "Ferdie", Address: "5CiPPseXPECbkjWCa6MnjNokrgYjMqmKndv2rSnekmSK2DjL"},
}

// ChainInfo is the best-effort aggregation produced by the chain-info
// probe. Fields the node did not report keep their "Unknown" placeholders.
type ChainInfo struct {
	Chain    string `json:"chain"`
	Block    uint64 `json:"block"`
	Runtime  string `json:"runtime"`
	NodeName string `json:"node_name"`
}

// Report is the consolidated outcome of one pipeline run.
type Report struct {
	RunID       string        `json:"run_id"`
	GeneratedAt string        `json:"generated_at"`
	Endpoint    string        `json:"endpoint"`
	Mode        string        `json:"mode"`
	Results     []ProbeResult `json:"results"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
}

func truncateAddress(address string, n int) string {
	if len(address) <= n {
		return address
	}
	return address[:n] + "..."
}
