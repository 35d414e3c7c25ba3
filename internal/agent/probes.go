package agent

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/Paraxiom/quantum-harmony-node-public/internal/rpc"
)

// CheckConnection verifies basic RPC connectivity via system_health. A
// failure here aborts the pipeline, so this is the only probe whose return
// value gates the run.
func (a *Agent) CheckConnection(ctx context.Context) bool {
	ctx, finish := a.obs.StartProbe(ctx, ProbeConnection)
	defer finish()
	a.log.Info("testing RPC connection")

	resp, err := a.client.Call(ctx, "system_health")
	if err != nil {
		a.rec.Record(ctx, ProbeConnection, false, "Failed: "+err.Error(), nil)
		return false
	}
	if !resp.HasResult() {
		a.rec.Record(ctx, ProbeConnection, false, "Failed: "+rpcErrorMessage(resp), nil)
		return false
	}

	health := map[string]any{}
	_ = resp.DecodeResult(&health)
	peers := numberOrZero(health["peers"])
	syncing, _ := health["isSyncing"].(bool)
	message := fmt.Sprintf("Connected - %d peers, syncing=%v", peers, syncing)
	a.rec.Record(ctx, ProbeConnection, true, message, health)
	return true
}

// CheckChainInfo aggregates chain name, best block, runtime version, and
// node name. Best-effort: missing pieces degrade to "Unknown" and the probe
// still records a pass.
func (a *Agent) CheckChainInfo(ctx context.Context) ChainInfo {
	ctx, finish := a.obs.StartProbe(ctx, ProbeChainInfo)
	defer finish()
	a.log.Info("getting chain info")

	info := ChainInfo{Chain: "Unknown", Runtime: "Unknown", NodeName: "Unknown"}

	if resp, err := a.client.Call(ctx, "system_chain"); err == nil && resp.HasResult() {
		var chain string
		if resp.DecodeResult(&chain) == nil && chain != "" {
			info.Chain = chain
		}
	}

	if resp, err := a.client.Call(ctx, "chain_getHeader"); err == nil && resp.HasResult() {
		var header struct {
			Number string `json:"number"`
		}
		if resp.DecodeResult(&header) == nil {
			if block, parseErr := strconv.ParseUint(strings.TrimPrefix(header.Number, "0x"), 16, 64); parseErr == nil {
				info.Block = block
			}
		}
	}

	if resp, err := a.client.Call(ctx, "state_getRuntimeVersion"); err == nil && resp.HasResult() {
		var version struct {
			SpecVersion json.Number `json:"specVersion"`
		}
		if resp.DecodeResult(&version) == nil && version.SpecVersion != "" {
			info.Runtime = "v" + version.SpecVersion.String()
		}
	}

	if resp, err := a.client.Call(ctx, "system_name"); err == nil && resp.HasResult() {
		var name string
		if resp.DecodeResult(&name) == nil && name != "" {
			info.NodeName = name
		}
	}

	message := fmt.Sprintf("%s @ block #%d (%s)", info.Chain, info.Block, info.Runtime)
	a.rec.Record(ctx, ProbeChainInfo, true, message, map[string]any{
		"chain":     info.Chain,
		"block":     info.Block,
		"runtime":   info.Runtime,
		"node_name": info.NodeName,
	})
	return info
}

// CheckPeers passes only when the node reports at least one connected peer.
func (a *Agent) CheckPeers(ctx context.Context) int {
	ctx, finish := a.obs.StartProbe(ctx, ProbePeers)
	defer finish()
	a.log.Info("checking connected peers")

	resp, err := a.client.Call(ctx, "system_peers")
	if err != nil || !resp.HasResult() {
		a.rec.Record(ctx, ProbePeers, false, "Failed to get peers", nil)
		return 0
	}

	peers := []any{}
	_ = resp.DecodeResult(&peers)
	count := len(peers)
	message := fmt.Sprintf("%d peers connected", count)
	a.rec.Record(ctx, ProbePeers, count > 0, message, map[string]any{"peers": peers})
	return count
}

// CheckFaucetHealth checks the faucet's /health endpoint. Transport failure
// kinds map to specific operator-facing messages; a reachable faucet
// without an explicit healthy flag still counts as healthy.
func (a *Agent) CheckFaucetHealth(ctx context.Context) bool {
	ctx, finish := a.obs.StartProbe(ctx, ProbeFaucetHealth)
	defer finish()
	a.log.Info("testing faucet service")

	resp, err := a.client.FaucetGet(ctx, "/health")
	if err != nil {
		terr, _ := rpc.AsTransportError(err)
		switch {
		case err == rpc.ErrNoFaucet:
			a.rec.Record(ctx, ProbeFaucetHealth, false, "No faucet URL configured", nil)
		case terr.IsStatus(http.StatusBadGateway):
			a.rec.Record(ctx, ProbeFaucetHealth, false, "502 Bad Gateway - Faucet service is down", nil)
		case terr.ConnectionRefused():
			a.rec.Record(ctx, ProbeFaucetHealth, false, "Connection refused - Faucet not running", nil)
		default:
			a.rec.Record(ctx, ProbeFaucetHealth, false, "Error: "+err.Error(), nil)
		}
		return false
	}

	if resp["status"] == "ok" || truthy(resp["healthy"]) {
		a.rec.Record(ctx, ProbeFaucetHealth, true, "Faucet service is healthy", resp)
		return true
	}
	a.rec.Record(ctx, ProbeFaucetHealth, true, fmt.Sprintf("Faucet responded: %v", resp), resp)
	return true
}

// CheckFaucetDrip requests tokens for address. A success flag or a
// transaction hash in the reply counts as sent.
func (a *Agent) CheckFaucetDrip(ctx context.Context, address string) bool {
	ctx, finish := a.obs.StartProbe(ctx, ProbeFaucetDrip)
	defer finish()
	a.log.Info("requesting tokens", "address", truncateAddress(address, 16))

	resp, err := a.client.FaucetPost(ctx, "/drip", map[string]any{"address": address})
	if err != nil {
		if err == rpc.ErrNoFaucet {
			a.rec.Record(ctx, ProbeFaucetDrip, false, "No faucet URL configured", nil)
		} else {
			a.rec.Record(ctx, ProbeFaucetDrip, false, "Failed: "+err.Error(), nil)
		}
		return false
	}

	if truthy(resp["success"]) || resp["hash"] != nil {
		hash := "pending"
		if s, ok := resp["hash"].(string); ok && s != "" {
			hash = s
		}
		a.rec.Record(ctx, ProbeFaucetDrip, true, "Tokens sent! TX: "+hash, resp)
		return true
	}
	a.rec.Record(ctx, ProbeFaucetDrip, false, fmt.Sprintf("Unexpected response: %v", resp), resp)
	return false
}

// SelectAccount picks one of the well-known dev identities uniformly at
// random, excluding the funding account. Selection cannot fail.
func (a *Agent) SelectAccount(ctx context.Context) Account {
	ctx, finish := a.obs.StartProbe(ctx, ProbeAccountSelection)
	defer finish()
	a.log.Info("selecting test account")

	index, err := rand.Int(rand.Reader, big.NewInt(int64(len(DevAccounts))))
	account := DevAccounts[0]
	if err == nil {
		account = DevAccounts[index.Int64()]
	}

	message := fmt.Sprintf("Using %s: %s", account.Name, truncateAddress(account.Address, 20))
	a.rec.Record(ctx, ProbeAccountSelection, true, message, map[string]any{
		"name":    account.Name,
		"address": account.Address,
	})
	return account
}

// CheckAccountBalance reports the free balance of address. A missing or
// unrecognized response shape reads as zero and still passes: unfunded
// accounts are expected.
func (a *Agent) CheckAccountBalance(ctx context.Context, address string) *big.Int {
	ctx, finish := a.obs.StartProbe(ctx, ProbeAccountBalance)
	defer finish()
	a.log.Info("checking balance", "address", truncateAddress(address, 16))

	balance, err := a.queryBalance(ctx, address)
	if err != nil || balance == nil {
		a.rec.Record(ctx, ProbeAccountBalance, true, "Balance: 0 (new account)", map[string]any{"balance": "0"})
		return big.NewInt(0)
	}
	message := fmt.Sprintf("Balance: %s units", balance.String())
	a.rec.Record(ctx, ProbeAccountBalance, true, message, map[string]any{"balance": balance.String()})
	return balance
}

// queryBalance fetches the free balance without recording a result. Used by
// the balance probe and by the post-drip settlement poll.
func (a *Agent) queryBalance(ctx context.Context, address string) (*big.Int, error) {
	resp, err := a.client.Call(ctx, "system_account", address)
	if err != nil {
		return nil, err
	}
	if !resp.HasResult() {
		return nil, nil
	}
	var account struct {
		Data map[string]any `json:"data"`
	}
	if err := resp.DecodeResult(&account); err != nil || account.Data == nil {
		return nil, nil
	}
	return asBigInt(account.Data["free"]), nil
}

// CheckQRNGConfig reports the threshold randomness subsystem's k-of-m
// reconstruction parameters.
func (a *Agent) CheckQRNGConfig(ctx context.Context) {
	ctx, finish := a.obs.StartProbe(ctx, ProbeQRNGConfig)
	defer finish()
	a.log.Info("getting QRNG config")

	resp, err := a.client.Call(ctx, "qrng_getConfig")
	if err != nil || !resp.HasResult() {
		a.rec.Record(ctx, ProbeQRNGConfig, false, "Failed to get config", nil)
		return
	}

	config := map[string]any{}
	_ = resp.DecodeResult(&config)
	k := fieldOrPlaceholder(config, "threshold_k")
	m := fieldOrPlaceholder(config, "total_devices_m")
	a.rec.Record(ctx, ProbeQRNGConfig, true, fmt.Sprintf("Threshold: %s-of-%s", k, m), config)
}

// CheckQRNGDeviceQueues reports how many device queues the randomness
// subsystem is tracking.
func (a *Agent) CheckQRNGDeviceQueues(ctx context.Context) {
	ctx, finish := a.obs.StartProbe(ctx, ProbeQRNGQueues)
	defer finish()
	a.log.Info("getting QRNG device queues")

	resp, err := a.client.Call(ctx, "qrng_getDeviceQueues")
	if err != nil || !resp.HasResult() {
		a.rec.Record(ctx, ProbeQRNGQueues, false, "Failed to get device queues", nil)
		return
	}

	var queues any
	_ = resp.DecodeResult(&queues)
	count := 0
	if list, ok := queues.([]any); ok {
		count = len(list)
	}
	a.rec.Record(ctx, ProbeQRNGQueues, true, fmt.Sprintf("%d device queues", count), map[string]any{"queues": queues})
}

// CheckQRNGHistory reports recent threshold reconstructions.
func (a *Agent) CheckQRNGHistory(ctx context.Context) {
	ctx, finish := a.obs.StartProbe(ctx, ProbeQRNGHistory)
	defer finish()
	a.log.Info("getting QRNG reconstruction history")

	resp, err := a.client.Call(ctx, "qrng_getReconstructionHistory", 10)
	if err != nil || !resp.HasResult() {
		a.rec.Record(ctx, ProbeQRNGHistory, false, "Failed to get history", nil)
		return
	}

	var history any
	_ = resp.DecodeResult(&history)
	count := 0
	if list, ok := history.([]any); ok {
		count = len(list)
	}
	a.rec.Record(ctx, ProbeQRNGHistory, true, fmt.Sprintf("%d reconstructions", count), map[string]any{"count": count})
}

// CheckNotarialService verifies the notarial RPC surface is registered. A
// soft error from a registered method still means the service is up; only
// method-not-found or an unreadable exchange fails the probe.
func (a *Agent) CheckNotarialService(ctx context.Context) {
	ctx, finish := a.obs.StartProbe(ctx, ProbeNotarial)
	defer finish()
	a.log.Info("testing notarial service")

	resp, err := a.client.Call(ctx, "notarial_getAttestationsByOwner", FundingAccount.Address)
	if err != nil {
		a.rec.Record(ctx, ProbeNotarial, false, "Unexpected response: "+err.Error(), nil)
		return
	}

	if resp.HasResult() {
		count := 0
		var attestations []any
		if resp.DecodeResult(&attestations) == nil {
			count = len(attestations)
		}
		a.rec.Record(ctx, ProbeNotarial, true, fmt.Sprintf("%d attestations found", count), map[string]any{"count": count})
		return
	}
	if resp.Error != nil {
		if resp.Error.IsMethodNotFound() {
			a.rec.Record(ctx, ProbeNotarial, false, "Notarial RPC not available", nil)
			return
		}
		a.rec.Record(ctx, ProbeNotarial, true, "Notarial service responding", map[string]any{
			"error_code":    resp.Error.Code,
			"error_message": resp.Error.Message,
		})
		return
	}
	a.rec.Record(ctx, ProbeNotarial, false, "Unexpected response", nil)
}

// CheckGovernanceStats fetches aggregate governance statistics.
func (a *Agent) CheckGovernanceStats(ctx context.Context) {
	ctx, finish := a.obs.StartProbe(ctx, ProbeGovernanceStats)
	defer finish()
	a.log.Info("getting governance stats")

	resp, err := a.client.Call(ctx, "quantumharmony_getGovernanceStats")
	if err != nil || !resp.HasResult() {
		a.rec.Record(ctx, ProbeGovernanceStats, false, "Failed to get governance stats", nil)
		return
	}
	stats := map[string]any{}
	_ = resp.DecodeResult(&stats)
	a.rec.Record(ctx, ProbeGovernanceStats, true, "Stats retrieved", stats)
}

// CheckProposals counts open governance proposals. An empty list is a pass.
func (a *Agent) CheckProposals(ctx context.Context) {
	ctx, finish := a.obs.StartProbe(ctx, ProbeProposals)
	defer finish()
	a.log.Info("getting proposals")

	resp, err := a.client.Call(ctx, "quantumharmony_getProposals")
	if err != nil || !resp.HasResult() {
		a.rec.Record(ctx, ProbeProposals, false, "Failed to get proposals", nil)
		return
	}
	count := listLength(resp)
	a.rec.Record(ctx, ProbeProposals, true, fmt.Sprintf("%d proposals", count), map[string]any{"count": count})
}

// CheckValidatorSet counts active validators.
func (a *Agent) CheckValidatorSet(ctx context.Context) {
	ctx, finish := a.obs.StartProbe(ctx, ProbeValidatorSet)
	defer finish()
	a.log.Info("getting validator set")

	resp, err := a.client.Call(ctx, "quantumharmony_getValidatorSet")
	if err != nil || !resp.HasResult() {
		a.rec.Record(ctx, ProbeValidatorSet, false, "Failed to get validator set", nil)
		return
	}
	count := listLength(resp)
	a.rec.Record(ctx, ProbeValidatorSet, true, fmt.Sprintf("%d validators", count), map[string]any{"count": count})
}

// CheckRewardsInfo reports pending rewards and the reward multiplier for
// address.
func (a *Agent) CheckRewardsInfo(ctx context.Context, address string) {
	ctx, finish := a.obs.StartProbe(ctx, ProbeRewardsInfo)
	defer finish()
	a.log.Info("getting rewards info")

	resp, err := a.client.Call(ctx, "quantumharmony_getRewardsInfo", address)
	if err != nil || !resp.HasResult() {
		a.rec.Record(ctx, ProbeRewardsInfo, false, "Failed to get rewards info", nil)
		return
	}

	rewards := map[string]any{}
	_ = resp.DecodeResult(&rewards)
	pending := "0"
	if v, ok := rewards["pending_rewards"]; ok {
		pending = fmt.Sprintf("%v", v)
	}
	multiplier := fieldOrPlaceholder(rewards, "reward_multiplier")
	message := fmt.Sprintf("Pending: %s, Multiplier: %s", pending, multiplier)
	a.rec.Record(ctx, ProbeRewardsInfo, true, message, rewards)
}

// CheckGatewayBalance queries the gateway balance RPC. Non-integer results
// coerce to zero rather than failing.
func (a *Agent) CheckGatewayBalance(ctx context.Context, address string) int64 {
	ctx, finish := a.obs.StartProbe(ctx, ProbeGatewayBalance)
	defer finish()
	a.log.Info("getting gateway balance", "address", truncateAddress(address, 16))

	resp, err := a.client.Call(ctx, "gateway_balance", address)
	if err != nil || !resp.HasResult() {
		a.rec.Record(ctx, ProbeGatewayBalance, false, "Failed to get balance", nil)
		return 0
	}
	balance := intResult(resp)
	a.rec.Record(ctx, ProbeGatewayBalance, true, fmt.Sprintf("Balance: %d", balance), map[string]any{"balance": balance})
	return balance
}

// CheckGatewayNonce queries the account nonce via the gateway RPC.
func (a *Agent) CheckGatewayNonce(ctx context.Context, address string) int64 {
	ctx, finish := a.obs.StartProbe(ctx, ProbeGatewayNonce)
	defer finish()
	a.log.Info("getting nonce", "address", truncateAddress(address, 16))

	resp, err := a.client.Call(ctx, "gateway_nonce", address)
	if err != nil || !resp.HasResult() {
		a.rec.Record(ctx, ProbeGatewayNonce, false, "Failed to get nonce", nil)
		return 0
	}
	nonce := intResult(resp)
	a.rec.Record(ctx, ProbeGatewayNonce, true, fmt.Sprintf("Nonce: %d", nonce), map[string]any{"nonce": nonce})
	return nonce
}

func rpcErrorMessage(resp *rpc.Response) string {
	if resp != nil && resp.Error != nil && resp.Error.Message != "" {
		return resp.Error.Message
	}
	return "Unknown error"
}

func listLength(resp *rpc.Response) int {
	var value any
	if resp.DecodeResult(&value) != nil {
		return 0
	}
	if list, ok := value.([]any); ok {
		return len(list)
	}
	return 0
}

func intResult(resp *rpc.Response) int64 {
	var value json.Number
	if resp.DecodeResult(&value) != nil {
		return 0
	}
	n, err := value.Int64()
	if err != nil {
		return 0
	}
	return n
}

func fieldOrPlaceholder(fields map[string]any, key string) string {
	value, ok := fields[key]
	if !ok || value == nil {
		return "?"
	}
	return fmt.Sprintf("%v", value)
}

func truthy(value any) bool {
	b, ok := value.(bool)
	return ok && b
}

func numberOrZero(value any) int64 {
	switch v := value.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func asBigInt(value any) *big.Int {
	switch v := value.(type) {
	case json.Number:
		if n, ok := new(big.Int).SetString(v.String(), 10); ok {
			return n
		}
	case string:
		s := v
		base := 10
		if strings.HasPrefix(s, "0x") {
			s = strings.TrimPrefix(s, "0x")
			base = 16
		}
		if n, ok := new(big.Int).SetString(s, base); ok {
			return n
		}
	case float64:
		return big.NewInt(int64(v))
	}
	return nil
}
