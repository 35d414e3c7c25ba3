package agent

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/Paraxiom/quantum-harmony-node-public/internal/rpc"
)

// Run modes reported in the final summary.
const (
	ModeHealthCheck = "health-check"
	ModeFullTest    = "full-test"
)

// Agent drives one sequential probe pipeline against a node and its faucet.
// It owns the recorder and the RPC client for the duration of a run; probes
// execute one at a time, so no locking is needed around either.
type Agent struct {
	client *rpc.Client
	cfg    Config
	rec    *Recorder
	obs    *Observability
	log    *slog.Logger

	settleInitialDelay time.Duration
	settleDeadline     time.Duration
}

type Options struct {
	Client        *rpc.Client
	Config        Config
	Logger        *slog.Logger
	Observability *Observability
}

func New(opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	normalizeConfig(&cfg)
	return &Agent{
		client:             opts.Client,
		cfg:                cfg,
		rec:                NewRecorder(logger, opts.Observability),
		obs:                opts.Observability,
		log:                logger,
		settleInitialDelay: time.Duration(cfg.Settlement.InitialDelayMS) * time.Millisecond,
		settleDeadline:     time.Duration(cfg.Settlement.DeadlineSec) * time.Second,
	}
}

// Results exposes the run's result log in execution order.
func (a *Agent) Results() []ProbeResult {
	return a.rec.Results()
}

// RunHealthCheck probes connectivity plus every service surface once. A
// connectivity failure aborts the run with a single recorded result.
func (a *Agent) RunHealthCheck(ctx context.Context) Report {
	a.log.Info("starting node health check", "node", a.client.NodeURL())

	if !a.CheckConnection(ctx) {
		a.log.Error("node is not reachable, aborting")
		a.obs.MarkRun(ctx, ModeHealthCheck, "aborted")
		return a.buildReport(ModeHealthCheck)
	}
	a.CheckChainInfo(ctx)
	a.CheckPeers(ctx)

	a.CheckFaucetHealth(ctx)
	a.CheckQRNGConfig(ctx)
	a.CheckNotarialService(ctx)
	a.CheckGovernanceStats(ctx)
	a.CheckValidatorSet(ctx)

	a.obs.MarkRun(ctx, ModeHealthCheck, "completed")
	return a.buildReport(ModeHealthCheck)
}

// RunFullTest runs the complete suite, including the faucet drip workflow
// against a randomly selected dev account. The drip and its confirming
// balance check are skipped when the faucet is unhealthy; nothing else
// halts the pipeline after connectivity succeeds.
func (a *Agent) RunFullTest(ctx context.Context) Report {
	a.log.Info("starting full test suite", "node", a.client.NodeURL())

	if !a.CheckConnection(ctx) {
		a.log.Error("node is not reachable, aborting")
		a.obs.MarkRun(ctx, ModeFullTest, "aborted")
		return a.buildReport(ModeFullTest)
	}
	a.CheckChainInfo(ctx)
	a.CheckPeers(ctx)

	faucetHealthy := a.CheckFaucetHealth(ctx)

	account := a.SelectAccount(ctx)
	balance := a.CheckAccountBalance(ctx, account.Address)

	if faucetHealthy {
		if a.CheckFaucetDrip(ctx, account.Address) {
			a.awaitSettlement(ctx, account.Address, balance)
		}
		a.CheckAccountBalance(ctx, account.Address)
	}

	a.CheckGatewayBalance(ctx, FundingAccount.Address)
	a.CheckGatewayNonce(ctx, FundingAccount.Address)

	a.CheckQRNGConfig(ctx)
	a.CheckQRNGDeviceQueues(ctx)
	a.CheckQRNGHistory(ctx)

	a.CheckNotarialService(ctx)

	a.CheckGovernanceStats(ctx)
	a.CheckProposals(ctx)
	a.CheckValidatorSet(ctx)
	a.CheckRewardsInfo(ctx, FundingAccount.Address)

	a.obs.MarkRun(ctx, ModeFullTest, "completed")
	return a.buildReport(ModeFullTest)
}

var errSettlementPending = errors.New("drip not settled yet")

// awaitSettlement polls the account balance with exponential backoff until
// it rises above the pre-drip value or the deadline passes. A missed
// deadline is not an error: the follow-up balance probe records whatever
// the chain reports.
func (a *Agent) awaitSettlement(ctx context.Context, address string, prior *big.Int) {
	a.log.Info("waiting for drip to settle", "deadline", a.settleDeadline)

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = a.settleInitialDelay

	settled, err := backoff.Retry(ctx, func() (*big.Int, error) {
		balance, queryErr := a.queryBalance(ctx, address)
		if queryErr != nil {
			return nil, queryErr
		}
		if balance == nil || (prior != nil && balance.Cmp(prior) <= 0) {
			return nil, errSettlementPending
		}
		return balance, nil
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxElapsedTime(a.settleDeadline),
	)
	if err != nil {
		a.log.Warn("drip settlement not confirmed before deadline", "err", err)
		return
	}
	a.log.Info("drip settled", "balance", settled.String())
}

func (a *Agent) buildReport(mode string) Report {
	results := a.rec.Results()
	report := Report{
		RunID:       uuid.New().String(),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Endpoint:    a.client.NodeURL(),
		Mode:        mode,
		Results:     results,
	}
	for _, result := range results {
		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	return report
}
