package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Paraxiom/quantum-harmony-node-public/internal/agent"
	"github.com/Paraxiom/quantum-harmony-node-public/internal/rpc"
)

func main() {
	_ = godotenv.Load()

	nodeURL := flag.String("node", envOr("NODE_AGENT_NODE_URL", ""), "Node RPC URL")
	faucetURL := flag.String("faucet", envOr("NODE_AGENT_FAUCET_URL", ""), "Faucet service URL (inferred from node URL when omitted)")
	configPath := flag.String("config", envOr("NODE_AGENT_CONFIG", ""), "Path to yaml/json config file")
	fullTest := flag.Bool("full-test", false, "Run the full test suite")
	healthOnly := flag.Bool("health", false, "Run the health check only")
	timeout := flag.Duration("timeout", 0, "HTTP timeout per probe call (overrides config)")
	format := flag.String("format", "text", "Output format: text|json")
	outputPath := flag.String("out", "", "Write full report JSON to this file")
	strict := flag.Bool("strict", false, "Exit non-zero if any probe failed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := agent.LoadConfig(*configPath)
	if err != nil {
		exitWith("failed to load config: " + err.Error())
	}
	if strings.TrimSpace(*nodeURL) != "" {
		cfg.NodeURL = *nodeURL
	}
	if strings.TrimSpace(*faucetURL) != "" {
		cfg.FaucetURL = *faucetURL
	}
	if cfg.FaucetURL == "" {
		cfg.FaucetURL = agent.InferFaucetURL(cfg.NodeURL)
	}
	if *timeout > 0 {
		cfg.TimeoutSec = int(timeout.Seconds())
	}

	ctx := context.Background()

	obs, err := agent.SetupObservability(ctx, cfg.Observer)
	if err != nil {
		exitWith("failed to set up observability: " + err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	client := rpc.NewClient(rpc.Config{
		NodeURL:   cfg.NodeURL,
		FaucetURL: cfg.FaucetURL,
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
	})

	printBanner(client.NodeURL(), cfg.FaucetURL)

	ag := agent.New(agent.Options{
		Client:        client,
		Config:        cfg,
		Logger:        logger,
		Observability: obs,
	})

	var report agent.Report
	if *fullTest && !*healthOnly {
		report = ag.RunFullTest(ctx)
	} else {
		report = ag.RunHealthCheck(ctx)
	}

	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "json":
		printJSON(report)
	default:
		agent.RenderText(os.Stdout, report)
	}

	if strings.TrimSpace(*outputPath) != "" {
		if err := writeReport(*outputPath, report); err != nil {
			exitWith("failed to write report: " + err.Error())
		}
	}

	if *strict && report.Failed > 0 {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func printBanner(nodeURL, faucetURL string) {
	if faucetURL == "" {
		faucetURL = "Not configured"
	}
	fmt.Println("QuantumHarmony Node Testing Agent")
	fmt.Println("Automated testing like a human operator")
	fmt.Println()
	fmt.Printf("Node:   %s\n", nodeURL)
	fmt.Printf("Faucet: %s\n\n", faucetURL)
}

func printJSON(report agent.Report) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitWith("failed to encode report JSON: " + err.Error())
	}
	fmt.Println(string(data))
}

func writeReport(path string, report agent.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), data, 0o644)
}

func exitWith(message string) {
	fmt.Fprintln(os.Stderr, "error:", message)
	os.Exit(2)
}
