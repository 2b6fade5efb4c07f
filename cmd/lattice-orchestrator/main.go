// Command lattice-orchestrator is a minimal CLI entrypoint over the
// orchestrator package, grounded on the teacher's cmd/agentflow/main.go
// subcommand dispatch (argv[1] switch + per-command flag.FlagSet) but
// trimmed to this module's actual surface: no HTTP server, no database
// migrations, no OpenTelemetry — those all belong to the teacher's REST API,
// which sits outside every SPEC_FULL.md component (see DESIGN.md's deleted
// teacher modules).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/config"
	"github.com/klappe-pm/lattice-orchestrator/orchestrator"
	"github.com/klappe-pm/lattice-orchestrator/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "route":
		runRoute(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	case "models":
		runModels(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func loadOrchestrator(configPath string) (*orchestrator.Orchestrator, *zap.Logger) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.BuildLogger()
	if err != nil {
		logger = zap.NewNop()
	}
	orc, err := orchestrator.NewFromConfig(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build orchestrator: %v\n", err)
		os.Exit(1)
	}
	return orc, logger
}

func runRoute(args []string) {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to configuration file")
	prompt := fs.String("prompt", "", "prompt to route")
	modelHint := fs.String("model", "", "preferred model id or alias")
	taskHint := fs.String("task", "", "task type hint")
	timeout := fs.Duration("timeout", 60*time.Second, "request deadline")
	fs.Parse(args)

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "route requires -prompt")
		os.Exit(1)
	}

	orc, logger := loadOrchestrator(*configPath)
	defer logger.Sync()
	defer orc.Shutdown(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := orc.Route(ctx, types.RouteRequest{
		Prompt:    *prompt,
		ModelHint: *modelHint,
		TaskHint:  types.TaskType(*taskHint),
		Deadline:  time.Now().Add(*timeout),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "route failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("model: %s\n", resp.Response.ModelAPIName)
	fmt.Printf("content: %s\n", resp.Response.Content)
	fmt.Printf("tokens: prompt=%d completion=%d total=%d\n",
		resp.Response.Usage.PromptTokens, resp.Response.Usage.CompletionTokens, resp.Response.Usage.TotalTokens)
	if resp.CostEvent != nil {
		fmt.Printf("cost: $%s (status=%s, fallback_depth=%d)\n",
			resp.CostEvent.CostUSDTotal.StringFixed(6), resp.CostEvent.Status, resp.CostEvent.FallbackDepth)
	}
}

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to configuration file")
	fs.Parse(args)

	orc, logger := loadOrchestrator(*configPath)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health := orc.Health(ctx)
	allHealthy := true
	for provider, healthy := range health {
		status := "ok"
		if !healthy {
			status = "unavailable"
			allHealthy = false
		}
		fmt.Printf("%-12s %s\n", provider, status)
	}
	if !allHealthy {
		os.Exit(1)
	}
}

func runModels(args []string) {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to configuration file")
	fs.Parse(args)

	orc, logger := loadOrchestrator(*configPath)
	defer logger.Sync()

	for _, d := range orc.ListModels() {
		fmt.Printf("%-28s %-10s ctx=%-8d capabilities=%v\n", d.ID, d.Provider, d.ContextWindow, d.Capabilities)
	}
}

func printVersion() {
	fmt.Printf("lattice-orchestrator %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`lattice-orchestrator - intelligent LLM routing CLI

Usage:
  lattice-orchestrator <command> [options]

Commands:
  route     Route a single prompt through the orchestrator
  health    Check provider health
  models    List registered models
  version   Show version information
  help      Show this help message

Options for 'route':
  -config <path>   Path to configuration file (YAML, default config.yaml)
  -prompt <text>   Prompt to route (required)
  -model <id>      Preferred model id or alias
  -task <type>     Task type hint
  -timeout <dur>   Request deadline (default 60s)

Examples:
  lattice-orchestrator route -prompt "write a function to reverse a string"
  lattice-orchestrator health -config config.yaml
  lattice-orchestrator models`)
}
