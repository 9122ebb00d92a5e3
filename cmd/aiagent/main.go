// AIAgent is a billing-data assistant service.
//
// It answers natural-language questions about customers, payments, and
// invoices by driving an LLM tool-calling loop against a catalog of
// named queries over per-tenant database shards. Configuration is
// loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	aiagent serve                Start the API server
//	aiagent init [dir]           Write an example config file
//	aiagent ask <question>       Ask a single question (for testing)
//	aiagent eval [suite.yaml]    Run an evaluation suite against the configured model
//	aiagent version              Print version and build information
//	aiagent -o json version      Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ic-sshang/AIAgent/examples"
	"github.com/ic-sshang/AIAgent/internal/agent"
	"github.com/ic-sshang/AIAgent/internal/api"
	"github.com/ic-sshang/AIAgent/internal/buildinfo"
	"github.com/ic-sshang/AIAgent/internal/config"
	"github.com/ic-sshang/AIAgent/internal/eval"
	"github.com/ic-sshang/AIAgent/internal/export"
	"github.com/ic-sshang/AIAgent/internal/llm"
	"github.com/ic-sshang/AIAgent/internal/procs"
	"github.com/ic-sshang/AIAgent/internal/prompts"
	"github.com/ic-sshang/AIAgent/internal/session"
	"github.com/ic-sshang/AIAgent/internal/tools"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the aiagent command. All OS-level
// dependencies are injected as parameters: ctx controls process
// lifetime (cancelling it triggers graceful shutdown), stdout/stderr
// receive program output, and args is os.Args[1:].
//
// Arguments are parsed by hand. The flag package relies on
// package-level globals (flag.CommandLine), which makes it impossible
// to call run() concurrently from tests; the argument surface is small
// enough that manual parsing is clearer than a CLI framework.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var shardID int
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-shard" && i+1 < len(args):
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid -shard value: %s", args[i+1])
			}
			shardID = n
			i++
		case strings.HasPrefix(args[i], "-shard="):
			n, err := strconv.Atoi(strings.TrimPrefix(args[i], "-shard="))
			if err != nil {
				return fmt.Errorf("invalid -shard value: %s", args[i])
			}
			shardID = n
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}
	if shardID == 0 {
		shardID = 1
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: aiagent [-shard N] ask <question>")
		}
		return runAsk(ctx, stdout, configPath, shardID, cmdArgs)
	case "eval":
		return runEval(ctx, stdout, configPath, shardID, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "AIAgent - Billing Data Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: aiagent [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Write an example config file (default: .)")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  eval         Run an evaluation suite (optional: path to a YAML suite file)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -shard <id>       Tenant shard for ask/eval (default: 1)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintf(w, "  %s\n", strings.Join(config.DefaultSearchPaths(), ", "))
	return nil
}

// runInit writes the example config file into dir, refusing to
// overwrite an existing one.
func runInit(w io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}
	if err := os.WriteFile(path, examples.ConfigYAML, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "Wrote %s - edit it and set OPENAI_API_KEY, then run: aiagent serve\n", path)
	return nil
}

// loadConfig locates and parses the YAML configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfgPath, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		// Already validated against the known names by the caller's use
		// of ParseLogLevel below; fall back to Info on anything odd.
		if parsed, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	return config.NewLogger(w, level, cfg.LogFmt)
}

// newFactory builds the session factory shared by serve, ask, and the
// tool-listing endpoint: open the shard, register its query catalog and
// the export tool, and prime an agent with the shard's system prompt.
func newFactory(cfg *config.Config, client llm.Client, exporter *export.Exporter, logger *slog.Logger) session.Factory {
	return func(ctx context.Context, shardID int) (*agent.Agent, *procs.Store, error) {
		store, err := procs.Open(cfg.Database.Dir, shardID)
		if err != nil {
			return nil, nil, err
		}

		reg := tools.NewRegistry()
		store.RegisterCatalog(reg)
		exporter.Register(reg)

		ag := agent.New(logger, client, reg, prompts.System(shardID, time.Now()), export.ToolName)
		return ag, store, nil
	}
}

// runServe handles the "aiagent serve" subcommand: load config, wire
// the model client, session table, and export store, start the API
// server, and block until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(stdout, cfg)
	logger.Info("starting AIAgent",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"config", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.AI.Model,
	)

	if err := os.MkdirAll(cfg.Database.Dir, 0o755); err != nil {
		return fmt.Errorf("create database directory %s: %w", cfg.Database.Dir, err)
	}

	exporter, err := export.New(cfg.Exports.Dir, cfg.Exports.BaseURL, logger)
	if err != nil {
		return err
	}

	client := llm.NewOpenAIClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, logger)

	// A failed ping is a warning, not a fatal: the endpoint may come up
	// after us, and each chat call surfaces its own errors.
	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("model endpoint not reachable at startup", "base_url", cfg.AI.BaseURL, "error", err)
	} else {
		logger.Info("model endpoint reachable", "base_url", cfg.AI.BaseURL)
	}
	pingCancel()

	table := session.NewTable(newFactory(cfg, client, exporter, logger), logger)
	defer table.Close()

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, table, newFactory(cfg, client, exporter, logger), exporter, logger)

	// SIGINT/SIGTERM cancellation flows through the same ctx used by all
	// components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("AIAgent stopped")
	return nil
}

// runAsk handles the "aiagent ask <question>" subcommand. It boots a
// single session against the given shard and processes one question,
// printing the answer to stdout. Useful for smoke tests without the
// server.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, shardID int, args []string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(stdout, cfg)
	logger.Info("config loaded", "path", cfgPath)

	question := strings.Join(args, " ")

	if err := os.MkdirAll(cfg.Database.Dir, 0o755); err != nil {
		return fmt.Errorf("create database directory %s: %w", cfg.Database.Dir, err)
	}
	exporter, err := export.New(cfg.Exports.Dir, cfg.Exports.BaseURL, logger)
	if err != nil {
		return err
	}
	client := llm.NewOpenAIClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, logger)

	factory := newFactory(cfg, client, exporter, logger)
	ag, store, err := factory(ctx, shardID)
	if err != nil {
		return err
	}
	defer store.Close()

	answer, err := ag.Chat(ctx, question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, answer)
	return nil
}

// runEval handles the "aiagent eval" subcommand: replay a scenario
// suite against the configured model, using an in-memory shard seeded
// with the demo fixture so results are reproducible. With no argument
// the built-in suite runs; a YAML file argument loads a custom one.
func runEval(ctx context.Context, stdout io.Writer, configPath string, shardID int, args []string) error {
	suite := eval.DefaultSuite()
	if len(args) > 0 {
		var err error
		suite, err = eval.LoadSuite(args[0])
		if err != nil {
			return err
		}
	}

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(io.Discard, cfg) // keep report output clean
	client := llm.NewOpenAIClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, logger)

	exporter, err := export.New(cfg.Exports.Dir, cfg.Exports.BaseURL, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Evaluating %s (%s)\n\n", cfg.AI.Model, cfgPath)

	// Each scenario gets a fresh session over a fresh seeded shard.
	// Tool use is measured as the growth in tool-result messages.
	chat := func(ctx context.Context, prompt string) (string, int, error) {
		store, err := procs.OpenMemory(shardID)
		if err != nil {
			return "", 0, err
		}
		defer store.Close()
		if err := store.SeedDemo(ctx); err != nil {
			return "", 0, err
		}

		reg := tools.NewRegistry()
		store.RegisterCatalog(reg)
		exporter.Register(reg)
		ag := agent.New(logger, client, reg, prompts.System(shardID, time.Now()), export.ToolName)

		answer, err := ag.Chat(ctx, prompt)
		if err != nil {
			return "", 0, err
		}

		toolCalls := 0
		for _, m := range ag.History() {
			if m.Role == llm.RoleTool {
				toolCalls++
			}
		}
		return answer, toolCalls, nil
	}

	results := eval.Run(ctx, suite, chat)
	eval.Report(stdout, results)

	if s := eval.Summarize(results); s.Passed < s.Total {
		return fmt.Errorf("%d of %d scenarios failed", s.Total-s.Passed, s.Total)
	}
	return nil
}
