// Command reflex runs one agent session: it loads configuration, opens the
// store, registers the builtin tools, resolves a completion provider, and
// drives the reflect/act loop until a stop reason is reached. The session
// result is printed as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/wilhg/reflex/internal/config"
	"github.com/wilhg/reflex/pkg/adapters/llm"
	_ "github.com/wilhg/reflex/pkg/adapters/llm/gemini"
	_ "github.com/wilhg/reflex/pkg/adapters/llm/openai"
	"github.com/wilhg/reflex/pkg/agent"
	"github.com/wilhg/reflex/pkg/agent/tools"
	"github.com/wilhg/reflex/pkg/events"
	"github.com/wilhg/reflex/pkg/mcptool"
	"github.com/wilhg/reflex/pkg/memory/episodic"
	"github.com/wilhg/reflex/pkg/memory/outcome"
	"github.com/wilhg/reflex/pkg/otel"
	"github.com/wilhg/reflex/pkg/runtime"
	"github.com/wilhg/reflex/pkg/store/sqlstore"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var showVersion bool
	var configPath string
	var serveAddr string
	var mcpServer string

	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&configPath, "config", getEnv("REFLEX_CONFIG", ""), "path to config file")
	flag.StringVar(&serveAddr, "serve", "", "also serve /healthz and /api/events on this address")
	flag.StringVar(&mcpServer, "mcp", "", "attach tools from an MCP server command, e.g. \"npx my-server --flag\"")
	flag.Parse()

	if showVersion {
		fmt.Printf("reflex %s (commit=%s, date=%s)\n", version, commit, date)
		return
	}

	goal := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if goal == "" {
		fmt.Fprintln(os.Stderr, "usage: reflex [flags] <goal text>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(goal, configPath, serveAddr, mcpServer); err != nil {
		fmt.Fprintf(os.Stderr, "reflex: %v\n", err)
		os.Exit(1)
	}
}

func run(goal, configPath, serveAddr, mcpServer string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName:    "reflex",
		ServiceVersion: version,
		UseStdout:      cfg.TraceStdout,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	st, err := sqlstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	episodes := episodic.New(st, episodic.WithLogger(logger))
	if err := episodes.Load(ctx); err != nil {
		return fmt.Errorf("load episodic memory: %w", err)
	}
	outcomes := outcome.New(st, logger)

	registry := agent.NewRegistry()
	for _, t := range []agent.Tool{
		tools.FileReadTool{FS: os.DirFS(cfg.Workspace)},
		tools.FileWriteTool{Dir: cfg.Workspace},
		tools.HTTPGetTool{},
		tools.ShellExecTool{Dir: cfg.Workspace, Denied: tools.DefaultDenied},
	} {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register tool: %w", err)
		}
	}

	if mcpServer != "" {
		words := strings.Fields(mcpServer)
		closeMCP, err := mcptool.Attach(ctx, registry, words[0], words[1:]...)
		if err != nil {
			return fmt.Errorf("attach mcp server: %w", err)
		}
		defer func() { _ = closeMCP() }()
	}

	provider, err := llm.New(ctx, cfg.Provider, map[string]any{"model": cfg.Model})
	if err != nil {
		return fmt.Errorf("resolve provider %q: %w", cfg.Provider, err)
	}

	emitter := events.NewEmitter(events.WithLogger(logger))
	runner := runtime.NewRunner(provider, registry,
		runtime.WithEpisodic(episodes),
		runtime.WithOutcomes(outcomes),
		runtime.WithEmitter(emitter),
		runtime.WithLogger(logger),
	)

	if serveAddr != "" {
		srv := &http.Server{Addr: serveAddr, Handler: buildMux(emitter)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	task := agent.NewTask(goal, agent.RunConfig{
		MaxIterations:      cfg.MaxIterations,
		ErrorThreshold:     cfg.ErrorThreshold,
		CheckpointInterval: cfg.CheckpointInterval,
		Provider:           cfg.Provider,
		Model:              cfg.Model,
		ProviderTimeout:    cfg.ProviderTimeout,
		ToolTimeout:        cfg.ToolTimeout,
		FrameBudget:        cfg.FrameBudget,
	})

	// The first interrupt cancels ctx and the loop exits with UserStop at
	// the next pass. Memory writes use a detached context and still land.
	result, err := runner.Run(ctx, task)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Succeeded() {
		return fmt.Errorf("session stopped: %s", result.Reason)
	}
	return nil
}

// buildMux exposes liveness and the in-memory event buffer for inspection
// while a session runs.
func buildMux(emitter *events.Emitter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		var buf []events.Event
		if t := r.URL.Query().Get("type"); t != "" {
			buf = emitter.BufferByType(events.Type(t))
		} else {
			buf = emitter.Buffer()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(buf)
	})
	return otelhttp.NewHandler(mux, "reflex-http")
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

func getEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
