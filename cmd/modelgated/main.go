// Command modelgated is the multi-provider language-model gateway process:
// it wires the Model Registry, Capability Cache, Concurrency Limiter, Sync
// and Async Engines, and Conversation/Request Store into a Tool Router
// exposed over line-delimited JSON-RPC 2.0 on stdio (spec.md §1, §6).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/modelgate/modelgate/internal/appconfig"
	"github.com/modelgate/modelgate/internal/asyncengine"
	"github.com/modelgate/modelgate/internal/capcache"
	"github.com/modelgate/modelgate/internal/gateway"
	"github.com/modelgate/modelgate/internal/limiter"
	"github.com/modelgate/modelgate/internal/logging"
	"github.com/modelgate/modelgate/internal/paths"
	"github.com/modelgate/modelgate/internal/registry"
	"github.com/modelgate/modelgate/internal/store"
	"github.com/modelgate/modelgate/internal/syncengine"
	"github.com/modelgate/modelgate/internal/upstream"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "modelgated: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log := logging.New(isTerminal(os.Stderr))

	cfgPath := os.Getenv("MODELGATE_CONFIG")
	if cfgPath == "" {
		cfgPath = paths.ConfigFile()
	}
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.StorePath == appconfig.DefaultStorePath {
		if err := paths.EnsureDir(paths.DataDir()); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		cfg.StorePath = paths.StorePath()
	}

	bindings := registry.LoadBindingsFromEnv()
	reg := registry.New(bindings)
	if len(bindings) == 0 {
		log.Warn().Msg("no provider api keys configured; the gateway will start with zero live models")
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening store %s: %w", cfg.StorePath, err)
	}
	defer st.Close()

	caps := capcache.NewWithTTL(cfg.CapCacheTTL)
	limits := limiter.New()
	if len(cfg.Concurrency) > 0 {
		limits = limiterWithOverrides(cfg.Concurrency)
	}

	upstreams := upstream.NewSet(bindings)

	syncEng := syncengine.New(reg, upstreams, caps, limits, log)
	asyncEng := asyncengine.New(reg, upstreams, st, limits, log)
	asyncEng.MaxHistoryMessages = cfg.MaxHistoryMessages

	router := gateway.New(reg, syncEng, asyncEng, log)

	mcpServer := server.NewMCPServer("modelgate", version, server.WithToolCapabilities(true))
	router.Register(mcpServer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeStdio(mcpServer)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("received shutdown signal")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving stdio: %w", err)
		}
		return nil
	}
}

func limiterWithOverrides(overrides map[string]int64) *limiter.Table {
	capacities := make(map[registry.Provider]int64, len(overrides))
	for name, n := range overrides {
		capacities[registry.Provider(name)] = n
	}
	for _, p := range registry.AllProviders() {
		if _, ok := capacities[p]; !ok {
			capacities[p] = defaultCapacityFor(p)
		}
	}
	return limiter.NewWithCapacities(capacities)
}

func defaultCapacityFor(p registry.Provider) int64 {
	switch p {
	case registry.OpenAI:
		return 8
	case registry.Google, registry.Anthropic:
		return 6
	case registry.XAI:
		return 4
	default:
		return 4
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
