// Command kvreactord runs the key/value cache server: a bounded LRU
// store behind a non-blocking reactor speaking the line protocol in
// internal/wire, with an optional read-only MCP introspection surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ravelin-io/kvreactor/internal/adminmcp"
	"github.com/ravelin-io/kvreactor/internal/auditlog"
	"github.com/ravelin-io/kvreactor/internal/conn"
	"github.com/ravelin-io/kvreactor/internal/config"
	"github.com/ravelin-io/kvreactor/internal/connreg"
	"github.com/ravelin-io/kvreactor/internal/crashlog"
	"github.com/ravelin-io/kvreactor/internal/executor"
	"github.com/ravelin-io/kvreactor/internal/reactor"
	"github.com/ravelin-io/kvreactor/internal/store"
	"github.com/ravelin-io/kvreactor/internal/sysmetrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			crashlog.Report(r, "main")
			os.Exit(1)
		}
	}()

	cfg, showHelp, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "kvreactord: %v\n", err)
		fmt.Fprint(os.Stderr, config.Usage())
		os.Exit(1)
	}
	if showHelp {
		fmt.Print(config.Usage())
		return
	}

	kv := store.NewSafe(cfg.StoreMaxBytes)

	exec := executor.New(executor.Config{
		LowWatermark:  cfg.LowWatermark,
		HighWatermark: cfg.HighWatermark,
		MaxQueueSize:  cfg.MaxQueueSize,
		IdleTime:      cfg.IdleTime,
	})
	exec.Start()

	registry := connreg.New()
	audit := auditlog.New(cfg.AuditLogCapacity)

	// CRITICAL GOROUTINE LEAK GUARD: a runaway worker or connection count
	// is the first symptom of a stuck reactor loop, so this is worth
	// crashing loudly over rather than degrading silently.
	crashlog.Go("goroutine-monitor", func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if n := sysmetrics.GoroutineCount(); n > 200000 {
				panic(fmt.Sprintf("goroutine leak detected: %d goroutines active", n))
			}
		}
	})

	var mcpServer *adminmcp.Server
	mcpErrChan := make(chan error, 1)
	if cfg.AdminMCPEnabled {
		mcpServer, err = adminmcp.New(cfg.AdminMCPPort, kv, exec, registry, audit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kvreactord: admin mcp server: %v\n", err)
			os.Exit(1)
		}
		crashlog.Go("admin-mcp-server", func() {
			fmt.Printf("admin mcp server listening on :%d\n", cfg.AdminMCPPort)
			if err := mcpServer.Start(); err != nil {
				mcpErrChan <- err
			}
		})
	}

	reactorCfg := reactor.Config{
		ListenAddr:       cfg.ListenAddr,
		AcceptRatePerSec: cfg.AcceptRatePerSec,
		AcceptBurst:      cfg.AcceptBurst,
		Workers:          cfg.Workers,
	}
	life := registryLifecycle{registry: registry, audit: audit}

	var run func(stop <-chan struct{}) error
	var closeReactor func() error
	if cfg.MultiThreaded {
		mt, err := reactor.NewMultiThreaded(reactorCfg, kv, life)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kvreactord: %v\n", err)
			os.Exit(1)
		}
		run = mt.Run
		closeReactor = func() error { return nil }
	} else {
		st, err := reactor.NewSingleThreaded(reactorCfg, kv, life)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kvreactord: %v\n", err)
			os.Exit(1)
		}
		run = st.Run
		closeReactor = st.Close
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	stop := make(chan struct{})

	crashlog.Go("shutdown-handler", func() {
		select {
		case <-sigChan:
			fmt.Println("\nshutting down...")
		case err := <-mcpErrChan:
			fmt.Fprintf(os.Stderr, "kvreactord: admin mcp server failed: %v\n", err)
		}
		close(stop)
	})

	fmt.Printf("kvreactord listening on %s (multi-threaded=%v, workers=%d)\n", cfg.ListenAddr, cfg.MultiThreaded, cfg.Workers)

	runErr := run(stop)

	exec.Stop(true)
	_ = closeReactor()
	if mcpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		mcpServer.Shutdown(ctx)
		cancel()
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "kvreactord: reactor exited: %v\n", runErr)
		os.Exit(1)
	}
}

// registryLifecycle adapts connreg.Registry's Open/Close to the
// reactor.Lifecycle interface's OnOpen/OnClose naming, and installs
// the shared audit ring as the connection's command recorder the
// moment it is registered.
type registryLifecycle struct {
	registry *connreg.Registry
	audit    *auditlog.Ring
}

func (l registryLifecycle) OnOpen(id string, fd int, c *conn.Connection) {
	c.SetRecorder(l.audit)
	l.registry.Open(id, fd, c)
}

func (l registryLifecycle) OnClose(id string) {
	l.registry.Close(id)
}
