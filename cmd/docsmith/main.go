// Command docsmith serves office-document template tools over MCP, with a
// small HTTP surface for health checks and catalog inspection.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/docsmith/bridge"
	"github.com/hazyhaar/docsmith/dbopen"
	"github.com/hazyhaar/docsmith/docops"
	"github.com/hazyhaar/docsmith/mcpquic"
	"github.com/hazyhaar/docsmith/observability"
	"github.com/hazyhaar/docsmith/registry"
	"github.com/hazyhaar/docsmith/styles"
	"github.com/hazyhaar/docsmith/templates"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Logging goes to stderr: stdout belongs to the MCP stdio transport.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Tool event journal.
	eventsDB, err := dbopen.Open(cfg.EventsDB,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(observability.Schema),
	)
	if err != nil {
		slog.Error("events db", "error", err)
		os.Exit(1)
	}
	defer eventsDB.Close()
	events := observability.NewEventLogger(eventsDB, logger)

	// Template catalog.
	reg, err := registry.New(registry.Config{
		DBPath: cfg.RegistryDB,
		Root:   cfg.DataDir,
	}, logger)
	if err != nil {
		slog.Error("registry", "error", err)
		os.Exit(1)
	}
	defer reg.Close()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		slog.Error("data dir", "error", err)
		os.Exit(1)
	}

	// Services, all sharing the ODF adapter and the event middleware.
	adapter := bridge.NewODF()
	mw := observability.Middleware(events)

	tplSvc := templates.New(templates.Config{Root: cfg.DataDir}, adapter, reg, logger)
	tplSvc.Use(mw)
	styleEng := styles.New(adapter, logger)
	styleEng.Use(mw)
	docSvc := docops.New(adapter, logger)
	docSvc.Use(mw)

	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    "docsmith",
		Version: "1.0.0",
	}, nil)
	tplSvc.RegisterMCP(mcpSrv)
	styleEng.RegisterMCP(mcpSrv)
	docSvc.RegisterMCP(mcpSrv)

	switch cfg.MCP.Transport {
	case "quic":
		var tlsCfg *tls.Config
		if cfg.MCP.TLSCert != "" && cfg.MCP.TLSKey != "" {
			tlsCfg, err = mcpquic.ServerTLSConfig(cfg.MCP.TLSCert, cfg.MCP.TLSKey)
		} else {
			tlsCfg, err = mcpquic.SelfSignedTLSConfig()
		}
		if err != nil {
			slog.Error("MCP QUIC TLS", "error", err)
			os.Exit(1)
		}
		ql, qErr := mcpquic.NewListener(cfg.MCP.QUICAddr, tlsCfg, mcpSrv, logger)
		if qErr != nil {
			slog.Error("MCP QUIC listener", "error", qErr)
			os.Exit(1)
		}
		go func() {
			slog.Info("MCP QUIC starting", "addr", cfg.MCP.QUICAddr)
			if sErr := ql.Serve(ctx); sErr != nil && ctx.Err() == nil {
				slog.Error("MCP QUIC", "error", sErr)
			}
		}()
	default:
		go func() {
			slog.Info("MCP stdio starting")
			if rErr := mcpSrv.Run(ctx, &mcp.StdioTransport{}); rErr != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", rErr)
				cancel()
			}
		}()
	}

	// HTTP surface: health plus read-only catalog inspection.
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/templates", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := tplSvc.List(r.Context(), q.Get("q"), q.Get("category"), q.Get("format"))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"templates": list, "count": len(list)})
	})

	r.Get("/api/templates/{name}", func(w http.ResponseWriter, r *http.Request) {
		tpl, err := reg.Get(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				writeJSON(w, 404, map[string]string{"error": "template not found"})
				return
			}
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, tpl)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
