package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/smartnotes/internal/api"
	"github.com/kalambet/smartnotes/internal/session"
	"github.com/kalambet/smartnotes/internal/tui"
	"github.com/kalambet/smartnotes/internal/watch"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat screen",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The chat screen owns the terminal; logs only survive with log.file set.
		a, err := newApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		dir, _ := cmd.Flags().GetString("watch")
		if dir == "" {
			dir = a.cfg.Watch.Dir
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		bridge := tui.NewBridge()
		s := a.session(session.WithNotifier(bridge.Notify))
		defer s.Close()

		g, gctx := errgroup.WithContext(ctx)
		runCtx, cancel := context.WithCancel(gctx)
		defer cancel()

		g.Go(func() error {
			defer cancel()
			return tui.Run(runCtx, s, bridge)
		})
		if dir != "" {
			g.Go(func() error {
				return runWatcher(runCtx, dir, s, a.cfg.Watch.RetryInterval, a.logger)
			})
		}
		return g.Wait()
	},
}

func init() {
	chatCmd.Flags().String("watch", "", "also upload files added to this directory (default from watch.dir)")
}

// --- watch ---

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Upload PDFs and notes as they appear in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		dir := a.cfg.Watch.Dir
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			return fmt.Errorf("no directory given and watch.dir is not set")
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s := a.session()
		defer s.Close()

		printStep("Watching %s (backend %s)", dir, a.gw.BaseURL())
		if err := runWatcher(ctx, dir, s, a.cfg.Watch.RetryInterval, a.logger); err != nil {
			return err
		}
		printStep("Stopped; %d file(s) uploaded", len(s.RecentUploads()))
		return nil
	},
}

// runWatcher feeds files created in dir to an upload worker until ctx is
// cancelled.
func runWatcher(ctx context.Context, dir string, up watch.Uploader, retry time.Duration, logger *slog.Logger) error {
	w, err := watch.NewWatcher(logger)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	events, err := w.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	logger.Info("watching directory", "dir", dir)
	watch.NewWorker(up, retry, logger).Run(ctx, events)
	return nil
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the session to MCP clients over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s := a.session()
		defer s.Close()

		mcpSrv := api.NewMCPServer(api.MCPDeps{Session: s, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		a.logger.Info("MCP server started (stdio transport)", "backend", a.gw.BaseURL())
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	},
}

// --- stub ---

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Run an in-memory answering backend for local use",
	Long: `Run an in-memory answering backend for local use.

Uploaded documents are kept in memory and answers quote the best-matching
stored passage instead of calling a model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Stub.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		token := a.cfg.Backend.APIToken
		if cmd.Flags().Changed("token") {
			token, _ = cmd.Flags().GetString("token")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := fmt.Sprintf("127.0.0.1:%d", port)
		return serveStub(ctx, addr, api.StubDeps{Token: token, Logger: a.logger})
	},
}

func init() {
	stubCmd.Flags().Int("port", 0, "port to listen on (default from stub.port)")
	stubCmd.Flags().String("token", "", "require this bearer token (default from SMARTNOTES_BACKEND_API_TOKEN)")
}

// serveStub runs the stub backend on addr until ctx is cancelled, then
// shuts it down gracefully.
func serveStub(ctx context.Context, addr string, deps api.StubDeps) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewStubHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printStep("stub backend listening on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
