package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/embernet/tapestry-sub001/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the graph tools over MCP (stdio or streamable HTTP)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return serve(cmd.Context(), a, cmd.Flag("workspace").Value.String())
	},
}

func init() {
	f := serveCmd.Flags()
	f.String("transport", "stdio", "Transport mode: stdio or http")
	f.String("addr", ":8081", "HTTP listen address (only used with --transport http)")
	f.String("token", "", "Bearer token required on /mcp (only used with --transport http)")
	f.String("workspace", "", "Workspace to open on start")
}

func serve(ctx context.Context, a *app, workspace string) error {
	if workspace != "" {
		if _, err := a.session.Switch(workspace); err != nil {
			return err
		}
	}

	// Build the MCP server with all tools registered
	srv := server.New(a.session, a.dispatcher, a.logger.Named("mcp"))

	switch a.cfg.Server.Transport {
	case "stdio":
		a.logger.Info("Tapestry MCP server starting (stdio)")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case "http":
		return serveHTTP(ctx, a, srv)
	default:
		return fmt.Errorf("unknown transport: %s (use stdio or http)", a.cfg.Server.Transport)
	}
}

func serveHTTP(ctx context.Context, a *app, srv *mcp.Server) error {
	if a.cfg.Server.Token == "" {
		a.logger.Warn("no bearer token configured, /mcp is unauthenticated")
	}
	httpServer := &http.Server{
		Addr: a.cfg.Server.Addr,
		Handler: server.Router(srv, server.HTTPOptions{
			Token:   a.cfg.Server.Token,
			Metrics: a.metrics.Handler(),
			Logger:  a.logger.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("Tapestry MCP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Periodic save so a crash loses little work.
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, ok := a.session.Current(); ok {
					if err := a.session.Save(); err != nil {
						a.logger.Warn("periodic save failed", zap.Error(err))
					}
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
