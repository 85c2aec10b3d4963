package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/asgdb/internal/backup"
	"github.com/alfredjeanlab/asgdb/internal/engine"
	"github.com/alfredjeanlab/asgdb/internal/events"
	"github.com/alfredjeanlab/asgdb/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the store over HTTP and gRPC",
	GroupID: "system",
	// Override PersistentPreRunE so we don't open a client of our own.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig() },
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Event fan-out: the hub feeds the SSE endpoint, NATS is optional.
		hub := server.NewHub()
		var publisher events.Publisher = hub
		if cfg.Events.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.Events.NATSURL)
			if err != nil {
				return err
			}
			publisher = events.Multi(pub, hub)
			logger.Info("events enabled", "nats_url", cfg.Events.NATSURL)
		} else {
			logger.Info("NATS events disabled (ASGDB_NATS_URL not set)")
		}

		e, err := engine.Open(ctx, cfg, engine.WithLogger(logger), engine.WithPublisher(publisher))
		if err != nil {
			publisher.Close()
			return err
		}
		if res := e.Setup(ctx); !res.OK {
			e.Shutdown(ctx)
			return res.Err
		}

		srv := server.New(e, hub, logger)
		grpcServer := server.NewGRPCServer(srv, cfg.API.AuthToken)

		lis, err := net.Listen("tcp", cfg.API.GRPCAddr)
		if err != nil {
			e.Shutdown(ctx)
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.API.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.API.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.API.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.API.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Periodic JSONL exports.
		var scheduler *backup.Scheduler
		if cfg.Sync.Every > 0 {
			dests, err := syncDestinations(ctx, cfg)
			if err != nil {
				logger.Error("failed to create sync destination", "err", err)
			}
			if len(dests) > 0 {
				scheduler = backup.NewScheduler(e.Store(), dests, cfg.Sync.Every, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.Sync.Every, "destinations", len(dests))
			}
		}

		logger.Info("asgdb server started",
			"driver", cfg.Database.Driver,
			"grpc_addr", cfg.API.GRPCAddr,
			"http_addr", cfg.API.HTTPAddr,
			"auth", cfg.API.AuthToken != "",
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			st := scheduler.Status()
			logger.Info("sync scheduler stopped", "last_run", st.LastRun, "bytes", st.Bytes, "skipped", st.Skipped, "last_error", st.Err)
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		// Closes the store and the publishers, writing the shutdown snapshot first.
		if res := e.Shutdown(shutdownCtx); !res.OK {
			return res.Err
		}
		logger.Info("shutdown complete")
		return nil
	},
}
