package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/concept2video/internal/api"
	"github.com/ivlev/concept2video/internal/config"
	"github.com/ivlev/concept2video/internal/mq"
	"github.com/ivlev/concept2video/internal/pipeline"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var queue bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: "Serve the HTTP API. Jobs run inside this process unless --queue is set, " +
			"in which case they are published for workers.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.setup()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.HTTPAddr
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			svc, err := app.services(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			var submitter api.Submitter
			if queue {
				conn, err := connectQueue(cfg, logger)
				if err != nil {
					return err
				}
				defer conn.Close()
				submitter = mq.NewPublisher(conn, logger)
				svc.checks["rabbitmq"] = conn
			}

			// workers may run elsewhere, so queued outputs carry an absolute path
			outRoot, err := filepath.Abs(cfg.OutputRoot)
			if err != nil {
				return err
			}

			handler := api.NewHandler(api.Config{
				Runner:     svc.orch,
				Submitter:  submitter,
				Store:      svc.orch.Store,
				Defaults:   cfg.Defaults,
				Gatherer:   app.Gatherer,
				Checks:     svc.checks,
				OutputRoot: outRoot,
				JobContext: ctx,
				Logger:     logger,
			})
			mux := http.NewServeMux()
			handler.RegisterRoutes(mux)

			err = serveHTTP(ctx, &http.Server{Addr: addr, Handler: mux}, logger)
			cancel()
			drainJobs(svc.orch, logger)
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&queue, "queue", false, "Publish jobs to the queue instead of running them here")
	return cmd
}

// drainJobs waits for in-process jobs to observe cancellation and remove
// their work directories before the process exits.
func drainJobs(orch *pipeline.Orchestrator, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := orch.Wait(ctx); err != nil {
		logger.Warn("jobs still running at exit", "error", err)
	}
}

// connectQueue dials the broker and declares the job topology.
func connectQueue(cfg *config.Config, logger *slog.Logger) (*mq.Connection, error) {
	if cfg.AMQPURL == "" {
		return nil, errors.New("amqp_url (RABBITMQ_URL) is not configured")
	}
	conn, err := mq.NewConnection(cfg.AMQPURL, logger)
	if err != nil {
		return nil, err
	}
	if err := mq.NewTopology(cfg.Queue).Declare(conn); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("RabbitMQ connected", "queue", cfg.Queue)
	return conn, nil
}

// serveHTTP runs srv until ctx ends, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	logger.Info("stopped")
	return nil
}
