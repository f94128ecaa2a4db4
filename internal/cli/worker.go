package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ivlev/concept2video/internal/api"
	"github.com/ivlev/concept2video/internal/mq"
	"github.com/ivlev/concept2video/internal/pipeline"
	"github.com/ivlev/concept2video/internal/system"
)

func newWorkerCmd(app *App) *cobra.Command {
	var concurrency int
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued jobs and run them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.setup()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			svc, err := app.services(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			conn, err := connectQueue(cfg, logger)
			if err != nil {
				return err
			}
			defer conn.Close()
			svc.checks["rabbitmq"] = conn

			if concurrency <= 0 {
				concurrency = cfg.BatchWorkers
			}
			if concurrency <= 0 {
				concurrency = system.TakeSnapshot(ctx).RecommendedWorkers()
			}

			publisher := mq.NewPublisher(conn, logger)
			consumer := mq.NewConsumer(conn, logger, mq.NewTopology(cfg.Queue).Pending, concurrency,
				jobHandler(svc.orch, publisher, logger))

			if metricsAddr != "" {
				handler := api.NewHandler(api.Config{Store: svc.orch.Store, Gatherer: app.Gatherer, Checks: svc.checks, Logger: logger})
				mux := http.NewServeMux()
				mux.HandleFunc("GET /healthz", handler.Health)
				mux.Handle("GET /metrics", promhttp.HandlerFor(app.Gatherer, promhttp.HandlerOpts{}))
				go func() {
					if err := serveHTTP(ctx, &http.Server{Addr: metricsAddr, Handler: mux}, logger); err != nil {
						logger.Error("metrics server error", "error", err)
						cancel()
					}
				}()
			}

			err = consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				logger.Info("worker stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Jobs run at once (default from config, else sized to the host)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":8082", "Address for /healthz and /metrics; empty disables")
	return cmd
}

type requestRunner interface {
	Do(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type completionPublisher interface {
	Completed(ctx context.Context, c mq.JobCompleted) error
}

// jobHandler runs each requested job and publishes its outcome. Failed jobs
// are acknowledged; the failure travels in the completion message. Jobs
// interrupted by shutdown are requeued.
func jobHandler(runner requestRunner, pub completionPublisher, logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, msg *mq.Message) error {
		if msg.Type != mq.MessageJobRequested {
			return fmt.Errorf("%w: unexpected message type %q", mq.ErrPermanent, msg.Type)
		}
		req, err := mq.ParsePayload[pipeline.Request](msg)
		if err != nil {
			return fmt.Errorf("%w: %v", mq.ErrPermanent, err)
		}
		if req.SVGPath != "" {
			return fmt.Errorf("%w: svg_path is not accepted from the queue", mq.ErrPermanent)
		}

		res, err := runner.Do(ctx, req)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if res == nil {
			return err
		}

		done := mq.JobCompleted{
			RequestID:  msg.ID,
			JobID:      res.JobID.String(),
			Stage:      string(res.Stage),
			OutputPath: res.OutputPath,
		}
		if res.Err != nil {
			done.ErrorKind = string(res.Err.Kind)
			done.Error = res.Err.Error()
		}
		if err := pub.Completed(context.WithoutCancel(ctx), done); err != nil {
			logger.Warn("failed to publish completion", "request_id", msg.ID, "job_id", done.JobID, "error", err)
		}
		return nil
	}
}
