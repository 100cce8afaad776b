package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	grpcpkg "github.com/stormhead-org/fairway/internal/grpc"
	documentgrpcpkg "github.com/stormhead-org/fairway/internal/grpc/document"
	metricspkg "github.com/stormhead-org/fairway/internal/metrics"
	ormpkg "github.com/stormhead-org/fairway/internal/orm"
)

var serverCommand = &cobra.Command{
	Use:   "server",
	Short: "serve the document store over gRPC",
	Long:  "",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverCommandImpl()
	},
}

func serverCommandImpl() error {
	// Application
	application := fx.New(
		fx.NopLogger,
		fx.Provide(
			// Logger
			newLogger,

			// Metrics
			func(lc fx.Lifecycle, log *zap.Logger) *metricspkg.Metrics {
				registry := prometheus.NewRegistry()
				registry.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				metrics := metricspkg.NewMetrics(registry)

				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				server := &http.Server{
					Addr:              getenv("METRICS_ADDR", ":9090"),
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						go func() {
							log.Info("metrics server started", zap.String("addr", server.Addr))
							err := server.ListenAndServe()
							if err != nil && !errors.Is(err, http.ErrServerClosed) {
								log.Error("metrics server stopped", zap.Error(err))
							}
						}()
						return nil
					},
					OnStop: func(ctx context.Context) error {
						return server.Shutdown(ctx)
					},
				})
				return metrics
			},

			// Clients
			func(lc fx.Lifecycle, log *zap.Logger) (*ormpkg.PostgresClient, error) {
				client, err := ormpkg.NewPostgresClient(
					log,
					getenv("POSTGRES_HOST", "127.0.0.1"),
					getenv("POSTGRES_PORT", "5432"),
					getenv("POSTGRES_USER", "postgres"),
					getenv("POSTGRES_PASSWORD", "postgres"),
				)
				if err != nil {
					return nil, err
				}
				err = client.Migrate()
				if err != nil {
					return nil, err
				}

				listener := ormpkg.NewChangeListener(log, client)
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return listener.Start()
					},
					OnStop: func(ctx context.Context) error {
						return errors.Join(listener.Stop(ctx), client.Close())
					},
				})
				return client, nil
			},

			// gRPC Servers
			func(log *zap.Logger, db *ormpkg.PostgresClient) *documentgrpcpkg.DocumentServer {
				return documentgrpcpkg.NewDocumentServer(log, db)
			},

			// Main gRPC Server
			func(
				lc fx.Lifecycle,
				log *zap.Logger,
				metrics *metricspkg.Metrics,
				documentServer *documentgrpcpkg.DocumentServer,
			) (*grpcpkg.GRPC, error) {
				rps, err := strconv.ParseFloat(getenv("RATE_LIMIT_RPS", "50"), 64)
				if err != nil {
					return nil, err
				}
				burst, err := strconv.Atoi(getenv("RATE_LIMIT_BURST", "600"))
				if err != nil {
					return nil, err
				}

				grpcServer, err := grpcpkg.NewGRPC(
					log,
					metrics,
					documentServer,
					getenv("GRPC_HOST", "0.0.0.0"),
					getenv("GRPC_PORT", "8080"),
					rps,
					burst,
				)
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return grpcServer.Start()
					},
					OnStop: func(ctx context.Context) error {
						return grpcServer.Stop()
					},
				})
				return grpcServer, nil
			},
		),
		fx.Invoke(func(*grpcpkg.GRPC) {}),
	)
	application.Run()

	err := application.Err()
	if err != nil {
		os.Exit(1)
	}

	return nil
}

func init() {
	rootCommand.AddCommand(serverCommand)
}
