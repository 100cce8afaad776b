package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	eventpkg "github.com/stormhead-org/fairway/internal/event"
	ormpkg "github.com/stormhead-org/fairway/internal/orm"
	workerpkg "github.com/stormhead-org/fairway/internal/worker"
)

var workerCommand = &cobra.Command{
	Use:   "worker",
	Short: "turn comment events into notifications",
	Long:  "",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workerCommandImpl()
	},
}

func workerCommandImpl() error {
	// Application
	application := fx.New(
		fx.NopLogger,
		fx.Provide(
			newLogger,

			// Kafka client
			func(lifecycle fx.Lifecycle, logger *zap.Logger) (*eventpkg.KafkaClient, error) {
				kafkaClient, err := eventpkg.NewKafkaClient(
					getenv("KAFKA_HOST", "127.0.0.1"),
					getenv("KAFKA_PORT", "9092"),
					getenv("KAFKA_TOPIC", "comments"),
					getenv("KAFKA_GROUP", "notifications"),
				)
				if err != nil {
					return nil, err
				}
				lifecycle.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						return kafkaClient.Close()
					},
				})
				return kafkaClient, nil
			},

			func(lifecycle fx.Lifecycle, logger *zap.Logger) (*ormpkg.PostgresClient, error) {
				client, err := ormpkg.NewPostgresClient(
					logger,
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
				lifecycle.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						return client.Close()
					},
				})
				return client, nil
			},

			// Application
			func(
				lifecycle fx.Lifecycle,
				logger *zap.Logger,
				kafkaClient *eventpkg.KafkaClient,
				databaseClient *ormpkg.PostgresClient,
			) (*workerpkg.Worker, error) {
				worker := workerpkg.NewWorker(logger, kafkaClient, databaseClient)

				lifecycle.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return worker.Start()
					},
					OnStop: func(ctx context.Context) error {
						return worker.Stop()
					},
				})

				return worker, nil
			},
		),
		fx.Invoke(
			func(*workerpkg.Worker) {},
		),
	)
	application.Run()

	err := application.Err()
	if err != nil {
		os.Exit(1)
	}

	return nil
}

func init() {
	rootCommand.AddCommand(workerCommand)
}
