package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"bookstore/internal/config"
	"bookstore/internal/infra/db"
	"bookstore/internal/infra/memory"
	"bookstore/internal/infra/outbox"
	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/platform/logger"
	"bookstore/internal/platform/telemetry"
	"bookstore/internal/repository"
	"bookstore/internal/server"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bookstore",
		Short:         "bookstore order service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		relayCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// .envは無くてもよい（コンテナでは環境変数で渡す）
func setup() (config.Config, *zap.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			tx, userRepo, err := openStore(cfg, log)
			if err != nil {
				return err
			}

			metrics, err := telemetry.NewMetrics(nil)
			if err != nil {
				return err
			}

			app := server.NewApp(cfg, tx, userRepo, log, server.Options{Metrics: metrics})

			ctx, stop := signalContext()
			defer stop()
			return server.Start(ctx, app.Echo, server.Addr(cfg.Port), log)
		},
	}
}

// STORE=memoryは空のストアで起動する（ローカル確認用）
func openStore(cfg config.Config, log *zap.Logger) (repository.TransactionManager, repository.UserRepository, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("store_memory", zap.String("detail", "data is not persisted"))
		st := memory.NewStore()
		return st, st.Users(), nil
	}

	gormDB, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	return infraRepo.NewTxManagerGorm(gormDB), infraRepo.NewUserGormRepository(gormDB), nil
}

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or roll back schema migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "migrate all the way up",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := setup()
				if err != nil {
					return err
				}
				changed, err := db.MigrateUp(cfg)
				if err != nil {
					return err
				}
				if !changed {
					log.Info("migrate_no_change")
					return nil
				}
				log.Info("migrated_up")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := setup()
				if err != nil {
					return err
				}
				steps := 1
				if len(args) == 1 {
					steps, err = strconv.Atoi(args[0])
					if err != nil || steps <= 0 {
						return fmt.Errorf("steps must be positive number")
					}
				}
				if err := db.MigrateDown(cfg, steps); err != nil {
					return err
				}
				log.Info("migrated_down", zap.Int("steps", steps))
				return nil
			},
		},
	)
	return cmd
}

func relayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "publish outbox events to kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("relay requires STORE=%s", config.StorePostgres)
			}
			gormDB, err := db.Connect(cfg)
			if err != nil {
				return fmt.Errorf("connect db: %w", err)
			}

			publisher, err := outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
			if err != nil {
				return fmt.Errorf("kafka producer: %w", err)
			}
			defer publisher.Close()

			relay := outbox.NewRelay(infraRepo.NewTxManagerGorm(gormDB), publisher, cfg.OutboxBatchSize, cfg.OutboxInterval, log)

			ctx, stop := signalContext()
			defer stop()
			log.Info("relay_started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaOrderTopic))
			return relay.Run(ctx)
		},
	}
}
