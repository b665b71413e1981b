package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/shohag/smsrelay/internal/api"
	"github.com/shohag/smsrelay/internal/config"
	"github.com/shohag/smsrelay/internal/dispatch"
	"github.com/shohag/smsrelay/internal/heartbeat"
	"github.com/shohag/smsrelay/internal/metrics"
	"github.com/shohag/smsrelay/internal/models"
	"github.com/shohag/smsrelay/internal/quota"
	"github.com/shohag/smsrelay/internal/relay"
	"github.com/shohag/smsrelay/internal/report"
	"github.com/shohag/smsrelay/internal/storage"
	"github.com/shohag/smsrelay/internal/telephony"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "smsrelay",
		Short: "smsrelay: remote-controlled SMS relay agent",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(credentialsCmd(&configPath))
	rootCmd.AddCommand(quotaCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the relay agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("storage migrations completed")

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			ledger := quota.NewLedger(store, log, quota.WithMetrics(m))
			correlator := dispatch.NewCorrelator(log,
				dispatch.WithRetention(cfg.Dispatch.Retention, cfg.Dispatch.SweepInterval),
				dispatch.WithMetrics(m),
			)
			correlator.Start(ctx)

			signals := make(chan models.Signal, cfg.Dispatch.SignalBuffer)
			phone, err := telephony.New(cfg.Telephony, signals, log)
			if err != nil {
				return fmt.Errorf("failed to setup telephony: %w", err)
			}

			client := report.NewClient(cfg.Reporter, log)
			reportTimeout := cfg.Reporter.ConnectTimeout + cfg.Reporter.WriteTimeout + cfg.Reporter.ReadTimeout
			reporter := report.NewReporter(client, store, reportTimeout, log, m)

			coordinator := relay.NewCoordinator(phone, ledger, correlator, reporter, log, m)

			var workers conc.WaitGroup
			workers.Go(func() { coordinator.Run(ctx, signals) })

			if cfg.Heartbeat.Enabled {
				beacon := heartbeat.NewBeacon(client, store, ledger,
					cfg.Heartbeat.Interval, cfg.Heartbeat.RetrySchedule, log, m)
				workers.Go(func() { beacon.Run(ctx) })
			}

			server := api.NewServer(cfg.Server, cfg.Ingress, api.Deps{
				Instructions: coordinator,
				Quota:        ledger,
				Signals:      signals,
				Gatherer:     reg,
			}, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Str("storage", cfg.Storage.Driver).
				Str("telephony", cfg.Telephony.Driver).
				Str("quota", ledger.Details(ctx)).
				Msg("smsrelay is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}
			if err := phone.Close(); err != nil {
				log.Error().Err(err).Msg("telephony shutdown error")
			}

			cancel()
			workers.Wait()
			reporter.Wait()
			correlator.Stop()

			log.Info().Msg("smsrelay stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run storage migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Println("migrations completed successfully")
			return nil
		},
	}
}

func credentialsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the controller credentials",
	}

	// credentials set
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store the controller URL and API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, _ := cmd.Flags().GetString("server-url")
			apiKey, _ := cmd.Flags().GetString("api-key")
			deviceID, _ := cmd.Flags().GetString("device-id")
			deviceToken, _ := cmd.Flags().GetString("device-token")

			creds := &models.Credentials{
				ServerURL:   serverURL,
				APIKey:      apiKey,
				DeviceID:    deviceID,
				DeviceToken: deviceToken,
			}
			if !creds.Configured() {
				return fmt.Errorf("--server-url and --api-key are required")
			}

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.PutCredentials(context.Background(), creds); err != nil {
				return fmt.Errorf("failed to store credentials: %w", err)
			}
			fmt.Println("credentials saved")
			return nil
		},
	}
	setCmd.Flags().String("server-url", "", "controller base URL")
	setCmd.Flags().String("api-key", "", "controller API key")
	setCmd.Flags().String("device-id", "", "device id assigned at registration")
	setCmd.Flags().String("device-token", "", "push token reported with status updates")

	// credentials show
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored credentials with the API key masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			creds, err := store.GetCredentials(context.Background())
			if err != nil {
				return fmt.Errorf("failed to read credentials: %w", err)
			}
			if creds == nil {
				fmt.Println("No credentials stored.")
				return nil
			}

			masked := *creds
			masked.APIKey = maskSecret(creds.APIKey)
			out, _ := json.MarshalIndent(masked, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.AddCommand(setCmd, showCmd)
	return cmd
}

func quotaCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show today's SMS quota usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			// keep stdout to the single usage line
			ledger := quota.NewLedger(store, zerolog.Nop())
			fmt.Println(ledger.Details(context.Background()))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smsrelay v%s\n", version)
		},
	}
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
		return storage.NewSQLite(cfg.SQLite.Path)
	case "redis":
		log.Info().Str("addr", cfg.Redis.Addr).Int("db", cfg.Redis.DB).Msg("using Redis storage")
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return storage.NewRedis(rdb, cfg.Redis.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func storeFromConfig(configPath string) (storage.Storage, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg.Logging)
	store, err := setupStorage(cfg.Storage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, func() { store.Close() }, nil
}
