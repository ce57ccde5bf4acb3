package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"earnx/config"
	"earnx/internal/database"
	"earnx/internal/events"
	"earnx/internal/handler"
	"earnx/internal/logging"
	"earnx/internal/middleware"
	"earnx/internal/repository"
	"earnx/internal/router"
	"earnx/internal/ws"
	"earnx/pkg/pricefeed"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedAdminCmd)
}

var rootCmd = &cobra.Command{
	Use:          "earnx",
	Short:        "EarnX rewards and wallet ledger API",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		db, err := database.NewDB(&cfg.Database)
		if err != nil {
			return err
		}
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create or promote the admin user from config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		db, err := database.NewDB(&cfg.Database)
		if err != nil {
			return err
		}
		u, err := database.SeedAdmin(repository.NewUserRepository(db), cfg.Admin)
		if err != nil {
			return err
		}
		if u == nil {
			return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
		}
		log.WithField("email", u.Email).Info("admin user ready")
		return nil
	},
}

func bootstrap() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	var db *gorm.DB
	if cfg.Database.Driver != "memory" {
		db, err = database.NewDB(&cfg.Database)
		if err != nil {
			return err
		}
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
	} else {
		log.Warn("memory driver: data is lost on restart")
	}
	stores := router.NewStores(db, log)
	if _, err := database.SeedAdmin(stores.Users, cfg.Admin); err != nil {
		return err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		log.WithField("topic", cfg.Kafka.Topic).Info("publishing ledger events to kafka")
	}
	defer publisher.Close()

	var prices handler.PriceSource
	if cfg.PriceFeed.Enabled {
		ticker := pricefeed.NewTicker(pricefeed.NewClient(cfg.PriceFeed.BaseURL, cfg.PriceFeed.Timeout),
			pricefeed.BitcoinINR, cfg.PriceFeed.Interval, cfg.PriceFeed.Timeout, log)
		if err := ticker.Start(); err != nil {
			return err
		}
		defer ticker.Stop()
		prices = ticker
	}

	stop := make(chan struct{})
	defer close(stop)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	limiter.StartCleanup(5*time.Minute, stop)

	engine := router.Setup(cfg, router.Deps{
		Stores:    stores,
		Publisher: publisher,
		Prices:    prices,
		Hub:       ws.NewHub(),
		Limiter:   limiter,
	}, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errc:
		return err
	}
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
