package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stveit/argus/internal/account"
	"github.com/stveit/argus/internal/api"
	"github.com/stveit/argus/internal/api/health"
	"github.com/stveit/argus/internal/dispatch"
	"github.com/stveit/argus/internal/media"
	"github.com/stveit/argus/internal/metrics"
	"github.com/stveit/argus/internal/recurrence"
	"github.com/stveit/argus/internal/storage"
	"github.com/stveit/argus/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "argus-server",
	Short: "Argus Server - Incident alerting and notification dispatch",
	Long: `Argus Server receives incidents from monitoring sources, matches them
against user notification profiles, and dispatches notifications through
the configured media channels.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	cfg.Verbose = verbose

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	// Outbound mail transport, shared by both media
	sender, err := media.NewSMTPSender(media.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
		RateRPS:  cfg.SMTP.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("create smtp sender: %w", err)
	}

	if cfg.Notify.SMSGateway == "" {
		log.Printf("warning: notify.sms_gateway not set, SMS notifications disabled")
	}
	smsMedium := media.NewSMSMedium(sender, cfg.Notify.SMSGateway)
	registry := media.NewRegistry(media.NewEmailMedium(sender), smsMedium)

	// Recurrence evaluation timezone
	loc := time.Local
	if cfg.Notify.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Notify.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone: %w", err)
		}
	}

	matcher := dispatch.NewMatcher(recurrence.New(loc))
	coordinator := dispatch.NewCoordinator(store, registry, matcher, &dispatch.Options{
		MatchFanout: cfg.Notify.MatchFanout,
	})

	accounts := account.NewService(store, account.Options{
		CreateDefaultTimeslot:    cfg.CreateDefaultTimeslot(),
		CreateDefaultDestination: cfg.CreateDefaultDestination(),
	})

	srv, err := api.New(&api.Config{
		Address:         cfg.Server.HTTPAddress,
		IntakeRateLimit: cfg.Server.IntakeRateLimit,
		Verbose:         cfg.Verbose,
	}, store, registry, coordinator, accounts)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	srv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	srv.RegisterHealthChecker(health.NewSMTPChecker(fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port)))

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Metrics.Enabled {
		metricsSrv := metrics.NewServer(cfg.Metrics.Address)
		g.Go(func() error {
			return metricsSrv.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if configFile != "" {
		g.Go(func() error {
			return watchConfig(gctx, configFile, smsMedium)
		})
	}

	// Run server
	log.Printf("starting argus-server %s", config.Version)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}

// watchConfig reloads the config file on change and applies the settings
// that are safe to change at runtime. Today that is the SMS gateway
// address; everything else needs a restart.
func watchConfig(ctx context.Context, path string, smsMedium *media.SMSMedium) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and config systems replace the file,
	// which drops a watch set on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(path)
			if err != nil {
				log.Printf("config reload failed, keeping current settings: %v", err)
				continue
			}
			if cfg.Notify.SMSGateway != smsMedium.GatewayAddress() {
				log.Printf("config reload: sms gateway changed to %q", cfg.Notify.SMSGateway)
				smsMedium.SetGatewayAddress(cfg.Notify.SMSGateway)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config watcher error: %v", err)
		}
	}
}
