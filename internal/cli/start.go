package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/haskel/raimetrics/internal/config"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/export"
	"github.com/haskel/raimetrics/internal/logger"
	"github.com/haskel/raimetrics/internal/recorder"
	"github.com/haskel/raimetrics/internal/server"
	"github.com/haskel/raimetrics/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the rai server",
	Long: `Start the rai server in foreground mode. The configured dataset is loaded,
the metric groups are initialized and the HTTP API accepts compute and update
requests until SIGINT or SIGTERM. SIGHUP reloads the configuration.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}

	level := new(slog.LevelVar)
	level.Set(logger.ParseLevel(cfg.Logging.Level))
	log := logger.NewLeveled(os.Stdout, level, cfg.Logging.Format)

	log.Info("rai starting",
		"version", Version,
		"config", cfgFile,
		"session", cfg.Session.Name,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, err := dataset.OpenLoader()
	if err != nil {
		return err
	}
	defer loader.Close()

	sys, err := newSystem(ctx, cfg, loader, log)
	if err != nil {
		return err
	}
	opts, err := initOptions(cfg)
	if err != nil {
		return err
	}

	pubs, err := newPublishers(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pubs.Close()

	store := storage.New(cfg.Persistence.DataDir, cfg.FlushInterval(), cfg.Persistence.MaxMeasurements, log)
	if err := store.Load(); err != nil {
		log.Warn("failed to load measurement history", "error", err)
	}

	rec := recorder.New(sys,
		recorder.WithHistory(store),
		recorder.WithPublisher(pubs.multi),
		recorder.WithExporter(export.New(cfg.Export.Dir, log)),
		recorder.WithLogger(log),
	)
	report, err := rec.Initialize(ctx, opts)
	if err != nil {
		return err
	}
	log.Info("metric groups initialized",
		"created", report.Created,
		"skipped", len(report.Skipped),
	)

	if cfg.Server.PIDFile != "" {
		if err := writePIDFile(cfg.Server.PIDFile); err != nil {
			log.Warn("failed to write PID file", "error", err)
		} else {
			defer os.Remove(cfg.Server.PIDFile)
		}
	}

	srvOpts := []server.Option{server.WithLabelCodes(loader.Dictionary(), cfg.Dataset.Label)}
	if pubs.prometheus != nil {
		srvOpts = append(srvOpts, server.WithMetricsHandler(pubs.prometheus.Handler()))
	}
	srv := server.New(cfg, rec, log, Version, srvOpts...)

	store.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("rai ready", "addr", srv.Addr())
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sighup := make(chan os.Signal, 1)
		signal.Notify(sighup, syscall.SIGHUP)
		defer signal.Stop(sighup)

		for {
			select {
			case <-sighup:
				log.Info("SIGHUP received, reloading configuration")
				newCfg, err := reloadConfig()
				if err != nil {
					log.Error("invalid configuration, reload aborted", "error", err)
					continue
				}
				level.Set(logger.ParseLevel(newCfg.Logging.Level))
				srv.ReloadConfig(newCfg)
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
		if err := store.Stop(); err != nil {
			log.Error("storage shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("rai stopped")
	return nil
}

func reloadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return nil, errors.New("no config file to reload")
	}
	return config.Load(cfgFile)
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", pid)), 0644)
}
