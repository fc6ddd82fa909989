package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"avaneesh/dnp3-cache/pkg/config"
	"avaneesh/dnp3-cache/pkg/dnp3"
)

var configFile = flag.String("c", "", "configuration `file`; built-in defaults when empty")
var httpServe = flag.String("s", "", "override http.listen with [bindtohost][:]port")
var verbose = flag.Bool("v", false, "verbose logging")

func main() {
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if *httpServe != "" {
		cfg.HTTP.Listen = *httpServe
	}

	level := dnp3.LogLevel(cfg.LogLevel())
	if *verbose {
		level = dnp3.LevelDebug
		log.SetLevel(log.DebugLevel)
	}
	dnp3.SetLogLevel(level)

	manager := dnp3.NewManager()
	station, err := manager.AddStation(cfg)
	if err != nil {
		log.Fatal(err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- station.API.ListenAndServe(cfg.HTTP.Listen) }()
	if cfg.HTTP.HTTP3Listen != "" {
		go func() {
			errCh <- station.API.ListenAndServeHTTP3(cfg.HTTP.HTTP3Listen, cfg.HTTP.CertFile, cfg.HTTP.KeyFile)
		}()
	}

	log.Infof("Station %s serving on %s", station.ID, cfg.HTTP.Listen)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.Errorf("Listener failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if *configFile == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(*configFile)
}
