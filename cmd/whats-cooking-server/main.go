package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whats-cooking/internal/app"
	"whats-cooking/internal/config"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.ApplyLogLevel()
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// 2. Wire stores, cache registration and loaders
	application, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer application.Close()

	// 3. Archive past plans and prime the catalogs
	if _, err := application.Startup(ctx); err != nil {
		log.Warnf("Startup finished with warnings: %v", err)
	}

	// 4. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: application.Handler(),
	}

	go func() {
		log.Infof("whats-cooking listening on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// SIGHUP re-reads the config and installs a new cache version if it changed.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			next, err := config.Load(*configPath)
			if err != nil {
				log.Errorf("Reload failed: %v", err)
				continue
			}
			if err := application.Upgrade(ctx, next.Offline.Version); err != nil {
				log.Errorf("Upgrade to v%s failed: %v", next.Offline.Version, err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exiting")
}
