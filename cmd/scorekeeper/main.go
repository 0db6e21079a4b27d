package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DOMjudge/scorekeeper/internal/api/admin"
	"github.com/DOMjudge/scorekeeper/internal/api/public"
	"github.com/DOMjudge/scorekeeper/internal/config"
	"github.com/DOMjudge/scorekeeper/internal/database"
	"github.com/DOMjudge/scorekeeper/internal/pubsub"
	"github.com/DOMjudge/scorekeeper/internal/scoreboard"

	"go.uber.org/zap"
)

var Version = "dev-build"

func main() {

	fmt.Fprintf(os.Stderr, "DOMjudge Scorekeeper %s - Contest Scoreboard and Ranking Engine\n\n", Version)

	// config
	var configPath string
	flag.StringVar(&configPath, "c", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// logger
	var logger *zap.Logger
	if cfg.Logger.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// database
	db, err := database.Init(cfg.Storage.Database)
	if err != nil {
		zap.S().Fatalf("failed to initialize database: %v", err)
	}
	zap.S().Info("database initialized successfully")

	// scoreboard service and update broker
	broker := pubsub.New()
	svc := scoreboard.NewService(db, cfg.Scoring, broker)

	// API routers
	publicEngine := public.NewRouter(cfg, db, svc, broker)
	adminEngine := admin.NewRouter(cfg, db, svc, broker)

	// start servers
	go func() {
		zap.S().Infof("starting public server at %s", cfg.Listen)
		if err := publicEngine.Run(cfg.Listen); err != nil {
			zap.S().Fatalf("failed to start public server: %v", err)
		}
	}()

	if cfg.Admin.Enabled {
		go func() {
			zap.S().Infof("starting jury server at %s", cfg.Admin.Listen)
			if err := adminEngine.Run(cfg.Admin.Listen); err != nil {
				zap.S().Fatalf("failed to start jury server: %v", err)
			}
		}()
	}

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.S().Info("shutting down server...")
}
