package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"guardians/internal/app"
	"guardians/internal/config"
	"guardians/internal/platform/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	l, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer l.Sync()
	if cfg.LogMode == "production" || cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		l.Fatal("failed to init service", "error", err)
	}
	l.Info("guardians starting", "ledger", cfg.LedgerMode, "network", cfg.LedgerNetwork, "program_id", cfg.ProgramID)
	if err := a.Run(ctx); err != nil {
		l.Fatal("server exited", "error", err)
	}
}
