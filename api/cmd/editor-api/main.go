package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"retouch-bot/api/internal/config"
	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/edit/gemini"
	"retouch-bot/api/internal/handle"
	"retouch-bot/api/internal/httpserver"
	"retouch-bot/api/internal/store"
	"retouch-bot/api/internal/util"
)

func main() {
	cfg := config.Load()
	if err := util.InitLogger(cfg.LogMode); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer util.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiEditModel, cfg.GeminiDetectModel)
	if err != nil {
		util.Logger.Fatal("gemini client", zap.Error(err))
	}
	defer tr.Close()

	var (
		editLog handle.EditLog
		healthz func(context.Context) error
	)
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			util.Logger.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		util.Logger.Info("db connected", zap.String("dsn", config.SafeDSNSummary(cfg.DatabaseURL)))
		editLog = store.NewEditLogRepo(db)
		healthz = db.PingContext
	} else {
		util.Logger.Warn("no database configured: edit log disabled")
	}

	h := handle.New(edit.NewService(tr), editLog,
		edit.Models{Edit: tr.EditModel, Detect: tr.DetectModel}, cfg.MaxUploadBytes)

	if err := httpserver.Run(ctx, "0.0.0.0:"+cfg.Port, handle.Routes(h, healthz)); err != nil {
		util.Logger.Fatal("http server", zap.Error(err))
	}
}
