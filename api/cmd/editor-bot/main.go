package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"retouch-bot/api/internal/config"
	"retouch-bot/api/internal/edit"
	"retouch-bot/api/internal/edit/gemini"
	"retouch-bot/api/internal/httpserver"
	"retouch-bot/api/internal/store"
	"retouch-bot/api/internal/telegram"
	"retouch-bot/api/internal/util"
)

const editLogRetention = 90 * 24 * time.Hour

func main() {
	cfg := config.Load()
	if err := util.InitLogger(cfg.LogMode); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer util.Sync()

	if cfg.TelegramBotToken == "" {
		util.Logger.Fatal("TELEGRAM_BOT_TOKEN is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiEditModel, cfg.GeminiDetectModel)
	if err != nil {
		util.Logger.Fatal("gemini client", zap.Error(err))
	}
	defer tr.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		util.Logger.Fatal("telegram", zap.Error(err))
	}
	bot.Debug = false
	util.Logger.Info("authorized", zap.String("bot", bot.Self.UserName))

	r := &telegram.Router{
		Bot:            bot,
		Editor:         edit.NewService(tr),
		Models:         edit.Models{Edit: tr.EditModel, Detect: tr.DetectModel},
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	healthz := func(context.Context) error { return nil }

	var editLog *store.EditLogRepo
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			util.Logger.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		util.Logger.Info("db connected", zap.String("dsn", config.SafeDSNSummary(cfg.DatabaseURL)))
		editLog = store.NewEditLogRepo(db)
		r.History = store.NewHistoryRepo(db)
		r.EditLog = editLog
		healthz = db.PingContext
	} else {
		util.Logger.Warn("no database configured: undo/redo and edit log disabled")
	}

	mux.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		hctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := healthz(hctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	g, gctx := errgroup.WithContext(ctx)
	handleUpdate := func(upd tgbotapi.Update) { r.HandleUpdate(gctx, upd) }

	// --- Webhook vs Polling ---
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		path := telegram.WebhookPath(bot.Token)
		wh, err := tgbotapi.NewWebhook(strings.TrimRight(webhookURL, "/") + path)
		if err != nil {
			util.Logger.Fatal("webhook config", zap.Error(err))
		}
		wh.DropPendingUpdates = true
		if _, err := bot.Request(wh); err != nil {
			util.Logger.Fatal("set webhook", zap.Error(err))
		}
		mux.Post(path, telegram.WebhookHandler(handleUpdate))
		util.Logger.Info("webhook mode", zap.String("base", webhookURL))
	} else {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			util.Logger.Warn("delete webhook", zap.Error(err))
		}
		g.Go(func() error { return telegram.RunPolling(gctx, bot, handleUpdate) })
		util.Logger.Info("polling mode")
	}

	g.Go(func() error { return httpserver.Run(gctx, "0.0.0.0:"+cfg.Port, mux) })
	if editLog != nil {
		g.Go(func() error {
			purgeEditLog(gctx, editLog)
			return nil
		})
	}

	err = g.Wait()
	r.Wait()
	if err != nil {
		util.Logger.Error("stopped with error", zap.Error(err))
	}
}

// purgeEditLog раз в сутки удаляет старые записи журнала.
func purgeEditLog(ctx context.Context, repo *store.EditLogRepo) {
	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		n, err := repo.PurgeOlderThan(ctx, editLogRetention)
		if err != nil {
			util.Logger.Warn("edit log purge failed", zap.Error(err))
		} else if n > 0 {
			util.Logger.Info("edit log purged", zap.Int64("rows", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
