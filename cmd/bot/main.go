package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-bot/internal/api"
	"recipe-bot/internal/api/handlers/health"
	"recipe-bot/internal/bot"
	"recipe-bot/internal/core/ai/completion"
	"recipe-bot/internal/core/ai/fallback"
	"recipe-bot/internal/core/ai/queue"
	"recipe-bot/internal/core/feedback"
	"recipe-bot/internal/core/ratelimit"
	"recipe-bot/internal/core/session"
	"recipe-bot/internal/infrastructure/config"
	"recipe-bot/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		if errors.Is(err, common.ErrConfigurationFatal) {
			fmt.Printf("Missing required configuration: %v\n", err)
		} else {
			fmt.Printf("Failed to load config: %v\n", err)
		}
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(common.LogOptions{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Service:    cfg.App.Name,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("telegram_token", common.MaskSecret(cfg.Telegram.Token)),
		zap.String("openai_api_key", common.MaskSecret(cfg.OpenAI.APIKey)),
		zap.String("model", cfg.OpenAI.Model),
		zap.String("fallback_model", cfg.OpenAI.FallbackModel),
		zap.Int("max_products", cfg.Bot.MaxProducts),
		zap.Int("rate_limit_per_min", cfg.Bot.RateLimitPerMin),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 生成引擎
	orchestrator := fallback.NewFromConfig(completion.NewClient(cfg), cfg)

	// 對話元件
	sessions := session.NewStore(cfg.Bot.SessionTTL)
	gate := ratelimit.NewGate(nil, cfg.Bot.RateLimitPerMin, cfg.Bot.RateWindow)
	tally := feedback.NewTally()
	dispatcher := queue.NewManager(cfg)

	transport := bot.NewTelegramTransport(cfg.Bot.MaxMessageLen)
	presenter := bot.NewPresenter(transport, orchestrator, bot.PresenterConfig{
		PrimaryModel:     cfg.OpenAI.Model,
		FallbackModel:    cfg.OpenAI.FallbackModel,
		TypingInterval:   cfg.Bot.TypingInterval,
		ProgressInterval: cfg.Bot.ProgressInterval,
	})
	controller := bot.NewController(transport, presenter, sessions, gate, tally, cfg.Bot.MaxProducts)
	supervisor := bot.NewSupervisor(cfg, transport, controller, dispatcher)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Start(gctx)
	})
	g.Go(func() error {
		sessions.Start(gctx, 0)
		return nil
	})
	g.Go(func() error {
		sweepRateWindows(gctx, gate)
		return nil
	})
	g.Go(func() error {
		return supervisor.Run(gctx)
	})

	if cfg.Server.Enabled {
		opsGate := api.NewOpsGate()
		router := api.SetupRouter(cfg, health.Dependencies{
			Version:    cfg.App.Version,
			Queue:      dispatcher,
			Feedback:   tally,
			Sessions:   sessions,
			Connection: supervisor,
		}, opsGate)
		srv := api.NewServer(cfg, router)

		g.Go(func() error {
			sweepRateWindows(gctx, opsGate)
			return nil
		})

		g.Go(func() error {
			common.LogInfo("啟動維運服務",
				zap.Int("port", cfg.Server.Port),
				zap.String("version", cfg.App.Version),
				zap.String("env", cfg.App.Env),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	common.LogInfo("啟動應用",
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
		zap.Bool("debug", cfg.App.Debug),
	)

	if err := g.Wait(); err != nil {
		common.LogError("Bot exited with error",
			zap.String("code", common.CodeOf(err)),
			zap.Error(err),
		)
		common.Sync()
		os.Exit(1)
	}

	common.LogInfo("Bot exited")
}

// sweepRateWindows 定期清除已過期的限流視窗
func sweepRateWindows(ctx context.Context, gate *ratelimit.Gate) {
	ticker := time.NewTicker(gate.Span())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := gate.Sweep(now); n > 0 {
				common.LogDebug("Swept idle rate windows", zap.Int("count", n))
			}
		}
	}
}
