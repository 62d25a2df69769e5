package bot

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"recipe-bot/internal/core/ai/queue"
	"recipe-bot/internal/infrastructure/config"
	"recipe-bot/internal/pkg/common"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// UpdateHandler 處理單一更新
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Dispatcher 將更新交給 worker 執行
type Dispatcher interface {
	Enqueue(ctx context.Context, name string, job queue.Job) error
}

// Supervisor 維持與平台的長輪詢連線，斷線時依退避策略重連
type Supervisor struct {
	token       string
	endpoint    string
	debug       bool
	pollTimeout int

	reconnectDelay    time.Duration
	reconnectMaxDelay time.Duration
	backoffUnit       time.Duration
	maxAttempts       int

	transport  *TelegramTransport
	handler    UpdateHandler
	dispatcher Dispatcher
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error

	connected atomic.Bool
	offset    int
}

// SupervisorOption 監管器選項
type SupervisorOption func(*Supervisor)

// WithReconnectSleeper 替換重連等待函式
func WithReconnectSleeper(fn func(ctx context.Context, d time.Duration) error) SupervisorOption {
	return func(s *Supervisor) {
		s.sleep = fn
	}
}

// WithHTTPClient 替換底層 HTTP 客戶端
func WithHTTPClient(c *http.Client) SupervisorOption {
	return func(s *Supervisor) {
		s.httpClient = c
	}
}

// NewSupervisor 創建連線監管器
func NewSupervisor(cfg *config.Config, transport *TelegramTransport, handler UpdateHandler, dispatcher Dispatcher, opts ...SupervisorOption) *Supervisor {
	endpoint := cfg.Telegram.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	s := &Supervisor{
		token:             cfg.Telegram.Token,
		endpoint:          endpoint,
		debug:             cfg.Telegram.Debug,
		pollTimeout:       cfg.Bot.PollingTimeout,
		reconnectDelay:    cfg.Bot.ReconnectDelay,
		reconnectMaxDelay: cfg.Bot.ReconnectMaxDelay,
		backoffUnit:       time.Second,
		maxAttempts:       cfg.Bot.MaxReconnectAttempts,
		transport:         transport,
		handler:           handler,
		dispatcher:        dispatcher,
		httpClient:        &http.Client{Timeout: time.Duration(cfg.Bot.PollingTimeout)*time.Second + 15*time.Second},
		sleep:             sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connected 目前是否已連線
func (s *Supervisor) Connected() bool {
	return s.connected.Load()
}

// Run 連線並輪詢直到 ctx 結束；重連次數用盡時返回 TRANSPORT_FAULT
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := s.session(ctx, &attempt)
		s.connected.Store(false)
		if ctx.Err() != nil {
			common.LogInfo("Bot supervisor stopped")
			return nil
		}

		attempt++
		if s.maxAttempts > 0 && attempt > s.maxAttempts {
			return common.NewError(common.ErrCodeTransportFault,
				fmt.Sprintf("gave up after %d reconnect attempts", s.maxAttempts), err)
		}

		delay := s.retryDelay(err, attempt)
		common.LogWarn("Telegram connection lost, reconnecting",
			zap.String("code", common.ErrCodeTransportFault),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := s.sleep(ctx, delay); err != nil {
			common.LogInfo("Bot supervisor stopped")
			return nil
		}
	}
}

// retryDelay 網路錯誤以指數退避，其他錯誤使用固定間隔
func (s *Supervisor) retryDelay(err error, attempt int) time.Duration {
	if _, ok := apiError(err); ok {
		return s.reconnectDelay
	}
	delay := s.backoffUnit
	for i := 0; i < attempt && delay < s.reconnectMaxDelay; i++ {
		delay *= 2
	}
	if s.reconnectMaxDelay > 0 && delay > s.reconnectMaxDelay {
		delay = s.reconnectMaxDelay
	}
	return delay
}

// session 建立一次連線並持續輪詢，返回導致斷線的錯誤
func (s *Supervisor) session(ctx context.Context, attempt *int) error {
	api, err := s.connect(ctx)
	if err != nil {
		return err
	}
	s.transport.Bind(api)
	s.connected.Store(true)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		u := tgbotapi.NewUpdate(s.offset)
		u.Timeout = s.pollTimeout
		u.AllowedUpdates = []string{"message", "callback_query"}

		updates, err := api.GetUpdates(u)
		if err != nil {
			return err
		}
		*attempt = 0

		for _, update := range updates {
			if update.UpdateID >= s.offset {
				s.offset = update.UpdateID + 1
			}
			s.dispatch(ctx, update)
		}
	}
}

// connect 驗證憑證並清除 webhook，首次連線時丟棄積壓的更新
func (s *Supervisor) connect(ctx context.Context) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPIWithClient(s.token, s.endpoint, contextClient{ctx: ctx, client: s.httpClient})
	if err != nil {
		return nil, err
	}
	api.Debug = s.debug

	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: s.offset == 0}); err != nil {
		return nil, err
	}

	common.LogInfo("Telegram bot connected",
		zap.String("username", api.Self.UserName),
		zap.Int("offset", s.offset),
	)
	return api, nil
}

func (s *Supervisor) dispatch(ctx context.Context, update tgbotapi.Update) {
	name := fmt.Sprintf("update-%d", update.UpdateID)
	err := s.dispatcher.Enqueue(ctx, name, func(jobCtx context.Context) {
		s.handler.HandleUpdate(jobCtx, update)
	})
	if err != nil {
		common.LogWarn("Failed to dispatch update",
			zap.Int("update_id", update.UpdateID),
			zap.Error(err),
		)
	}
}

// contextClient 讓進行中的長輪詢隨 ctx 取消
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
