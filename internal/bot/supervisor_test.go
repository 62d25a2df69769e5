package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"recipe-bot/internal/core/ai/queue"
	"recipe-bot/internal/infrastructure/config"
	"recipe-bot/internal/pkg/common"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// inlineDispatcher 同步執行工作
type inlineDispatcher struct{}

func (inlineDispatcher) Enqueue(ctx context.Context, name string, job queue.Job) error {
	job(ctx)
	return nil
}

type recordingHandler struct {
	updates chan tgbotapi.Update
}

func (h *recordingHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	h.updates <- update
}

type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) sleep(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waits = append(w.waits, d)
	return ctx.Err()
}

func supervisorConfig(endpoint string, maxAttempts int) *config.Config {
	cfg := &config.Config{}
	cfg.Telegram.Token = "TOKEN"
	cfg.Telegram.Endpoint = endpoint
	cfg.Bot.PollingTimeout = 0
	cfg.Bot.ReconnectDelay = 5 * time.Second
	cfg.Bot.ReconnectMaxDelay = 60 * time.Second
	cfg.Bot.MaxReconnectAttempts = maxAttempts
	return cfg
}

func TestSupervisorPollsAndDispatches(t *testing.T) {
	f := newFakeTelegram(t)
	var mu sync.Mutex
	polls := 0
	f.handle("getUpdates", func(form url.Values) string {
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls == 1 {
			return `{"ok":true,"result":[` +
				`{"update_id":10,"message":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"},"text":"привет"}},` +
				`{"update_id":11,"callback_query":{"id":"q","from":{"id":5,"is_bot":false,"first_name":"A"},"data":"fb:up"}}]}`
		}
		time.Sleep(5 * time.Millisecond)
		return `{"ok":true,"result":[]}`
	})

	handler := &recordingHandler{updates: make(chan tgbotapi.Update, 8)}
	tr := NewTelegramTransport(4096)
	s := NewSupervisor(supervisorConfig(f.endpoint(), 0), tr, handler, inlineDispatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for _, want := range []int{10, 11} {
		select {
		case u := <-handler.updates:
			if u.UpdateID != want {
				t.Errorf("Expected update %d, got %d", want, u.UpdateID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for update %d", want)
		}
	}
	if !s.Connected() {
		t.Error("Expected supervisor to report connected")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(f.callsFor("getUpdates")) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	calls := f.callsFor("getUpdates")
	if len(calls) < 2 || calls[1].Form.Get("offset") != "12" {
		t.Errorf("Expected second poll to acknowledge offset 12, got %+v", calls)
	}
	if calls[0].Form.Get("allowed_updates") != `["message","callback_query"]` {
		t.Errorf("Unexpected allowed updates %q", calls[0].Form.Get("allowed_updates"))
	}

	hooks := f.callsFor("deleteWebhook")
	if len(hooks) != 1 || hooks[0].Form.Get("drop_pending_updates") != "true" {
		t.Errorf("Expected webhook reset with pending updates dropped, got %+v", hooks)
	}

	if _, err := tr.Send(context.Background(), 5, "ok", nil); err != nil {
		t.Errorf("Expected transport to be bound, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Supervisor did not stop after cancel")
	}
	if s.Connected() {
		t.Error("Expected disconnected after stop")
	}
}

func TestSupervisorReconnect(t *testing.T) {
	t.Run("API errors use fixed delay and give up", func(t *testing.T) {
		f := newFakeTelegram(t)
		f.handle("getMe", func(url.Values) string {
			return `{"ok":false,"error_code":401,"description":"Unauthorized"}`
		})
		w := &waitRecorder{}
		s := NewSupervisor(supervisorConfig(f.endpoint(), 3), NewTelegramTransport(0), &recordingHandler{}, inlineDispatcher{},
			WithReconnectSleeper(w.sleep))

		err := s.Run(context.Background())
		if !errors.Is(err, common.ErrTransportFault) {
			t.Fatalf("Expected transport fault, got %v", err)
		}
		if len(w.waits) != 3 {
			t.Fatalf("Expected 3 waits, got %v", w.waits)
		}
		for _, d := range w.waits {
			if d != 5*time.Second {
				t.Errorf("Expected fixed 5s delay, got %s", d)
			}
		}
		if len(f.callsFor("getMe")) != 4 {
			t.Errorf("Expected 4 connection attempts, got %d", len(f.callsFor("getMe")))
		}
	})

	t.Run("Network errors back off exponentially", func(t *testing.T) {
		f := newFakeTelegram(t)
		endpoint := f.endpoint()
		f.server.Close()

		w := &waitRecorder{}
		s := NewSupervisor(supervisorConfig(endpoint, 3), NewTelegramTransport(0), &recordingHandler{}, inlineDispatcher{},
			WithReconnectSleeper(w.sleep))

		if err := s.Run(context.Background()); !errors.Is(err, common.ErrTransportFault) {
			t.Fatalf("Expected transport fault, got %v", err)
		}
		want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
		if fmt.Sprint(w.waits) != fmt.Sprint(want) {
			t.Errorf("Expected waits %v, got %v", want, w.waits)
		}
	})

	t.Run("Cancellation during wait stops", func(t *testing.T) {
		f := newFakeTelegram(t)
		endpoint := f.endpoint()
		f.server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		s := NewSupervisor(supervisorConfig(endpoint, 0), NewTelegramTransport(0), &recordingHandler{}, inlineDispatcher{},
			WithReconnectSleeper(func(ctx context.Context, d time.Duration) error {
				cancel()
				return ctx.Err()
			}))

		if err := s.Run(ctx); err != nil {
			t.Errorf("Expected nil on cancellation, got %v", err)
		}
	})
}

func TestRetryDelay(t *testing.T) {
	s := NewSupervisor(supervisorConfig("", 0), NewTelegramTransport(0), &recordingHandler{}, inlineDispatcher{})
	network := errors.New("dial tcp: connection refused")

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{20, 60 * time.Second},
	}
	for _, tt := range tests {
		if got := s.retryDelay(network, tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %s, expected %s", tt.attempt, got, tt.want)
		}
	}

	apiErr := &tgbotapi.Error{Code: 409, Message: "Conflict: terminated by other getUpdates request"}
	if got := s.retryDelay(apiErr, 4); got != 5*time.Second {
		t.Errorf("Expected fixed delay for API errors, got %s", got)
	}
}
