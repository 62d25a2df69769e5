package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"sync"
	"testing"

	"recipe-bot/internal/pkg/common"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type apiCall struct {
	Method string
	Form   url.Values
}

// fakeTelegram 模擬 Bot API，未設定的方法一律成功
type fakeTelegram struct {
	mu       sync.Mutex
	calls    []apiCall
	nextID   int
	handlers map[string]func(form url.Values) string
	server   *httptest.Server
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	f := &fakeTelegram{nextID: 500, handlers: map[string]func(url.Values) string{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeTelegram) endpoint() string {
	return f.server.URL + "/bot%s/%s"
}

func (f *fakeTelegram) handle(method string, fn func(form url.Values) string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = fn
}

func (f *fakeTelegram) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := path.Base(r.URL.Path)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Form: r.PostForm})
	fn := f.handlers[method]
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fn != nil {
		fmt.Fprint(w, fn(r.PostForm))
		return
	}
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Bot","username":"namuti_food_bot"}}`)
	case "sendMessage":
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":%s,"type":"private"}}}`, id, r.PostForm.Get("chat_id"))
	case "getUpdates":
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeTelegram) callsFor(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func apiFailure(description string) string {
	return fmt.Sprintf(`{"ok":false,"error_code":400,"description":%q}`, description)
}

func newBoundTransport(t *testing.T, f *fakeTelegram) *TelegramTransport {
	api, err := tgbotapi.NewBotAPIWithClient("TOKEN", f.endpoint(), f.server.Client())
	if err != nil {
		t.Fatalf("Failed to create bot api: %v", err)
	}
	tr := NewTelegramTransport(4096)
	tr.Bind(api)
	return tr
}

func TestTelegramTransport(t *testing.T) {
	ctx := context.Background()

	t.Run("Send uses markdown and keyboard", func(t *testing.T) {
		f := newFakeTelegram(t)
		tr := newBoundTransport(t, f)

		h, err := tr.Send(ctx, 42, "*Омлет*", feedbackKeyboard())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if h.ChatID != 42 || h.MessageID == 0 {
			t.Errorf("Unexpected handle %+v", h)
		}

		calls := f.callsFor("sendMessage")
		if len(calls) != 1 {
			t.Fatalf("Expected 1 sendMessage, got %d", len(calls))
		}
		if calls[0].Form.Get("parse_mode") != tgbotapi.ModeMarkdown {
			t.Errorf("Expected Markdown parse mode, got %q", calls[0].Form.Get("parse_mode"))
		}
		if !strings.Contains(calls[0].Form.Get("reply_markup"), `"callback_data":"fb:up"`) {
			t.Errorf("Expected feedback keyboard, got %s", calls[0].Form.Get("reply_markup"))
		}
	})

	t.Run("Unparseable markdown is resent as plain text", func(t *testing.T) {
		f := newFakeTelegram(t)
		f.handle("sendMessage", func(form url.Values) string {
			if form.Get("parse_mode") != "" {
				return apiFailure("Bad Request: can't parse entities: Can't find end of the entity")
			}
			return `{"ok":true,"result":{"message_id":7,"date":0}}`
		})
		tr := newBoundTransport(t, f)

		h, err := tr.Send(ctx, 42, "*broken", nil)
		if err != nil {
			t.Fatalf("Expected fallback to succeed, got %v", err)
		}
		if h.MessageID != 7 {
			t.Errorf("Expected message 7, got %d", h.MessageID)
		}
		if calls := f.callsFor("sendMessage"); len(calls) != 2 || calls[1].Form.Get("parse_mode") != "" {
			t.Errorf("Expected a plain-text retry, got %+v", calls)
		}
	})

	t.Run("Edit maps too long to ErrMessageTooLong", func(t *testing.T) {
		f := newFakeTelegram(t)
		f.handle("editMessageText", func(url.Values) string {
			return apiFailure("Bad Request: message is too long")
		})
		tr := newBoundTransport(t, f)

		err := tr.Edit(ctx, Handle{ChatID: 1, MessageID: 2}, "long", nil)
		if !errors.Is(err, ErrMessageTooLong) {
			t.Errorf("Expected ErrMessageTooLong, got %v", err)
		}
	})

	t.Run("Edit ignores not modified", func(t *testing.T) {
		f := newFakeTelegram(t)
		f.handle("editMessageText", func(url.Values) string {
			return apiFailure("Bad Request: message is not modified: specified new message content and reply markup are exactly the same")
		})
		tr := newBoundTransport(t, f)

		if err := tr.Edit(ctx, Handle{ChatID: 1, MessageID: 2}, "same", nil); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("Clear actions sends empty keyboard", func(t *testing.T) {
		f := newFakeTelegram(t)
		tr := newBoundTransport(t, f)

		if err := tr.ClearActions(ctx, Handle{ChatID: 1, MessageID: 2}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		calls := f.callsFor("editMessageReplyMarkup")
		if len(calls) != 1 || calls[0].Form.Get("reply_markup") != `{"inline_keyboard":[]}` {
			t.Errorf("Expected empty inline keyboard, got %+v", calls)
		}
	})

	t.Run("Delete typing and answer", func(t *testing.T) {
		f := newFakeTelegram(t)
		tr := newBoundTransport(t, f)

		if err := tr.Delete(ctx, Handle{ChatID: 1, MessageID: 2}); err != nil {
			t.Errorf("Delete: %v", err)
		}
		if err := tr.ShowTyping(ctx, 1); err != nil {
			t.Errorf("ShowTyping: %v", err)
		}
		if err := tr.Answer(ctx, "cb-1", "Спасибо!"); err != nil {
			t.Errorf("Answer: %v", err)
		}
		if len(f.callsFor("deleteMessage")) != 1 {
			t.Error("Expected deleteMessage")
		}
		if calls := f.callsFor("sendChatAction"); len(calls) != 1 || calls[0].Form.Get("action") != tgbotapi.ChatTyping {
			t.Errorf("Expected typing action, got %+v", calls)
		}
		if calls := f.callsFor("answerCallbackQuery"); len(calls) != 1 || calls[0].Form.Get("text") != "Спасибо!" {
			t.Errorf("Expected callback answer, got %+v", calls)
		}
	})

	t.Run("Unbound transport is a transport fault", func(t *testing.T) {
		tr := NewTelegramTransport(0)
		if tr.MaxMessageLen() != 4096 {
			t.Errorf("Expected default limit 4096, got %d", tr.MaxMessageLen())
		}
		_, err := tr.Send(ctx, 1, "hi", nil)
		if !errors.Is(err, common.ErrTransportFault) {
			t.Errorf("Expected transport fault, got %v", err)
		}
	})

	t.Run("Network failure is a transport fault", func(t *testing.T) {
		f := newFakeTelegram(t)
		tr := newBoundTransport(t, f)
		f.server.Close()

		_, err := tr.Send(ctx, 1, "hi", nil)
		if !errors.Is(err, common.ErrTransportFault) {
			t.Errorf("Expected transport fault, got %v", err)
		}
	})

	t.Run("Canceled context skips the call", func(t *testing.T) {
		f := newFakeTelegram(t)
		tr := newBoundTransport(t, f)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if err := tr.ShowTyping(cctx, 1); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		if len(f.callsFor("sendChatAction")) != 0 {
			t.Error("Expected no request after cancellation")
		}
	})
}
