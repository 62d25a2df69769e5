package bot

import (
	"context"
	"fmt"
	"sync"

	"recipe-bot/internal/core/ai/fallback"
	"recipe-bot/internal/core/ai/provider"
	"recipe-bot/internal/core/recipe"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sentMessage struct {
	Handle   Handle
	Text     string
	Keyboard Keyboard
}

type editedMessage struct {
	Handle   Handle
	Text     string
	Keyboard Keyboard
}

// fakeRenderer 記錄所有平台呼叫
type fakeRenderer struct {
	mu      sync.Mutex
	nextID  int
	maxLen  int
	sends   []sentMessage
	edits   []editedMessage
	deletes []Handle
	cleared []Handle
	answers []string
	typing  int
	sendErr func(text string) error
	editErr func(text string) error
	// 每次刪除時已成功送出的訊息數
	sentBeforeDelete []int
}

func newFakeRenderer(maxLen int) *fakeRenderer {
	return &fakeRenderer{maxLen: maxLen, nextID: 100}
}

func (f *fakeRenderer) Send(ctx context.Context, chatID int64, text string, kb Keyboard) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		if err := f.sendErr(text); err != nil {
			return Handle{}, err
		}
	}
	f.nextID++
	h := Handle{ChatID: chatID, MessageID: f.nextID}
	f.sends = append(f.sends, sentMessage{Handle: h, Text: text, Keyboard: kb})
	return h, nil
}

func (f *fakeRenderer) Edit(ctx context.Context, h Handle, text string, kb Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		if err := f.editErr(text); err != nil {
			return err
		}
	}
	f.edits = append(f.edits, editedMessage{Handle: h, Text: text, Keyboard: kb})
	return nil
}

func (f *fakeRenderer) ClearActions(ctx context.Context, h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, h)
	return nil
}

func (f *fakeRenderer) Delete(ctx context.Context, h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, h)
	f.sentBeforeDelete = append(f.sentBeforeDelete, len(f.sends))
	return nil
}

func (f *fakeRenderer) ShowTyping(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

func (f *fakeRenderer) Answer(ctx context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, callbackID)
	return nil
}

func (f *fakeRenderer) MaxMessageLen() int {
	return f.maxLen
}

// rejectLonger 模擬平台以 UTF-16 單位判定過長
func rejectLonger(limit int) func(text string) error {
	return func(text string) error {
		if recipe.TextLen(text) > limit {
			return fmt.Errorf("%w: Bad Request: message is too long", ErrMessageTooLong)
		}
		return nil
	}
}

func (f *fakeRenderer) lastSend() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sends) == 0 {
		return sentMessage{}
	}
	return f.sends[len(f.sends)-1]
}

func (f *fakeRenderer) lastEdit() editedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return editedMessage{}
	}
	return f.edits[len(f.edits)-1]
}

// scriptedResolver 依序通知預設步驟後返回固定結果
type scriptedResolver struct {
	mu      sync.Mutex
	steps   []fallback.Step
	result  fallback.Result
	prompts []provider.Prompt
}

func (r *scriptedResolver) ResolveObserved(ctx context.Context, primaryModel, fallbackModel string, prompt provider.Prompt, onStep fallback.StepFunc) fallback.Result {
	r.mu.Lock()
	r.prompts = append(r.prompts, prompt)
	r.mu.Unlock()
	for _, s := range r.steps {
		if onStep != nil {
			onStep(s)
		}
	}
	return r.result
}

// failingCompleter 所有層級都失敗
type failingCompleter struct {
	mu    sync.Mutex
	calls int
}

func (c *failingCompleter) StreamComplete(ctx context.Context, model string, prompt provider.Prompt, maxTokens int) provider.Outcome {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return provider.Failure(provider.CauseNetwork, "connection refused")
}

func (c *failingCompleter) Complete(ctx context.Context, model string, prompt provider.Prompt, maxTokens int) provider.Outcome {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return provider.Failure(provider.CauseRejected, "status 500")
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(userID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-" + data,
		From: &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
		Data: data,
	}}
}
