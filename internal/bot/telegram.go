package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"recipe-bot/internal/pkg/common"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// botAPI tgbotapi.BotAPI 中用到的部分
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramTransport 以 Telegram Bot API 實作 Renderer；重連後由 Supervisor 重新綁定
type TelegramTransport struct {
	mu     sync.RWMutex
	api    botAPI
	maxLen int
}

// NewTelegramTransport 創建傳輸層
func NewTelegramTransport(maxLen int) *TelegramTransport {
	if maxLen <= 0 {
		maxLen = 4096
	}
	return &TelegramTransport{maxLen: maxLen}
}

// Bind 綁定目前連線
func (t *TelegramTransport) Bind(api botAPI) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.api = api
}

func (t *TelegramTransport) client(ctx context.Context) (botAPI, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.api == nil {
		return nil, common.NewError(common.ErrCodeTransportFault, "not connected", nil)
	}
	return t.api, nil
}

// MaxMessageLen 單則訊息字元上限
func (t *TelegramTransport) MaxMessageLen() int {
	return t.maxLen
}

// Send 以 Markdown 送出，實體解析失敗時改送純文字
func (t *TelegramTransport) Send(ctx context.Context, chatID int64, text string, kb Keyboard) (Handle, error) {
	api, err := t.client(ctx)
	if err != nil {
		return Handle{}, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if kb != nil {
		msg.ReplyMarkup = toMarkup(kb)
	}

	sent, err := api.Send(msg)
	if isParseError(err) {
		common.LogDebug("Markdown rejected, resending as plain text", zap.Int64("chat_id", chatID))
		msg.ParseMode = ""
		sent, err = api.Send(msg)
	}
	if err != nil {
		return Handle{}, classify(err)
	}
	return Handle{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// Edit 取代訊息文字；kb 為 nil 時一併移除鍵盤
func (t *TelegramTransport) Edit(ctx context.Context, h Handle, text string, kb Keyboard) error {
	api, err := t.client(ctx)
	if err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(h.ChatID, h.MessageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if kb != nil {
		markup := toMarkup(kb)
		edit.ReplyMarkup = &markup
	}

	_, err = api.Request(edit)
	if isParseError(err) {
		edit.ParseMode = ""
		_, err = api.Request(edit)
	}
	return classify(err)
}

// ClearActions 移除鍵盤
func (t *TelegramTransport) ClearActions(ctx context.Context, h Handle) error {
	api, err := t.client(ctx)
	if err != nil {
		return err
	}
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	_, err = api.Request(tgbotapi.NewEditMessageReplyMarkup(h.ChatID, h.MessageID, empty))
	return classify(err)
}

// Delete 刪除訊息
func (t *TelegramTransport) Delete(ctx context.Context, h Handle) error {
	api, err := t.client(ctx)
	if err != nil {
		return err
	}
	_, err = api.Request(tgbotapi.NewDeleteMessage(h.ChatID, h.MessageID))
	return classify(err)
}

// ShowTyping 輸入中提示
func (t *TelegramTransport) ShowTyping(ctx context.Context, chatID int64) error {
	api, err := t.client(ctx)
	if err != nil {
		return err
	}
	_, err = api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return classify(err)
}

// Answer 回應按鈕回呼
func (t *TelegramTransport) Answer(ctx context.Context, callbackID, text string) error {
	api, err := t.client(ctx)
	if err != nil {
		return err
	}
	_, err = api.Request(tgbotapi.NewCallback(callbackID, text))
	return classify(err)
}

func toMarkup(kb Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func apiError(err error) (*tgbotapi.Error, bool) {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func isParseError(err error) bool {
	apiErr, ok := apiError(err)
	return ok && strings.Contains(apiErr.Message, "can't parse entities")
}

// classify 將平台錯誤轉為本地錯誤
func classify(err error) error {
	if err == nil {
		return nil
	}
	apiErr, ok := apiError(err)
	if !ok {
		return common.NewError(common.ErrCodeTransportFault, "telegram request failed", err)
	}
	switch {
	case strings.Contains(apiErr.Message, "message is not modified"):
		return nil
	case strings.Contains(apiErr.Message, "message is too long"),
		strings.Contains(apiErr.Message, "MESSAGE_TOO_LONG"):
		return fmt.Errorf("%w: %s", ErrMessageTooLong, apiErr.Message)
	default:
		return fmt.Errorf("telegram api error %d: %s", apiErr.Code, apiErr.Message)
	}
}
