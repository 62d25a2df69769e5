package bot

import (
	"context"
	"errors"
)

// ErrMessageTooLong 訊息超出平台長度上限
var ErrMessageTooLong = errors.New("message is too long")

// Handle 已送出訊息的位置
type Handle struct {
	ChatID    int64
	MessageID int
}

// Button 內嵌按鈕，Data 為回呼資料
type Button struct {
	Text string
	Data string
}

// Keyboard 內嵌鍵盤，nil 表示不附鍵盤
type Keyboard [][]Button

// Renderer 聊天平台的最小介面
type Renderer interface {
	Send(ctx context.Context, chatID int64, text string, kb Keyboard) (Handle, error)
	// Edit 取代訊息文字，超出上限時返回 ErrMessageTooLong
	Edit(ctx context.Context, h Handle, text string, kb Keyboard) error
	// ClearActions 移除訊息上的鍵盤
	ClearActions(ctx context.Context, h Handle) error
	Delete(ctx context.Context, h Handle) error
	// ShowTyping 盡力而為的輸入中提示
	ShowTyping(ctx context.Context, chatID int64) error
	// Answer 回應按鈕回呼
	Answer(ctx context.Context, callbackID, text string) error
	MaxMessageLen() int
}
