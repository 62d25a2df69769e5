package provider

import (
	"context"
	"strings"
)

// 訊息角色
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message 表示與 AI 模型的對話消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt 固定兩段式提示（system + user），建立後不可變
type Prompt struct {
	system string
	user   string
}

// NewPrompt 建立提示
func NewPrompt(system, user string) Prompt {
	return Prompt{system: system, user: user}
}

// System 系統指令
func (p Prompt) System() string { return p.system }

// User 使用者訊息
func (p Prompt) User() string { return p.user }

// Messages 依序返回兩段訊息的副本
func (p Prompt) Messages() []Message {
	return []Message{
		{Role: RoleSystem, Content: p.system},
		{Role: RoleUser, Content: p.user},
	}
}

// Kind 單次呼叫結果類型
type Kind int

const (
	KindSuccess Kind = iota
	KindEmpty
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindEmpty:
		return "empty"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Cause 失敗原因，用於日誌區分
type Cause string

const (
	CauseNone      Cause = ""
	CauseTimeout   Cause = "timeout"
	CauseCanceled  Cause = "canceled"
	CauseNetwork   Cause = "network"
	CauseRejected  Cause = "rejected"
	CauseMalformed Cause = "malformed"
	CauseEmpty     Cause = "empty"
)

// Outcome 單次模型呼叫的三態結果
type Outcome struct {
	Kind       Kind
	Text       string
	Diagnostic string
	Cause      Cause
	StatusCode int
}

// Success 成功結果；空白文字視為 Empty
func Success(text string) Outcome {
	if strings.TrimSpace(text) == "" {
		return Empty()
	}
	return Outcome{Kind: KindSuccess, Text: text}
}

// Empty 通道正常關閉但沒有內容
func Empty() Outcome {
	return Outcome{Kind: KindEmpty, Diagnostic: "empty completion", Cause: CauseEmpty}
}

// Failure 呼叫異常結束
func Failure(cause Cause, diagnostic string) Outcome {
	return Outcome{Kind: KindFailure, Cause: cause, Diagnostic: diagnostic}
}

// OK 是否取得非空白文字
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess && strings.TrimSpace(o.Text) != ""
}

// Completer 定義模型呼叫介面，兩種呼叫皆不在內部重試
type Completer interface {
	// StreamComplete 串流呼叫，累積片段後分類
	StreamComplete(ctx context.Context, model string, prompt Prompt, maxTokens int) Outcome

	// Complete 非串流呼叫
	Complete(ctx context.Context, model string, prompt Prompt, maxTokens int) Outcome
}
