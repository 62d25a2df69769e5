package completion

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"recipe-bot/internal/core/ai/provider"
	"recipe-bot/internal/infrastructure/config"
	"recipe-bot/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	chatPath      = "/chat/completions"
	ssePrefix     = "data:"
	sseDone       = "[DONE]"
	maxErrorBody  = 2048
	maxStreamLine = 1 << 20
)

// Client OpenAI 相容 chat-completions 客戶端，不做重試
type Client struct {
	client      *resty.Client
	temperature float64
	noTempModel []string
	callTimeout time.Duration
}

// Request 表示 API 請求
type Request struct {
	Model               string             `json:"model"`
	Messages            []provider.Message `json:"messages"`
	MaxCompletionTokens int                `json:"max_completion_tokens,omitempty"`
	Temperature         *float64           `json:"temperature,omitempty"`
	Stream              bool               `json:"stream,omitempty"`
}

// Response 非串流響應結構
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice 選擇結構
type Choice struct {
	Message provider.Message `json:"message"`
	Delta   provider.Message `json:"delta"`
}

// apiError 表示 API 錯誤
type apiError struct {
	Error *struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// NewClient 創建新的模型客戶端
func NewClient(cfg *config.Config) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.OpenAI.BaseURL, "/")).
		SetAuthToken(cfg.OpenAI.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Title", "Recipe Bot")

	return &Client{
		client:      client,
		temperature: cfg.OpenAI.Temperature,
		noTempModel: cfg.OpenAI.NoTemperatureModels,
		callTimeout: cfg.Generation.CallTimeout,
	}
}

// buildRequest 構建請求；不支援溫度的模型省略該參數
func (c *Client) buildRequest(model string, prompt provider.Prompt, maxTokens int, stream bool) *Request {
	req := &Request{
		Model:               model,
		Messages:            prompt.Messages(),
		MaxCompletionTokens: maxTokens,
		Stream:              stream,
	}
	if c.temperature > 0 && supportsTemperature(model, c.noTempModel) {
		t := c.temperature
		req.Temperature = &t
	}
	return req
}

// supportsTemperature 以模型名稱前綴判斷
func supportsTemperature(model string, prefixes []string) bool {
	m := strings.ToLower(model)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(m, strings.ToLower(p)) {
			return false
		}
	}
	return true
}

// withCallTimeout 套用單次呼叫期限
func (c *Client) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

// StreamComplete 串流呼叫，依序累積片段後分類
func (c *Client) StreamComplete(ctx context.Context, model string, prompt provider.Prompt, maxTokens int) provider.Outcome {
	callCtx, cancel := c.withCallTimeout(ctx)
	defer cancel()

	resp, err := c.client.R().
		SetContext(callCtx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		SetBody(c.buildRequest(model, prompt, maxTokens, true)).
		Post(chatPath)
	if err != nil {
		return transportFailure(callCtx, ctx, err)
	}

	body := resp.RawBody()
	if body == nil {
		return provider.Failure(provider.CauseMalformed, "stream response has no body")
	}
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return statusFailure(resp.StatusCode(), readLimited(body))
	}

	var text strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxStreamLine)
	for scanner.Scan() {
		if done, out := c.handleStreamLine(scanner.Bytes(), &text); done {
			return out
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return provider.Failure(provider.CauseMalformed, "stream line too long")
		}
		return transportFailure(callCtx, ctx, fmt.Errorf("reading stream: %w", err))
	}
	// 未收到 [DONE] 但連線正常關閉
	return provider.Success(text.String())
}

// handleStreamLine 處理一行 SSE；done 為 true 時 out 為最終結果
func (c *Client) handleStreamLine(line []byte, text *strings.Builder) (bool, provider.Outcome) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || !bytes.HasPrefix(line, []byte(ssePrefix)) {
		// 空行、註解與 event: 欄位
		return false, provider.Outcome{}
	}

	payload := bytes.TrimSpace(line[len(ssePrefix):])
	if string(payload) == sseDone {
		return true, provider.Success(text.String())
	}

	var chunk struct {
		Response
		apiError
	}
	if err := common.ParseJSONBytes(payload, &chunk); err != nil {
		return true, provider.Failure(provider.CauseMalformed, fmt.Sprintf("malformed stream chunk: %v", err))
	}
	if chunk.Error != nil {
		return true, provider.Failure(provider.CauseRejected, "stream error: "+chunk.Error.Message)
	}
	for _, choice := range chunk.Choices {
		text.WriteString(choice.Delta.Content)
	}
	return false, provider.Outcome{}
}

// Complete 非串流呼叫
func (c *Client) Complete(ctx context.Context, model string, prompt provider.Prompt, maxTokens int) provider.Outcome {
	callCtx, cancel := c.withCallTimeout(ctx)
	defer cancel()

	resp, err := c.client.R().
		SetContext(callCtx).
		SetBody(c.buildRequest(model, prompt, maxTokens, false)).
		Post(chatPath)
	if err != nil {
		return transportFailure(callCtx, ctx, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return statusFailure(resp.StatusCode(), resp.Body())
	}

	var result Response
	if err := common.ParseJSONBytes(resp.Body(), &result); err != nil {
		return provider.Failure(provider.CauseMalformed, fmt.Sprintf("failed to parse response: %v", err))
	}
	if len(result.Choices) == 0 {
		return provider.Empty()
	}
	return provider.Success(result.Choices[0].Message.Content)
}

// transportFailure 區分外部取消、逾時與網路錯誤
func transportFailure(callCtx, parent context.Context, err error) provider.Outcome {
	var netErr net.Error
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return provider.Failure(provider.CauseCanceled, "request canceled")
	case errors.Is(callCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return provider.Failure(provider.CauseTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		return provider.Failure(provider.CauseCanceled, "request canceled")
	case errors.As(err, &netErr) && netErr.Timeout():
		return provider.Failure(provider.CauseTimeout, netErr.Error())
	default:
		return provider.Failure(provider.CauseNetwork, err.Error())
	}
}

// statusFailure 非 200 狀態碼
func statusFailure(status int, body []byte) provider.Outcome {
	msg := strings.TrimSpace(string(body))
	var apiErr apiError
	if err := common.ParseJSONBytes(body, &apiErr); err == nil && apiErr.Error != nil {
		msg = apiErr.Error.Message
	}

	common.LogDebug("Model API returned error status",
		zap.Int("status_code", status),
		zap.String("response", common.Truncate(msg, 200)),
	)

	out := provider.Failure(provider.CauseRejected, fmt.Sprintf("status %d: %s", status, common.Truncate(msg, 200)))
	out.StatusCode = status
	return out
}

func readLimited(r io.Reader) []byte {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return data
}
