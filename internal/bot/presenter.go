package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"recipe-bot/internal/core/ai/fallback"
	"recipe-bot/internal/core/ai/provider"
	"recipe-bot/internal/core/recipe"
	"recipe-bot/internal/pkg/common"

	"go.uber.org/zap"
)

// Resolver 降級編排介面
type Resolver interface {
	ResolveObserved(ctx context.Context, primaryModel, fallbackModel string, prompt provider.Prompt, onStep fallback.StepFunc) fallback.Result
}

// Presenter 將生成結果呈現在一則聊天訊息上
type Presenter struct {
	renderer         Renderer
	resolver         Resolver
	primaryModel     string
	fallbackModel    string
	typingInterval   time.Duration
	progressInterval time.Duration
	now              func() time.Time
}

// PresenterConfig 呈現設定
type PresenterConfig struct {
	PrimaryModel     string
	FallbackModel    string
	TypingInterval   time.Duration
	ProgressInterval time.Duration
}

// NewPresenter 創建呈現器
func NewPresenter(renderer Renderer, resolver Resolver, cfg PresenterConfig) *Presenter {
	if cfg.TypingInterval <= 0 {
		cfg.TypingInterval = 4 * time.Second
	}
	return &Presenter{
		renderer:         renderer,
		resolver:         resolver,
		primaryModel:     cfg.PrimaryModel,
		fallbackModel:    cfg.FallbackModel,
		typingInterval:   cfg.TypingInterval,
		progressInterval: cfg.ProgressInterval,
		now:              time.Now,
	}
}

// Present 送出佔位訊息、執行生成並以結果取代；過長時改為分段送出
func (p *Presenter) Present(ctx context.Context, chatID int64, header, footer string, prompt provider.Prompt, actions Keyboard) (fallback.Result, error) {
	placeholder, err := p.renderer.Send(ctx, chatID, placeholderText, nil)
	if err != nil {
		return fallback.Result{}, fmt.Errorf("failed to send placeholder: %w", err)
	}

	stopTyping := p.keepTyping(ctx, chatID)
	result := p.resolver.ResolveObserved(ctx, p.primaryModel, p.fallbackModel, prompt, p.progress(ctx, placeholder))
	stopTyping()

	if !result.OK {
		if err := p.renderer.Edit(ctx, placeholder, failureNotice, nil); err != nil {
			return result, fmt.Errorf("failed to show failure notice: %w", err)
		}
		return result, nil
	}

	body := recipe.FormatDishNames(result.Text)
	full := header + body + footer
	limit := p.renderer.MaxMessageLen()
	size := recipe.TextLen(full)

	if limit <= 0 || size <= limit {
		err := p.renderer.Edit(ctx, placeholder, full, actions)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrMessageTooLong) {
			common.LogError("Failed to edit message", zap.Error(err), zap.Int64("chat_id", chatID))
			if editErr := p.renderer.Edit(ctx, placeholder, formatErrorNotice, nil); editErr != nil {
				return result, fmt.Errorf("failed to edit message: %w", err)
			}
			return result, nil
		}
		// 平台計數比本地嚴格，改以更小的上限重新切分
		limit = shrinkLimit(size)
	}

	return result, p.sendChunks(ctx, placeholder, full, limit, actions)
}

// minChunkLen 分段上限縮小到此值以下即放棄
const minChunkLen = 256

func shrinkLimit(n int) int {
	return n * 3 / 4
}

// sendChunks 依序送出分段，鍵盤只附在最後一段。第一段送達後才刪除佔位訊息；
// 平台仍判定過長時以更小的上限重切尚未送出的部分。
func (p *Presenter) sendChunks(ctx context.Context, placeholder Handle, full string, limit int, actions Keyboard) error {
	common.LogInfo("Message exceeds platform limit, sending in parts",
		zap.String("code", common.ErrCodePresentationOverflow),
		zap.Int64("chat_id", placeholder.ChatID),
		zap.Int("length", recipe.TextLen(full)),
		zap.Int("limit", limit),
	)

	remaining := full
	delivered := 0
	for remaining != "" {
		chunks := recipe.SplitChunks(remaining, limit)
		chunk := chunks[0]
		var kb Keyboard
		if len(chunks) == 1 {
			kb = actions
		}

		_, err := p.renderer.Send(ctx, placeholder.ChatID, chunk, kb)
		if errors.Is(err, ErrMessageTooLong) && shrinkLimit(limit) >= minChunkLen {
			limit = shrinkLimit(min(limit, recipe.TextLen(chunk)))
			common.LogDebug("Part rejected as too long, splitting smaller", zap.Int("limit", limit))
			continue
		}
		if err != nil {
			p.notifyFailure(ctx, placeholder, delivered)
			return common.NewError(common.ErrCodePresentationOverflow, fmt.Sprintf("failed to send part %d", delivered+1), err)
		}

		if delivered == 0 {
			if err := p.renderer.Delete(ctx, placeholder); err != nil {
				common.LogWarn("Failed to delete placeholder", zap.Error(err))
			}
		}
		delivered++
		remaining = remaining[len(chunk):]
	}
	return nil
}

// notifyFailure 分段送出失敗時告知使用者；佔位訊息仍在時直接取代
func (p *Presenter) notifyFailure(ctx context.Context, placeholder Handle, delivered int) {
	var err error
	if delivered == 0 {
		err = p.renderer.Edit(ctx, placeholder, failureNotice, nil)
	} else {
		_, err = p.renderer.Send(ctx, placeholder.ChatID, failureNotice, nil)
	}
	if err != nil {
		common.LogError("Failed to show failure notice", zap.Error(err))
	}
}

// progress 在升級層級時更新佔位文字，依 progressInterval 節流
func (p *Presenter) progress(ctx context.Context, placeholder Handle) fallback.StepFunc {
	var last time.Time
	current := placeholderText

	return func(step fallback.Step) {
		text := progressText(step)
		if text == current {
			return
		}
		now := p.now()
		if !last.IsZero() && p.progressInterval > 0 && now.Sub(last) < p.progressInterval {
			return
		}
		if err := p.renderer.Edit(ctx, placeholder, text, nil); err != nil {
			common.LogDebug("Failed to update progress", zap.Error(err))
			return
		}
		current = text
		last = now
	}
}

func progressText(step fallback.Step) string {
	switch {
	case step.Tier == fallback.TierFallback:
		return backupProgressText
	case step.Tier == fallback.TierComplete, step.Attempt > 1:
		return retryProgressText
	default:
		return placeholderText
	}
}

// keepTyping 週期性送出輸入中提示，返回停止函式
func (p *Presenter) keepTyping(ctx context.Context, chatID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(p.typingInterval)
		defer ticker.Stop()

		for {
			if err := p.renderer.ShowTyping(ctx, chatID); err != nil && ctx.Err() == nil {
				common.LogDebug("Failed to show typing", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
