package fallback

import (
	"context"
	"errors"
	"time"

	"recipe-bot/internal/core/ai/provider"
	"recipe-bot/internal/infrastructure/config"
	"recipe-bot/internal/pkg/common"

	"go.uber.org/zap"
)

// Attempt 已執行的一次呼叫
type Attempt struct {
	Step       Step
	Kind       provider.Kind
	Cause      provider.Cause
	Diagnostic string
	Duration   time.Duration
}

// Result 降級流程的最終結果
type Result struct {
	OK        bool
	Text      string
	ModelUsed string
	Trace     []Attempt

	// 全部失敗時保留的診斷
	PrimaryDiagnostic  string
	FallbackDiagnostic string
}

// Sleeper 可注入的等待函式，ctx 結束時應立即返回
type Sleeper func(ctx context.Context, d time.Duration) error

// StepFunc 每一步開始前呼叫
type StepFunc func(step Step)

// Orchestrator 依序執行降級計畫
type Orchestrator struct {
	completer      provider.Completer
	policy         Policy
	maxTokens      int
	requestTimeout time.Duration
	sleep          Sleeper
}

// Option 設定選項
type Option func(*Orchestrator)

// WithSleeper 替換等待函式
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		o.sleep = s
	}
}

// WithPolicy 替換重試策略
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithRequestTimeout 整體期限，0 表示不設
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.requestTimeout = d
	}
}

// WithMaxTokens 輸出 token 上限
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) {
		o.maxTokens = n
	}
}

// NewOrchestrator 創建降級編排器
func NewOrchestrator(completer provider.Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completer:      completer,
		policy:         DefaultPolicy(),
		maxTokens:      1200,
		requestTimeout: 60 * time.Second,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewFromConfig 依設定創建
func NewFromConfig(completer provider.Completer, cfg *config.Config, opts ...Option) *Orchestrator {
	base := []Option{
		WithPolicy(Policy{
			StreamAttempts: cfg.Generation.StreamAttempts,
			BackoffUnit:    cfg.Generation.BackoffUnit,
			BackoffCap:     cfg.Generation.BackoffCap,
		}),
		WithMaxTokens(cfg.OpenAI.MaxTokens),
		WithRequestTimeout(cfg.Generation.RequestTimeout),
	}
	return NewOrchestrator(completer, append(base, opts...)...)
}

// Resolve 執行完整降級流程，第一個非空白結果即返回
func (o *Orchestrator) Resolve(ctx context.Context, primary, fallback string, prompt provider.Prompt) Result {
	return o.ResolveObserved(ctx, primary, fallback, prompt, nil)
}

// ResolveObserved 同 Resolve，每一步開始前通知 onStep
func (o *Orchestrator) ResolveObserved(ctx context.Context, primary, fallback string, prompt provider.Prompt, onStep StepFunc) Result {
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	requestID := common.GenerateUUID()
	steps := Plan(o.policy, primary, fallback)
	result := Result{Trace: make([]Attempt, 0, len(steps))}

	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		if onStep != nil {
			onStep(step)
		}

		out, elapsed := o.call(ctx, step, prompt)
		result.Trace = append(result.Trace, Attempt{
			Step:       step,
			Kind:       out.Kind,
			Cause:      out.Cause,
			Diagnostic: out.Diagnostic,
			Duration:   elapsed,
		})
		logAttempt(step, out, elapsed, requestID)

		if out.OK() {
			result.OK = true
			result.Text = out.Text
			result.ModelUsed = step.Model
			return result
		}

		if step.Tier == TierFallback {
			result.FallbackDiagnostic = out.Diagnostic
		} else {
			result.PrimaryDiagnostic = out.Diagnostic
		}

		if out.Cause == provider.CauseCanceled || ctx.Err() != nil {
			break
		}
		if step.Stream() {
			if err := o.sleep(ctx, o.policy.Backoff(step.Attempt)); err != nil {
				break
			}
		}
	}

	if err := ctx.Err(); err != nil && result.PrimaryDiagnostic == "" {
		result.PrimaryDiagnostic = err.Error()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		common.LogWarn("Generation deadline exceeded",
			zap.String("request_id", requestID),
			zap.Duration("request_timeout", o.requestTimeout),
			zap.Int("attempts", len(result.Trace)),
		)
	}

	common.LogError("All generation tiers failed",
		zap.String("request_id", requestID),
		zap.String("primary_model", primary),
		zap.String("fallback_model", fallback),
		zap.String("primary_diagnostic", result.PrimaryDiagnostic),
		zap.String("fallback_diagnostic", result.FallbackDiagnostic),
	)
	return result
}

// call 執行單一步驟
func (o *Orchestrator) call(ctx context.Context, step Step, prompt provider.Prompt) (provider.Outcome, time.Duration) {
	start := time.Now()
	var out provider.Outcome
	if step.Stream() {
		out = o.completer.StreamComplete(ctx, step.Model, prompt, o.maxTokens)
	} else {
		out = o.completer.Complete(ctx, step.Model, prompt, o.maxTokens)
	}
	return out, time.Since(start)
}

func logAttempt(step Step, out provider.Outcome, elapsed time.Duration, requestID string) {
	if out.OK() {
		common.LogAICall(step.Model, step.Tier.String(), elapsed, nil, requestID)
		return
	}
	common.LogWarn("Generation attempt failed",
		zap.String("request_id", requestID),
		zap.String("model", step.Model),
		zap.String("tier", step.Tier.String()),
		zap.Int("attempt", step.Attempt),
		zap.String("code", outcomeCode(out)),
		zap.String("outcome", out.Kind.String()),
		zap.String("cause", string(out.Cause)),
		zap.Int("status_code", out.StatusCode),
		zap.String("diagnostic", out.Diagnostic),
		zap.Duration("耗時", elapsed),
	)
}

// outcomeCode 失敗結果對應的錯誤代碼
func outcomeCode(out provider.Outcome) string {
	if out.Kind == provider.KindEmpty {
		return common.ErrCodeProviderEmpty
	}
	return common.ErrCodeProviderFailure
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
