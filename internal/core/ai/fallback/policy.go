package fallback

import (
	"fmt"
	"time"
)

// Tier 降級層級
type Tier int

const (
	// TierStream 主模型串流
	TierStream Tier = iota
	// TierComplete 主模型非串流
	TierComplete
	// TierFallback 備用模型非串流
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierStream:
		return "primary_stream"
	case TierComplete:
		return "primary_complete"
	case TierFallback:
		return "fallback_complete"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Step 計畫中的一次呼叫
type Step struct {
	Tier    Tier
	Model   string
	Attempt int // 串流層從 1 起算，其他層固定為 1
}

// Stream 是否為串流呼叫
func (s Step) Stream() bool {
	return s.Tier == TierStream
}

// Policy 重試與退避策略
type Policy struct {
	StreamAttempts int
	BackoffUnit    time.Duration
	BackoffCap     time.Duration
}

// DefaultPolicy 兩次串流，退避 1s 起、上限 4s
func DefaultPolicy() Policy {
	return Policy{
		StreamAttempts: 2,
		BackoffUnit:    time.Second,
		BackoffCap:     4 * time.Second,
	}
}

// Backoff 第 attempt 次串流失敗後的等待時間：min(2^(attempt-1), cap) 個單位
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BackoffUnit <= 0 {
		return 0
	}
	d := p.BackoffUnit
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.BackoffCap > 0 && d >= p.BackoffCap {
			return p.BackoffCap
		}
	}
	if p.BackoffCap > 0 && d > p.BackoffCap {
		return p.BackoffCap
	}
	return d
}

// Plan 依序展開所有呼叫：主模型串流 N 次、主模型非串流、備用模型非串流
func Plan(p Policy, primary, fallback string) []Step {
	attempts := p.StreamAttempts
	if attempts < 1 {
		attempts = 1
	}

	steps := make([]Step, 0, attempts+2)
	for i := 1; i <= attempts; i++ {
		steps = append(steps, Step{Tier: TierStream, Model: primary, Attempt: i})
	}
	steps = append(steps, Step{Tier: TierComplete, Model: primary, Attempt: 1})
	if fallback != "" {
		steps = append(steps, Step{Tier: TierFallback, Model: fallback, Attempt: 1})
	}
	return steps
}
