package health

import (
	"net/http"
	"runtime"
	"time"

	"recipe-bot/internal/core/ai/queue"
	"recipe-bot/internal/core/feedback"
	"recipe-bot/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QueueReporter 提供更新隊列狀態
type QueueReporter interface {
	GetQueueStatus() *queue.Status
}

// FeedbackReporter 提供評價計數
type FeedbackReporter interface {
	Snapshot() feedback.Counts
}

// SessionReporter 提供對話狀態統計
type SessionReporter interface {
	GetStats() map[string]interface{}
}

// ConnectionReporter 回報聊天平台連線狀態
type ConnectionReporter interface {
	Connected() bool
}

// Dependencies 健康檢查所需的元件，皆可為 nil
type Dependencies struct {
	Version    string
	Queue      QueueReporter
	Feedback   FeedbackReporter
	Sessions   SessionReporter
	Connection ConnectionReporter
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Connected bool                   `json:"bot_connected"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
	Feedback  *feedback.Counts       `json:"feedback,omitempty"`
	Sessions  map[string]interface{} `json:"sessions,omitempty"`
}

// Handler 維運端點處理器
type Handler struct {
	deps    Dependencies
	started time.Time
}

// NewHandler 創建處理器
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps, started: time.Now()}
}

func (h *Handler) connected() bool {
	return h.deps.Connection != nil && h.deps.Connection.Connected()
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status := "ok"
	if !h.connected() {
		status = "degraded"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   h.deps.Version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Connected: h.connected(),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.deps.Queue != nil {
		response.Queue = h.deps.Queue.GetQueueStatus()
	}
	if h.deps.Feedback != nil {
		counts := h.deps.Feedback.Snapshot()
		response.Feedback = &counts
	}
	if h.deps.Sessions != nil {
		response.Sessions = h.deps.Sessions.GetStats()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("status", status),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查：與聊天平台連線後才算就緒
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if !h.connected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"code":   common.ErrCodeTransportFault,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

// Stats 評價與隊列統計
func (h *Handler) Stats(c *gin.Context) {
	resp := gin.H{}
	if h.deps.Feedback != nil {
		resp["feedback"] = h.deps.Feedback.Snapshot()
	}
	if h.deps.Queue != nil {
		resp["queue"] = h.deps.Queue.GetQueueStatus()
	}
	if h.deps.Sessions != nil {
		resp["sessions"] = h.deps.Sessions.GetStats()
	}
	c.JSON(http.StatusOK, resp)
}
