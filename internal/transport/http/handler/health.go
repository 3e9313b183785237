package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"deepresearch/internal/bootstrap"
)

// HealthHandler reports the service's own state plus the three dependencies
// a research run needs: the session store, the detail cache and the job
// queue. Any degraded dependency turns the whole endpoint 503.
type HealthHandler struct {
	app *bootstrap.App
}

type checkResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	mysqlStatus := h.checkMySQL(ctx)
	redisStatus := h.checkRedis(ctx)
	queueStatus := h.checkQueue()

	code := http.StatusOK
	if !(mysqlStatus.OK && redisStatus.OK && queueStatus.OK) {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"app":        h.app.Config.App.Name,
		"env":        h.app.Config.App.Env,
		"uptime_sec": int(time.Since(h.app.StartedAt).Seconds()),
		"worker": gin.H{
			"queue":       h.app.Config.RabbitMQ.ResearchQueue,
			"concurrency": h.app.Config.Research.WorkerConcurrency,
		},
		"dependencies": gin.H{
			"mysql":    mysqlStatus,
			"redis":    redisStatus,
			"rabbitmq": queueStatus,
		},
	})
}

func (h *HealthHandler) checkMySQL(ctx context.Context) checkResult {
	if h.app.MySQL == nil {
		return checkResult{Error: "not connected"}
	}
	sqlDB, err := h.app.MySQL.DB()
	if err != nil {
		return checkResult{Error: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return checkResult{Error: err.Error()}
	}
	return checkResult{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) checkResult {
	if h.app.Redis == nil {
		return checkResult{Error: "not connected"}
	}
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return checkResult{Error: err.Error()}
	}
	return checkResult{OK: true}
}

func (h *HealthHandler) checkQueue() checkResult {
	if h.app.MQConn == nil || h.app.MQConn.IsClosed() {
		return checkResult{Error: "connection closed"}
	}
	return checkResult{OK: true}
}
