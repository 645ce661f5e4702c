package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db     *gorm.DB
	rdb    *redis.Client
	broker *amqp.Connection
}

func NewHealthHandler(db *gorm.DB, rdb *redis.Client, broker *amqp.Connection) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, broker: broker}
}

// Healthz reports per-dependency status. Any failing dependency turns the
// overall status degraded with HTTP 503.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{
		"mysql":    "ok",
		"redis":    "ok",
		"rabbitmq": "ok",
	}
	healthy := true

	if h.db != nil {
		if sqlDB, err := h.db.DB(); err != nil {
			checks["mysql"] = err.Error()
			healthy = false
		} else if err := sqlDB.PingContext(ctx); err != nil {
			checks["mysql"] = err.Error()
			healthy = false
		}
	} else {
		checks["mysql"] = "not configured"
		healthy = false
	}

	if h.rdb != nil {
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	} else {
		checks["redis"] = "not configured"
		healthy = false
	}

	if h.broker == nil || h.broker.IsClosed() {
		checks["rabbitmq"] = "connection closed"
		healthy = false
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status": status,
		"checks": checks,
	})
}
