package middleware

import (
	"time"

	"bookstore/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-ID"

// リクエストごとにrequest_id付きのloggerをcontextへ入れ、完了時に1行出す
func RequestLogger(base *zap.Logger) echo.MiddlewareFunc {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := req.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, requestID)

			log := base.With(zap.String("request_id", requestID))
			c.SetRequest(req.WithContext(logger.WithLogger(req.Context(), log)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			log.Info("http_request",
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}
