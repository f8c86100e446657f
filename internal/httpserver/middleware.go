package httpserver

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/identity"
)

const identityKey = "storefront.identity"

// requestLogger logs one line per request: warn for 4xx, error for 5xx.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// identityMiddleware resolves the shopper behind the request and stores it on the context.
func identityMiddleware(resolver *identity.Resolver, h *handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := resolver.Resolve(c.Request.Context(), c.Request)
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}
		c.Set(identityKey, &id)
		c.Next()
	}
}

func currentIdentity(c *gin.Context) *identity.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*identity.Identity); ok {
			return id
		}
	}
	return &identity.Identity{}
}

func adminAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Error:   "unauthorized",
				Message: "invalid or missing API key",
				Status:  http.StatusUnauthorized,
			})
			return
		}
		c.Next()
	}
}
