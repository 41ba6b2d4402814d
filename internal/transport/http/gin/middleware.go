package httpgin

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ilyakh/busline/internal/domain"
	"github.com/ilyakh/busline/internal/token"
)

const callerIDKey = "caller_id"

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Set("request_id", reqID)

		c.Next()
	}
}

func CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Idempotency-Key",
			"If-None-Match",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"ETag",
			"Cache-Control",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(cfg)
}

func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		status := c.Writer.Status()
		reqID, _ := c.Get("request_id")

		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.String("ua", c.Request.UserAgent()),
			slog.Any("request_id", reqID),
			slog.Duration("latency", latency),
			slog.Int("bytes_out", c.Writer.Size()),
		}

		// convert []slog.Attr to []any for slog.Group variadic parameter
		anyAttrs := make([]any, len(attrs))
		for i := range attrs {
			anyAttrs[i] = attrs[i]
		}

		if len(c.Errors) > 0 {
			logger.Error("http",
				slog.Group("http", anyAttrs...),
				slog.String("errors", c.Errors.String()),
			)
		} else {
			logger.Info("http", slog.Group("http", anyAttrs...))
		}
	}
}

// AuthRequired parses the bearer token and stores the caller's passenger id
// in the gin context for handlers downstream.
func AuthRequired(tokens *token.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			unauthorized(c, "missing authorization header")
			return
		}

		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			unauthorized(c, "invalid authorization header")
			return
		}

		id, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(callerIDKey, id)
		c.Next()
	}
}

// RequireAdmin rejects callers whose stored role is not admin. Must run
// after AuthRequired. The role is re-read per request so a demoted admin
// loses access without waiting for token expiry.
func RequireAdmin(roleOf func(c *gin.Context, id uuid.UUID) (string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := callerID(c)
		if !ok {
			unauthorized(c, "missing authorization")
			return
		}

		role, err := roleOf(c, id)
		if err != nil {
			unauthorized(c, "unknown caller")
			return
		}

		if role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Message: "admin role required"})
			return
		}

		c.Next()
	}
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(callerIDKey)
	if !ok {
		return uuid.Nil, false
	}

	id, ok := v.(uuid.UUID)

	return id, ok
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: msg})
}
