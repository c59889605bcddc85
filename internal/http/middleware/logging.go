// Package middleware contains shared Gin middleware used by the webhook
// transport.
//
// This file provides the request ID injector, the structured access logger,
// panic recovery and LoggerFrom. Compose them in this order so panics and
// errors carry the correlation ID:
//
//	r.Use(middleware.RequestID())
//	r.Use(middleware.Logger(middleware.LogOptions{...}))
//	r.Use(middleware.Recovery())
//
// Handlers tag the access log with update and user ids through
// SetUpdateFields; those fields are read after the handler returns.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	loggerKey       = "logger"
	updateIDKey     = "updateID"
	platformUserKey = "platformUserID"

	requestIDHeader   = "X-Request-ID"
	maxQueryLogLength = 2048
)

// LogOptions configures Logger.
type LogOptions struct {
	// MaskHeaders are masked in addition to the built-in sensitive headers.
	MaskHeaders []string
	// LogHeaders includes the scrubbed request headers at debug level.
	LogHeaders bool
}

// RequestID attaches (or propagates) a correlation identifier per request.
// An incoming X-Request-ID is reused; otherwise a UUIDv4 is generated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// SetUpdateFields records the Telegram update id and sender on the request,
// for the access log line and the request-scoped logger.
func SetUpdateFields(c *gin.Context, updateID, platformUserID int64) {
	c.Set(updateIDKey, updateID)
	if platformUserID != 0 {
		c.Set(platformUserKey, platformUserID)
	}
	l := LoggerFrom(c).With().
		Int64("update_id", updateID).
		Int64("platform_user_id", platformUserID).
		Logger()
	c.Set(loggerKey, &l)
}

// Logger writes one structured access log line per request and stores a
// request-scoped zerolog.Logger under the "logger" key. The level follows
// the outcome: error for 5xx or gin errors, warn for 4xx, info otherwise.
// Query strings are scrubbed and sensitive headers are never logged in
// clear.
func Logger(opts LogOptions) gin.HandlerFunc {
	scrub := newScrubber(opts.MaskHeaders)
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		ctx := l.With().
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(scrub.text(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size())
		if v, ok := c.Get(updateIDKey); ok {
			ctx = ctx.Interface("update_id", v)
		}
		if v, ok := c.Get(platformUserKey); ok {
			ctx = ctx.Interface("platform_user_id", v)
		}
		ev := ctx.Logger()

		status := c.Writer.Status()
		var e *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			e = ev.Error().Str("errors", c.Errors.String())
		case status >= 500:
			e = ev.Error()
		case status >= 400:
			e = ev.Warn()
		default:
			e = ev.Info()
		}
		if opts.LogHeaders && zerolog.GlobalLevel() <= zerolog.DebugLevel {
			e = e.Interface("headers", scrub.headers(c.Request.Header))
		}
		e.Msg("request")
	}
}

// Recovery intercepts panics, logs a stack trace, and returns a JSON 500
// error unless a response was already written.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				LoggerFrom(c).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": asString(rid),
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or a copy of the global one
// when Logger did not run.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
