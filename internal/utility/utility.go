package utility

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Context keys set by server.LoggerMiddleware.
const (
	RequestIDKey = "request_id"
	LoggerKey    = "logger"
)

// GetRealIP is a helper function to get the user's real IP address
// It checks proxy headers first.
func GetRealIP(c echo.Context) string {
	// 1. Check X-Forwarded-For first
	// This header can be a list: "client, proxy1, proxy2"
	xForwardedFor := c.Request().Header.Get("X-Forwarded-For")
	if xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	// 2. Check X-Real-IP
	if xRealIP := c.Request().Header.Get("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}

	return c.RealIP()
}

// GetLogger returns the request-scoped logger, or the global one when the
// middleware did not run (e.g. in handler tests).
func GetLogger(c echo.Context) *zerolog.Logger {
	if logger, ok := c.Get(LoggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return &log.Logger
}

// GetRequestID returns the request ID assigned by the middleware, if any.
func GetRequestID(c echo.Context) string {
	id, _ := c.Get(RequestIDKey).(string)
	return id
}

// SafeFilename reduces an uploaded or requested name to a single path element
// so it can never escape the directory it is joined with.
func SafeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty filename")
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	base := filepath.Base(name)
	if base == "." || base == ".." || base != name {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	return base, nil
}
