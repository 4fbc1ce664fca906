package server

import (
	"fmt"
	"html/template"
	"io"
	"net/http"

	"FuelLab_V2.0/internal/admin"
	"FuelLab_V2.0/internal/analyzer"
	"FuelLab_V2.0/internal/animals"
	"FuelLab_V2.0/internal/nutrition"
	"FuelLab_V2.0/internal/utility"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the request ID in and out of every service.
const RequestIDHeader = "X-Request-ID"

// TemplateRenderer is a custom html/template renderer for Echo framework
type TemplateRenderer struct {
	templates *template.Template
}

// Render renders a template document
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	// Use ExecuteTemplate to select the correct template by name
	return t.templates.ExecuteTemplate(w, name, data)
}

// newEcho returns an Echo instance with the middleware every service shares.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(LoggerMiddleware)
	e.Use(AccessLogMiddleware())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions, http.MethodPatch},
		AllowHeaders:  []string{"*"},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        300,
	}))

	return e
}

// RegisterAnalyzerRoutes builds the router of the ethanol analyzer.
func RegisterAnalyzerRoutes(h *analyzer.Handler, staticDir string) http.Handler {
	e := newEcho()

	e.Static("/static", staticDir)

	e.GET("/", h.IndexHandler)
	e.GET("/api/health", h.HealthHandler)
	e.GET("/api/health/system", admin.SystemHealthHandler)
	e.POST("/api/analyze", h.AnalyzeHandler)
	e.POST("/api/chat", h.ChatHandler)
	e.GET("/api/vehicles", h.VehiclesHandler)

	return e
}

// RegisterAnimalsRoutes builds the router of the animal and file service.
// uploadLimit is an Echo body limit such as "32M" applied to uploads only.
func RegisterAnimalsRoutes(h *animals.Handler, uploadLimit string) http.Handler {
	e := newEcho()

	e.GET("/", h.IndexHandler)
	e.GET("/api", h.APIRootHandler)
	e.GET("/api/health", h.HealthHandler)

	// Animal selection
	e.POST("/animal/select", h.SelectAnimalHandler)
	e.GET("/animal/history", h.AnimalHistoryHandler)

	// Files
	e.POST("/file/upload", h.UploadFileHandler, middleware.BodyLimit(uploadLimit))
	e.GET("/file/history", h.FileHistoryHandler)
	e.DELETE("/file/:filename", h.DeleteFileHandler)

	e.GET("/stats", h.StatsHandler)

	return e
}

// RegisterNutritionRoutes builds the router of the nutrition check, including
// the renderer for its embedded page templates.
func RegisterNutritionRoutes(h *nutrition.Handler) (http.Handler, error) {
	templates, err := nutrition.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse nutrition templates: %w", err)
	}

	e := newEcho()
	e.Renderer = &TemplateRenderer{templates: templates}

	// HTML pages
	e.GET("/", h.IndexHandler)
	e.POST("/", h.SearchFormHandler)
	e.GET("/product/:barcode", h.ProductPageHandler)

	// JSON API
	e.GET("/api/health", h.HealthHandler)
	e.GET("/api/search", h.APISearchHandler)
	e.GET("/api/product/:barcode", h.APIProductHandler)

	return e, nil
}

// AccessLogMiddleware writes one zerolog line per request, tagged with the
// request ID assigned by LoggerMiddleware.
func AccessLogMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("request_id", utility.GetRequestID(c)).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

// LoggerMiddleware assigns a request ID (or keeps the caller's) and stores a
// request-scoped logger carrying it.
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(utility.RequestIDKey, requestID)
		c.Response().Header().Set(RequestIDHeader, requestID)

		logger := log.With().
			Str("request_id", requestID).
			Str("ip", utility.GetRealIP(c)).
			Logger()

		c.Set(utility.LoggerKey, &logger)

		return next(c)
	}
}
