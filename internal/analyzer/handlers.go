/*
Package analyzer exposes the Gemini ethanol analyzer over HTTP.
Every failure after the request body is accepted is reported inside the
response envelope with HTTP 200, which is what the bundled frontend expects.
*/
package analyzer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"FuelLab_V2.0/internal/geminiservice"
	"FuelLab_V2.0/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Service is the analysis pipeline the handlers drive.
type Service interface {
	Analyze(ctx context.Context, logger *zerolog.Logger, credential string, req geminiservice.AnalysisRequest) (*geminiservice.AnalysisResult, error)
	Chat(ctx context.Context, logger *zerolog.Logger, credential string, req geminiservice.ChatRequest) (*geminiservice.ChatResult, error)
}

/* =================================================================================
							DTOs (Data Transfer Objects)
=================================================================================*/

// AnalyzeRequest is the body of POST /api/analyze. Pointers mark required
// numeric fields so a missing value is distinguishable from zero.
type AnalyzeRequest struct {
	VehicleName  string `json:"vehicle_name"`
	Year         *int   `json:"year"`
	State        string `json:"state"`
	MonthlySpend *int   `json:"monthly_spend"`
	EthanolBlend string `json:"ethanol_blend"`
	GeminiAPIKey string `json:"gemini_api_key"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Question     string                    `json:"question"`
	GeminiAPIKey string                    `json:"gemini_api_key"`
	Context      geminiservice.ChatContext `json:"context,omitempty"`
}

// Envelope is the response shape of every analyzer API call.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// AnalysisBody is the analysis section of a successful analyze response.
type AnalysisBody struct {
	Summary   string `json:"summary"`
	Formatted bool   `json:"formatted"`
	Version   string `json:"version"`
	Model     string `json:"model"`
}

// AnalyzeData is the data of a successful analyze response.
type AnalyzeData struct {
	VehicleInfo  geminiservice.VehicleInfo `json:"vehicle_info"`
	Analysis     AnalysisBody              `json:"analysis"`
	AIPowered    bool                      `json:"ai_powered"`
	EthanolBlend string                    `json:"ethanol_blend"`
	State        string                    `json:"state"`
}

// ChatData is the data of a successful chat response.
type ChatData struct {
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
}

// Handler serves the analyzer endpoints.
type Handler struct {
	service    Service
	indexPaths []string
}

// NewHandler returns a Handler backed by service. indexPaths are tried in
// order when serving the frontend.
func NewHandler(service Service, indexPaths []string) *Handler {
	return &Handler{service: service, indexPaths: append([]string(nil), indexPaths...)}
}

func failure(prefix string, err error) Envelope {
	return Envelope{Success: false, Data: nil, Detail: prefix + err.Error()}
}

func missingField(field string) error {
	return errors.New("field required: " + field)
}

func (r *AnalyzeRequest) validate() error {
	switch {
	case strings.TrimSpace(r.VehicleName) == "":
		return missingField("vehicle_name")
	case r.Year == nil:
		return missingField("year")
	case strings.TrimSpace(r.State) == "":
		return missingField("state")
	case r.MonthlySpend == nil:
		return missingField("monthly_spend")
	case strings.TrimSpace(r.EthanolBlend) == "":
		return missingField("ethanol_blend")
	case strings.TrimSpace(r.GeminiAPIKey) == "":
		return missingField("gemini_api_key")
	}
	return nil
}

func (r *ChatRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Question) == "":
		return missingField("question")
	case strings.TrimSpace(r.GeminiAPIKey) == "":
		return missingField("gemini_api_key")
	}
	return nil
}

/* =================================================================================
								HANDLERS
=================================================================================*/

// AnalyzeHandler runs an ethanol blend analysis for one vehicle.
func (h *Handler) AnalyzeHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	// 1. Bind and validate the request body
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "Invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
	}

	// 2. Run the pipeline; the resolved model is closed before this returns
	result, err := h.service.Analyze(c.Request().Context(), logger, req.GeminiAPIKey, geminiservice.AnalysisRequest{
		VehicleName:  strings.TrimSpace(req.VehicleName),
		Year:         *req.Year,
		State:        req.State,
		MonthlySpend: *req.MonthlySpend,
		EthanolBlend: req.EthanolBlend,
	})
	if err != nil {
		logger.Error().Err(err).Str("vehicle", req.VehicleName).Msg("Analysis error")
		return c.JSON(http.StatusOK, failure("Analysis failed: ", err))
	}

	// 3. Wrap the result for the frontend
	return c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data: AnalyzeData{
			VehicleInfo: result.VehicleInfo,
			Analysis: AnalysisBody{
				Summary:   result.Summary,
				Formatted: true,
				Version:   "gemini",
				Model:     result.Model,
			},
			AIPowered:    true,
			EthanolBlend: strings.ToUpper(req.EthanolBlend),
			State:        req.State,
		},
		Message: "Analysis completed successfully using Gemini AI",
	})
}

// ChatHandler answers a free-form question about ethanol blends.
func (h *Handler) ChatHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "Invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
	}

	result, err := h.service.Chat(c.Request().Context(), logger, req.GeminiAPIKey, geminiservice.ChatRequest{
		Question: req.Question,
		Context:  req.Context,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Chat error")
		return c.JSON(http.StatusOK, failure("Chat failed: ", err))
	}

	return c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data: ChatData{
			Answer:    result.Answer,
			Timestamp: result.Timestamp.Format(time.RFC3339),
			Model:     result.Model,
		},
		Message: "Chat response generated successfully",
	})
}

// HealthHandler reports that the analyzer is running.
func (h *Handler) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "Gemini Ethanol Analyzer",
	})
}

// VehiclesHandler is kept for older frontends; there is no vehicle database.
func (h *Handler) VehiclesHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data: map[string]string{
			"message": "Vehicle database not needed - Gemini AI analyzes all vehicles dynamically",
			"note":    "Simply enter your vehicle details and Gemini will provide comprehensive analysis",
		},
		Message: "Gemini AI handles all vehicle types dynamically",
	})
}

// IndexHandler serves the first index.html found, or lists where it looked.
func (h *Handler) IndexHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	for _, p := range h.indexPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			logger.Debug().Str("path", p).Msg("Found index.html")
			return c.File(p)
		}
	}

	logger.Error().Strs("searched_paths", h.indexPaths).Msg("index.html not found")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":        "Frontend not found. Please access index.html directly.",
		"searched_paths": h.indexPaths,
	})
}
