package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FuelLab_V2.0/internal/analyzer"
	"FuelLab_V2.0/internal/animals"
	"FuelLab_V2.0/internal/config"
	"FuelLab_V2.0/internal/database"
	"FuelLab_V2.0/internal/geminiservice"
	"FuelLab_V2.0/internal/nutrition"
	"FuelLab_V2.0/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalysis struct{}

func (stubAnalysis) Analyze(context.Context, *zerolog.Logger, string, geminiservice.AnalysisRequest) (*geminiservice.AnalysisResult, error) {
	return nil, geminiservice.ErrNoWorkingModel
}

func (stubAnalysis) Chat(context.Context, *zerolog.Logger, string, geminiservice.ChatRequest) (*geminiservice.ChatResult, error) {
	return nil, geminiservice.ErrNoWorkingModel
}

type stubProducts struct{}

func (stubProducts) Search(context.Context, *zerolog.Logger, string, int) ([]nutrition.Product, error) {
	return []nutrition.Product{{Code: "1", ProductName: "Bread"}}, nil
}

func (stubProducts) Product(context.Context, *zerolog.Logger, string) (nutrition.Product, error) {
	return nutrition.Product{}, nutrition.ErrProductNotFound
}

func TestLoggerMiddleware(t *testing.T) {
	e := echo.New()

	var seenID string
	var seenLogger *zerolog.Logger
	handler := LoggerMiddleware(func(c echo.Context) error {
		seenID = utility.GetRequestID(c)
		seenLogger, _ = c.Get(utility.LoggerKey).(*zerolog.Logger)
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	assert.NotEmpty(t, seenID)
	assert.Equal(t, seenID, rec.Header().Get(RequestIDHeader))
	assert.NotNil(t, seenLogger)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, "abc-123", seenID)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestAccessLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	router := RegisterAnalyzerRoutes(analyzer.NewHandler(stubAnalysis{}, nil), t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	router.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "request", line["message"])
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "/api/health", line["uri"])
	assert.EqualValues(t, http.StatusOK, line["status"])
}

func TestAnalyzerRoutes(t *testing.T) {
	router := RegisterAnalyzerRoutes(analyzer.NewHandler(stubAnalysis{}, nil), t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(echo.HeaderOrigin, "http://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(
		`{"vehicle_name":"Honda Activa","year":2022,"state":"goa","monthly_spend":100,"ethanol_blend":"e20","gemini_api_key":"k"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body analyzer.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Analysis failed: "+geminiservice.ErrNoWorkingModel.Error(), body.Detail)
}

func TestAnimalsRoutes(t *testing.T) {
	dir := t.TempDir()
	db, err := database.NewService(filepath.Join(dir, "data.json"))
	require.NoError(t, err)
	h, err := animals.NewHandler(db, filepath.Join(dir, "uploads"), filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	router := RegisterAnimalsRoutes(h, "1K")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Animal & File API is running")

	req := httptest.NewRequest(http.MethodPost, "/animal/select", strings.NewReader(`{"animal":"dog"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dog selected successfully")

	req = httptest.NewRequest(http.MethodPost, "/file/upload", strings.NewReader(strings.Repeat("x", 4096)))
	req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=xyz")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNutritionRoutes(t *testing.T) {
	router, err := RegisterNutritionRoutes(nutrition.NewHandler(stubProducts{}))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<form")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/product/123", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=bread", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"product_name":"Bread"`)
}

func TestNewServers(t *testing.T) {
	dir := t.TempDir()
	db, err := database.NewService(filepath.Join(dir, "data.json"))
	require.NoError(t, err)

	cfg := &config.Config{
		Services:  []string{config.ServiceAnalyzer, config.ServiceAnimals, config.ServiceNutrition},
		Analyzer:  config.AnalyzerConfig{Port: 8001},
		Animals:   config.AnimalsConfig{Port: 8000, UploadsDir: filepath.Join(dir, "uploads"), UploadLimit: "1M"},
		Nutrition: config.NutritionConfig{Port: 5000},
	}
	cfg.Server.WriteTimeout = 2 * time.Minute

	servers, err := NewServers(cfg, Dependencies{Analysis: stubAnalysis{}, DB: db, Products: stubProducts{}})
	require.NoError(t, err)
	require.Len(t, servers, 3)

	assert.Equal(t, config.ServiceAnalyzer, servers[0].Name)
	assert.Equal(t, ":8001", servers[0].Addr)
	assert.Equal(t, ":8000", servers[1].Addr)
	assert.Equal(t, ":5000", servers[2].Addr)
	assert.Equal(t, cfg.Server.WriteTimeout, servers[0].WriteTimeout)

	cfg.Services = []string{config.ServiceNutrition}
	_, err = NewServers(cfg, Dependencies{})
	assert.Error(t, err)
}
