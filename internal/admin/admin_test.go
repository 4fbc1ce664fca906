package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHealthHandler(t *testing.T) {
	cpuSampleWindow = 10 * time.Millisecond

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/health/system", nil), rec)

	require.NoError(t, SystemHealthHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "online", body["status"])
	for _, section := range []string{"runtime", "cpu", "memory", "disk"} {
		assert.Contains(t, body, section)
	}

	runtimeInfo, ok := body["runtime"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, runtimeInfo["go_version"])
	assert.Equal(t, StartTime.Format(time.RFC3339), runtimeInfo["start_time"])
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.50 GB", gb(3*gigabyte/2))
	assert.Equal(t, "12.50%", percent(12.5))
}
