package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error {
		return SuccessResponse(c, "pong")
	})
}

func TestServerRegistersHandlersAndMetrics(t *testing.T) {
	s := NewServer([]Handler{pingHandler{}, nil}, WithPort(0))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":"pong"`)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerWithoutMetricsPath(t *testing.T) {
	s := NewServer(nil, WithMetricsPath(""))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerCORS(t *testing.T) {
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.Header.Set(echo.HeaderOrigin, "https://app.example.com")
		return r
	}

	on := NewServer([]Handler{pingHandler{}})
	rec := httptest.NewRecorder()
	on.Echo().ServeHTTP(rec, req())
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	off := NewServer([]Handler{pingHandler{}}, WithCORS(false))
	rec = httptest.NewRecorder()
	off.Echo().ServeHTTP(rec, req())
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
