package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	applogger "WattWise/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type denyAfter struct{ n int }

func (d *denyAfter) Allow(string) bool {
	d.n--
	return d.n >= 0
}

func TestRateLimitRejects(t *testing.T) {
	e := echo.New()
	rejected := 0
	e.Use(RateLimit(&denyAfter{n: 1}, func() { rejected++ }))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, rejected)
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	e := echo.New()
	e.Use(Recover(applogger.Nop()))
	e.GET("/boom", func(c echo.Context) error { panic(errors.New("boom")) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Metrics(applogger.Nop(), 0))
	var label string
	e.GET("/api/prediction-result/:city", func(c echo.Context) error {
		label = routeLabel(c)
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prediction-result/tokyo", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/prediction-result/:city", label)
	assert.Equal(t, "2xx", statusClass(rec.Code))
}
