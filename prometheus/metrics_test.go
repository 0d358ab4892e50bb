package prometheus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitMetrics("test", reg)

	e := echo.New()
	e.Use(MetricsMiddleware)
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/missing", func(c echo.Context) error { return c.NoContent(http.StatusNotFound) })

	for _, path := range []string{"/ok", "/ok", "/missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("GET", "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(StatusCodeCategoryCounter.WithLabelValues("4xx", "GET", "/missing")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_http_requests_total"))
}

func TestRecordHelpers(t *testing.T) {
	InitMetrics("helpers", prometheus.NewRegistry())

	RecordOperation("client", "create")
	RecordEventPublished("work_order.created", nil)
	RecordEventPublished("work_order.created", errors.New("down"))
	TrackDBOperation("create_client")(time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(EntityOperationsCounter.WithLabelValues("client", "create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(EventsPublishedCounter.WithLabelValues("work_order.created", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(EventsPublishedCounter.WithLabelValues("work_order.created", "error")))
}
