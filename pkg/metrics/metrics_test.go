package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPipelineCounters(t *testing.T) {
	m := New()

	m.PipelineStarted()
	m.PipelineFinished(true, true, 2*time.Second)
	m.PipelineStarted()
	m.PipelineFinished(false, false, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelinesTotal.WithLabelValues("complete", "multipart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelinesTotal.WithLabelValues("failed", "direct")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activePipelines))

	m.PartUploaded("ok")
	m.PartUploaded("ok")
	m.IncUploadRetries()
	m.Reconciled("partial")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.partUploadsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconcileTotal.WithLabelValues("partial")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PipelineStarted()
		m.PipelineFinished(true, false, time.Second)
		m.PartUploaded("ok")
		m.IncUploadRetries()
		m.Reconciled("deleted")
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	assert.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `ingest_http_requests_total{code="200",method="GET"} 1`)
}
