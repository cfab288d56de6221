package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.DocumentRead("a.xml")
	m.DocumentRead("b.xml")
	m.DocumentFailed("c.xml", errors.New("bad"))
	m.BatchExtracted()
	m.DateErrors(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.documents.WithLabelValues(ResultRead)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues(ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.dateErrors))
}

func TestMetrics_TrackSessions(t *testing.T) {
	m := New()
	live := 2
	m.TrackSessions(func() int { return live })

	scrape := func() string {
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		return rec.Body.String()
	}

	assert.Contains(t, scrape(), "cfdi_sessions 2")
	live = 0
	assert.Contains(t, scrape(), "cfdi_sessions 0")
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.DocumentRead("a.xml")
	m.ObserveRender("pdf", time.Now())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cfdi_documents_total{result="read"} 1`)
	assert.Contains(t, string(body), `cfdi_report_render_seconds_count{format="pdf"} 1`)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.BatchExtracted()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.batches))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.batches))
}
