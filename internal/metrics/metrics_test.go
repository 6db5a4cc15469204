package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordActivity(t *testing.T) {
	before := testutil.ToFloat64(activityTransitionsTotal.WithLabelValues("BAS", "ok"))
	RecordActivity("BAS", "ok")
	RecordActivity("BAS", "ok")
	after := testutil.ToFloat64(activityTransitionsTotal.WithLabelValues("BAS", "ok"))
	assert.Equal(t, before+2, after)
}

func TestRecordShortage(t *testing.T) {
	before := testutil.ToFloat64(backflushShortagesTotal.WithLabelValues("allocation"))
	RecordShortage("allocation")
	assert.Equal(t, before+1, testutil.ToFloat64(backflushShortagesTotal.WithLabelValues("allocation")))
}

func TestHandlerExposesMESMetrics(t *testing.T) {
	RecordProductionEntry("completed")
	RecordBatchNumber()
	ObserveERPRequest("material_issue", "ok", 0.2)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, name := range []string{
		"mes_production_entries_total",
		"mes_batch_numbers_generated_total",
		"mes_erp_request_duration_seconds",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
