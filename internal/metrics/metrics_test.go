package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.IncDecision(LayerGateway, "")
	m.IncDecision(LayerGateway, "TRIAL_EXPIRED")
	m.IncDecision(LayerProcedure, "TRIAL_EXPIRED")
	m.IncCheckFailure(LayerGateway)
	m.ObserveProcedure("profile.get", "OK", 10*time.Millisecond)
	m.IncBillingEvent("payment.failed", "applied")
	m.IncTrialReminder("sent")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues(LayerGateway, "ALLOW")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues(LayerGateway, "TRIAL_EXPIRED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues(LayerProcedure, "TRIAL_EXPIRED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkFailures.WithLabelValues(LayerGateway)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.procedureCalls.WithLabelValues("profile.get", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.billingEvents.WithLabelValues("payment.failed", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trialReminders.WithLabelValues("sent")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncDecision(LayerGateway, "")
		m.IncCheckFailure(LayerProcedure)
		m.ObserveProcedure("x", "OK", time.Second)
		m.IncBillingEvent("e", "r")
		m.IncTrialReminder("sent")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncDecision(LayerGateway, "ACCOUNT_SUSPENDED")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `stable_manager_entitlement_decisions_total{code="ACCOUNT_SUSPENDED",layer="gateway"} 1`)
}
