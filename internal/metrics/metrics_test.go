package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistryRegistersCleanly(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewWithRegistry(registry)
	require.NotNil(t, m)

	m.WSConnectionsActive.Inc()
	m.WSEventsTotal.WithLabelValues("office:move").Inc()
	m.OnlineUsers.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSConnectionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSEventsTotal.WithLabelValues("office:move")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OnlineUsers))
}

func TestRecordHTTPRequestBucketsStatus(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "/api/office/presence/:workspaceId", 200, 0.01)
	m.RecordHTTPRequest("GET", "/api/office/presence/:workspaceId", 204, 0.01)
	m.RecordHTTPRequest("GET", "/api/office/presence/:workspaceId", 404, 0.01)
	m.RecordHTTPRequest("GET", "/api/office/presence/:workspaceId", 503, 0.01)

	get := func(status string) float64 {
		return testutil.ToFloat64(
			m.HTTPRequestsTotal.WithLabelValues("GET", "/api/office/presence/:workspaceId", status))
	}
	assert.Equal(t, 2.0, get("2xx"))
	assert.Equal(t, 1.0, get("4xx"))
	assert.Equal(t, 1.0, get("5xx"))
}
