package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("datavita", reg, zap.NewNop()), reg
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("POST", "/api/sql/execute", 200, 100*time.Millisecond, 2048)
	c.RecordHTTPRequest("POST", "/api/sql/execute", 201, 50*time.Millisecond, 128)
	c.RecordHTTPRequest("POST", "/api/sql/execute", 503, time.Second, 64)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/sql/execute", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/sql/execute", "5xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.httpRequestDuration))
}

func TestCollector_RecordExecution(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordExecution("script", "success", 20*time.Millisecond)
	c.RecordExecution("script", "rejected", time.Millisecond)
	c.RecordExecution("frame", "success", 2*time.Second)

	expected := `
# HELP datavita_cell_executions_total Total number of cell executions
# TYPE datavita_cell_executions_total counter
datavita_cell_executions_total{dialect="frame",status="success"} 1
datavita_cell_executions_total{dialect="script",status="rejected"} 1
datavita_cell_executions_total{dialect="script",status="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "datavita_cell_executions_total"))
}

func TestCollector_ObserveEngineSession(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ObserveEngineSession("init", 30*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.engineSessionActive))

	c.ObserveEngineSession("reuse", 0)
	c.ObserveEngineSession("reuse", 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.engineSessionEvents.WithLabelValues("reuse")))

	c.ObserveEngineSession("stop", time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.engineSessionActive))
}

func TestCollector_SQLAndCache(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordSQLQuery("read", "success", time.Millisecond)
	c.RecordSQLQuery("write", "error", time.Millisecond)
	c.RecordCacheHit("sql")
	c.RecordCacheHit("sql")
	c.RecordCacheMiss("sql")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sqlQueriesTotal.WithLabelValues("write", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("sql")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheMisses.WithLabelValues("sql")))
}

func TestCollector_RecordDBConnections(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordDBConnections("metadata", 4, 2)

	assert.Equal(t, 4.0, testutil.ToFloat64(c.dbConnectionsOpen.WithLabelValues("metadata")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dbConnectionsIdle.WithLabelValues("metadata")))
}

func TestCollector_WebSocket(t *testing.T) {
	c, _ := newTestCollector(t)

	c.WebSocketOpened()
	c.WebSocketOpened()
	c.WebSocketClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.wsConnections))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	// 同名指标注册到不同 Registry 不冲突
	assert.NotPanics(t, func() {
		newTestCollector(t)
		newTestCollector(t)
	})
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.code), "code %d", tt.code)
	}
}
