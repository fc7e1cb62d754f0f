package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Snapshot(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.RecordRequest("/api/v1/auth/login", "POST", 200, 10*time.Millisecond)
	m.RecordRequest("/api/v1/auth/login", "POST", 200, 30*time.Millisecond)
	m.RecordError("/api/v1/auth/login", "POST", "invalid_credentials")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/v1/auth/login|POST|200"])
	assert.Equal(t, int64(20), snap.AvgLatencyMillis["/api/v1/auth/login|POST|200"])
	assert.Equal(t, int64(1), snap.Errors["/api/v1/auth/login|POST|invalid_credentials"])
	assert.Equal(t, int64(1), m.ErrorCount("/api/v1/auth/login", "POST", "invalid_credentials"))
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "x")
	assert.Zero(t, m.ErrorCount("/", "GET", "x"))
	assert.Empty(t, m.Snapshot().Requests)
}
