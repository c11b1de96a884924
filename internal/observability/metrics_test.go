package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "POST", 201, time.Millisecond)
	m.RecordRequest("/api/tickets", "POST", 201, time.Millisecond)
	m.RecordError("/api/tickets", "POST", "FORBIDDEN")
	m.RecordTransition("WORK_STARTED")
	m.RecordNotification("assigned", "delivered")

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.Errors["/api/tickets|POST|FORBIDDEN"])
	assert.Equal(t, int64(1), snap.Transitions["WORK_STARTED"])
	assert.Len(t, snap.Requests, 1)
	for _, count := range snap.Requests {
		assert.Equal(t, int64(2), count)
	}

	snap.Transitions["WORK_STARTED"] = 99
	assert.Equal(t, int64(1), m.Snapshot().Transitions["WORK_STARTED"])
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, 0)
		m.RecordError("/", "GET", "X")
		m.RecordTransition("A")
		m.RecordNotification("k", "o")
		_ = m.Snapshot()
	})
}
