package database

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct{}

func (fakeStats) AcquiredConns() int32 { return 3 }
func (fakeStats) IdleConns() int32 { return 2 }
func (fakeStats) TotalConns() int32 { return 5 }
func (fakeStats) MaxConns() int32 { return 25 }
func (fakeStats) AcquireCount() int64 { return 40 }
func (fakeStats) AcquireDuration() time.Duration { return 1500 * time.Millisecond }
func (fakeStats) EmptyAcquireCount() int64 { return 4 }
func (fakeStats) CanceledAcquireCount() int64 { return 1 }

func TestPoolCollector_ExportsStats(t *testing.T) {
	c := NewPoolCollector(func() PoolStats { return fakeStats{} }, "identity")

	expected := `
# HELP db_pool_acquired_connections Connections currently checked out of the pool.
# TYPE db_pool_acquired_connections gauge
db_pool_acquired_connections{service="identity"} 3
# HELP db_pool_acquire_wait_seconds_total Time spent waiting to acquire a connection.
# TYPE db_pool_acquire_wait_seconds_total counter
db_pool_acquire_wait_seconds_total{service="identity"} 1.5
# HELP db_pool_canceled_acquires_total Acquires abandoned because the context ended.
# TYPE db_pool_canceled_acquires_total counter
db_pool_canceled_acquires_total{service="identity"} 1
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"db_pool_acquired_connections", "db_pool_acquire_wait_seconds_total", "db_pool_canceled_acquires_total")
	require.NoError(t, err)
	assert.Equal(t, 8, testutil.CollectAndCount(c))
}

func TestRegisterPoolMetrics_RejectsDuplicate(t *testing.T) {
	reg := prometheus.NewRegistry()

	require.NoError(t, RegisterPoolMetrics(reg, nil, "identity"))
	assert.Error(t, RegisterPoolMetrics(reg, nil, "identity"))
}
