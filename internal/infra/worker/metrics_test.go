package worker

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkerMetrics(reg)

	require.NotNil(t, m.ConfigMetrics)
	assert.NotNil(t, m.SeedRunsTotal)
	assert.NotNil(t, m.SeedDurationSeconds)
	assert.NotNil(t, m.SeedSubjectsTotal)
	assert.NotNil(t, m.SeedLastSuccessTimestamp)

	assert.Panics(t, func() { NewWorkerMetrics(reg) }, "duplicate registration")
}

func TestWorkerMetrics_RecordSeedRun(t *testing.T) {
	m := NewWorkerMetrics(prometheus.NewRegistry())

	m.RecordSeedRun(nil, 7, 0.2)
	m.RecordSeedRun(nil, 3, 0.1)
	m.RecordSeedRun(errors.New("db down"), 99, 0.3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SeedRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SeedRunsTotal.WithLabelValues("failure")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.SeedSubjectsTotal))
	assert.Greater(t, testutil.ToFloat64(m.SeedLastSuccessTimestamp), 0.0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.SeedDurationSeconds))
}
