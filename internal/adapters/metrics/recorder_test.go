package metrics_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reactor/internal/adapters/metrics"
	"go.trai.ch/reactor/internal/core/domain"
)

func TestRecorder_WriteTextfile(t *testing.T) {
	r := metrics.NewRecorder(nil)
	r.WorkerAcquired("launched")
	r.WorkerAcquired("reused")
	r.WorkerAcquired("reused")
	r.WorkerDiscarded("age")
	r.PoolSize("host-1", 2)
	r.ModuleFinished(domain.ResultSuccess)
	r.ModuleFinished(domain.ResultFailure)
	r.BuildFinished(domain.ResultFailure, 3*time.Second)

	path := filepath.Join(t.TempDir(), "reactor.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `reactor_worker_acquisitions_total{outcome="reused"} 2`)
	assert.Contains(t, text, `reactor_worker_acquisitions_total{outcome="launched"} 1`)
	assert.Contains(t, text, `reactor_worker_discards_total{reason="age"} 1`)
	assert.Contains(t, text, `reactor_pool_idle_workers{owner="host-1"} 2`)
	assert.Contains(t, text, `reactor_module_results_total{result="FAILURE"} 1`)
	assert.Contains(t, text, `reactor_build_results_total{result="FAILURE"} 1`)
	assert.Contains(t, text, `reactor_build_duration_seconds_count 1`)
	assert.Contains(t, text, `reactor_last_build_result 3`)
}

func TestRecorder_PrivateRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	r := metrics.NewRecorder(reg)
	assert.Same(t, reg, r.Registry())

	// A second recorder on its own registry does not collide.
	other := metrics.NewRecorder(nil)
	other.ModuleFinished(domain.ResultNone)

	r.ModuleFinished(domain.ResultSuccess)
	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestRecorder_WriteTextfileFailure(t *testing.T) {
	r := metrics.NewRecorder(nil)
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "reactor.prom"))
	assert.Error(t, err)
}
