package jobs

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/messaging"
	"github.com/skill-ascent/skill-ascent/pkg/logger"
)

type fakeRegistry struct {
	live    int
	idle    int
	evicted int
}

func (r *fakeRegistry) Evict() int {
	n := r.idle
	r.live -= n
	r.idle = 0
	r.evicted += n
	return n
}

func (r *fakeRegistry) Len() int { return r.live }

type fakeBus struct{ metrics *messaging.EventBusMetrics }

func (b fakeBus) Metrics() *messaging.EventBusMetrics { return b.metrics }

func jsonLogger(buf *bytes.Buffer) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = buf
	opts.Format = "json"
	opts.Level = logger.LevelDebug
	return logger.New(opts)
}

func TestEvictControllersJob_Run(t *testing.T) {
	reg := &fakeRegistry{live: 5, idle: 3}
	var buf bytes.Buffer

	job := NewEvictControllersJob(reg, jsonLogger(&buf), EvictControllersConfig{WarnAbove: 1})
	assert.Equal(t, "evict_idle_controllers", job.Name())
	assert.NotEmpty(t, job.Description())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, reg.evicted)
	assert.Equal(t, 2, reg.live)
	assert.Contains(t, buf.String(), "idle controllers evicted")
	assert.Contains(t, buf.String(), "too many live controllers")
}

func TestEvictControllersJob_CancelledContext(t *testing.T) {
	reg := &fakeRegistry{live: 1, idle: 1}
	job := NewEvictControllersJob(reg, nil, DefaultEvictControllersConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Zero(t, reg.evicted)
}

func TestReportMetricsJob_Run(t *testing.T) {
	m := messaging.NewEventBusMetrics()
	m.RecordPublish(shared.EventSkillsChanged)
	m.RecordPublish(shared.EventBadgeUnlocked)
	m.RecordHandlerExecution(shared.EventSkillsChanged, time.Millisecond, true)

	var buf bytes.Buffer
	job := NewReportMetricsJob(fakeBus{metrics: m}, &fakeRegistry{live: 4}, jsonLogger(&buf))
	assert.Equal(t, "report_metrics", job.Name())

	require.NoError(t, job.Run(context.Background()))
	out := buf.String()
	assert.Contains(t, out, `"controllers":4`)
	assert.Contains(t, out, `"published_total":2`)
	assert.Contains(t, out, `"published_since_last":2`)

	buf.Reset()
	m.RecordPublish(shared.EventSkillsChanged)
	require.NoError(t, job.Run(context.Background()))
	assert.Contains(t, buf.String(), `"published_since_last":1`)
}

func TestReportMetricsJob_BusWithoutMetrics(t *testing.T) {
	var buf bytes.Buffer
	job := NewReportMetricsJob(fakeBus{}, &fakeRegistry{live: 1}, jsonLogger(&buf))

	require.NoError(t, job.Run(context.Background()))
	assert.Contains(t, buf.String(), `"controllers":1`)
	assert.NotContains(t, buf.String(), "published_total")
}
