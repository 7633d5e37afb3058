package jobs

import (
	"context"

	"github.com/skill-ascent/skill-ascent/internal/infrastructure/messaging"
	"github.com/skill-ascent/skill-ascent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT METRICS JOB
// ══════════════════════════════════════════════════════════════════════════════

// BusMetrics отдаёт счётчики шины событий.
type BusMetrics interface {
	Metrics() *messaging.EventBusMetrics
}

// ReportMetricsJob периодически пишет в лог счётчики шины и размер реестра.
type ReportMetricsJob struct {
	bus      BusMetrics
	registry Evictor
	log      *logger.Logger

	lastPublished int64
}

// NewReportMetricsJob создаёт задачу отчёта.
func NewReportMetricsJob(bus BusMetrics, registry Evictor, log *logger.Logger) *ReportMetricsJob {
	if log == nil {
		log = logger.Nop()
	}
	return &ReportMetricsJob{
		bus:      bus,
		registry: registry,
		log:      log.With(logger.Component("metrics_job")),
	}
}

// Name возвращает имя задачи.
func (j *ReportMetricsJob) Name() string {
	return "report_metrics"
}

// Description возвращает описание задачи.
func (j *ReportMetricsJob) Description() string {
	return "Пишет в лог метрики шины событий и число живых контроллеров"
}

// Run снимает снапшот метрик и логирует его.
// Шина без метрик (EnableMetrics=false) пропускается.
func (j *ReportMetricsJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := []logger.Field{logger.Int("controllers", j.registry.Len())}

	if m := j.bus.Metrics(); m != nil {
		snap := m.Snapshot()
		fields = append(fields,
			logger.Int64("published_total", snap.TotalPublished),
			logger.Int64("published_since_last", snap.TotalPublished-j.lastPublished),
			logger.Int64("handler_failures", snap.HandlerFailures),
			logger.Float64("handler_success_rate", snap.HandlerSuccessRate),
			logger.Duration("handler_avg", snap.AverageHandlerDuration))
		j.lastPublished = snap.TotalPublished
	}

	j.log.Info("worker metrics", fields...)
	return nil
}
