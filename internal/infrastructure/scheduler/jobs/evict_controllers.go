// Package jobs содержит периодические задачи воркера.
package jobs

import (
	"context"

	"github.com/skill-ascent/skill-ascent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVICT IDLE CONTROLLERS JOB
// ══════════════════════════════════════════════════════════════════════════════

// Evictor освобождает контроллеры, которые давно не использовались.
type Evictor interface {
	Evict() int
	Len() int
}

// EvictControllersConfig содержит настройки задачи.
type EvictControllersConfig struct {
	// WarnAbove логирует предупреждение, если после очистки контроллеров больше порога.
	// 0 отключает предупреждение.
	WarnAbove int
}

// DefaultEvictControllersConfig возвращает конфигурацию по умолчанию.
func DefaultEvictControllersConfig() EvictControllersConfig {
	return EvictControllersConfig{
		WarnAbove: 10000,
	}
}

// EvictControllersJob удаляет из реестра контроллеры простаивающих пользователей.
// Следующее событие пользователя создаст контроллер заново.
type EvictControllersJob struct {
	registry Evictor
	log      *logger.Logger
	config   EvictControllersConfig
}

// NewEvictControllersJob создаёт задачу очистки.
func NewEvictControllersJob(registry Evictor, log *logger.Logger, config EvictControllersConfig) *EvictControllersJob {
	if log == nil {
		log = logger.Nop()
	}
	return &EvictControllersJob{
		registry: registry,
		log:      log.With(logger.Component("evict_job")),
		config:   config,
	}
}

// Name возвращает имя задачи.
func (j *EvictControllersJob) Name() string {
	return "evict_idle_controllers"
}

// Description возвращает описание задачи.
func (j *EvictControllersJob) Description() string {
	return "Удаляет контроллеры достижений, простаивающие дольше IdleTTL"
}

// Run выполняет очистку.
func (j *EvictControllersJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	evicted := j.registry.Evict()
	live := j.registry.Len()

	if evicted > 0 {
		j.log.Info("idle controllers evicted",
			logger.Int("evicted", evicted),
			logger.Int("live", live))
	}
	if j.config.WarnAbove > 0 && live > j.config.WarnAbove {
		j.log.Warn("too many live controllers",
			logger.Int("live", live),
			logger.Int("threshold", j.config.WarnAbove))
	}
	return nil
}
