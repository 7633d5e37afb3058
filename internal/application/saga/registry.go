package saga

import (
	"context"
	"sync"
	"time"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILIATION REGISTRY
// One controller per user. The map lock only guards lookups; reconciliation
// of a user runs under that user's controller lock.
// ══════════════════════════════════════════════════════════════════════════════

// ControllerFactory builds an unbound controller for userID.
// The id lets the factory pick per-user settings such as feature flags.
type ControllerFactory func(userID string) *BadgeReconciliation

// RegistryConfig contains configuration for the registry.
type RegistryConfig struct {
	// IdleTTL - controllers unused for longer are removed by Evict.
	IdleTTL time.Duration

	// WriterID - badges.changed events carrying this writer came from this
	// process and are ignored.
	WriterID string

	// OnEvict is called outside the registry lock for every evicted user.
	OnEvict func(userID string)
}

// DefaultRegistryConfig returns default configuration.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTTL: 15 * time.Minute,
	}
}

// ReconciliationRegistry routes triggers to per-user controllers.
type ReconciliationRegistry struct {
	factory ControllerFactory
	config  RegistryConfig
	log     *logger.Logger
	now     func() time.Time

	mu          sync.Mutex
	controllers map[string]*BadgeReconciliation
}

// NewReconciliationRegistry creates a new registry.
func NewReconciliationRegistry(factory ControllerFactory, config RegistryConfig, log *logger.Logger) *ReconciliationRegistry {
	if log == nil {
		log = logger.Nop()
	}
	return &ReconciliationRegistry{
		factory:     factory,
		config:      config,
		log:         log.With(logger.Component("reconciliation_registry")),
		now:         time.Now,
		controllers: make(map[string]*BadgeReconciliation),
	}
}

// Controller returns the bootstrapped controller of userID, creating it on first use.
// A controller in StateError is retried once before its error is returned.
func (g *ReconciliationRegistry) Controller(ctx context.Context, userID string) (*BadgeReconciliation, error) {
	if userID == "" {
		return nil, shared.ErrUserRequired
	}

	g.mu.Lock()
	ctrl, ok := g.controllers[userID]
	if !ok {
		ctrl = g.factory(userID)
		g.controllers[userID] = ctrl
	}
	g.mu.Unlock()

	switch ctrl.State() {
	case StateUninitialized:
		if _, err := ctrl.UserChanged(ctx, userID); err != nil && ctrl.State() != StateReady {
			return ctrl, err
		}
	case StateError:
		if _, err := ctrl.Retry(ctx); err != nil && ctrl.State() != StateReady {
			return ctrl, err
		}
	}
	return ctrl, nil
}

// SkillsChanged routes a change notification to the user's controller.
// A freshly created controller reconciles during bootstrap.
func (g *ReconciliationRegistry) SkillsChanged(ctx context.Context, userID string) (*CycleResult, error) {
	return g.route(ctx, userID, TriggerSkillsChanged)
}

// BadgesChanged routes an external badge change to the user's controller.
func (g *ReconciliationRegistry) BadgesChanged(ctx context.Context, userID string) (*CycleResult, error) {
	return g.route(ctx, userID, TriggerBadgesChanged)
}

// Notify has the skill.NotifierFunc shape for in-process notification.
func (g *ReconciliationRegistry) Notify(ctx context.Context, userID string) error {
	_, err := g.SkillsChanged(ctx, userID)
	return err
}

// HandleEvent reacts to skills.changed and badges.changed events from the bus.
func (g *ReconciliationRegistry) HandleEvent(event shared.Event) error {
	ctx := context.Background()

	switch event.EventType() {
	case shared.EventSkillsChanged:
		_, err := g.SkillsChanged(ctx, event.AggregateID())
		return err
	case shared.EventBadgesChanged:
		if g.config.WriterID != "" && shared.EventWriter(event) == g.config.WriterID {
			return nil
		}
		// Without a controller there is no snapshot to refresh.
		if !g.has(event.AggregateID()) {
			return nil
		}
		_, err := g.BadgesChanged(ctx, event.AggregateID())
		return err
	}
	return nil
}

func (g *ReconciliationRegistry) route(ctx context.Context, userID string, trigger Trigger) (*CycleResult, error) {
	g.mu.Lock()
	_, existed := g.controllers[userID]
	g.mu.Unlock()

	ctrl, err := g.Controller(ctx, userID)
	if err != nil {
		g.log.Warn("controller unavailable",
			logger.UserID(userID), logger.Operation(string(trigger)), logger.Err(err))
		return nil, err
	}
	if !existed {
		// Bootstrap already reconciled against fresh data.
		return &CycleResult{Trigger: trigger, Skipped: true}, nil
	}

	return ctrl.Handle(ctx, trigger, userID)
}

// Evict removes controllers idle for longer than IdleTTL and returns how many were removed.
func (g *ReconciliationRegistry) Evict() int {
	if g.config.IdleTTL <= 0 {
		return 0
	}
	cutoff := g.now().Add(-g.config.IdleTTL)

	g.mu.Lock()
	var evicted []string
	for userID, ctrl := range g.controllers {
		if ctrl.LastUsed().Before(cutoff) {
			delete(g.controllers, userID)
			evicted = append(evicted, userID)
		}
	}
	g.mu.Unlock()

	if g.config.OnEvict != nil {
		for _, userID := range evicted {
			g.config.OnEvict(userID)
		}
	}
	if len(evicted) > 0 {
		g.log.Debug("evicted idle controllers", logger.Count(len(evicted)))
	}
	return len(evicted)
}

func (g *ReconciliationRegistry) has(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.controllers[userID]
	return ok
}

// Len returns the number of live controllers.
func (g *ReconciliationRegistry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.controllers)
}
