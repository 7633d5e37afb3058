// Package saga contains long-running business processes that orchestrate
// domain operations against collaborator stores.
package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/circuitbreaker"
	"github.com/skill-ascent/skill-ascent/pkg/logger"
	"github.com/skill-ascent/skill-ascent/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE RECONCILIATION SAGA
// Keeps the persisted badge collection of one user consistent with the
// achievement rules applied to that user's skills.
// Flow: Bootstrap (List → Seed | Backfill → Load Skills) → Ready
//
//	Ready → Reconciling → Evaluate → Delta → Commit Batch → Adopt → Publish → Ready
// ══════════════════════════════════════════════════════════════════════════════

// ControllerState is the lifecycle state of a BadgeReconciliation.
type ControllerState int

const (
	// StateUninitialized - no user bound yet (or the user signed out).
	StateUninitialized ControllerState = iota

	// StateLoading - bootstrap in progress.
	StateLoading

	// StateReady - snapshot is loaded and consistent with the store.
	StateReady

	// StateReconciling - an evaluation cycle is running.
	StateReconciling

	// StateError - bootstrap failed; sticky until UserChanged or Retry.
	StateError
)

// String returns the state name.
func (s ControllerState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateReconciling:
		return "reconciling"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Trigger is an event that drives the controller.
type Trigger string

const (
	// TriggerUserChanged - a user signed in or switched accounts.
	TriggerUserChanged Trigger = "user_changed"

	// TriggerSkillsChanged - the skill collection of the bound user changed.
	TriggerSkillsChanged Trigger = "skills_changed"

	// TriggerBadgesChanged - the persisted badge collection changed externally.
	TriggerBadgesChanged Trigger = "badges_changed"

	// TriggerRetry - re-run a failed bootstrap or re-commit a failed delta.
	TriggerRetry Trigger = "retry"
)

// CycleResult describes one reconciliation cycle.
// A cycle that returns both a result and an error failed to commit its delta;
// that failure is non-fatal and the controller stays Ready.
type CycleResult struct {
	// Trigger - what started the cycle.
	Trigger Trigger

	// Skipped - nothing changed since the last successful cycle.
	Skipped bool

	// Written - the updates this cycle actually committed. Badges another
	// writer had already achieved are adopted from the store instead.
	Written []badge.AchievedAtUpdate

	// NewlyAchieved - badges that became achieved in this cycle.
	NewlyAchieved []badge.Badge

	// Adopted - the in-memory snapshot was replaced by the evaluator output.
	Adopted bool

	// WriteErr - non-fatal delta commit failure; the controller stays Ready.
	WriteErr error

	// Duration - wall time of the cycle.
	Duration time.Duration
}

// ReconciliationConfig contains configuration for the controller.
type ReconciliationConfig struct {
	// CatalogBackfill seeds catalog badges missing from an existing collection.
	CatalogBackfill bool

	// SkipUnchanged skips cycles when neither skills nor badges changed.
	SkipUnchanged bool

	// PublishUnlockEvents publishes badge.unlocked per newly achieved badge.
	PublishUnlockEvents bool

	// CycleTimeout bounds a single bootstrap or cycle (0 = caller's context only).
	CycleTimeout time.Duration

	// WriterID identifies this process in badges.changed events.
	WriterID string
}

// DefaultReconciliationConfig returns default configuration.
func DefaultReconciliationConfig() ReconciliationConfig {
	return ReconciliationConfig{
		CatalogBackfill:     true,
		SkipUnchanged:       true,
		PublishUnlockEvents: true,
		CycleTimeout:        30 * time.Second,
	}
}

// ReconciliationDeps bundles the collaborators of the controller.
type ReconciliationDeps struct {
	Skills    skill.Source
	Badges    badge.Store
	Evaluator *badge.Evaluator
	Publisher shared.EventPublisher

	// WriteRetrier wraps UpdateAchievedAt and Seed; ReadRetrier wraps List calls.
	WriteRetrier *retry.Retrier
	ReadRetrier  *retry.Retrier

	// StoreBreaker guards the badge store, SkillBreaker guards the skill source.
	StoreBreaker *circuitbreaker.CircuitBreaker
	SkillBreaker *circuitbreaker.CircuitBreaker

	Logger *logger.Logger

	// Now is used for bookkeeping only; unlock instants come from the Evaluator.
	Now func() time.Time
}

// BadgeReconciliation is the per-user badge reconciliation controller.
// All operations are serialised by one mutex; distinct users never share a controller.
type BadgeReconciliation struct {
	skills       skill.Source
	store        badge.Store
	evaluator    *badge.Evaluator
	publisher    shared.EventPublisher
	writeRetrier *retry.Retrier
	readRetrier  *retry.Retrier
	storeBreaker *circuitbreaker.CircuitBreaker
	skillBreaker *circuitbreaker.CircuitBreaker
	log          *logger.Logger
	now          func() time.Time
	config       ReconciliationConfig

	mu     sync.Mutex
	state  ControllerState
	userID string
	badges []badge.Badge
	skillz []skill.Skill
	err    error

	// Fingerprint and badge snapshot of the last successful cycle.
	lastFingerprint string
	lastBadges      []badge.Badge
	evaluated       bool

	// pinned keeps the first-detected achievedAt of badges whose write failed.
	pinned map[string]time.Time

	lastWriteErr error
	lastUsed     time.Time
}

// NewBadgeReconciliation creates a new controller in StateUninitialized.
func NewBadgeReconciliation(deps ReconciliationDeps, config ReconciliationConfig) *BadgeReconciliation {
	if deps.Evaluator == nil {
		deps.Evaluator = badge.NewEvaluator()
	}
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	if deps.WriteRetrier == nil {
		deps.WriteRetrier = retry.BadgeWriteRetrier(3, 100*time.Millisecond, 2*time.Second, nil)
	}
	if deps.ReadRetrier == nil {
		deps.ReadRetrier = retry.DatabaseRetrier()
	}
	if deps.StoreBreaker == nil {
		deps.StoreBreaker = circuitbreaker.BadgeStoreBreaker(5, 30*time.Second, nil)
	}
	if deps.SkillBreaker == nil {
		deps.SkillBreaker = circuitbreaker.SkillSourceBreaker(5, 30*time.Second, nil)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &BadgeReconciliation{
		skills:       deps.Skills,
		store:        deps.Badges,
		evaluator:    deps.Evaluator,
		publisher:    deps.Publisher,
		writeRetrier: deps.WriteRetrier,
		readRetrier:  deps.ReadRetrier,
		storeBreaker: deps.StoreBreaker,
		skillBreaker: deps.SkillBreaker,
		log:          deps.Logger.With(logger.Component("badge_reconciliation")),
		now:          deps.Now,
		config:       config,
		state:        StateUninitialized,
		pinned:       make(map[string]time.Time),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// Handle dispatches a trigger. UserChanged takes the user id from userID;
// the other triggers ignore it and act on the bound user.
func (r *BadgeReconciliation) Handle(ctx context.Context, trigger Trigger, userID string) (*CycleResult, error) {
	switch trigger {
	case TriggerUserChanged:
		return r.UserChanged(ctx, userID)
	case TriggerSkillsChanged:
		return r.SkillsChanged(ctx)
	case TriggerBadgesChanged:
		return r.BadgesChanged(ctx)
	case TriggerRetry:
		return r.Retry(ctx)
	default:
		return nil, shared.NewDomainError("badge", "Handle", shared.ErrInvalidInput,
			fmt.Sprintf("unknown trigger %q", trigger))
	}
}

// UserChanged binds the controller to userID and bootstraps it.
// An empty userID unbinds the controller and returns ErrUserRequired.
// After a successful bootstrap one reconciliation cycle runs.
func (r *BadgeReconciliation) UserChanged(ctx context.Context, userID string) (*CycleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touch()
	r.reset()

	if userID == "" {
		r.userID = ""
		r.state = StateUninitialized
		return nil, shared.ErrUserRequired
	}

	r.userID = userID
	return r.bootstrapAndReconcile(ctx, TriggerUserChanged)
}

// SkillsChanged reloads the user's skills and runs a cycle.
func (r *BadgeReconciliation) SkillsChanged(ctx context.Context) (*CycleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touch()
	if err := r.requireReady("SkillsChanged"); err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	skills, err := r.loadSkills(ctx)
	if err != nil {
		// The previous snapshot stays authoritative.
		return nil, err
	}
	r.skillz = skills

	return r.reconcile(ctx, TriggerSkillsChanged, false)
}

// BadgesChanged reloads the persisted badges and runs a cycle.
func (r *BadgeReconciliation) BadgesChanged(ctx context.Context) (*CycleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touch()
	if err := r.requireReady("BadgesChanged"); err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	stored, err := r.listBadges(ctx)
	if err != nil {
		return nil, err
	}
	r.badges = badge.Canonicalize(stored)

	return r.reconcile(ctx, TriggerBadgesChanged, false)
}

// Retry re-runs a failed bootstrap, or forces a cycle in Ready so that
// pinned deltas from a failed write are committed again.
func (r *BadgeReconciliation) Retry(ctx context.Context) (*CycleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touch()

	switch r.state {
	case StateError:
		r.reset()
		return r.bootstrapAndReconcile(ctx, TriggerRetry)
	case StateReady:
		ctx, cancel := r.withTimeout(ctx)
		defer cancel()
		return r.reconcile(ctx, TriggerRetry, true)
	case StateUninitialized:
		return nil, shared.ErrUserRequired
	default:
		return nil, shared.ErrControllerBusy
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED READS
// ══════════════════════════════════════════════════════════════════════════════

// State returns the current controller state.
func (r *BadgeReconciliation) State() ControllerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the sticky bootstrap error (nil unless State is StateError).
func (r *BadgeReconciliation) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// LastWriteErr returns the last non-fatal delta commit failure, if any.
func (r *BadgeReconciliation) LastWriteErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastWriteErr
}

// UserID returns the bound user id.
func (r *BadgeReconciliation) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID
}

// Snapshot returns a copy of the in-memory badge collection.
func (r *BadgeReconciliation) Snapshot() []badge.Badge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return badge.CloneAll(r.badges)
}

// Skills returns a copy of the last loaded skills.
func (r *BadgeReconciliation) Skills() []skill.Skill {
	r.mu.Lock()
	defer r.mu.Unlock()
	return skill.CloneAll(r.skillz)
}

// BadgeByID looks up a badge in the in-memory snapshot.
func (r *BadgeReconciliation) BadgeByID(id string) (badge.Badge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return badge.FindByID(r.badges, id)
}

// NewlyAchieved returns badges achieved in next but not in prev.
func (r *BadgeReconciliation) NewlyAchieved(prev, next []badge.Badge) []badge.Badge {
	return badge.NewlyAchieved(prev, next)
}

// PendingUnlocks returns the badge ids whose achievedAt is pinned after a failed write.
func (r *BadgeReconciliation) PendingUnlocks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.pinned))
	for _, b := range r.badges {
		if _, ok := r.pinned[b.ID]; ok {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// LastUsed returns when the controller was last driven by an event.
func (r *BadgeReconciliation) LastUsed() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUsed
}

// ══════════════════════════════════════════════════════════════════════════════
// BOOTSTRAP
// ══════════════════════════════════════════════════════════════════════════════

func (r *BadgeReconciliation) bootstrapAndReconcile(ctx context.Context, trigger Trigger) (*CycleResult, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	r.state = StateLoading
	log := r.log.With(logger.UserID(r.userID), logger.Operation("bootstrap"))

	if err := r.bootstrap(ctx); err != nil {
		r.state = StateError
		r.err = err
		log.Error("badge bootstrap failed", logger.Err(err))
		return nil, err
	}

	r.state = StateReady
	log.Debug("badge bootstrap completed", logger.Count(len(r.badges)))

	return r.reconcile(ctx, trigger, true)
}

func (r *BadgeReconciliation) bootstrap(ctx context.Context) error {
	stored, err := r.listBadges(ctx)
	if err != nil {
		return err
	}

	if len(stored) == 0 {
		catalog := badge.Catalog()
		if err := r.seed(ctx, catalog); err != nil {
			return err
		}
		r.badges = catalog
		r.publish(shared.NewBadgesSeededEvent(r.userID, badge.IDs(catalog), false))
	} else {
		r.badges = badge.Canonicalize(stored)
		badge.SortByID(r.badges)

		if r.config.CatalogBackfill {
			missing := badge.MissingFrom(r.badges)
			if len(missing) > 0 {
				if err := r.seed(ctx, missing); err != nil {
					return err
				}
				r.badges = badge.Merge(r.badges, missing)
				r.publish(shared.NewBadgesSeededEvent(r.userID, badge.IDs(missing), true))
			}
		}
	}

	skills, err := r.loadSkills(ctx)
	if err != nil {
		return err
	}
	r.skillz = skills

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILIATION CYCLE
// ══════════════════════════════════════════════════════════════════════════════

// reconcile runs one cycle. Must be called with r.mu held and r.state == StateReady.
func (r *BadgeReconciliation) reconcile(ctx context.Context, trigger Trigger, force bool) (*CycleResult, error) {
	start := r.now()
	result := &CycleResult{Trigger: trigger}
	log := r.log.With(logger.UserID(r.userID), logger.Operation(string(trigger)))

	fingerprint := skill.Fingerprint(r.skillz)
	if !force && r.skipUnchanged(fingerprint) {
		result.Skipped = true
		log.Debug("badge cycle skipped, nothing changed")
		return result, nil
	}

	r.state = StateReconciling
	defer func() {
		r.state = StateReady
		result.Duration = r.now().Sub(start)
	}()

	next := r.applyPins(r.evaluator.Evaluate(r.skillz, r.badges))
	delta := badge.Delta(r.badges, next)

	if len(delta) == 0 {
		if !badge.Equal(next, r.badges) {
			r.badges = next
			result.Adopted = true
		}
		r.remember(fingerprint)
		return result, nil
	}

	applied, err := r.commit(ctx, delta)
	if err != nil {
		for _, u := range delta {
			if _, ok := r.pinned[u.BadgeID]; !ok {
				r.pinned[u.BadgeID] = u.AchievedAt
			}
		}
		r.lastWriteErr = err
		result.WriteErr = err
		r.publish(shared.NewBadgeWriteFailedEvent(r.userID, updateIDs(delta), err))
		log.Warn("badge delta commit failed, keeping previous snapshot",
			logger.Count(len(delta)), logger.Err(err))
		return result, err
	}

	// Rows the store did not change were already achieved by another writer.
	consistent := true
	if len(applied) < len(delta) {
		next, consistent = r.adoptPersisted(ctx, next, delta, applied)
	}

	newly := writtenBy(badge.NewlyAchieved(r.badges, next), applied)
	r.badges = next
	for _, u := range delta {
		delete(r.pinned, u.BadgeID)
	}
	r.lastWriteErr = nil
	if consistent {
		r.remember(fingerprint)
	} else {
		r.evaluated = false
	}

	result.Written = applied
	result.NewlyAchieved = newly
	result.Adopted = true

	if len(applied) > 0 {
		r.publish(shared.NewBadgesChangedEvent(r.userID, updateIDs(applied), r.config.WriterID))
	}
	if r.config.PublishUnlockEvents {
		for _, b := range newly {
			r.publish(shared.NewBadgeUnlockedEvent(r.userID, b.ID, b.Name, string(b.CriteriaType), *b.AchievedAt))
		}
	}

	if len(newly) > 0 {
		log.Info("badges unlocked",
			logger.Strings("badge_ids", badge.IDs(newly)),
			logger.Count(len(applied)))
	}
	if skipped := len(delta) - len(applied); skipped > 0 {
		log.Debug("badges already achieved by another writer, adopted stored instants",
			logger.Count(skipped))
	}

	return result, nil
}

// adoptPersisted replaces the instants of badges this commit did not write
// with the stored ones. When the store cannot be read those badges keep their
// previous values and false is returned, so the next cycle evaluates again.
func (r *BadgeReconciliation) adoptPersisted(
	ctx context.Context,
	next []badge.Badge,
	delta, applied []badge.AchievedAtUpdate,
) ([]badge.Badge, bool) {
	written := make(map[string]bool, len(applied))
	for _, u := range applied {
		written[u.BadgeID] = true
	}

	stored, err := r.listBadges(ctx)
	if err != nil {
		r.log.Warn("failed to reload badges written elsewhere",
			logger.UserID(r.userID), logger.Err(err))
	}
	stored = badge.Canonicalize(stored)

	out := badge.CloneAll(next)
	for _, u := range delta {
		if written[u.BadgeID] {
			continue
		}
		for i := range out {
			if out[i].ID != u.BadgeID {
				continue
			}
			source := r.badges
			if err == nil {
				source = stored
			}
			out[i].AchievedAt = nil
			if b, ok := badge.FindByID(source, u.BadgeID); ok && b.AchievedAt != nil {
				out[i] = out[i].WithAchievedAt(*b.AchievedAt)
			}
		}
	}
	return out, err == nil
}

func (r *BadgeReconciliation) skipUnchanged(fingerprint string) bool {
	if !r.config.SkipUnchanged || !r.evaluated || len(r.pinned) > 0 {
		return false
	}
	return fingerprint == r.lastFingerprint && badge.Equal(r.badges, r.lastBadges)
}

func (r *BadgeReconciliation) remember(fingerprint string) {
	r.lastFingerprint = fingerprint
	r.lastBadges = badge.CloneAll(r.badges)
	r.evaluated = true
}

// applyPins replaces fresh unlock instants by the instants detected before a
// failed write. Pins of badges no longer satisfied are dropped.
func (r *BadgeReconciliation) applyPins(next []badge.Badge) []badge.Badge {
	if len(r.pinned) == 0 {
		return next
	}

	current := make(map[string]bool, len(r.badges))
	for _, b := range r.badges {
		current[b.ID] = b.IsAchieved()
	}

	for id := range r.pinned {
		found := false
		for i := range next {
			if next[i].ID != id || !next[i].IsAchieved() || current[id] {
				continue
			}
			next[i] = next[i].WithAchievedAt(r.pinned[id])
			found = true
		}
		if !found {
			delete(r.pinned, id)
		}
	}
	return next
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE ACCESS
// ══════════════════════════════════════════════════════════════════════════════

func (r *BadgeReconciliation) listBadges(ctx context.Context) ([]badge.Badge, error) {
	var stored []badge.Badge
	err := r.readRetrier.Do(ctx, func(ctx context.Context) error {
		var err error
		stored, err = circuitbreaker.ExecuteWithData(ctx, r.storeBreaker, func(ctx context.Context) ([]badge.Badge, error) {
			return r.store.List(ctx, r.userID)
		})
		return transient(err)
	})
	if err != nil {
		return nil, classify("ListBadges", shared.ErrReadFailure, "failed to read badges", err)
	}
	return stored, nil
}

func (r *BadgeReconciliation) loadSkills(ctx context.Context) ([]skill.Skill, error) {
	var skills []skill.Skill
	err := r.readRetrier.Do(ctx, func(ctx context.Context) error {
		var err error
		skills, err = circuitbreaker.ExecuteWithData(ctx, r.skillBreaker, func(ctx context.Context) ([]skill.Skill, error) {
			return r.skills.List(ctx, r.userID)
		})
		return transient(err)
	})
	if err != nil {
		return nil, classify("ListSkills", shared.ErrReadFailure, "failed to read skills", err)
	}
	return skills, nil
}

func (r *BadgeReconciliation) seed(ctx context.Context, badges []badge.Badge) error {
	err := r.writeRetrier.Do(ctx, func(ctx context.Context) error {
		return transient(r.storeBreaker.Execute(ctx, func(ctx context.Context) error {
			return r.store.Seed(ctx, r.userID, badges)
		}))
	})
	if err != nil {
		return classify("Seed", shared.ErrWriteFailure, "failed to seed badges", err)
	}
	return nil
}

// commit writes delta and returns the updates the store actually applied.
func (r *BadgeReconciliation) commit(ctx context.Context, delta []badge.AchievedAtUpdate) ([]badge.AchievedAtUpdate, error) {
	var applied []badge.AchievedAtUpdate
	err := r.writeRetrier.Do(ctx, func(ctx context.Context) error {
		var err error
		applied, err = circuitbreaker.ExecuteWithData(ctx, r.storeBreaker, func(ctx context.Context) ([]badge.AchievedAtUpdate, error) {
			return r.store.UpdateAchievedAt(ctx, r.userID, delta)
		})
		return transient(err)
	})
	if err != nil {
		return nil, classify("UpdateAchievedAt", shared.ErrWriteFailure, "failed to commit badge delta", err)
	}
	return applied, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// classify maps a collaborator failure onto exactly one store error kind.
func classify(op string, kind error, message string, err error) error {
	var de *shared.DomainError
	switch {
	case circuitbreaker.IsRejected(err), errors.Is(err, shared.ErrStoreUnavailable):
		return shared.WrapError("badge", op, shared.ErrStoreUnavailable, "store is unavailable", err)
	case errors.As(err, &de) && (errors.Is(err, shared.ErrReadFailure) || errors.Is(err, shared.ErrWriteFailure)):
		return err
	default:
		return shared.WrapError("badge", op, kind, message, err)
	}
}

// transient marks store failures worth another attempt. Breaker rejections,
// cancellations and validation errors are returned as is.
func transient(err error) error {
	switch {
	case err == nil:
		return nil
	case circuitbreaker.IsRejected(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		shared.IsValidation(err),
		shared.IsNotFound(err):
		return err
	default:
		return retry.Retryable(err)
	}
}

func (r *BadgeReconciliation) requireReady(op string) error {
	switch r.state {
	case StateReady:
		return nil
	case StateError:
		return r.err
	case StateUninitialized:
		return shared.ErrUserRequired
	default:
		return shared.NewDomainError("badge", op, shared.ErrInvalidState,
			fmt.Sprintf("controller is %s", r.state))
	}
}

func (r *BadgeReconciliation) reset() {
	r.badges = nil
	r.skillz = nil
	r.err = nil
	r.lastWriteErr = nil
	r.lastFingerprint = ""
	r.lastBadges = nil
	r.evaluated = false
	r.pinned = make(map[string]time.Time)
}

func (r *BadgeReconciliation) touch() {
	r.lastUsed = r.now()
}

func (r *BadgeReconciliation) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.CycleTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.config.CycleTimeout)
}

func (r *BadgeReconciliation) publish(event shared.Event) {
	if err := r.publisher.Publish(event); err != nil {
		r.log.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err))
	}
}

// writtenBy keeps the badges whose achievedAt was written by applied.
func writtenBy(badges []badge.Badge, applied []badge.AchievedAtUpdate) []badge.Badge {
	if len(badges) == 0 {
		return nil
	}
	written := make(map[string]bool, len(applied))
	for _, u := range applied {
		written[u.BadgeID] = true
	}
	out := make([]badge.Badge, 0, len(badges))
	for _, b := range badges {
		if written[b.ID] {
			out = append(out, b)
		}
	}
	return out
}

func updateIDs(updates []badge.AchievedAtUpdate) []string {
	ids := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.BadgeID
	}
	return ids
}
