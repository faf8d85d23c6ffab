package listinglock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/landedcost/internal/shared"
)

// Recorder receives lock outcomes for metrics.
type Recorder interface {
	LockAcquire(backend, outcome string)
	LockRelease(backend string)
}

type noopRecorder struct{}

func (noopRecorder) LockAcquire(string, string) {}
func (noopRecorder) LockRelease(string)         {}

// Acquire outcomes reported to the Recorder.
const (
	OutcomeAcquired   = "acquired"
	OutcomeConflict   = "conflict"
	OutcomeReacquired = "reacquired"
	OutcomeError      = "error"
)

// ServiceConfig wires optional collaborators.
type ServiceConfig struct {
	Backend    string
	Policy     ReacquirePolicy
	StaleAfter time.Duration
	Logger     *slog.Logger
	Metrics    Recorder
	Clock      func() time.Time
}

// Service coordinates listing locks over a Store.
type Service struct {
	store      Store
	backend    string
	policy     ReacquirePolicy
	staleAfter time.Duration
	logger     *slog.Logger
	metrics    Recorder
	now        func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, cfg ServiceConfig) *Service {
	s := &Service{
		store:      store,
		backend:    cfg.Backend,
		policy:     cfg.Policy,
		staleAfter: cfg.StaleAfter,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		now:        cfg.Clock,
	}
	if s.backend == "" {
		s.backend = "memory"
	}
	if s.policy == "" {
		s.policy = ReacquireConflict
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Policy returns the configured reacquire policy.
func (s *Service) Policy() ReacquirePolicy { return s.policy }

type acquireInput struct {
	SKU       string `json:"sku" validate:"required"`
	Platform  string `json:"platform" validate:"required"`
	AccountID string `json:"account_id" validate:"required"`
}

// Acquire tries to claim sku for (platform, account). A false result with a
// nil error is a conflict: another owner holds the SKU and nothing changed.
// Callers must not retry blindly; check IsStale first.
func (s *Service) Acquire(ctx context.Context, sku, platform, accountID, reason string) (bool, error) {
	_, ok, err := s.acquire(ctx, sku, platform, accountID, reason)
	return ok, err
}

// acquire returns the inserted lock on success, the holder's lock on a
// same-owner reacquire and the conflicting holder (possibly zero) otherwise.
func (s *Service) acquire(ctx context.Context, sku, platform, accountID, reason string) (Lock, bool, error) {
	in := acquireInput{
		SKU:       strings.TrimSpace(sku),
		Platform:  strings.TrimSpace(platform),
		AccountID: strings.TrimSpace(accountID),
	}
	if err := shared.ValidateStruct("listinglock: acquire", in); err != nil {
		return Lock{}, false, err
	}

	lock := Lock{
		ID:        uuid.NewString(),
		SKU:       in.SKU,
		Platform:  in.Platform,
		AccountID: in.AccountID,
		Reason:    strings.TrimSpace(reason),
		IsActive:  true,
		LockedAt:  s.now().UTC(),
	}
	ok, err := s.store.TryInsert(ctx, lock)
	if err != nil {
		s.metrics.LockAcquire(s.backend, OutcomeError)
		s.logger.Error("listing lock store error", slog.String("sku", in.SKU), slog.String("backend", s.backend), slog.Any("error", err))
		return Lock{}, false, fmt.Errorf("listinglock: acquire %s: %w", in.SKU, err)
	}
	if ok {
		s.metrics.LockAcquire(s.backend, OutcomeAcquired)
		s.logger.Info("listing lock acquired",
			slog.String("sku", lock.SKU),
			slog.String("platform", lock.Platform),
			slog.String("account_id", lock.AccountID),
		)
		return lock, true, nil
	}

	holder, err := s.store.Active(ctx, in.SKU)
	switch {
	case errors.Is(err, ErrNoActiveLock):
		// Released between the insert and the lookup.
	case err != nil:
		s.logger.Warn("listing lock holder lookup failed", slog.String("sku", in.SKU), slog.Any("error", err))
	default:
		if s.policy == ReacquireIdempotent && holder.Owner().Matches(lock.Owner()) {
			s.metrics.LockAcquire(s.backend, OutcomeReacquired)
			return holder, true, nil
		}
	}

	s.metrics.LockAcquire(s.backend, OutcomeConflict)
	s.logger.Info("listing lock conflict",
		slog.String("sku", in.SKU),
		slog.String("requested_by", lock.Owner().String()),
		slog.String("held_by", holder.Owner().String()),
	)
	return holder, false, nil
}

// MustAcquire is Acquire for callers that want a conflict as an error. On
// success it returns the caller's own lock.
func (s *Service) MustAcquire(ctx context.Context, sku, platform, accountID, reason string) (Lock, error) {
	lock, ok, err := s.acquire(ctx, sku, platform, accountID, reason)
	if err != nil {
		return Lock{}, err
	}
	if ok {
		return lock, nil
	}
	if lock.ID == "" {
		return Lock{}, ErrLockConflict
	}
	return lock, fmt.Errorf("%w: held by %s since %s", ErrLockConflict, lock.Owner(), lock.LockedAt.Format(time.RFC3339))
}

// Release deactivates the active lock for sku. Releasing an unlocked SKU
// succeeds without change.
func (s *Service) Release(ctx context.Context, sku string) (bool, error) {
	sku = strings.TrimSpace(sku)
	if err := validateSKU("listinglock: release", sku); err != nil {
		return false, err
	}
	changed, err := s.store.Deactivate(ctx, sku, "", s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("listinglock: release %s: %w", sku, err)
	}
	if changed {
		s.metrics.LockRelease(s.backend)
		s.logger.Info("listing lock released", slog.String("sku", sku))
	} else {
		s.logger.Debug("listing lock already released", slog.String("sku", sku))
	}
	return true, nil
}

// Active returns the active lock for sku or ErrNoActiveLock.
func (s *Service) Active(ctx context.Context, sku string) (Lock, error) {
	sku = strings.TrimSpace(sku)
	if err := validateSKU("listinglock: active", sku); err != nil {
		return Lock{}, err
	}
	return s.store.Active(ctx, sku)
}

// IsLockedBy reports whether (platform, account) holds the active lock.
func (s *Service) IsLockedBy(ctx context.Context, sku, platform, accountID string) (bool, error) {
	lock, err := s.Active(ctx, sku)
	if errors.Is(err, ErrNoActiveLock) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return lock.Owner().Matches(Owner{Platform: platform, AccountID: accountID}), nil
}

// FilterCandidatesByLock marks every candidate other than the current holder
// as locked. Nothing is mutated.
func (s *Service) FilterCandidatesByLock(ctx context.Context, sku string, candidates []Owner) ([]Candidate, error) {
	lock, err := s.Active(ctx, sku)
	held := true
	if errors.Is(err, ErrNoActiveLock) {
		held = false
	} else if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Candidate{
			Owner:  c,
			Locked: held && !lock.Owner().Matches(c),
		})
	}
	return out, nil
}

// IsStale reports whether lock has been held longer than the configured
// stale window. Without a window nothing is stale.
func (s *Service) IsStale(lock Lock) bool {
	if s.staleAfter <= 0 || !lock.IsActive {
		return false
	}
	return s.now().Sub(lock.LockedAt) > s.staleAfter
}

// SweepStale releases every lock older than the stale window and returns the
// number released.
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	if s.staleAfter <= 0 {
		return 0, nil
	}
	now := s.now().UTC()
	locks, err := s.store.ListActiveBefore(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("listinglock: list stale: %w", err)
	}
	released := 0
	for _, lock := range locks {
		changed, err := s.store.Deactivate(ctx, lock.SKU, lock.ID, now)
		if err != nil {
			return released, fmt.Errorf("listinglock: sweep %s: %w", lock.SKU, err)
		}
		if !changed {
			continue
		}
		released++
		s.metrics.LockRelease(s.backend)
		s.logger.Warn("stale listing lock released",
			slog.String("sku", lock.SKU),
			slog.String("held_by", lock.Owner().String()),
			slog.Time("locked_at", lock.LockedAt),
		)
	}
	return released, nil
}

func validateSKU(op, sku string) error {
	if sku == "" {
		return shared.NewValidationError(op, shared.FieldError{Field: "sku", Tag: "required", Message: "is required"})
	}
	return nil
}
