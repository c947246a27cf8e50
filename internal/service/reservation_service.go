package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/locker-service/internal/auth"
	"github.com/spec-kit/locker-service/internal/config"
	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/events"
	"github.com/spec-kit/locker-service/internal/repository"
	apperrors "github.com/spec-kit/locker-service/pkg/util/errorutil"
)

const tokenAttempts = 5

// TokenGenerator produces reservation tokens.
type TokenGenerator func() string

// NewTokenGenerator returns hex UUIDv4 tokens truncated to length.
func NewTokenGenerator(length int) TokenGenerator {
	return func() string {
		raw := strings.ReplaceAll(uuid.NewString(), "-", "")
		if length > 0 && length < len(raw) {
			return raw[:length]
		}
		return raw
	}
}

// SweepTrigger requests an asynchronous expiry sweep.
type SweepTrigger interface {
	Trigger()
}

// ReservationDependencies bundles collaborators for the reservation service.
type ReservationDependencies struct {
	ReservationRepo repository.ReservationRepository
	LockerRepo      repository.LockerRepository
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	Tokens          TokenGenerator
	Clock           func() time.Time
}

// ReservationService drives the reservation lifecycle.
type ReservationService struct {
	reservations repository.ReservationRepository
	lockers      repository.LockerRepository
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	tokens       TokenGenerator
	now          func() time.Time
	holdTTL      time.Duration
	sweeps       SweepTrigger
}

// NewReservationService constructs the service.
func NewReservationService(cfg config.Config, deps ReservationDependencies) *ReservationService {
	svc := &ReservationService{
		reservations: deps.ReservationRepo,
		lockers:      deps.LockerRepo,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		tokens:       deps.Tokens,
		now:          deps.Clock,
		holdTTL:      cfg.Reservation.HoldTTL(),
	}
	if svc.tokens == nil {
		svc.tokens = NewTokenGenerator(cfg.Reservation.TokenLength)
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// SetSweepTrigger wires the sweeper once it exists.
func (s *ReservationService) SetSweepTrigger(trigger SweepTrigger) {
	s.sweeps = trigger
}

// HoldTTL exposes the configured hold duration.
func (s *ReservationService) HoldTTL() time.Duration {
	return s.holdTTL
}

// Create opens a pending reservation of lockerID for userID.
func (s *ReservationService) Create(ctx context.Context, principal *auth.Principal, lockerID string, userID int64) (*domain.Reservation, error) {
	if !principal.CanActFor(userID) {
		return nil, apperrors.NewForbidden("cannot reserve on behalf of another user")
	}
	if err := validateLockerID(lockerID); err != nil {
		return nil, err
	}

	var res *domain.Reservation
	var err error
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		res = &domain.Reservation{
			LockerID:      lockerID,
			UserID:        userID,
			Token:         s.tokens(),
			Status:        domain.ReservationStatusPending,
			CreatedAt:     s.now(),
		}
		err = s.reservations.Create(ctx, res)
		if !repository.IsConstraint(err, repository.ConstraintReservationToken) {
			break
		}
		s.logger.Warn("reservation token collision", zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return nil, storeError(err)
	}

	s.publish(ctx, events.EventReservationCreated, res, principal, nil)
	if s.sweeps != nil {
		s.sweeps.Trigger()
	}
	return res, nil
}

// Reserve moves the owner's pending reservation to reserved with a fresh
// token. The hold keeps aging from creation.
func (s *ReservationService) Reserve(ctx context.Context, principal *auth.Principal, lockerID string, userID int64) (*domain.Reservation, error) {
	if !principal.IsUser(userID) {
		return nil, apperrors.NewForbidden("only the reservation owner may reserve")
	}
	current, err := s.ownedLive(ctx, lockerID, userID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.ReservationStatusReserved {
		return current, nil
	}
	if !current.Status.CanTransitionTo(domain.ReservationStatusReserved) {
		return nil, apperrors.NewInvalidStateTransition(string(current.Status), string(domain.ReservationStatusReserved))
	}

	var updated *domain.Reservation
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token := s.tokens()
		updated, err = s.transition(ctx, current, domain.ReservationStatusReserved, &token)
		if !repository.IsConstraint(err, repository.ConstraintReservationToken) {
			break
		}
	}
	if err != nil {
		return nil, storeError(err)
	}

	s.publish(ctx, events.EventReservationReserved, updated, principal, events.StatusChangedPayload{
		OldStatus: current.Status,
		NewStatus: updated.Status,
	})
	return updated, nil
}

// Confirm marks the caller's live reservation on lockerID as ongoing.
// Confirming an ongoing reservation is a no-op.
func (s *ReservationService) Confirm(ctx context.Context, principal *auth.Principal, lockerID string) (*domain.Reservation, error) {
	if principal == nil || principal.User == nil {
		return nil, apperrors.NewForbidden("only the reservation owner may confirm")
	}
	current, err := s.ownedLive(ctx, lockerID, principal.User.ID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.ReservationStatusOngoing {
		return current, nil
	}

	updated, err := s.transition(ctx, current, domain.ReservationStatusOngoing, nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventReservationConfirmed, updated, principal, events.StatusChangedPayload{
		OldStatus: current.Status,
		NewStatus: updated.Status,
	})
	return updated, nil
}

// End releases lockerID. It returns nil without error when the locker has
// no live reservation, so repeated calls converge on the idle state.
func (s *ReservationService) End(ctx context.Context, principal *auth.Principal, lockerID string) (*domain.Reservation, error) {
	if err := validateLockerID(lockerID); err != nil {
		return nil, err
	}
	current, err := s.reservations.GetLiveByLocker(ctx, lockerID)
	if err != nil {
		if !isNoRows(err) {
			return nil, storeError(err)
		}
		exists, err := s.lockers.Exists(ctx, lockerID)
		if err != nil {
			return nil, storeError(err)
		}
		if !exists {
			return nil, apperrors.NewNotFound("locker", map[string]any{"locker_id": lockerID})
		}
		return nil, nil
	}
	if !principal.CanActFor(current.UserID) {
		return nil, apperrors.NewForbidden("reservation belongs to another user")
	}

	updated, err := s.transition(ctx, current, domain.ReservationStatusIdle, nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventReservationEnded, updated, principal, events.StatusChangedPayload{
		OldStatus: current.Status,
		NewStatus: updated.Status,
	})
	return updated, nil
}

// Delete removes userID's live reservation on lockerID.
func (s *ReservationService) Delete(ctx context.Context, principal *auth.Principal, lockerID string, userID int64) (*domain.Reservation, error) {
	if !principal.CanActFor(userID) {
		return nil, apperrors.NewForbidden("cannot delete another user's reservation")
	}
	if err := validateLockerID(lockerID); err != nil {
		return nil, err
	}
	deleted, err := s.reservations.DeleteLive(ctx, lockerID, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewNotFound("reservation", map[string]any{"locker_id": lockerID, "user_id": userID})
		}
		return nil, storeError(err)
	}
	s.publish(ctx, events.EventReservationDeleted, deleted, principal, nil)
	return deleted, nil
}

// ExpireStale deletes unconfirmed holds older than the hold TTL and returns
// how many were removed. Rows already gone or confirmed are not touched.
func (s *ReservationService) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.holdTTL)
	expired, err := s.reservations.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, storeError(err)
	}
	for i := range expired {
		s.publish(ctx, events.EventReservationExpired, &expired[i], nil, nil)
	}
	return len(expired), nil
}

// ListByUser returns userID's reservations, newest first.
func (s *ReservationService) ListByUser(ctx context.Context, principal *auth.Principal, userID int64) ([]domain.Reservation, error) {
	if !principal.CanActFor(userID) {
		return nil, apperrors.NewForbidden("cannot view another user's reservations")
	}
	list, err := s.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	return list, nil
}

// ListAll returns every reservation joined with its locker.
func (s *ReservationService) ListAll(ctx context.Context) ([]domain.ReservationWithLocker, error) {
	list, err := s.reservations.ListWithLockers(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return list, nil
}

// TimeRemaining reports hold timing for the live reservation on a locker.
type TimeRemaining struct {
	LockerID         string
	Status           domain.ReservationStatus
	MinutesElapsed   int
	MinutesRemaining *int
	ExpiresAt        *time.Time
}

// TimeRemaining returns minutes elapsed since the reservation was created and, for
// unconfirmed holds, how long until the sweep may remove it.
func (s *ReservationService) TimeRemaining(ctx context.Context, lockerID string) (*TimeRemaining, error) {
	if err := validateLockerID(lockerID); err != nil {
		return nil, err
	}
	res, err := s.reservations.GetLiveByLocker(ctx, lockerID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewNotFound("reservation", map[string]any{"locker_id": lockerID})
		}
		return nil, storeError(err)
	}

	now := s.now()
	out := &TimeRemaining{
		LockerID:       res.LockerID,
		Status:         res.Status,
		MinutesElapsed: int(now.Sub(res.CreatedAt) / time.Minute),
	}
	if expires := res.ExpiresAt(s.holdTTL); !expires.IsZero() {
		remaining := 0
		if left := expires.Sub(now); left > 0 {
			remaining = int(left / time.Minute)
		}
		out.MinutesRemaining = &remaining
		out.ExpiresAt = &expires
	}
	return out, nil
}

func (s *ReservationService) ownedLive(ctx context.Context, lockerID string, userID int64) (*domain.Reservation, error) {
	if err := validateLockerID(lockerID); err != nil {
		return nil, err
	}
	res, err := s.reservations.GetLiveByLocker(ctx, lockerID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewNotFound("reservation", map[string]any{"locker_id": lockerID})
		}
		return nil, storeError(err)
	}
	if res.UserID != userID {
		return nil, apperrors.NewForbidden("reservation belongs to another user")
	}
	return res, nil
}

// transition applies a conditional status change. When the row moved under
// us it is re-read once: reaching the target anyway counts as success.
func (s *ReservationService) transition(ctx context.Context, current *domain.Reservation, to domain.ReservationStatus, token *string) (*domain.Reservation, error) {
	updated, err := s.reservations.Transition(ctx, domain.ReservationTransition{
		ID:    current.ID,
		From:  domain.SourcesFor(to),
		To:    to,
		Token: token,
	})
	if err == nil {
		return updated, nil
	}
	if repository.IsConstraint(err, repository.ConstraintReservationToken) {
		return nil, err
	}
	if !isNoRows(err) {
		return nil, storeError(err)
	}

	latest, err := s.reservations.GetLiveByLocker(ctx, current.LockerID)
	switch {
	case err == nil && latest.ID == current.ID && latest.Status == to:
		return latest, nil
	case isNoRows(err) && to == domain.ReservationStatusIdle:
		released := *current
		released.Status = domain.ReservationStatusIdle
		released.Token = ""
		return &released, nil
	case err != nil && !isNoRows(err):
		return nil, storeError(err)
	}
	return nil, apperrors.NewInvalidStateTransition(string(current.Status), string(to))
}

func (s *ReservationService) publish(ctx context.Context, eventType events.EventType, res *domain.Reservation, principal *auth.Principal, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.NewReservationEvent(eventType, res, actorOf(principal), s.now(), payload)
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("reservation event delivery failed",
			zap.String("event_type", string(eventType)),
			zap.Int64("reservation_id", res.ID),
			zap.Error(err))
	}
}

func actorOf(principal *auth.Principal) events.Actor {
	switch {
	case principal == nil:
		return events.Actor{}
	case principal.User != nil:
		return events.Actor{Type: domain.SubjectTypeUser, ID: principal.User.ID}
	case principal.Admin != nil:
		return events.Actor{Type: domain.SubjectTypeAdmin, ID: principal.Admin.ID}
	}
	return events.Actor{}
}

func validateLockerID(id string) error {
	if !domain.ValidLockerID(id) {
		return apperrors.NewValidationError("invalid locker_id", map[string]any{"locker_id": id})
	}
	return nil
}
