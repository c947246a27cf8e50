package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/locker-service/internal/auth"
	"github.com/spec-kit/locker-service/internal/config"
	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/events"
	"github.com/spec-kit/locker-service/internal/repository"
	"github.com/spec-kit/locker-service/internal/repository/memory"
	apperrors "github.com/spec-kit/locker-service/pkg/util/errorutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingTrigger struct{ calls int }

func (t *countingTrigger) Trigger() { t.calls++ }

type fixture struct {
	clock        *fakeClock
	store        *memory.Store
	auth         *AuthService
	lockers      *LockerService
	reservations *ReservationService
	trigger      *countingTrigger
	events       []events.Event
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost},
		Reservation: config.ReservationConfig{
			HoldTTLSeconds: 900,
			TokenLength:    10,
		},
	}
}

func newFixture(t *testing.T, opts ...func(*ReservationDependencies)) *fixture {
	t.Helper()
	f := &fixture{clock: &fakeClock{now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}}
	f.store = memory.NewStore(memory.WithClock(f.clock.Now))
	cfg := testConfig()

	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range events.ReservationEvents() {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			f.events = append(f.events, event)
			return nil
		})
	}

	deps := ReservationDependencies{
		ReservationRepo: f.store.Reservations(),
		LockerRepo:      f.store.Lockers(),
		Dispatcher:      dispatcher,
		Logger:          zap.NewNop(),
		Clock:           f.clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	f.auth = NewAuthService(cfg, AuthDependencies{UserRepo: f.store.Users(), AdminRepo: f.store.Admins()})
	f.lockers = NewLockerService(f.store.Lockers())
	f.reservations = NewReservationService(cfg, deps)
	f.trigger = &countingTrigger{}
	f.reservations.SetSweepTrigger(f.trigger)
	return f
}

func (f *fixture) user(t *testing.T, regNo string) *auth.Principal {
	t.Helper()
	user, err := f.auth.RegisterUser(context.Background(), RegisterInput{
		FullName: "User " + regNo,
		RegNo:    regNo,
		Password: "correct-horse",
		Email:    regNo + "@example.com",
	})
	require.NoError(t, err)
	return &auth.Principal{SubjectType: domain.SubjectTypeUser, User: user}
}

func (f *fixture) admin(t *testing.T) *auth.Principal {
	t.Helper()
	admin, err := f.auth.CreateAdmin(context.Background(), AdminInput{StaffID: "S-1", Password: "staff-password", FullName: "Grace"})
	require.NoError(t, err)
	return &auth.Principal{SubjectType: domain.SubjectTypeAdmin, Admin: admin}
}

func (f *fixture) locker(t *testing.T, id string) {
	t.Helper()
	_, err := f.lockers.Create(context.Background(), id)
	require.NoError(t, err)
}

func TestLoginErrorsAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.user(t, "REG-1")
	ctx := context.Background()

	user, token, expires, err := f.auth.LoginUser(ctx, "REG-1", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "REG-1", user.RegNo)
	assert.NotEmpty(t, token)
	assert.False(t, expires.IsZero())

	_, _, _, wrongPassword := f.auth.LoginUser(ctx, "REG-1", "nope-nope")
	_, _, _, unknownUser := f.auth.LoginUser(ctx, "REG-404", "correct-horse")
	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.True(t, apperrors.HasCode(wrongPassword, apperrors.CodeUnauthorized))
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t)
	f.admin(t)
	ctx := context.Background()

	admin, token, _, err := f.auth.LoginAdmin(ctx, "S-1", "staff-password")
	require.NoError(t, err)
	assert.Equal(t, "S-1", admin.StaffID)
	assert.NotEmpty(t, token)

	_, _, _, err = f.auth.LoginAdmin(ctx, "S-2", "staff-password")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = f.auth.CreateAdmin(ctx, AdminInput{StaffID: "S-1", Password: "staff-password"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestRegisterValidationAndConflicts(t *testing.T) {
	f := newFixture(t)
	f.user(t, "REG-1")
	ctx := context.Background()

	_, err := f.auth.RegisterUser(ctx, RegisterInput{FullName: "Dup", RegNo: "REG-1", Password: "password1", Email: "dup@example.com"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = f.auth.RegisterUser(ctx, RegisterInput{FullName: "Short", RegNo: "REG-2", Password: "short", Email: "not-an-email"})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	details := apperrors.ToDomainError(err).Details
	assert.Contains(t, details, "password")
	assert.Contains(t, details, "email")
}

func TestEditProfile(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "REG-1")
	other := f.user(t, "REG-2")
	ctx := context.Background()
	phone := " 0700 123 "

	updated, err := f.auth.EditProfile(ctx, owner, EditProfileInput{ID: owner.User.ID, Phone: &phone})
	require.NoError(t, err)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, "0700 123", *updated.Phone)

	_, err = f.auth.EditProfile(ctx, owner, EditProfileInput{ID: owner.User.ID, NewPassword: "new-password"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.auth.EditProfile(ctx, owner, EditProfileInput{ID: owner.User.ID, OldPassword: "wrong-one", NewPassword: "new-password"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = f.auth.EditProfile(ctx, other, EditProfileInput{ID: owner.User.ID, Phone: &phone})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.auth.EditProfile(ctx, owner, EditProfileInput{ID: owner.User.ID, OldPassword: "correct-horse", NewPassword: "new-password"})
	require.NoError(t, err)
	_, _, _, err = f.auth.LoginUser(ctx, "REG-1", "new-password")
	assert.NoError(t, err)
}

func TestOverlongPasswordsAreValidationErrors(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "REG-1")
	ctx := context.Background()
	long := strings.Repeat("a", 73)

	_, err := f.auth.RegisterUser(ctx, RegisterInput{FullName: "Long", RegNo: "REG-2", Password: long, Email: "long@example.com"})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Contains(t, apperrors.ToDomainError(err).Details, "password")

	_, err = f.auth.EditProfile(ctx, owner, EditProfileInput{ID: owner.User.ID, OldPassword: "correct-horse", NewPassword: long})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.auth.CreateAdmin(ctx, AdminInput{StaffID: "S-1", Password: long})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.auth.RegisterUser(ctx, RegisterInput{FullName: "Edge", RegNo: "REG-3", Password: strings.Repeat("a", 72), Email: "edge@example.com"})
	assert.NoError(t, err)
}

func TestLockerCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.locker(t, "L42")

	_, err := f.lockers.Create(ctx, "L42")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = f.lockers.Create(ctx, "bad id")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	created, skipped, err := f.lockers.BulkCreate(ctx, []string{"L1", "L42", "L2"})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 1, skipped)

	all, err := f.lockers.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReservationHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "REG-1")
	f.locker(t, "L42")

	res, err := f.reservations.Create(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)
	assert.Len(t, res.Token, 10)
	assert.Equal(t, domain.ReservationStatusPending, res.Status)
	assert.Equal(t, 1, f.trigger.calls)

	list, err := f.reservations.ListByUser(ctx, owner, owner.User.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.Token, list[0].Token)

	available, err := f.lockers.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)

	confirmed, err := f.reservations.Confirm(ctx, owner, "L42")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusOngoing, confirmed.Status)

	again, err := f.reservations.Confirm(ctx, owner, "L42")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusOngoing, again.Status)

	ended, err := f.reservations.End(ctx, owner, "L42")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusIdle, ended.Status)
	assert.Empty(t, ended.Token)

	second, err := f.reservations.End(ctx, owner, "L42")
	require.NoError(t, err)
	assert.Nil(t, second)

	list, err = f.reservations.ListByUser(ctx, owner, owner.User.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.ReservationStatusIdle, list[0].Status)
	assert.Empty(t, list[0].Token)

	var types []events.EventType
	for _, event := range f.events {
		types = append(types, event.Type)
	}
	assert.Equal(t, []events.EventType{
		events.EventReservationCreated,
		events.EventReservationConfirmed,
		events.EventReservationEnded,
	}, types)
}

func TestReservationConflictsAndMissingRefs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "REG-1")
	rival := f.user(t, "REG-2")
	admin := f.admin(t)
	f.locker(t, "L42")

	_, err := f.reservations.Create(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)

	_, err = f.reservations.Create(ctx, rival, "L42", rival.User.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = f.reservations.Create(ctx, owner, "L404", owner.User.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.reservations.Create(ctx, admin, "L42", 999)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.reservations.Create(ctx, rival, "L42", owner.User.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.reservations.End(ctx, owner, "L404")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestConfirmRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "REG-1")
	rival := f.user(t, "REG-2")
	admin := f.admin(t)
	f.locker(t, "L42")

	_, err := f.reservations.Confirm(ctx, owner, "L42")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.reservations.Create(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)

	_, err = f.reservations.Confirm(ctx, rival, "L42")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.reservations.Confirm(ctx, admin, "L42")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.reservations.End(ctx, rival, "L42")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	ended, err := f.reservations.End(ctx, admin, "L42")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusIdle, ended.Status)
}

func TestReserveRotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "REG-1")
	f.locker(t, "L42")

	created, err := f.reservations.Create(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	reserved, err := f.reservations.Reserve(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusReserved, reserved.Status)
	assert.NotEqual(t, created.Token, reserved.Token)
	assert.Equal(t, created.CreatedAt, reserved.CreatedAt)

	unchanged, err := f.reservations.Reserve(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)
	assert.Equal(t, reserved.Token, unchanged.Token)

	_, err = f.reservations.Confirm(ctx, owner, "L42")
	require.NoError(t, err)
	_, err = f.reservations.Reserve(ctx, owner, "L42", owner.User.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
}

func TestReserveLateInHoldStillExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "REG-1")
	f.locker(t, "L42")

	_, err := f.reservations.Create(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)

	f.clock.Advance(14 * time.Minute)
	_, err = f.reservations.Reserve(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	tr, err := f.reservations.TimeRemaining(ctx, "L42")
	require.NoError(t, err)
	assert.Equal(t, 16, tr.MinutesElapsed)
	require.NotNil(t, tr.MinutesRemaining)
	assert.Equal(t, 0, *tr.MinutesRemaining)

	removed, err := f.reservations.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.reservations.TimeRemaining(ctx, "L42")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestTokenCollisionRetries(t *testing.T) {
	tokens := []string{"dup-token1", "dup-token1", "dup-token1", "fresh-tok1"}
	next := 0
	f := newFixture(t, func(deps *ReservationDependencies) {
		deps.Tokens = func() string {
			token := tokens[next]
			next++
			return token
		}
	})
	ctx := context.Background()
	owner := f.user(t, "REG-1")
	f.locker(t, "L1")
	f.locker(t, "L2")

	first, err := f.reservations.Create(ctx, owner, "L1", owner.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "dup-token1", first.Token)

	second, err := f.reservations.Create(ctx, owner, "L2", owner.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh-tok1", second.Token)
	assert.Equal(t, 4, next)
}

func TestTokenGeneratorLengthAndUniqueness(t *testing.T) {
	gen := NewTokenGenerator(10)
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		token := gen()
		require.Len(t, token, 10)
		_, dup := seen[token]
		require.False(t, dup, fmt.Sprintf("duplicate token %s", token))
		seen[token] = struct{}{}
	}
}

func TestExpireStaleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "REG-1")
	f.locker(t, "L1")
	f.locker(t, "L2")

	_, err := f.reservations.Create(ctx, owner, "L1", owner.User.ID)
	require.NoError(t, err)
	_, err = f.reservations.Create(ctx, owner, "L2", owner.User.ID)
	require.NoError(t, err)
	_, err = f.reservations.Confirm(ctx, owner, "L2")
	require.NoError(t, err)

	removed, err := f.reservations.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	f.clock.Advance(16 * time.Minute)
	removed, err = f.reservations.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = f.reservations.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	list, err := f.reservations.ListByUser(ctx, owner, owner.User.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "L2", list[0].LockerID)
}

func TestTimeRemaining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "REG-1")
	f.locker(t, "L42")

	_, err := f.reservations.TimeRemaining(ctx, "L42")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.reservations.Create(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)
	f.clock.Advance(5*time.Minute + 30*time.Second)

	tr, err := f.reservations.TimeRemaining(ctx, "L42")
	require.NoError(t, err)
	assert.Equal(t, 5, tr.MinutesElapsed)
	require.NotNil(t, tr.MinutesRemaining)
	assert.Equal(t, 9, *tr.MinutesRemaining)

	_, err = f.reservations.Confirm(ctx, owner, "L42")
	require.NoError(t, err)
	tr, err = f.reservations.TimeRemaining(ctx, "L42")
	require.NoError(t, err)
	assert.Nil(t, tr.ExpiresAt)
}

// racingRepo applies every transition and then reports it as lost, as if a
// concurrent caller had won.
type racingRepo struct {
	repository.ReservationRepository
}

func (r racingRepo) Transition(ctx context.Context, t domain.ReservationTransition) (*domain.Reservation, error) {
	if _, err := r.ReservationRepository.Transition(ctx, t); err != nil {
		return nil, err
	}
	return nil, pgx.ErrNoRows
}

func TestLostRaceReachingTargetSucceeds(t *testing.T) {
	f := newFixture(t, func(deps *ReservationDependencies) {
		deps.ReservationRepo = racingRepo{deps.ReservationRepo}
	})
	ctx := context.Background()
	owner := f.user(t, "REG-1")
	f.locker(t, "L42")

	_, err := f.reservations.Create(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)

	confirmed, err := f.reservations.Confirm(ctx, owner, "L42")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusOngoing, confirmed.Status)

	ended, err := f.reservations.End(ctx, owner, "L42")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusIdle, ended.Status)
	assert.Empty(t, ended.Token)
}

func TestDeleteReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "REG-1")
	f.locker(t, "L42")

	_, err := f.reservations.Delete(ctx, owner, "L42", owner.User.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.reservations.Create(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)
	deleted, err := f.reservations.Delete(ctx, owner, "L42", owner.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "L42", deleted.LockerID)

	available, err := f.lockers.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 1)
}

func TestNotificationServiceForwardsToFeed(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	feed := events.NewLocalFeed()
	NewNotificationService(dispatcher, feed, zap.NewNop()).RegisterHandlers()

	sub, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	res := &domain.Reservation{ID: 1, LockerID: "L42", UserID: 7}
	require.NoError(t, dispatcher.Publish(context.Background(),
		events.NewReservationEvent(events.EventReservationExpired, res, events.Actor{}, time.Now(), nil)))

	select {
	case event := <-sub.C:
		assert.Equal(t, events.EventReservationExpired, event.Type)
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}
}
