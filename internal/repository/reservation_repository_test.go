package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/persistence"
)

var reservationRowColumns = []string{"id", "locker_id", "user_id", "token", "status", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func noRetry() persistence.RetryPolicy {
	return persistence.RetryPolicy{MaxAttempts: 1}
}

func strPtr(s string) *string { return &s }

func TestReservationCreateClassifiesMissingLocker(t *testing.T) {
	mock := newMock(t)
	repo := NewReservationRepository(mock, noRetry())

	mock.ExpectQuery("INSERT INTO reservations").
		WithArgs("L42", int64(7), pgxmock.AnyArg(), "pending", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: ConstraintReservationLocker})

	err := repo.Create(context.Background(), &domain.Reservation{
		LockerID:  "L42",
		UserID:    7,
		Token:     "abcdef0123",
		Status:    domain.ReservationStatusPending,
		CreatedAt: time.Now(),
	})

	var cErr *ConstraintError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, ConstraintForeignKey, cErr.Kind)
	assert.True(t, IsConstraint(err, ConstraintReservationLocker))
}

func TestReservationCreateReturnsIdentity(t *testing.T) {
	mock := newMock(t)
	repo := NewReservationRepository(mock, noRetry())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO reservations").
		WithArgs("L42", int64(7), pgxmock.AnyArg(), "pending", now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))

	res := &domain.Reservation{LockerID: "L42", UserID: 7, Token: "abcdef0123", Status: domain.ReservationStatusPending, CreatedAt: now}
	require.NoError(t, repo.Create(context.Background(), res))
	assert.Equal(t, int64(11), res.ID)
	assert.Equal(t, now, res.CreatedAt)
}

func TestReservationTransitionToIdleClearsToken(t *testing.T) {
	mock := newMock(t)
	repo := NewReservationRepository(mock, noRetry())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE reservations SET status=.+token=NULL`).
		WithArgs(int64(5), "idle", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(reservationRowColumns).
			AddRow(int64(5), "L42", int64(7), (*string)(nil), "idle", now, now))

	res, err := repo.Transition(context.Background(), domain.ReservationTransition{
		ID:   5,
		From: domain.SourcesFor(domain.ReservationStatusIdle),
		To:   domain.ReservationStatusIdle,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusIdle, res.Status)
	assert.Empty(t, res.Token)
}

func TestReservationTransitionSetsToken(t *testing.T) {
	mock := newMock(t)
	repo := NewReservationRepository(mock, noRetry())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE reservations SET status=.+token=\$4 WHERE`).
		WithArgs(int64(5), "reserved", pgxmock.AnyArg(), "fresh12345").
		WillReturnRows(pgxmock.NewRows(reservationRowColumns).
			AddRow(int64(5), "L42", int64(7), strPtr("fresh12345"), "reserved", now, now))

	res, err := repo.Transition(context.Background(), domain.ReservationTransition{
		ID:    5,
		From:  []domain.ReservationStatus{domain.ReservationStatusPending},
		To:    domain.ReservationStatusReserved,
		Token: strPtr("fresh12345"),
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh12345", res.Token)
	assert.Equal(t, domain.ReservationStatusReserved, res.Status)
}

func TestReservationTransitionLostRace(t *testing.T) {
	mock := newMock(t)
	repo := NewReservationRepository(mock, noRetry())

	mock.ExpectQuery("UPDATE reservations").
		WithArgs(int64(5), "ongoing", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Transition(context.Background(), domain.ReservationTransition{
		ID:   5,
		From: domain.SourcesFor(domain.ReservationStatusOngoing),
		To:   domain.ReservationStatusOngoing,
	})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestReservationDeleteExpired(t *testing.T) {
	mock := newMock(t)
	repo := NewReservationRepository(mock, noRetry())
	cutoff := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	started := cutoff.Add(-time.Hour)

	mock.ExpectQuery(`DELETE FROM reservations\s+WHERE status = ANY\(\$1\) AND created_at < \$2`).
		WithArgs(pgxmock.AnyArg(), cutoff).
		WillReturnRows(pgxmock.NewRows(reservationRowColumns).
			AddRow(int64(1), "L1", int64(7), strPtr("aaaaaaaaaa"), "pending", started, started).
			AddRow(int64(2), "L2", int64(8), strPtr("bbbbbbbbbb"), "reserved", started, started))

	expired, err := repo.DeleteExpired(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "L2", expired[1].LockerID)
	assert.Equal(t, domain.ReservationStatusReserved, expired[1].Status)
}

func TestReservationRejectsUnknownStatus(t *testing.T) {
	mock := newMock(t)
	repo := NewReservationRepository(mock, noRetry())
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM reservations WHERE locker_id").
		WithArgs("L42").
		WillReturnRows(pgxmock.NewRows(reservationRowColumns).
			AddRow(int64(1), "L42", int64(7), strPtr("aaaaaaaaaa"), "Reserved", now, now))

	_, err := repo.GetLiveByLocker(context.Background(), "L42")
	assert.ErrorContains(t, err, "unknown reservation status")
}

func TestRepositoryRetriesTransientFailures(t *testing.T) {
	mock := newMock(t)
	repo := NewLockerRepository(mock, persistence.RetryPolicy{MaxAttempts: 2})

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("L42").
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("L42").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "L42")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLockerCreateDuplicate(t *testing.T) {
	mock := newMock(t)
	repo := NewLockerRepository(mock, noRetry())

	mock.ExpectQuery("INSERT INTO lockers").
		WithArgs("L42").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: ConstraintLockerPK})

	err := repo.Create(context.Background(), &domain.Locker{ID: "L42"})
	assert.True(t, IsConstraint(err, ConstraintLockerPK))
}

func TestUserGetByRegNo(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock, noRetry())
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM users WHERE reg_no").
		WithArgs("REG-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "fullname", "reg_no", "password_hash", "phone", "email", "created_at", "updated_at"}).
			AddRow(int64(7), "Ada Lovelace", "REG-1", "hash", strPtr("0700"), "ada@example.com", now, now))

	user, err := repo.GetByRegNo(context.Background(), "REG-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	require.NotNil(t, user.Phone)
	assert.Equal(t, "0700", *user.Phone)
}
