// Package memory provides a process-local store with the same integrity rules
// as the Postgres schema. It backs the service when no DSN is configured.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/repository"
)

// Store holds every table behind a single mutex.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	users        map[int64]domain.User
	admins       map[int64]domain.AdminUser
	lockers      map[string]domain.Locker
	reservations map[int64]domain.Reservation

	userSeq        int64
	adminSeq       int64
	reservationSeq int64
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:          time.Now,
		users:        make(map[int64]domain.User),
		admins:       make(map[int64]domain.AdminUser),
		lockers:      make(map[string]domain.Locker),
		reservations: make(map[int64]domain.Reservation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Users exposes the user table.
func (s *Store) Users() repository.UserRepository { return userTable{s} }

// Admins exposes the admin table.
func (s *Store) Admins() repository.AdminRepository { return adminTable{s} }

// Lockers exposes the locker table.
func (s *Store) Lockers() repository.LockerRepository { return lockerTable{s} }

// Reservations exposes the reservation table.
func (s *Store) Reservations() repository.ReservationRepository { return reservationTable{s} }

func violation(kind repository.ConstraintKind, name string) error {
	return &repository.ConstraintError{Kind: kind, Constraint: name, Err: errors.New(name)}
}

type userTable struct{ s *Store }

func (t userTable) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.RegNo == user.RegNo {
			return violation(repository.ConstraintUnique, repository.ConstraintUserRegNo)
		}
		if existing.Email == user.Email {
			return violation(repository.ConstraintUnique, repository.ConstraintUserEmail)
		}
	}
	s.userSeq++
	now := s.now()
	user.ID = s.userSeq
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (t userTable) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.PasswordHash = user.PasswordHash
	existing.Phone = user.Phone
	existing.UpdatedAt = s.now()
	s.users[user.ID] = existing
	user.UpdatedAt = existing.UpdatedAt
	return nil
}

func (t userTable) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	user, ok := t.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (t userTable) GetByRegNo(ctx context.Context, regNo string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, user := range t.s.users {
		if user.RegNo == regNo {
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (t userTable) List(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	result := make([]domain.User, 0, len(t.s.users))
	for _, user := range t.s.users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type adminTable struct{ s *Store }

func (t adminTable) Create(ctx context.Context, admin *domain.AdminUser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.admins {
		if existing.StaffID == admin.StaffID {
			return violation(repository.ConstraintUnique, repository.ConstraintAdminStaffID)
		}
	}
	s.adminSeq++
	admin.ID = s.adminSeq
	admin.CreatedAt = s.now()
	s.admins[admin.ID] = *admin
	return nil
}

func (t adminTable) GetByID(ctx context.Context, id int64) (*domain.AdminUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	admin, ok := t.s.admins[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &admin, nil
}

func (t adminTable) GetByStaffID(ctx context.Context, staffID string) (*domain.AdminUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, admin := range t.s.admins {
		if admin.StaffID == staffID {
			return &admin, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type lockerTable struct{ s *Store }

func (t lockerTable) Create(ctx context.Context, locker *domain.Locker) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !domain.ValidLockerID(locker.ID) {
		return violation(repository.ConstraintCheck, repository.ConstraintLockerIDFormat)
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lockers[locker.ID]; ok {
		return violation(repository.ConstraintUnique, repository.ConstraintLockerPK)
	}
	locker.CreatedAt = s.now()
	s.lockers[locker.ID] = *locker
	return nil
}

func (t lockerTable) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	_, ok := t.s.lockers[id]
	return ok, nil
}

func (t lockerTable) List(ctx context.Context) ([]domain.Locker, error) {
	return t.list(ctx, func(string) bool { return true })
}

func (t lockerTable) ListAvailable(ctx context.Context) ([]domain.Locker, error) {
	return t.list(ctx, func(id string) bool {
		_, held := t.s.liveByLocker(id)
		return !held
	})
}

func (t lockerTable) list(ctx context.Context, keep func(id string) bool) ([]domain.Locker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	result := make([]domain.Locker, 0, len(t.s.lockers))
	for id, locker := range t.s.lockers {
		if keep(id) {
			result = append(result, locker)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// liveByLocker must be called with mu held.
func (s *Store) liveByLocker(lockerID string) (domain.Reservation, bool) {
	for _, res := range s.reservations {
		if res.LockerID == lockerID && res.Status.IsLive() {
			return res, true
		}
	}
	return domain.Reservation{}, false
}

// tokenTaken must be called with mu held.
func (s *Store) tokenTaken(token string, exceptID int64) bool {
	if token == "" {
		return false
	}
	for id, res := range s.reservations {
		if id != exceptID && res.Token == token {
			return true
		}
	}
	return false
}

type reservationTable struct{ s *Store }

func (t reservationTable) Create(ctx context.Context, res *domain.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lockers[res.LockerID]; !ok {
		return violation(repository.ConstraintForeignKey, repository.ConstraintReservationLocker)
	}
	if _, ok := s.users[res.UserID]; !ok {
		return violation(repository.ConstraintForeignKey, repository.ConstraintReservationUser)
	}
	if res.Status.IsLive() {
		if _, held := s.liveByLocker(res.LockerID); held {
			return violation(repository.ConstraintUnique, repository.ConstraintLiveLocker)
		}
	}
	if s.tokenTaken(res.Token, 0) {
		return violation(repository.ConstraintUnique, repository.ConstraintReservationToken)
	}

	s.reservationSeq++
	now := s.now()
	res.ID = s.reservationSeq
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now
	s.reservations[res.ID] = *res
	return nil
}

func (t reservationTable) GetLiveByLocker(ctx context.Context, lockerID string) (*domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	res, ok := t.s.liveByLocker(lockerID)
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &res, nil
}

func (t reservationTable) Transition(ctx context.Context, tr domain.ReservationTransition) (*domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[tr.ID]
	if !ok || !statusIn(res.Status, tr.From) {
		return nil, pgx.ErrNoRows
	}

	switch {
	case tr.To == domain.ReservationStatusIdle:
		res.Token = ""
	case tr.Token != nil:
		if s.tokenTaken(*tr.Token, res.ID) {
			return nil, violation(repository.ConstraintUnique, repository.ConstraintReservationToken)
		}
		res.Token = *tr.Token
	}
	res.Status = tr.To
	res.UpdatedAt = s.now()
	s.reservations[res.ID] = res
	return &res, nil
}

func (t reservationTable) DeleteLive(ctx context.Context, lockerID string, userID int64) (*domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.liveByLocker(lockerID)
	if !ok || res.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	delete(s.reservations, res.ID)
	return &res, nil
}

func (t reservationTable) DeleteExpired(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []domain.Reservation
	for id, res := range s.reservations {
		if res.Status.IsUnconfirmed() && res.CreatedAt.Before(cutoff) {
			expired = append(expired, res)
			delete(s.reservations, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired, nil
}

func (t reservationTable) ListByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	var result []domain.Reservation
	for _, res := range t.s.reservations {
		if res.UserID == userID {
			result = append(result, res)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (t reservationTable) ListWithLockers(ctx context.Context) ([]domain.ReservationWithLocker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	all := make([]domain.Reservation, 0, len(t.s.reservations))
	for _, res := range t.s.reservations {
		all = append(all, res)
	}
	sortNewestFirst(all)

	result := make([]domain.ReservationWithLocker, 0, len(all))
	for _, res := range all {
		result = append(result, domain.ReservationWithLocker{Reservation: res, Locker: t.s.lockers[res.LockerID]})
	}
	return result, nil
}

func sortNewestFirst(list []domain.Reservation) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}

func statusIn(status domain.ReservationStatus, set []domain.ReservationStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
