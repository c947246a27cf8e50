package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/locker-service/internal/domain"
	"github.com/spec-kit/locker-service/internal/repository/memory"
	apperrors "github.com/spec-kit/locker-service/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	signed, meta, err := tm.GenerateToken(42, domain.SubjectTypeAdmin)
	require.NoError(t, err)
	assert.Equal(t, meta.IssuedAt.Add(5*time.Minute), meta.ExpiresAt)

	claims, err := tm.ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeAdmin, claims.Subject)
}

func TestTokenRejectsExpiredAndForeign(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	signed, _, err := tm.GenerateToken(1, domain.SubjectTypeUser)
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ParseToken(signed)
	assert.Error(t, err)

	other := NewTokenManager("other-secret", 1)
	_, err = other.ParseToken(signed)
	assert.Error(t, err)
}

func TestPasswordHelpers(t *testing.T) {
	hashed, err := HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hashed, "hunter22"))
	assert.Error(t, ComparePassword(hashed, "hunter23"))
	DummyCompare("whatever", bcrypt.MinCost)
}

func newAuthApp(t *testing.T) (*fiber.App, *TokenManager, *domain.User, *domain.AdminUser) {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	user := &domain.User{FullName: "Ada", RegNo: "REG-1", Email: "ada@example.com"}
	require.NoError(t, store.Users().Create(ctx, user))
	admin := &domain.AdminUser{StaffID: "S-1", FullName: "Grace", Email: "grace@example.com"}
	require.NoError(t, store.Admins().Create(ctx, admin))

	tm := NewTokenManager("secret", 5)
	mw := NewAuthMiddleware(tm, store.Users(), store.Admins())

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).SendString(de.Code)
	}})
	app.Get("/any", mw.Handle, RequireAnyRole(), func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/admin", mw.Handle, RequireAdmin(), func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/user", mw.Handle, RequireUser(), func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app, tm, user, admin
}

func call(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMiddlewareRoles(t *testing.T) {
	app, tm, user, admin := newAuthApp(t)

	userToken, _, err := tm.GenerateToken(user.ID, domain.SubjectTypeUser)
	require.NoError(t, err)
	adminToken, _, err := tm.GenerateToken(admin.ID, domain.SubjectTypeAdmin)
	require.NoError(t, err)
	ghostToken, _, err := tm.GenerateToken(999, domain.SubjectTypeUser)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/any", ""))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/any", "garbage"))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/any", ghostToken))
	assert.Equal(t, http.StatusOK, call(t, app, "/any", userToken))
	assert.Equal(t, http.StatusForbidden, call(t, app, "/admin", userToken))
	assert.Equal(t, http.StatusOK, call(t, app, "/admin", adminToken))
	assert.Equal(t, http.StatusForbidden, call(t, app, "/user", adminToken))
	assert.Equal(t, http.StatusOK, call(t, app, "/user", userToken))
}

func TestPrincipalCanActFor(t *testing.T) {
	userPrincipal := &Principal{SubjectType: domain.SubjectTypeUser, User: &domain.User{ID: 7}}
	adminPrincipal := &Principal{SubjectType: domain.SubjectTypeAdmin, Admin: &domain.AdminUser{ID: 1}}

	assert.True(t, userPrincipal.CanActFor(7))
	assert.False(t, userPrincipal.CanActFor(8))
	assert.True(t, adminPrincipal.CanActFor(8))
	assert.False(t, adminPrincipal.IsUser(1))
}
