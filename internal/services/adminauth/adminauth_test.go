package adminauth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightmoyo/wabot-billing/internal/lib/jwt"
	"github.com/brightmoyo/wabot-billing/internal/lib/password"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestService_Login(t *testing.T) {
	hash, err := password.GetHash("s3cret-pass")
	require.NoError(t, err)

	maker := jwt.NewJWTMaker("test_secret_key_1234567890", time.Hour)
	svc := New("admin", hash, maker, newNoopLogger())
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		token, err := svc.Login(ctx, "admin", "s3cret-pass")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := maker.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Username)
		assert.Equal(t, RoleAdmin, claims.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "admin", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := svc.Login(ctx, "intruder", "s3cret-pass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}
