// Package adminauth аутентифицирует оператора админки по паре логин/пароль
// из конфигурации и выдает JWT для последующих запросов.
package adminauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/brightmoyo/wabot-billing/internal/lib/jwt"
	"github.com/brightmoyo/wabot-billing/internal/lib/password"
	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
)

// RoleAdmin роль, зашиваемая в токен оператора.
const RoleAdmin = "admin"

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service проверяет учетные данные и выдает токены.
type Service struct {
	username     string
	passwordHash string
	maker        jwt.Maker
	log          *slog.Logger
}

// New создает сервис аутентификации админки.
func New(username, passwordHash string, maker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		username:     username,
		passwordHash: passwordHash,
		maker:        maker,
		log:          log,
	}
}

// Login сверяет учетные данные с конфигурацией и возвращает подписанный JWT.
func (s *Service) Login(_ context.Context, username, pass string) (string, error) {
	if username != s.username {
		return "", ErrInvalidCredentials
	}
	if err := password.CompareHash(s.passwordHash, pass); err != nil {
		return "", ErrInvalidCredentials
	}
	token, err := s.maker.GenerateToken(username, RoleAdmin)
	if err != nil {
		s.log.Error("failed to sign token", sl.Err(err))
		return "", err
	}
	return token, nil
}
