package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brightmoyo/wabot-billing/internal/models"
)

// CreateAttempt вставляет новую платёжную попытку.
func (s *Storage) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	const op = "storage.CreateAttempt"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payment_attempts (uid, phone_number, method, plan, amount,
			      currency, code, status, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.DB.ExecContext(ctx, query,
		attempt.UID, attempt.PhoneNumber, attempt.Method, attempt.Plan, attempt.Amount,
		attempt.Currency, attempt.Code, attempt.Status, attempt.CreatedAt, attempt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateAttemptStatus переводит попытку в новый статус.
func (s *Storage) UpdateAttemptStatus(ctx context.Context, uid, status string, verifiedAt *time.Time) error {
	const op = "storage.UpdateAttemptStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payment_attempts
			  SET status = $1, verified_at = $2, updated_at = now()
			  WHERE uid = $3`
	_, err := s.DB.ExecContext(ctx, query, status, verifiedAt, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindAttemptByCode находит неподтверждённую попытку пользователя по коду.
// Код хранится в самой попытке и служит ключом сопоставления.
func (s *Storage) FindAttemptByCode(ctx context.Context, phone, code string) (*models.PaymentAttempt, error) {
	const op = "storage.FindAttemptByCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, phone_number, method, plan, amount, currency, code,
			      status, created_at, updated_at, verified_at
			  FROM payment_attempts
			  WHERE phone_number = $1
			    AND code = $2
			    AND status IN ('instructions_sent', 'pending_verification')
			  ORDER BY created_at DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, phone, code)

	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return attempt, nil
}

// ListPendingAttempts возвращает все неподтверждённые платёжные попытки.
func (s *Storage) ListPendingAttempts(ctx context.Context) ([]*models.PaymentAttempt, error) {
	const op = "storage.ListPendingAttempts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, phone_number, method, plan, amount, currency, code,
			      status, created_at, updated_at, verified_at
			  FROM payment_attempts
			  WHERE status IN ('instructions_sent', 'pending_verification')
			  ORDER BY created_at`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PaymentAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountStats подсчитывает сводку по платёжным попыткам: всего, в ожидании,
// подтверждено и выручка по подтверждённым отдельно в каждой валюте.
func (s *Storage) CountStats(ctx context.Context) (models.PaymentStats, error) {
	const op = "storage.CountStats"
	select {
	case <-ctx.Done():
		return models.PaymentStats{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT
			      count(*),
			      count(*) FILTER (WHERE status IN ('instructions_sent', 'pending_verification')),
			      count(*) FILTER (WHERE status = 'verified'),
			      COALESCE(sum(amount) FILTER (WHERE status = 'verified' AND currency = $1), 0),
			      COALESCE(sum(amount) FILTER (WHERE status = 'verified' AND currency = $2), 0)
			  FROM payment_attempts`
	var stats models.PaymentStats
	row := s.DB.QueryRowContext(ctx, query, models.CurrencyUSD, models.CurrencyZWG)
	if err := row.Scan(&stats.Total, &stats.Pending, &stats.Verified,
		&stats.RevenueUSD, &stats.RevenueZWG); err != nil {
		return models.PaymentStats{}, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	var verifiedAt sql.NullTime
	if err := row.Scan(&attempt.UID, &attempt.PhoneNumber, &attempt.Method,
		&attempt.Plan, &attempt.Amount, &attempt.Currency, &attempt.Code,
		&attempt.Status, &attempt.CreatedAt, &attempt.UpdatedAt, &verifiedAt); err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		attempt.VerifiedAt = &verifiedAt.Time
	}
	return &attempt, nil
}
