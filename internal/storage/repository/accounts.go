package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/brightmoyo/wabot-billing/internal/models"
)

// UpsertAccount создаёт или обновляет учётную запись целиком.
// История активаций пишется отдельно через AppendHistory.
func (s *Storage) UpsertAccount(ctx context.Context, acc *models.UserAccount) error {
	const op = "storage.UpsertAccount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	categories, err := json.Marshal(acc.Categories)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO user_accounts (phone_number, download_count, categories,
			      demo_uses, demo_expiry, subscription_active, subscription_type,
			      subscription_expiry, dating_enabled, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  ON CONFLICT (phone_number) DO UPDATE
			  SET download_count = $2, categories = $3, demo_uses = $4,
			      demo_expiry = $5, subscription_active = $6, subscription_type = $7,
			      subscription_expiry = $8, dating_enabled = $9, updated_at = $11`
	_, err = s.DB.ExecContext(ctx, query,
		acc.PhoneNumber, acc.DownloadCount, categories, acc.DemoUses, acc.DemoExpiry,
		acc.SubscriptionActive, acc.SubscriptionType, acc.SubscriptionExpiry,
		acc.DatingEnabled, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AppendHistory добавляет запись истории активаций и обрезает историю
// пользователя до keep последних записей.
func (s *Storage) AppendHistory(ctx context.Context, phone string, rec models.SubscriptionRecord, keep int) error {
	const op = "storage.AppendHistory"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscription_history (phone_number, plan, duration_days,
			      activated_at, expiry, price_paid, currency)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.DB.ExecContext(ctx, query, phone, rec.Plan, rec.DurationDays,
		rec.ActivatedAt, rec.Expiry, rec.PricePaid, rec.Currency); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	prune := `DELETE FROM subscription_history
			  WHERE phone_number = $1
			    AND id NOT IN (
			        SELECT id FROM subscription_history
			        WHERE phone_number = $1
			        ORDER BY id DESC
			        LIMIT $2)`
	if _, err := s.DB.ExecContext(ctx, prune, phone, keep); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListAccounts возвращает все учётные записи вместе с историей активаций.
func (s *Storage) ListAccounts(ctx context.Context) ([]*models.UserAccount, error) {
	const op = "storage.ListAccounts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT phone_number, download_count, categories, demo_uses, demo_expiry,
			      subscription_active, subscription_type, subscription_expiry,
			      dating_enabled, created_at, updated_at
			  FROM user_accounts`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.UserAccount
	index := make(map[string]*models.UserAccount)
	for rows.Next() {
		var acc models.UserAccount
		var categories []byte
		var demoExpiry, subscriptionExpiry sql.NullTime
		if err := rows.Scan(&acc.PhoneNumber, &acc.DownloadCount, &categories,
			&acc.DemoUses, &demoExpiry, &acc.SubscriptionActive, &acc.SubscriptionType,
			&subscriptionExpiry, &acc.DatingEnabled, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if demoExpiry.Valid {
			acc.DemoExpiry = &demoExpiry.Time
		}
		if subscriptionExpiry.Valid {
			acc.SubscriptionExpiry = &subscriptionExpiry.Time
		}
		acc.Categories = make(map[string]*models.CategoryCounter)
		if len(categories) > 0 {
			if err := json.Unmarshal(categories, &acc.Categories); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		result = append(result, &acc)
		index[acc.PhoneNumber] = &acc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.attachHistory(ctx, index); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Storage) attachHistory(ctx context.Context, index map[string]*models.UserAccount) error {
	query := `SELECT phone_number, plan, duration_days, activated_at, expiry,
			      price_paid, currency
			  FROM subscription_history
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var phone string
		var rec models.SubscriptionRecord
		if err := rows.Scan(&phone, &rec.Plan, &rec.DurationDays, &rec.ActivatedAt,
			&rec.Expiry, &rec.PricePaid, &rec.Currency); err != nil {
			return err
		}
		if acc, ok := index[phone]; ok {
			acc.History = append(acc.History, rec)
		}
	}
	return rows.Err()
}

// FindExpiringWithin находит активные подписки, истекающие в ближайший
// интервал. Используется планировщиком уведомлений.
func (s *Storage) FindExpiringWithin(ctx context.Context, interval string) ([]*models.ExpiryNotice, error) {
	const op = "storage.FindExpiringWithin"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT phone_number, subscription_type, subscription_expiry
			  FROM user_accounts
			  WHERE subscription_active = true
			    AND subscription_expiry > now()
			    AND subscription_expiry <= now() + $1::interval`
	rows, err := s.DB.QueryContext(ctx, query, interval)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ExpiryNotice
	for rows.Next() {
		var phone, plan string
		var expiry sql.NullTime
		if err := rows.Scan(&phone, &plan, &expiry); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		notice := &models.ExpiryNotice{
			PhoneNumber: phone,
			Plan:        plan,
			Kind:        "expiring_soon",
		}
		if expiry.Valid {
			notice.Expiry = expiry.Time.Format("2006-01-02 15:04")
		}
		result = append(result, notice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
