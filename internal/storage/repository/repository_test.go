package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/brightmoyo/wabot-billing/internal/migrations"
	"github.com/brightmoyo/wabot-billing/internal/models"
)

func setupStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, storage.DB.Close())
	})

	require.NoError(t, migrations.Run(storage.DB, "../../../migrations"))
	return storage
}

func TestStorage_AccountsRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage := setupStorage(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	expiry := now.AddDate(0, 0, 7)
	acc := &models.UserAccount{
		PhoneNumber:   "263771234567",
		DownloadCount: 3,
		Categories: map[string]*models.CategoryCounter{
			"jobs": {Used: 2, ResetAt: now.Add(13 * time.Hour)},
		},
		DemoUses:           1,
		SubscriptionActive: true,
		SubscriptionType:   "weekly",
		SubscriptionExpiry: &expiry,
		DatingEnabled:      true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	require.NoError(t, storage.UpsertAccount(ctx, acc))

	// повторный upsert с изменённым состоянием
	acc.DownloadCount = 4
	require.NoError(t, storage.UpsertAccount(ctx, acc))

	accounts, err := storage.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	got := accounts[0]
	assert.Equal(t, "263771234567", got.PhoneNumber)
	assert.Equal(t, 4, got.DownloadCount)
	assert.Equal(t, 1, got.DemoUses)
	assert.True(t, got.SubscriptionActive)
	assert.Equal(t, "weekly", got.SubscriptionType)
	assert.True(t, got.DatingEnabled)
	require.Contains(t, got.Categories, "jobs")
	assert.Equal(t, 2, got.Categories["jobs"].Used)
}

func TestStorage_AppendHistoryPrunes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage := setupStorage(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	acc := &models.UserAccount{
		PhoneNumber: "263771234567",
		Categories:  map[string]*models.CategoryCounter{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, storage.UpsertAccount(ctx, acc))

	for i := range 12 {
		rec := models.SubscriptionRecord{
			Plan:         "weekly",
			DurationDays: 7,
			ActivatedAt:  now.Add(time.Duration(i) * time.Hour),
			Expiry:       now.AddDate(0, 0, 7),
			PricePaid:    0.50,
			Currency:     models.CurrencyUSD,
		}
		require.NoError(t, storage.AppendHistory(ctx, "263771234567", rec, 10))
	}

	accounts, err := storage.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Len(t, accounts[0].History, 10)
	// хронологический порядок сохраняется, выживают последние 10
	first := accounts[0].History[0].ActivatedAt
	last := accounts[0].History[9].ActivatedAt
	assert.True(t, last.After(first))
}

func TestStorage_PaymentAttempts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage := setupStorage(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	attempt := &models.PaymentAttempt{
		UID:         uuid.NewString(),
		PhoneNumber: "263771234567",
		Method:      "ecocash",
		Plan:        "weekly",
		Amount:      0.50,
		Currency:    models.CurrencyUSD,
		Code:        "123456",
		Status:      models.PaymentInstructionsSent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, storage.CreateAttempt(ctx, attempt))

	found, err := storage.FindAttemptByCode(ctx, "263771234567", "123456")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, attempt.UID, found.UID)
	assert.Equal(t, "ecocash", found.Method)

	missing, err := storage.FindAttemptByCode(ctx, "263771234567", "999999")
	require.NoError(t, err)
	assert.Nil(t, missing)

	pending, err := storage.ListPendingAttempts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	verifiedAt := time.Now().UTC()
	require.NoError(t, storage.UpdateAttemptStatus(ctx, attempt.UID, models.PaymentVerified, &verifiedAt))

	// подтверждённая попытка больше не находится по коду
	found, err = storage.FindAttemptByCode(ctx, "263771234567", "123456")
	require.NoError(t, err)
	assert.Nil(t, found)

	// выручка в ZWG не подмешивается к долларовой
	zwg := &models.PaymentAttempt{
		UID:         uuid.NewString(),
		PhoneNumber: "263779999999",
		Method:      "cash",
		Plan:        "weekly",
		Amount:      13.25,
		Currency:    models.CurrencyZWG,
		Code:        "654321",
		Status:      models.PaymentInstructionsSent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, storage.CreateAttempt(ctx, zwg))
	require.NoError(t, storage.UpdateAttemptStatus(ctx, zwg.UID, models.PaymentVerified, &verifiedAt))

	stats, err := storage.CountStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 2, stats.Verified)
	assert.InDelta(t, 0.50, stats.RevenueUSD, 0.01)
	assert.InDelta(t, 13.25, stats.RevenueZWG, 0.01)
}

func TestStorage_FindExpiringWithin(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage := setupStorage(t)
	ctx := context.Background()

	now := time.Now().UTC()
	soon := now.Add(12 * time.Hour)
	far := now.AddDate(0, 0, 20)

	for _, acc := range []*models.UserAccount{
		{PhoneNumber: "263771111111", Categories: map[string]*models.CategoryCounter{},
			SubscriptionActive: true, SubscriptionType: "weekly", SubscriptionExpiry: &soon,
			CreatedAt: now, UpdatedAt: now},
		{PhoneNumber: "263772222222", Categories: map[string]*models.CategoryCounter{},
			SubscriptionActive: true, SubscriptionType: "monthly", SubscriptionExpiry: &far,
			CreatedAt: now, UpdatedAt: now},
	} {
		require.NoError(t, storage.UpsertAccount(ctx, acc))
	}

	notices, err := storage.FindExpiringWithin(ctx, "24 hours")
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "263771111111", notices[0].PhoneNumber)
	assert.Equal(t, "expiring_soon", notices[0].Kind)
}
