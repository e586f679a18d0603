package entitlement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightmoyo/wabot-billing/internal/models"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestStore(now *time.Time) *Store {
	return New(nil, nil, newNoopLogger(), WithClock(func() time.Time { return *now }))
}

func TestStore_FreeTierLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(&now)
	ctx := context.Background()

	for i := range FreeTierLimit {
		assert.True(t, store.CanDownload("263771234567"), "download %d should be allowed", i+1)
		store.RecordDownload(ctx, "263771234567", "jobs")
	}

	assert.False(t, store.CanDownload("263771234567"))
	left, unlimited := store.DownloadsLeft("263771234567")
	assert.Equal(t, 0, left)
	assert.False(t, unlimited)
}

func TestStore_Activate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(&now)
	ctx := context.Background()

	// исчерпываем бесплатный лимит
	for range FreeTierLimit {
		store.RecordDownload(ctx, "263771234567", "")
	}
	require.False(t, store.CanDownload("263771234567"))

	acc := store.Activate(ctx, "263771234567", 7, "weekly", 0.50, models.CurrencyUSD)

	assert.True(t, acc.SubscriptionActive)
	assert.Equal(t, "weekly", acc.SubscriptionType)
	require.NotNil(t, acc.SubscriptionExpiry)
	assert.Equal(t, now.AddDate(0, 0, 7), *acc.SubscriptionExpiry)
	assert.True(t, acc.DatingEnabled)
	require.Len(t, acc.History, 1)
	assert.Equal(t, "weekly", acc.History[0].Plan)
	assert.Equal(t, 0.50, acc.History[0].PricePaid)

	assert.True(t, store.CanDownload("263771234567"))
	_, unlimited := store.DownloadsLeft("263771234567")
	assert.True(t, unlimited)
}

func TestStore_HistoryTruncation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(&now)
	ctx := context.Background()

	for i := range 12 {
		store.Activate(ctx, "263771234567", 7, fmt.Sprintf("plan-%d", i), 0.50, models.CurrencyUSD)
	}

	acc := store.GetOrCreate(ctx, "263771234567")
	require.Len(t, acc.History, HistoryLimit)
	// остаются последние 10 в порядке активации
	assert.Equal(t, "plan-2", acc.History[0].Plan)
	assert.Equal(t, "plan-11", acc.History[HistoryLimit-1].Plan)
}

func TestStore_DemoWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(&now)
	ctx := context.Background()

	for range FreeTierLimit {
		store.RecordDownload(ctx, "263771234567", "")
	}
	require.False(t, store.CanDownload("263771234567"))

	acc := store.GrantDemoWindow(ctx, "263771234567", 7*24*time.Hour)
	assert.Equal(t, 1, acc.DemoUses)
	assert.Equal(t, models.SubscriptionDemo, acc.SubscriptionType)
	assert.True(t, store.CanDownload("263771234567"))

	// окно истекло
	now = now.Add(8 * 24 * time.Hour)
	assert.False(t, store.CanDownload("263771234567"))
}

func TestStore_DemoWindow_LastGrantStaysUsable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(&now)
	ctx := context.Background()

	for range FreeTierLimit {
		store.RecordDownload(ctx, "263771234567", "")
	}
	require.False(t, store.CanDownload("263771234567"))

	// счётчик выдач достигает потолка, но активное окно решает само
	var acc models.UserAccount
	for range DemoUseLimit {
		acc = store.GrantDemoWindow(ctx, "263771234567", 7*24*time.Hour)
	}
	require.Equal(t, DemoUseLimit, acc.DemoUses)
	assert.True(t, store.CanDownload("263771234567"))

	now = now.Add(8 * 24 * time.Hour)
	assert.False(t, store.CanDownload("263771234567"))
}

func TestStore_SweepExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(&now)
	ctx := context.Background()

	store.Activate(ctx, "263771111111", 7, "weekly", 0.50, models.CurrencyUSD)
	store.Activate(ctx, "263772222222", 30, "monthly", 1.35, models.CurrencyUSD)

	now = now.Add(8 * 24 * time.Hour)
	assert.Equal(t, 1, store.SweepExpired(ctx))

	acc := store.GetOrCreate(ctx, "263771111111")
	assert.False(t, acc.SubscriptionActive)
	assert.Equal(t, models.SubscriptionExpired, acc.SubscriptionType)
	assert.False(t, store.CanDownload("263771111111"))

	acc = store.GetOrCreate(ctx, "263772222222")
	assert.True(t, acc.SubscriptionActive)

	// повторный запуск без сдвига времени ничего не меняет
	assert.Equal(t, 0, store.SweepExpired(ctx))
}

func TestStore_CategoryCounters(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(&now)
	ctx := context.Background()

	store.RecordDownload(ctx, "263771234567", "jobs")
	store.RecordDownload(ctx, "263771234567", "jobs")
	store.RecordDownload(ctx, "263771234567", "news")

	acc := store.GetOrCreate(ctx, "263771234567")
	assert.Equal(t, 3, acc.DownloadCount)
	require.Contains(t, acc.Categories, "jobs")
	assert.Equal(t, 2, acc.Categories["jobs"].Used)
	assert.Equal(t, 1, acc.Categories["news"].Used)

	// после окна счётчик категории начинается заново
	now = now.Add(CategoryWindow + time.Minute)
	store.RecordDownload(ctx, "263771234567", "jobs")
	acc = store.GetOrCreate(ctx, "263771234567")
	assert.Equal(t, 1, acc.Categories["jobs"].Used)
	assert.Equal(t, 4, acc.DownloadCount)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(&now)
	ctx := context.Background()

	acc := store.GetOrCreate(ctx, "263771234567")
	acc.DownloadCount = 99
	acc.Categories["hacked"] = &models.CategoryCounter{Used: 1}

	fresh := store.GetOrCreate(ctx, "263771234567")
	assert.Equal(t, 0, fresh.DownloadCount)
	assert.NotContains(t, fresh.Categories, "hacked")
}
