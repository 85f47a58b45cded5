package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiobook/internal/catalog"
	"studiobook/internal/discount"
	"studiobook/internal/models"
	"studiobook/internal/pricing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

var validFrom = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T, codes ...discount.Code) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]catalog.Studio{
			{ID: "studio-1", Name: "Studio 1", CalendarID: "s1@calendar"},
			{ID: "studio-2", Name: "Studio 2"},
		},
		[]pricing.PricingPackage{
			{Studio: "studio-1", DurationLabel: "1 hour", DurationHours: 1, BasePricePence: 8000},
			{Studio: "studio-1", DurationLabel: "2 hours", DurationHours: 2, BasePricePence: 15000},
			{Studio: "studio-2", DurationLabel: "90 minutes", DurationHours: 1.5, BasePricePence: 11000},
		},
		[]pricing.AddOn{
			{ID: "backdrop", Name: "Paper backdrop", PricePence: 1500, MaxQuantity: 3},
			{ID: "assistant", Name: "Assistant", PricePence: 4000, MaxQuantity: 1},
		},
		codes,
	)
	require.NoError(t, err)
	return c
}

// storedCode reads a code straight from the table, inactive ones included.
func storedCode(t *testing.T, db *DB, code string) discount.Code {
	t.Helper()
	codes, err := db.listCodes(context.Background())
	require.NoError(t, err)
	for _, c := range codes {
		if c.Code == discount.Normalize(code) {
			return c
		}
	}
	t.Fatalf("code %s not stored", code)
	return discount.Code{}
}

func TestSyncAndLoadCatalog(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	until := validFrom.AddDate(1, 0, 0)
	code := discount.Code{
		Code:                 "SPRING10",
		Type:                 discount.TypePercentage,
		Value:                1000,
		MinBookingValuePence: ptr(int64(5000)),
		MaxDiscountPence:     ptr(int64(1000)),
		UsageLimit:           ptr(10),
		ExclusiveEmail:       ptr("vip@example.com"),
		ValidFrom:            validFrom,
		ValidUntil:           &until,
		ApplicableStudios:    []models.Studio{"studio-1", "studio-2"},
		IsActive:             true,
	}
	require.NoError(t, db.SyncCatalog(ctx, testCatalog(t, code)))

	got, err := db.LoadCatalog(ctx)
	require.NoError(t, err)

	require.Len(t, got.Studios, 2)
	assert.Equal(t, models.Studio("studio-1"), got.Studios[0].ID)
	assert.Equal(t, "s1@calendar", got.Studios[0].CalendarID)

	p, err := got.Package("studio-2", 1.5)
	require.NoError(t, err)
	assert.Equal(t, int64(11000), p.BasePricePence)
	assert.Len(t, got.AddOns, 2)

	require.Len(t, got.Codes, 1)
	c := got.Codes[0]
	assert.Equal(t, "SPRING10", c.Code)
	assert.Equal(t, discount.TypePercentage, c.Type)
	assert.Equal(t, int64(1000), c.Value)
	assert.Equal(t, int64(5000), *c.MinBookingValuePence)
	assert.Equal(t, int64(1000), *c.MaxDiscountPence)
	assert.Equal(t, 10, *c.UsageLimit)
	assert.Equal(t, "vip@example.com", *c.ExclusiveEmail)
	assert.True(t, c.ValidFrom.Equal(validFrom))
	require.NotNil(t, c.ValidUntil)
	assert.True(t, c.ValidUntil.Equal(until))
	assert.Equal(t, []models.Studio{"studio-1", "studio-2"}, c.ApplicableStudios)
	assert.True(t, c.IsActive)
}

func TestSyncCatalog_DeactivatesRemoved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := discount.Code{Code: "OLD", Type: discount.TypeFixed, Value: 500, ValidFrom: validFrom, IsActive: true}
	require.NoError(t, db.SyncCatalog(ctx, testCatalog(t, first)))

	smaller, err := catalog.New(
		[]catalog.Studio{{ID: "studio-1", Name: "Studio 1"}},
		[]pricing.PricingPackage{{Studio: "studio-1", DurationLabel: "1 hour", DurationHours: 1, BasePricePence: 9000}},
		nil, nil,
	)
	require.NoError(t, err)
	require.NoError(t, db.SyncCatalog(ctx, smaller))

	got, err := db.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Studios, 1)
	assert.Len(t, got.Packages, 1)
	assert.Equal(t, int64(9000), got.Packages[0].BasePricePence)
	assert.Empty(t, got.AddOns)

	// Removed codes stay visible as inactive.
	c := storedCode(t, db, "old")
	assert.False(t, c.IsActive)

	_, err = discount.Evaluate(c, discount.Context{Now: validFrom.Add(time.Hour)})
	assert.ErrorIs(t, err, discount.ErrInactive)
}

func TestLoadCatalog_CodeForRemovedStudio(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	scoped := discount.Code{
		Code: "S2ONLY", Type: discount.TypeFixed, Value: 500, ValidFrom: validFrom,
		ApplicableStudios: []models.Studio{"studio-2"}, IsActive: true,
	}
	shared := discount.Code{
		Code: "BOTH", Type: discount.TypeFixed, Value: 500, ValidFrom: validFrom,
		ApplicableStudios: []models.Studio{"studio-1", "studio-2"}, IsActive: true,
	}
	require.NoError(t, db.SyncCatalog(ctx, testCatalog(t, scoped, shared)))

	// studio-2 and both codes are dropped from the next catalog.
	smaller, err := catalog.New(
		[]catalog.Studio{{ID: "studio-1", Name: "Studio 1"}},
		[]pricing.PricingPackage{{Studio: "studio-1", DurationLabel: "1 hour", DurationHours: 1, BasePricePence: 8000}},
		nil, nil,
	)
	require.NoError(t, err)
	require.NoError(t, db.SyncCatalog(ctx, smaller))

	got, err := db.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, got.Studios, 1)
	require.Len(t, got.Codes, 2)

	byCode := map[string]discount.Code{}
	for _, c := range got.Codes {
		byCode[c.Code] = c
	}
	assert.False(t, byCode["S2ONLY"].IsActive)
	assert.Empty(t, byCode["S2ONLY"].ApplicableStudios)
	assert.False(t, byCode["BOTH"].IsActive)
	assert.Equal(t, []models.Studio{"studio-1"}, byCode["BOTH"].ApplicableStudios)

	// The table itself keeps the original scope.
	assert.Equal(t, []models.Studio{"studio-2"}, storedCode(t, db, "S2ONLY").ApplicableStudios)

	_, err = got.Discounts().Validate("s2only", discount.Context{Studio: "studio-1", Now: validFrom.Add(time.Hour)})
	assert.ErrorIs(t, err, discount.ErrInactive)
}

func TestRedeemCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	limited := discount.Code{Code: "ONCE", Type: discount.TypeFixed, Value: 500, UsageLimit: ptr(1), ValidFrom: validFrom, IsActive: true}
	require.NoError(t, db.SyncCatalog(ctx, testCatalog(t, limited)))

	require.NoError(t, db.RedeemCode(ctx, "once", "quote-1", "Jo@Example.com", 500))

	err := db.RedeemCode(ctx, "ONCE", "quote-2", "jo@example.com", 500)
	assert.ErrorIs(t, err, discount.ErrUsageLimitReached)

	err = db.RedeemCode(ctx, "MISSING", "quote-3", "", 0)
	assert.ErrorIs(t, err, discount.ErrNotFound)

	assert.Equal(t, 1, storedCode(t, db, "ONCE").UsageCount)

	n, err := db.Redemptions(ctx, "once")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Re-syncing the catalog keeps the recorded usage.
	require.NoError(t, db.SyncCatalog(ctx, testCatalog(t, limited)))
	assert.Equal(t, 1, storedCode(t, db, "ONCE").UsageCount)
}

func TestRedeemCode_ConcurrentNeverExceedsLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	code := discount.Code{Code: "FIVE", Type: discount.TypeFixed, Value: 500, UsageLimit: ptr(5), ValidFrom: validFrom, IsActive: true}
	require.NoError(t, db.SyncCatalog(ctx, testCatalog(t, code)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := db.RedeemCode(ctx, "FIVE", fmt.Sprintf("quote-%d", i), "", 500); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	c := storedCode(t, db, "FIVE")
	assert.LessOrEqual(t, c.UsageCount, 5)
	assert.Equal(t, succeeded, c.UsageCount)

	n, err := db.Redemptions(ctx, "FIVE")
	require.NoError(t, err)
	assert.Equal(t, succeeded, n)
}

func TestBackupService(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SyncCatalog(ctx, testCatalog(t)))

	logger := zerolog.New(io.Discard)
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewBackupService(db, dir, time.Hour, 24*time.Hour, &logger)

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)
	assert.FileExists(t, path)

	old := filepath.Join(dir, "studiobook_old.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	assert.Equal(t, 1, svc.CleanupOldBackups(time.Now()))
	assert.NoFileExists(t, old)
	assert.FileExists(t, path)
}
