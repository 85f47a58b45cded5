package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiobook/internal/catalog"
	"studiobook/internal/discount"
)

const catalogYAML = `
studios:
  - id: studio-1
    name: Studio 1
    calendar_id: studio1@group.calendar.google.com
    packages:
      - {label: "1 hour", hours: 1, price: 80}
      - {label: "2 hours", hours: 2, price: 150}
  - id: studio-2
    packages:
      - {label: "Half day", hours: 4, price: 260.5}
add_ons:
  - {id: backdrop, name: Paper backdrop, price: 15, max_quantity: 3}
discount_codes:
  - code: spring10
    type: percentage
    value: 10
    max_discount_pence: 1000
    valid_from: 2026-01-01T00:00:00Z
    valid_until: 2026-12-31T23:59:59Z
    is_active: true
  - code: TENOFF
    type: fixed
    value: 10
    applicable_studios: [studio-2]
    valid_from: 2026-01-01T00:00:00Z
    is_active: true
`

func TestParseCatalog(t *testing.T) {
	cat, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)

	assert.Len(t, cat.Studios, 2)
	s, ok := cat.Studio("studio-2")
	require.True(t, ok)
	assert.Equal(t, "studio-2", s.Name)

	p, err := cat.Package("studio-2", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(26050), p.BasePricePence)

	a, ok := cat.Composer().AddOn("backdrop")
	require.True(t, ok)
	assert.Equal(t, int64(1500), a.PricePence)

	require.Len(t, cat.Codes, 2)
	assert.Equal(t, "SPRING10", cat.Codes[0].Code)
	assert.Equal(t, int64(1000), cat.Codes[0].Value)
	assert.Equal(t, discount.TypeFixed, cat.Codes[1].Type)
	assert.Equal(t, int64(1000), cat.Codes[1].Value)

	out, err := cat.Discounts().Validate("spring10", discount.Context{
		Studio:            "studio-1",
		BookingTotalPence: 17250,
		Now:               time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), out.DiscountPence)
}

func TestParseCatalog_Invalid(t *testing.T) {
	const oneStudio = "studios: [{id: a, packages: [{label: x, hours: 1, price: 1}]}]\n"
	tests := []struct{ name, doc string }{
		{"no studios", "studios: []"},
		{"no packages", "studios: [{id: a}]"},
		{"negative price", "studios: [{id: a, packages: [{label: x, hours: 1, price: -1}]}]"},
		{"zero hours", "studios: [{id: a, packages: [{label: x, hours: 0, price: 1}]}]"},
		{"bad discount type", oneStudio + "discount_codes: [{code: X, type: bogus, value: 1}]"},
		{"code for unknown studio", oneStudio + "discount_codes: [{code: X, type: fixed, value: 1, applicable_studios: [b]}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestWatchCatalog_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var current atomic.Pointer[catalog.Catalog]
	var failures atomic.Int32
	err := WatchCatalog(ctx, path, 10*time.Millisecond,
		func(c *catalog.Catalog) { current.Store(c) },
		func(error) { failures.Add(1) },
	)
	require.NoError(t, err)
	require.NotNil(t, current.Load())
	assert.Len(t, current.Load().Studios, 2)

	// A broken file is reported and the previous catalog stays.
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.WriteFile(path, []byte("studios: ["), 0o600))
	require.NoError(t, os.Chtimes(path, future, future))
	require.Eventually(t, func() bool { return failures.Load() > 0 }, time.Second, 5*time.Millisecond)
	assert.Len(t, current.Load().Studios, 2)

	updated := "studios: [{id: solo, packages: [{label: x, hours: 1, price: 50}]}]"
	later := future.Add(time.Minute)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.NoError(t, os.Chtimes(path, later, later))
	require.Eventually(t, func() bool { return len(current.Load().Studios) == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatchCatalog_IgnoresUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var updates, failures atomic.Int32
	err := WatchCatalog(ctx, path, 5*time.Millisecond,
		func(*catalog.Catalog) { updates.Add(1) },
		func(error) { failures.Add(1) },
	)
	require.NoError(t, err)
	require.Equal(t, int32(1), updates.Load())

	// Touching the file without changing it does not reload.
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), updates.Load())

	// The same broken revision is reported once, however often it is rewritten.
	require.NoError(t, os.WriteFile(path, []byte("studios: ["), 0o600))
	require.Eventually(t, func() bool { return failures.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("studios: ["), 0o600))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), failures.Load())

	// Restoring the good content is a no-op, that revision is still in effect.
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), failures.Load())
	assert.Equal(t, int32(1), updates.Load())
}

func TestWatchCatalog_MissingFile(t *testing.T) {
	err := WatchCatalog(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), time.Second, nil, nil)
	assert.Error(t, err)
}
