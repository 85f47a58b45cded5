package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"studiobook/internal/catalog"
	"studiobook/internal/discount"
	"studiobook/internal/models"
	"studiobook/internal/pricing"
)

// SyncCatalog applies a catalog to the database in one transaction. Studios, add-ons and
// codes missing from cat are deactivated. Usage counts already recorded are never lowered.
func (db *DB) SyncCatalog(ctx context.Context, cat *catalog.Catalog) error {
	if cat == nil {
		return fmt.Errorf("catalog is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()

	if _, err := tx.ExecContext(ctx, `UPDATE studios SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("deactivate studios: %w", err)
	}
	for i, s := range cat.Studios {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO studios (id, name, description, calendar_id, position, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				calendar_id = excluded.calendar_id,
				position = excluded.position,
				is_active = 1,
				updated_at = excluded.updated_at`,
			string(s.ID), s.Name, s.Description, s.CalendarID, i, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync studio %s: %w", s.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pricing_packages`); err != nil {
		return fmt.Errorf("clear packages: %w", err)
	}
	for i, p := range cat.Packages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pricing_packages (studio_id, duration_minutes, duration_label, duration_hours, base_price_pence, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(p.Studio), int64(math.Round(p.DurationHours*60)), p.DurationLabel, p.DurationHours, p.BasePricePence, i,
		)
		if err != nil {
			return fmt.Errorf("sync package %s/%s: %w", p.Studio, p.DurationLabel, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE add_ons SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("deactivate add-ons: %w", err)
	}
	for i, a := range cat.AddOns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO add_ons (id, name, price_pence, max_quantity, position, is_active, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				price_pence = excluded.price_pence,
				max_quantity = excluded.max_quantity,
				position = excluded.position,
				is_active = 1,
				updated_at = excluded.updated_at`,
			a.ID, a.Name, a.PricePence, a.MaxQuantity, i, now,
		)
		if err != nil {
			return fmt.Errorf("sync add-on %s: %w", a.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE discount_codes SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("deactivate codes: %w", err)
	}
	for _, c := range cat.Codes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO discount_codes (code, type, value, min_booking_value_pence, max_discount_pence,
				usage_limit, usage_count, exclusive_email, valid_from, valid_until, applicable_studios,
				is_active, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				type = excluded.type,
				value = excluded.value,
				min_booking_value_pence = excluded.min_booking_value_pence,
				max_discount_pence = excluded.max_discount_pence,
				usage_limit = excluded.usage_limit,
				usage_count = MAX(discount_codes.usage_count, excluded.usage_count),
				exclusive_email = excluded.exclusive_email,
				valid_from = excluded.valid_from,
				valid_until = excluded.valid_until,
				applicable_studios = excluded.applicable_studios,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			c.Code, string(c.Type), c.Value, c.MinBookingValuePence, c.MaxDiscountPence,
			c.UsageLimit, c.UsageCount, c.ExclusiveEmail, c.ValidFrom, c.ValidUntil,
			joinStudios(c.ApplicableStudios), c.IsActive, now,
		)
		if err != nil {
			return fmt.Errorf("sync code %s: %w", c.Code, err)
		}
	}

	return tx.Commit()
}

// LoadCatalog reads the active catalog. Inactive codes are included so that validation
// reports them as inactive rather than unknown.
func (db *DB) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	studios, err := db.listStudios(ctx)
	if err != nil {
		return nil, err
	}
	packages, err := db.listPackages(ctx)
	if err != nil {
		return nil, err
	}
	addOns, err := db.listAddOns(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := db.listCodes(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(studios, packages, addOns, pruneRetiredStudios(codes, studios))
}

// pruneRetiredStudios drops deactivated studios from the scope of inactive codes. A code
// removed together with its studio keeps pointing at that studio in the table, and the
// catalog refuses codes naming a studio it does not know. Active codes were synced with
// their studios and are left alone.
func pruneRetiredStudios(codes []discount.Code, studios []catalog.Studio) []discount.Code {
	active := make(map[models.Studio]bool, len(studios))
	for _, s := range studios {
		active[s.ID] = true
	}
	for i, c := range codes {
		if c.IsActive || len(c.ApplicableStudios) == 0 {
			continue
		}
		kept := make([]models.Studio, 0, len(c.ApplicableStudios))
		for _, s := range c.ApplicableStudios {
			if active[s] {
				kept = append(kept, s)
			}
		}
		codes[i].ApplicableStudios = kept
	}
	return codes
}

func (db *DB) listStudios(ctx context.Context) ([]catalog.Studio, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, calendar_id FROM studios WHERE is_active = 1 ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list studios: %w", err)
	}
	defer rows.Close()

	var out []catalog.Studio
	for rows.Next() {
		var s catalog.Studio
		var id string
		if err := rows.Scan(&id, &s.Name, &s.Description, &s.CalendarID); err != nil {
			return nil, err
		}
		s.ID = models.Studio(id)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) listPackages(ctx context.Context) ([]pricing.PricingPackage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT p.studio_id, p.duration_label, p.duration_hours, p.base_price_pence
		FROM pricing_packages p JOIN studios s ON s.id = p.studio_id
		WHERE s.is_active = 1
		ORDER BY p.position`)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var out []pricing.PricingPackage
	for rows.Next() {
		var p pricing.PricingPackage
		var studio string
		if err := rows.Scan(&studio, &p.DurationLabel, &p.DurationHours, &p.BasePricePence); err != nil {
			return nil, err
		}
		p.Studio = models.Studio(studio)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) listAddOns(ctx context.Context) ([]pricing.AddOn, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, price_pence, max_quantity FROM add_ons WHERE is_active = 1 ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list add-ons: %w", err)
	}
	defer rows.Close()

	var out []pricing.AddOn
	for rows.Next() {
		var a pricing.AddOn
		if err := rows.Scan(&a.ID, &a.Name, &a.PricePence, &a.MaxQuantity); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) listCodes(ctx context.Context) ([]discount.Code, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT code, type, value, min_booking_value_pence, max_discount_pence, usage_limit,
		       usage_count, exclusive_email, valid_from, valid_until, applicable_studios, is_active
		FROM discount_codes ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	defer rows.Close()

	var out []discount.Code
	for rows.Next() {
		var (
			c                     discount.Code
			typ                   string
			minValue, maxDiscount sql.NullInt64
			usageLimit            sql.NullInt64
			email, studios        sql.NullString
			validUntil            sql.NullTime
		)
		if err := rows.Scan(&c.Code, &typ, &c.Value, &minValue, &maxDiscount, &usageLimit,
			&c.UsageCount, &email, &c.ValidFrom, &validUntil, &studios, &c.IsActive); err != nil {
			return nil, err
		}
		c.Type = discount.Type(typ)
		if minValue.Valid {
			c.MinBookingValuePence = &minValue.Int64
		}
		if maxDiscount.Valid {
			c.MaxDiscountPence = &maxDiscount.Int64
		}
		if usageLimit.Valid {
			n := int(usageLimit.Int64)
			c.UsageLimit = &n
		}
		if email.Valid {
			c.ExclusiveEmail = &email.String
		}
		if validUntil.Valid {
			c.ValidUntil = &validUntil.Time
		}
		c.ApplicableStudios = splitStudios(studios)
		out = append(out, c)
	}
	return out, rows.Err()
}

// RedeemCode records one use of code for a quote. The increment is guarded by the usage
// limit so concurrent checkouts cannot overshoot it.
func (db *DB) RedeemCode(ctx context.Context, code, quoteID, email string, discountPence int64) error {
	code = discount.Normalize(code)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE discount_codes SET usage_count = usage_count + 1, updated_at = ?
		WHERE code = ? AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		time.Now(), code,
	)
	if err != nil {
		return fmt.Errorf("redeem %s: %w", code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM discount_codes WHERE code = ?`, code).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", discount.ErrNotFound, code)
		}
		return fmt.Errorf("%w: %s", discount.ErrUsageLimitReached, code)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO discount_redemptions (code, quote_id, email, discount_pence, redeemed_at)
		VALUES (?, ?, ?, ?, ?)`,
		code, quoteID, strings.ToLower(strings.TrimSpace(email)), discountPence, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("record redemption of %s: %w", code, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	db.logger.Info().Str("code", code).Str("quote_id", quoteID).Msg("discount code redeemed")
	return nil
}

// Redemptions counts recorded uses of code.
func (db *DB) Redemptions(ctx context.Context, code string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM discount_redemptions WHERE code = ?`, discount.Normalize(code),
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func joinStudios(studios []models.Studio) any {
	if len(studios) == 0 {
		return nil
	}
	parts := make([]string, len(studios))
	for i, s := range studios {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func splitStudios(s sql.NullString) []models.Studio {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []models.Studio
	for _, p := range strings.Split(s.String, ",") {
		out = append(out, models.Studio(p))
	}
	return out
}
