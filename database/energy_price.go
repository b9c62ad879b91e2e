package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/angas/entsoe-go/convert"
	"github.com/angas/entsoe-go/hours"
)

type EnergyPriceRow struct {
	When     hours.DateHour
	Price    float64
	Provider string
}

func (d *Database) SaveEnergyPrices(ctx context.Context, rows []EnergyPriceRow) error {
	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin saving energy prices: %w", err)
	}
	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO energy_price (date, hour, price, provider) VALUES (?, ?, ?, ?)
			ON CONFLICT(date, hour) DO UPDATE SET
				price = excluded.price,
				provider = excluded.provider,
				updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
			row.When.Date,
			row.When.Hour,
			convert.RoundFloat64(row.Price, 5),
			row.Provider)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("saving energy price for %s: %w", row.When, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit energy prices: %w", err)
	}
	return nil
}

func (d *Database) GetEnergyPrice(ctx context.Context, dh hours.DateHour) (EnergyPriceRow, error) {
	row := d.read.QueryRowContext(ctx, `SELECT
		date, hour, price, provider
		FROM energy_price
		WHERE date = ? AND hour = ?`,
		dh.Date, dh.Hour)

	var ep EnergyPriceRow
	err := row.Scan(&ep.When.Date, &ep.When.Hour, &ep.Price, &ep.Provider)
	if err != nil {
		return EnergyPriceRow{}, fmt.Errorf("scanning energy price row for %s: %w", dh, err)
	}

	return ep, nil
}

// GetEnergyPricesBetween returns prices for hours in [from, to) ordered by hour.
func (d *Database) GetEnergyPricesBetween(ctx context.Context, from, to hours.DateHour) ([]EnergyPriceRow, error) {
	rows, err := d.read.QueryContext(ctx, `SELECT
		date, hour, price, provider
		FROM energy_price
		WHERE ((date = ? AND hour >= ?) OR date > ?)
		  AND ((date = ? AND hour < ?) OR date < ?)
		ORDER BY date, hour ASC`,
		from.Date, from.Hour, from.Date,
		to.Date, to.Hour, to.Date)
	if err != nil {
		return nil, fmt.Errorf("fetching energy prices: %w", err)
	}
	defer rows.Close()

	var energyPrices []EnergyPriceRow
	for rows.Next() {
		var ep EnergyPriceRow
		if err := rows.Scan(&ep.When.Date, &ep.When.Hour, &ep.Price, &ep.Provider); err != nil {
			return nil, fmt.Errorf("scanning energy price row: %w", err)
		}
		energyPrices = append(energyPrices, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading energy price rows: %w", err)
	}

	return energyPrices, nil
}

func (d *Database) PurgeEnergyPrice(ctx context.Context, retentionDays int) error {
	n, err := d.purgeHourly(ctx, "energy_price", retentionDays)
	if err != nil {
		return err
	}
	d.logger.Debug("purged energy prices", slog.Int64("rows", n))
	return nil
}
