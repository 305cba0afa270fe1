package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

// Repos is the Postgres Store.
type Repos struct {
	db *sqlx.DB
}

var _ Store = (*Repos)(nil)

func New(db *sqlx.DB) *Repos { return &Repos{db: db} }

const readingColumns = `id, timestamp, voltage_ac, voltage_dc, current_dc, current_ac, wind_speed, rpm,
	battery_temperature, humidity, turbine_status, grid_wattage, turbine_wattage, battery_soc`

func (r *Repos) AppendReading(ctx context.Context, rd *domain.Reading) error {
	row := r.db.QueryRowxContext(ctx, `INSERT INTO readings(timestamp, voltage_ac, voltage_dc, current_dc, current_ac,
		wind_speed, rpm, battery_temperature, humidity, turbine_status, grid_wattage, turbine_wattage, battery_soc)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		rd.Timestamp, rd.VoltageAC, rd.VoltageDC, rd.CurrentDC, rd.CurrentAC,
		rd.WindSpeed, rd.RPM, rd.BatteryTemperature, rd.Humidity, string(rd.TurbineStatus),
		rd.GridWattage, rd.TurbineWattage, rd.BatterySoC)
	if err := row.Scan(&rd.ID); err != nil {
		return unavailable("insert reading", err)
	}
	return nil
}

func (r *Repos) ReadingsBetween(ctx context.Context, start, end time.Time) ([]domain.Reading, error) {
	out := []domain.Reading{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+readingColumns+` FROM readings
		WHERE timestamp >= $1 AND timestamp <= $2 ORDER BY timestamp, id`, start, end)
	if err != nil {
		return nil, unavailable("select readings", err)
	}
	return out, nil
}

func (r *Repos) LatestReading(ctx context.Context) (*domain.Reading, error) {
	var rd domain.Reading
	err := r.db.GetContext(ctx, &rd, `SELECT `+readingColumns+` FROM readings ORDER BY timestamp DESC, id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("latest reading", err)
	}
	return &rd, nil
}

func (r *Repos) WattageSums(ctx context.Context) (float64, float64, error) {
	var sums struct {
		Grid    float64 `db:"grid"`
		Turbine float64 `db:"turbine"`
	}
	err := r.db.GetContext(ctx, &sums, `SELECT COALESCE(SUM(grid_wattage), 0) AS grid,
		COALESCE(SUM(turbine_wattage), 0) AS turbine FROM readings`)
	if err != nil {
		return 0, 0, unavailable("sum wattage", err)
	}
	return sums.Grid, sums.Turbine, nil
}

func (r *Repos) AppendAlert(ctx context.Context, a *domain.Alert) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO alerts(id, kind, message, advice, value, is_read, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, string(a.Kind), a.Message, a.Advice, a.Value, a.IsRead, a.Timestamp)
	if err != nil {
		return unavailable("insert alert", err)
	}
	return nil
}

func (r *Repos) AlertsBetween(ctx context.Context, kind domain.AlertKind, start, end time.Time) ([]domain.Alert, error) {
	out := []domain.Alert{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, kind, message, advice, value, is_read, timestamp FROM alerts
		WHERE ($1 = '' OR kind = $1) AND timestamp >= $2 AND timestamp <= $3 ORDER BY timestamp`,
		string(kind), start, end)
	if err != nil {
		return nil, unavailable("select alerts", err)
	}
	return out, nil
}

func (r *Repos) RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	query := `SELECT id, kind, message, advice, value, is_read, timestamp FROM alerts ORDER BY timestamp DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	out := []domain.Alert{}
	err := r.db.SelectContext(ctx, &out, query, args...)
	if err != nil {
		return nil, unavailable("recent alerts", err)
	}
	return out, nil
}

func (r *Repos) CountUnread(ctx context.Context, kind domain.AlertKind) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM alerts WHERE is_read = false AND ($1 = '' OR kind = $1)`, string(kind))
	if err != nil {
		return 0, unavailable("count unread", err)
	}
	return n, nil
}

func (r *Repos) MarkAllRead(ctx context.Context, kind domain.AlertKind) error {
	_, err := r.db.ExecContext(ctx, `UPDATE alerts SET is_read = true WHERE is_read = false AND ($1 = '' OR kind = $1)`, string(kind))
	if err != nil {
		return unavailable("mark read", err)
	}
	return nil
}

func (r *Repos) ClearAlerts(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return unavailable("clear alerts", err)
	}
	return nil
}

func (r *Repos) Close() error { return r.db.Close() }
