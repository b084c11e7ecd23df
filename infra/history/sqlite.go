package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/essim/core/model"
)

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tick INTEGER NOT NULL,
	phase TEXT NOT NULL,
	site_id TEXT NOT NULL,
	battery_id TEXT NOT NULL,
	state TEXT NOT NULL,
	rate_kw REAL NOT NULL,
	energy_kwh REAL NOT NULL,
	capacity_kwh REAL NOT NULL,
	max_rate_kw REAL NOT NULL,
	min_energy_kwh REAL NOT NULL,
	clipped INTEGER NOT NULL,
	charged_kwh REAL NOT NULL,
	discharged_kwh REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_site_tick ON snapshots (site_id, tick);`

// SQLiteStore persists snapshots in the snapshots table of a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures the
// schema. ":memory:" keeps everything in memory.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps in-memory databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append inserts snaps in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, snaps []model.BatterySnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshots
		(tick, phase, site_id, battery_id, state, rate_kw, energy_kwh, capacity_kwh, max_rate_kw, min_energy_kwh, clipped, charged_kwh, discharged_kwh)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, sn := range snaps {
		if _, err := stmt.ExecContext(ctx, sn.Tick, string(sn.Phase), sn.SiteID, sn.BatteryID, sn.State.String(),
			sn.RateKW, sn.EnergyKWh, sn.CapacityKWh, sn.MaxRateKW, sn.MinEnergyKWh, sn.Clipped, sn.ChargedKWh, sn.DischargedKWh); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecordSnapshots implements metrics.TelemetrySink.
func (s *SQLiteStore) RecordSnapshots(snaps []model.BatterySnapshot) error {
	return s.Append(context.Background(), snaps)
}

// Query returns snapshots matching q in insertion order.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]model.BatterySnapshot, error) {
	query := `SELECT tick, phase, site_id, battery_id, state, rate_kw, energy_kwh, capacity_kwh, max_rate_kw,
		min_energy_kwh, clipped, charged_kwh, discharged_kwh FROM snapshots WHERE tick >= ?`
	args := []any{q.FromTick}
	if q.ToTick > 0 {
		query += ` AND tick < ?`
		args = append(args, q.ToTick)
	}
	if q.SiteID != "" {
		query += ` AND site_id = ?`
		args = append(args, q.SiteID)
	}
	if q.BatteryID != "" {
		query += ` AND battery_id = ?`
		args = append(args, q.BatteryID)
	}
	if q.Phase != "" {
		query += ` AND phase = ?`
		args = append(args, string(q.Phase))
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.BatterySnapshot
	for rows.Next() {
		var (
			sn           model.BatterySnapshot
			phase, state string
		)
		if err := rows.Scan(&sn.Tick, &phase, &sn.SiteID, &sn.BatteryID, &state, &sn.RateKW, &sn.EnergyKWh,
			&sn.CapacityKWh, &sn.MaxRateKW, &sn.MinEnergyKWh, &sn.Clipped, &sn.ChargedKWh, &sn.DischargedKWh); err != nil {
			return nil, err
		}
		sn.Phase = model.Phase(phase)
		if sn.State, err = model.ParseState(state); err != nil {
			return nil, err
		}
		res = append(res, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
