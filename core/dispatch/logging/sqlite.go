package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists logs to a SQLite database. Bus ids are indexed in
// a side table so bus queries do not scan every record.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS cycle_logs (
        id TEXT PRIMARY KEY,
        ts INTEGER,
        station_id TEXT,
        record TEXT
    );
    CREATE TABLE IF NOT EXISTS cycle_buses (
        cycle_id TEXT,
        bus_id TEXT
    );
    CREATE INDEX IF NOT EXISTS cycle_buses_bus ON cycle_buses (bus_id);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec CycleRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cycle_logs (id, ts, station_id, record) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), rec.StationID, string(b)); err != nil {
		return err
	}
	for _, id := range busIDs(rec) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cycle_buses (cycle_id, bus_id) VALUES (?, ?)`, rec.ID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns records matching q ordered by time.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]CycleRecord, error) {
	var args []any
	query := `SELECT record FROM cycle_logs WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.BusID != "" {
		query += ` AND id IN (SELECT cycle_id FROM cycle_buses WHERE bus_id = ?)`
		args = append(args, q.BusID)
	}
	query += ` ORDER BY ts`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []CycleRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r CycleRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func busIDs(rec CycleRecord) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, e := range rec.Events {
		add(e.BusID)
	}
	for _, a := range rec.Assignments {
		add(a.BusID)
	}
	for _, a := range rec.Expired {
		add(a.BusID)
	}
	for _, d := range rec.Displays {
		if d != " " {
			add(d)
		}
	}
	return out
}
