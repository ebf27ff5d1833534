package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists scan outcomes in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertStation ensures a station record exists.
func (r *Repository) UpsertStation(ctx context.Context, stationID string) error {
	if stationID == "" {
		return errors.New("station id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stations (station_id)
		VALUES ($1)
		ON CONFLICT (station_id) DO NOTHING
	`, stationID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, stationID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (station_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, stationID, token, expiresAt)
	return err
}

// InsertEvent writes a scan outcome.
func (r *Repository) InsertEvent(ctx context.Context, evt Event) (Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.ScannedAt.IsZero() {
		evt.ScannedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO scan_events (id, station_id, route, token, ok, message, scanned_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, evt.ID, evt.StationID, evt.Route, evt.Token, evt.OK, evt.Message, evt.ScannedAt)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// GetEvent returns a single scan outcome by id.
func (r *Repository) GetEvent(ctx context.Context, id string) (Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, station_id, route, token, ok, message, scanned_at, created_at
		FROM scan_events WHERE id = $1
	`, id)
	var evt Event
	if err := row.Scan(&evt.ID, &evt.StationID, &evt.Route, &evt.Token, &evt.OK, &evt.Message, &evt.ScannedAt, &evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// ListEvents returns scan outcomes with basic filters, newest first.
func (r *Repository) ListEvents(ctx context.Context, stationID, route string, limit, offset int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, station_id, route, token, ok, message, scanned_at, created_at FROM scan_events`
	args := []any{}
	clauses := []string{}
	if stationID != "" {
		args = append(args, stationID)
		clauses = append(clauses, fmt.Sprintf("station_id = $%d", len(args)))
	}
	if route != "" {
		args = append(args, route)
		clauses = append(clauses, fmt.Sprintf("route = $%d", len(args)))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += fmt.Sprintf(" ORDER BY scanned_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.StationID, &evt.Route, &evt.Token, &evt.OK, &evt.Message, &evt.ScannedAt, &evt.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}
