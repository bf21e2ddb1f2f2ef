// README: Ride store backed by PostgreSQL with version compare-and-swap.
package ride

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"waypool/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

// execer abstracts pool vs. transaction so the CAS statement lives in one place.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const rideColumns = `
	id, driver_id,
	origin_label, origin_lat, origin_lng,
	dest_label, dest_lat, dest_lng,
	ride_date, ride_time, duration_hours,
	started_at, completed_at,
	seats_available, price_per_seat, is_active, status,
	requests, participants,
	version, created_at`

func (s *PgStore) Create(ctx context.Context, r *Ride) error {
	reqs, parts, err := marshalCollections(r)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO rides (
			id, driver_id,
			origin_label, origin_lat, origin_lng,
			dest_label, dest_lat, dest_lng,
			ride_date, ride_time, duration_hours,
			started_at, completed_at,
			seats_available, price_per_seat, is_active, status,
			requests, participants,
			version, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`,
		string(r.ID), string(r.DriverID),
		r.Origin.Label, r.Origin.Point.Lat, r.Origin.Point.Lng,
		r.Destination.Label, r.Destination.Point.Lat, r.Destination.Point.Lng,
		r.Date, r.Time, r.DurationHours,
		r.StartedAt, r.CompletedAt,
		r.SeatsAvailable, r.PricePerSeat, r.IsActive, string(r.Status),
		reqs, parts,
		r.Version, r.CreatedAt,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id))
	r, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// Update writes the full aggregate guarded by the version column. A false
// return means another writer advanced the ride first.
func (s *PgStore) Update(ctx context.Context, r *Ride) (bool, error) {
	return casUpdate(ctx, s.db, r)
}

func casUpdate(ctx context.Context, db execer, r *Ride) (bool, error) {
	reqs, parts, err := marshalCollections(r)
	if err != nil {
		return false, err
	}
	tag, err := db.Exec(ctx, `
		UPDATE rides
		SET started_at = $2,
		    completed_at = $3,
		    seats_available = $4,
		    price_per_seat = $5,
		    is_active = $6,
		    status = $7,
		    requests = $8,
		    participants = $9,
		    version = version + 1
		WHERE id = $1 AND version = $10`,
		string(r.ID),
		r.StartedAt, r.CompletedAt,
		r.SeatsAvailable, r.PricePerSeat, r.IsActive, string(r.Status),
		reqs, parts,
		r.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	r.Version++
	return true, nil
}

// StartExclusive performs the started-transition CAS and the cross-ride
// "one started ride per driver" check in a single transaction. An advisory
// lock keyed on the driver serializes concurrent starts across rides, so
// two simultaneous starts cannot both pass the check.
func (s *PgStore) StartExclusive(ctx context.Context, r *Ride) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(r.DriverID)); err != nil {
		return false, err
	}

	var busy bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE driver_id = $1 AND status = 'started' AND id <> $2
		)`,
		string(r.DriverID), string(r.ID),
	).Scan(&busy)
	if err != nil {
		return false, err
	}
	if busy {
		return false, ErrDriverBusy
	}

	ok, err := casUpdate(ctx, tx, r)
	if err != nil || !ok {
		return ok, err
	}
	if err := tx.Commit(ctx); err != nil {
		r.Version--
		return false, err
	}
	return true, nil
}

// ListOpen returns rides that can still take riders: active, not completed,
// at least one free seat.
func (s *PgStore) ListOpen(ctx context.Context) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE is_active AND status <> 'completed' AND seats_available >= 1
		ORDER BY ride_date, ride_time`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRides(rows)
}

func (s *PgStore) ListByDriver(ctx context.Context, driverID types.ID) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE driver_id = $1
		ORDER BY created_at DESC`,
		string(driverID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRides(rows)
}

func collectRides(rows pgx.Rows) ([]*Ride, error) {
	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRide(row pgx.Row) (*Ride, error) {
	var (
		r           Ride
		status      string
		reqs, parts []byte
		startedAt   *time.Time
		completedAt *time.Time
	)
	err := row.Scan(
		&r.ID, &r.DriverID,
		&r.Origin.Label, &r.Origin.Point.Lat, &r.Origin.Point.Lng,
		&r.Destination.Label, &r.Destination.Point.Lat, &r.Destination.Point.Lng,
		&r.Date, &r.Time, &r.DurationHours,
		&startedAt, &completedAt,
		&r.SeatsAvailable, &r.PricePerSeat, &r.IsActive, &status,
		&reqs, &parts,
		&r.Version, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = Status(status)
	r.StartedAt = startedAt
	r.CompletedAt = completedAt
	if err := json.Unmarshal(reqs, &r.Requests); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(parts, &r.Participants); err != nil {
		return nil, err
	}
	r.RebuildIndex()
	return &r, nil
}

func marshalCollections(r *Ride) ([]byte, []byte, error) {
	reqs := r.Requests
	if reqs == nil {
		reqs = []Request{}
	}
	parts := r.Participants
	if parts == nil {
		parts = []Participant{}
	}
	rb, err := json.Marshal(reqs)
	if err != nil {
		return nil, nil, err
	}
	pb, err := json.Marshal(parts)
	if err != nil {
		return nil, nil, err
	}
	return rb, pb, nil
}
