// README: Booking mirror store backed by PostgreSQL.
package booking

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"waypool/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Upsert creates the mirror row on first file and updates it in place on
// every later transition; the (ride_id, rider_id) unique index guarantees a
// single row per pair.
func (s *Store) Upsert(ctx context.Context, b Booking) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO bookings (ride_id, rider_id, seats, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (ride_id, rider_id) DO UPDATE
		SET seats = EXCLUDED.seats,
		    total_price = EXCLUDED.total_price,
		    status = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at`,
		string(b.RideID), string(b.RiderID), b.Seats, b.TotalPrice, string(b.Status), now,
	)
	return err
}

func (s *Store) UpdateStatus(ctx context.Context, rideID, riderID types.ID, status Status) error {
	_, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = $3, updated_at = $4
		WHERE ride_id = $1 AND rider_id = $2`,
		string(rideID), string(riderID), string(status), time.Now().UTC(),
	)
	return err
}

func (s *Store) Delete(ctx context.Context, rideID, riderID types.ID) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM bookings WHERE ride_id = $1 AND rider_id = $2`,
		string(rideID), string(riderID),
	)
	return err
}

func (s *Store) ListByRider(ctx context.Context, riderID types.ID) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ride_id, rider_id, seats, total_price, status, created_at, updated_at
		FROM bookings
		WHERE rider_id = $1
		ORDER BY created_at DESC`,
		string(riderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.RideID, &b.RiderID, &b.Seats, &b.TotalPrice, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
