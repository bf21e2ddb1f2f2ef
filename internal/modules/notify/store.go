// README: Notification store backed by PostgreSQL.
package notify

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"waypool/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, n *Notification) error {
	var rideID *string
	if n.RideID != nil {
		v := string(*n.RideID)
		rideID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (receiver_id, kind, message, ride_id, read, created_at)
		VALUES ($1, $2, $3, $4, false, $5)`,
		string(n.ReceiverID),
		string(n.Kind),
		n.Message,
		rideID,
		n.CreatedAt,
	)
	return err
}

func (s *Store) ListByReceiver(ctx context.Context, receiverID types.ID, limit int) ([]Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, receiver_id, kind, message, ride_id, read, created_at
		FROM notifications
		WHERE receiver_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		string(receiverID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var rideID *string
		if err := rows.Scan(&n.ID, &n.ReceiverID, &n.Kind, &n.Message, &rideID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if rideID != nil {
			v := types.ID(*rideID)
			n.RideID = &v
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkRead(ctx context.Context, id int64, receiverID types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE notifications SET read = true WHERE id = $1 AND receiver_id = $2`,
		id, string(receiverID),
	)
	return err
}
