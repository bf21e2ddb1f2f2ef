// README: User store backed by PostgreSQL.
package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waypool/internal/types"
)

var ErrNotFound = errors.New("user not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, rating, rating_count, green_points
		FROM users
		WHERE id = $1`, string(id),
	)
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Rating, &u.RatingCount, &u.GreenPoints)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ApplyRating folds one rating into the user's running average in a single
// statement so concurrent raters cannot lose updates. Mirrors NewAverage.
func (s *Store) ApplyRating(ctx context.Context, id types.ID, rating float64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET rating = ROUND(((rating * rating_count + $2) / (rating_count + 1))::numeric, 1),
		    rating_count = rating_count + 1
		WHERE id = $1`,
		string(id), rating,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreditGreenPoints(ctx context.Context, id types.ID, points int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET green_points = green_points + $2
		WHERE id = $1`,
		string(id), points,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
