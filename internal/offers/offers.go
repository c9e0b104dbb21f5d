package offers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	InsertOffer(ctx context.Context, no NewOffer) (Offer, error)
	ListOffers(ctx context.Context, activeOnly bool) ([]Offer, error)
	UpdateOffer(ctx context.Context, id string, no NewOffer) (Offer, error)
	DeleteOffer(ctx context.Context, id string) error
}

// Conf is the Postgres implementation of Store.
type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	return &Conf{db: db}, nil
}

const offerColumns = `id, title, description, discount, image, is_active, created_at, updated_at`

func scanOffer(row interface{ Scan(...any) error }) (Offer, error) {
	var o Offer
	err := row.Scan(&o.ID, &o.Title, &o.Description, &o.Discount, &o.Image, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (c *Conf) InsertOffer(ctx context.Context, no NewOffer) (Offer, error) {
	active := no.IsActive == nil || *no.IsActive
	now := time.Now().UTC()
	query := `
		INSERT INTO offers (id, title, description, discount, image, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + offerColumns
	o, err := scanOffer(c.db.QueryRowContext(ctx, query, uuid.NewString(), no.Title, no.Description, no.Discount, no.Image, active, now, now))
	if err != nil {
		return Offer{}, fmt.Errorf("failed to insert offer: %w", err)
	}
	return o, nil
}

// ListOffers returns offers newest first; activeOnly hides the switched-off ones.
func (c *Conf) ListOffers(ctx context.Context, activeOnly bool) ([]Offer, error) {
	query := `
		SELECT ` + offerColumns + `
		FROM offers
		WHERE (NOT $1 OR is_active)
		ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	list := []Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}
	return list, nil
}

func (c *Conf) UpdateOffer(ctx context.Context, id string, no NewOffer) (Offer, error) {
	var active sql.NullBool
	if no.IsActive != nil {
		active = sql.NullBool{Bool: *no.IsActive, Valid: true}
	}
	query := `
		UPDATE offers
		SET title = $2, description = $3, discount = $4, image = $5,
		    is_active = COALESCE($6, is_active), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + offerColumns
	o, err := scanOffer(c.db.QueryRowContext(ctx, query, id, no.Title, no.Description, no.Discount, no.Image, active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Offer{}, ErrNotFound
		}
		return Offer{}, fmt.Errorf("failed to update offer %s: %w", id, err)
	}
	return o, nil
}

func (c *Conf) DeleteOffer(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM offers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete offer %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
