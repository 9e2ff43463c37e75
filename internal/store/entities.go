package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"fleetd/internal/entityset"
)

// EntityRepo stores one entity kind in the entities table.
type EntityRepo[T entityset.Entity[T]] struct {
	db   *sql.DB
	kind string
}

func NewEntityRepo[T entityset.Entity[T]](db *sql.DB, kind string) *EntityRepo[T] {
	return &EntityRepo[T]{db: db, kind: kind}
}

func (r *EntityRepo[T]) GetAll(ctx context.Context) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, data FROM entities WHERE kind = ? ORDER BY id`, r.kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var e T
		if err := unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", r.kind, id, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EntityRepo[T]) Add(ctx context.Context, e T) error {
	return r.upsert(ctx, e)
}

func (r *EntityRepo[T]) Update(ctx context.Context, e T) error {
	return r.upsert(ctx, e)
}

func (r *EntityRepo[T]) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, r.kind, id.String())
	return err
}

func (r *EntityRepo[T]) upsert(ctx context.Context, e T) error {
	data, err := marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.kind, err)
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO entities(kind, id, data, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(kind, id) DO UPDATE SET
	 data=excluded.data,
	 updated_at=CURRENT_TIMESTAMP;
	`, r.kind, e.EntityID().String(), data)
	return err
}
