package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"fleetd/internal/fleet"
	"fleetd/pkg/types"
)

const upsertNode = `
	INSERT INTO nodes(id, client_id, login_name, data, updated_at)
	VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 client_id=excluded.client_id,
	 login_name=excluded.login_name,
	 data=excluded.data,
	 updated_at=CURRENT_TIMESTAMP;
	`

// NodeStore implements fleet.Store on the nodes table.
type NodeStore struct {
	db *sql.DB
}

func NewNodeStore(db *sql.DB) *NodeStore {
	return &NodeStore{db: db}
}

func (s *NodeStore) Save(ctx context.Context, n types.Node) error {
	data, err := marshal(n)
	if err != nil {
		return fmt.Errorf("encode node %s: %w", n.ID, err)
	}
	_, err = s.db.ExecContext(ctx, upsertNode, n.ID, n.ClientID.String(), n.LoginName, data)
	return err
}

// SaveBatch writes nodes in a single transaction.
func (s *NodeStore) SaveBatch(ctx context.Context, nodes []types.Node) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertNode)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, n := range nodes {
			data, err := marshal(n)
			if err != nil {
				return fmt.Errorf("encode node %s: %w", n.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, n.ID, n.ClientID.String(), n.LoginName, data); err != nil {
				return fmt.Errorf("save node %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

func (s *NodeStore) Remove(ctx context.Context, n types.Node) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, n.ID)
	return err
}

// LoadAll reads every stored node.
func (s *NodeStore) LoadAll(ctx context.Context) ([]types.Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM nodes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Node
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var n types.Node
		if err := unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("decode node %s: %w", id, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Replace deletes every stored node and writes nodes in one transaction.
func (s *NodeStore) Replace(ctx context.Context, nodes []types.Node) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
			return err
		}
		for _, n := range nodes {
			data, err := marshal(n)
			if err != nil {
				return fmt.Errorf("encode node %s: %w", n.ID, err)
			}
			if _, err := tx.ExecContext(ctx, upsertNode, n.ID, n.ClientID.String(), n.LoginName, data); err != nil {
				return fmt.Errorf("save node %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// Loader reads the nodes table on its own goroutine. A read failure is
// logged and the load never completes, so the registry stays unready.
func (s *NodeStore) Loader(ctx context.Context, log zerolog.Logger) fleet.Loader {
	return func(onComplete func([]types.Node)) {
		go func() {
			nodes, err := s.LoadAll(ctx)
			if err != nil {
				log.Error().Err(err).Msg("load nodes failed")
				return
			}
			onComplete(nodes)
		}()
	}
}
