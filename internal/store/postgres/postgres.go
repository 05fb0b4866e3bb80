// Package postgres provides a Postgres-backed implementation of the
// store.Store interface over a pgx connection pool. Selected when
// DATABASE_URL is set.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/VladimirNagibin/shop-list-bot/internal/list"
	"github.com/VladimirNagibin/shop-list-bot/internal/store"
)

var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS owners (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL DEFAULT '',
    first_name TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS lists (
    id UUID PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    name_key TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    UNIQUE (owner_id, name_key)
);

CREATE TABLE IF NOT EXISTS items (
    id UUID PRIMARY KEY,
    list_id UUID NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    name_key TEXT NOT NULL,
    quantity TEXT NOT NULL DEFAULT '1',
    price NUMERIC,
    purchased BOOLEAN NOT NULL DEFAULT FALSE,
    position INTEGER NOT NULL,
    added_at TIMESTAMPTZ NOT NULL,
    UNIQUE (list_id, name_key)
);

CREATE INDEX IF NOT EXISTS idx_lists_owner_id ON lists(owner_id);
CREATE INDEX IF NOT EXISTS idx_items_list_id ON items(list_id);
`

// Store implements store.Store using Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New creates the schema if needed and returns a Store over the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) UpsertOwner(ctx context.Context, owner list.Owner) error {
	if owner.ID == "" {
		return fmt.Errorf("%w: owner id is empty", list.ErrInvalidInput)
	}
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO owners (id, username, first_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			updated_at = EXCLUDED.updated_at`,
		owner.ID, owner.Username, owner.FirstName, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert owner: %w", err)
	}
	return nil
}

func (s *Store) CreateList(ctx context.Context, ownerID, name string) (list.ShoppingList, error) {
	l, err := list.NewShoppingList(ownerID, name)
	if err != nil {
		return list.ShoppingList{}, err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO lists (id, owner_id, name, name_key, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, name_key) DO NOTHING`,
		l.ID, ownerID, l.Name, list.Key(l.Name), l.CreatedAt,
	)
	if err != nil {
		return list.ShoppingList{}, fmt.Errorf("failed to insert list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return list.ShoppingList{}, fmt.Errorf("%w: %s", list.ErrDuplicateList, l.Name)
	}
	return l, nil
}

func (s *Store) DeleteList(ctx context.Context, ownerID, name string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM lists WHERE owner_id = $1 AND name_key = $2",
		ownerID, list.Key(name),
	)
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: list %q", list.ErrNotFound, name)
	}
	return nil
}

func (s *Store) AddItem(ctx context.Context, ownerID, listName string, item list.Item) (list.Item, error) {
	it, err := list.NewItem(item.Name, item.Quantity)
	if err != nil {
		return list.Item{}, err
	}
	it.Price = item.Price

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return list.Item{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	listID, err := s.listID(ctx, tx, ownerID, listName)
	if err != nil {
		return list.Item{}, err
	}

	var price *string
	if it.Price.Valid {
		p := it.Price.Decimal.String()
		price = &p
	}

	stored, err := scanItem(tx.QueryRow(ctx, `
		INSERT INTO items (id, list_id, name, name_key, quantity, price, purchased, position, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM items WHERE list_id = $2), $7)
		ON CONFLICT (list_id, name_key) DO UPDATE SET
			name = EXCLUDED.name,
			quantity = EXCLUDED.quantity,
			price = COALESCE(EXCLUDED.price, items.price)
		RETURNING id, name, quantity, price::TEXT, purchased, added_at`,
		it.ID, listID, it.Name, list.Key(it.Name), it.Quantity, price, it.AddedAt,
	))
	if err != nil {
		return list.Item{}, fmt.Errorf("failed to upsert item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return list.Item{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, nil
}

func (s *Store) MarkPurchased(ctx context.Context, ownerID, listName, itemName string, purchased bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	listID, err := s.listID(ctx, tx, ownerID, listName)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		"UPDATE items SET purchased = $1 WHERE list_id = $2 AND name_key = $3",
		purchased, listID, list.Key(itemName),
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %q", list.ErrNotFound, itemName)
	}
	return tx.Commit(ctx)
}

func (s *Store) ListItems(ctx context.Context, ownerID, listName string) ([]list.Item, error) {
	listID, err := s.listID(ctx, s.pool, ownerID, listName)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, quantity, price::TEXT, purchased, added_at
		FROM items WHERE list_id = $1 ORDER BY position`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []list.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

func (s *Store) ListAll(ctx context.Context, ownerID string) ([]list.ListSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.name, COUNT(i.id), l.created_at
		FROM lists l LEFT JOIN items i ON i.list_id = l.id
		WHERE l.owner_id = $1
		GROUP BY l.id
		ORDER BY l.created_at, l.name`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer rows.Close()

	var summaries []list.ListSummary
	for rows.Next() {
		var (
			sum   list.ListSummary
			count int64
		)
		if err := rows.Scan(&sum.Name, &count, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan list summary: %w", err)
		}
		sum.ItemCount = int(count)
		sum.CreatedAt = sum.CreatedAt.UTC()
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lists: %w", err)
	}
	return summaries, nil
}

func (s *Store) SearchItems(ctx context.Context, ownerID, query string) ([]list.FoundItem, error) {
	key := list.Key(query)
	if key == "" {
		return nil, fmt.Errorf("%w: search query is empty", list.ErrInvalidInput)
	}

	// strpos instead of LIKE so the query needs no wildcard escaping.
	rows, err := s.pool.Query(ctx, `
		SELECT l.name, i.id, i.name, i.quantity, i.price::TEXT, i.purchased, i.added_at
		FROM items i JOIN lists l ON l.id = i.list_id
		WHERE l.owner_id = $1 AND strpos(i.name_key, $2) > 0
		ORDER BY l.created_at, l.name, i.position`,
		ownerID, key,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	defer rows.Close()

	var found []list.FoundItem
	for rows.Next() {
		var (
			hit     list.FoundItem
			price   *string
			addedAt time.Time
		)
		if err := rows.Scan(&hit.ListName, &hit.Item.ID, &hit.Item.Name, &hit.Item.Quantity,
			&price, &hit.Item.Purchased, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		if price != nil {
			d, err := decimal.NewFromString(*price)
			if err != nil {
				return nil, fmt.Errorf("item price %q is not a decimal: %w", *price, err)
			}
			hit.Item.Price = decimal.NullDecimal{Decimal: d, Valid: true}
		}
		hit.Item.AddedAt = addedAt.UTC()
		found = append(found, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search hits: %w", err)
	}
	return found, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) listID(ctx context.Context, q querier, ownerID, listName string) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx,
		"SELECT id FROM lists WHERE owner_id = $1 AND name_key = $2",
		ownerID, list.Key(listName),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("%w: list %q", list.ErrNotFound, listName)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve list: %w", err)
	}
	return id, nil
}

func scanItem(row pgx.Row) (list.Item, error) {
	var (
		it      list.Item
		price   *string
		addedAt time.Time
	)
	if err := row.Scan(&it.ID, &it.Name, &it.Quantity, &price, &it.Purchased, &addedAt); err != nil {
		return list.Item{}, fmt.Errorf("failed to scan item: %w", err)
	}
	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return list.Item{}, fmt.Errorf("item price %q is not a decimal: %w", *price, err)
		}
		it.Price = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	it.AddedAt = addedAt.UTC()
	return it, nil
}
