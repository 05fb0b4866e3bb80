// Package sqlite provides the default SQLite-backed implementation of the
// store.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/VladimirNagibin/shop-list-bot/internal/list"
	"github.com/VladimirNagibin/shop-list-bot/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite. Each operation is a single
// statement or a single transaction, so it fully applies or leaves state
// unchanged.
type Store struct {
	db *sql.DB
}

// New opens (creating parent directories if needed) the database at dbPath
// and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// foreign_keys is per-connection in SQLite, so it rides the DSN to
	// reach every connection the pool opens. Needed for ON DELETE CASCADE.
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) UpsertOwner(ctx context.Context, owner list.Owner) error {
	if owner.ID == "" {
		return fmt.Errorf("%w: owner id is empty", list.ErrInvalidInput)
	}
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owners (id, username, first_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			updated_at = excluded.updated_at`,
		owner.ID, owner.Username, owner.FirstName, now, now,
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

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO lists (id, owner_id, name, name_key, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, name_key) DO NOTHING`,
		l.ID.String(), ownerID, l.Name, list.Key(l.Name), l.CreatedAt.Unix(),
	)
	if err != nil {
		return list.ShoppingList{}, fmt.Errorf("failed to insert list: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return list.ShoppingList{}, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return list.ShoppingList{}, fmt.Errorf("%w: %s", list.ErrDuplicateList, l.Name)
	}
	return l, nil
}

func (s *Store) DeleteList(ctx context.Context, ownerID, name string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM lists WHERE owner_id = ? AND name_key = ?",
		ownerID, list.Key(name),
	)
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return list.Item{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	listID, err := s.listID(ctx, tx, ownerID, listName)
	if err != nil {
		return list.Item{}, err
	}

	var price any
	if it.Price.Valid {
		price = it.Price.Decimal.String()
	}

	// Upsert by folded item name: re-adding updates quantity (and price when
	// given) but keeps position and purchased flag.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (id, list_id, name, name_key, quantity, price, purchased, position, added_at)
		VALUES (?, ?, ?, ?, ?, ?, 0,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM items WHERE list_id = ?), ?)
		ON CONFLICT(list_id, name_key) DO UPDATE SET
			name = excluded.name,
			quantity = excluded.quantity,
			price = COALESCE(excluded.price, items.price)`,
		it.ID.String(), listID, it.Name, list.Key(it.Name), it.Quantity, price,
		listID, it.AddedAt.Unix(),
	)
	if err != nil {
		return list.Item{}, fmt.Errorf("failed to upsert item: %w", err)
	}

	stored, err := scanItem(tx.QueryRowContext(ctx, `
		SELECT id, name, quantity, price, purchased, added_at
		FROM items WHERE list_id = ? AND name_key = ?`,
		listID, list.Key(it.Name),
	))
	if err != nil {
		return list.Item{}, fmt.Errorf("failed to read back item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return list.Item{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, nil
}

func (s *Store) MarkPurchased(ctx context.Context, ownerID, listName, itemName string, purchased bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	listID, err := s.listID(ctx, tx, ownerID, listName)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE items SET purchased = ? WHERE list_id = ? AND name_key = ?",
		boolToInt(purchased), listID, list.Key(itemName),
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: item %q", list.ErrNotFound, itemName)
	}
	return tx.Commit()
}

func (s *Store) ListItems(ctx context.Context, ownerID, listName string) ([]list.Item, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	listID, err := s.listID(ctx, tx, ownerID, listName)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, quantity, price, purchased, added_at
		FROM items WHERE list_id = ? ORDER BY position`,
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.name, COUNT(i.id), l.created_at
		FROM lists l LEFT JOIN items i ON i.list_id = l.id
		WHERE l.owner_id = ?
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
		var s list.ListSummary
		var createdAt int64
		if err := rows.Scan(&s.Name, &s.ItemCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan list summary: %w", err)
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		summaries = append(summaries, s)
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

	// instr instead of LIKE so the query needs no wildcard escaping.
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.name, i.id, i.name, i.quantity, i.price, i.purchased, i.added_at
		FROM items i JOIN lists l ON l.id = i.list_id
		WHERE l.owner_id = ? AND instr(i.name_key, ?) > 0
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
			hit       list.FoundItem
			id        string
			price     sql.NullString
			purchased int
			addedAt   int64
		)
		if err := rows.Scan(&hit.ListName, &id, &hit.Item.Name, &hit.Item.Quantity,
			&price, &purchased, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("item id %q is not a uuid: %w", id, err)
		}
		hit.Item.ID = parsed
		if price.Valid {
			d, err := decimal.NewFromString(price.String)
			if err != nil {
				return nil, fmt.Errorf("item price %q is not a decimal: %w", price.String, err)
			}
			hit.Item.Price = decimal.NullDecimal{Decimal: d, Valid: true}
		}
		hit.Item.Purchased = purchased != 0
		hit.Item.AddedAt = time.Unix(addedAt, 0).UTC()
		found = append(found, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search hits: %w", err)
	}
	return found, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// listID resolves a list by owner and folded name within q.
func (s *Store) listID(ctx context.Context, q querier, ownerID, listName string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx,
		"SELECT id FROM lists WHERE owner_id = ? AND name_key = ?",
		ownerID, list.Key(listName),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: list %q", list.ErrNotFound, listName)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve list: %w", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (list.Item, error) {
	var (
		it        list.Item
		id        string
		price     sql.NullString
		purchased int
		addedAt   int64
	)
	if err := row.Scan(&id, &it.Name, &it.Quantity, &price, &purchased, &addedAt); err != nil {
		return list.Item{}, fmt.Errorf("failed to scan item: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return list.Item{}, fmt.Errorf("item id %q is not a uuid: %w", id, err)
	}
	it.ID = parsed
	if price.Valid {
		d, err := decimal.NewFromString(price.String)
		if err != nil {
			return list.Item{}, fmt.Errorf("item price %q is not a decimal: %w", price.String, err)
		}
		it.Price = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	it.Purchased = purchased != 0
	it.AddedAt = time.Unix(addedAt, 0).UTC()
	return it, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
