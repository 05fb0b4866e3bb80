// Package store abstracts shopping-list persistence.
package store

import (
	"context"

	"github.com/VladimirNagibin/shop-list-bot/internal/list"
)

// Store is the persistence boundary for the command handler. Implementations
// exist for memory (tests), SQLite (default) and Postgres, and can be swapped
// without touching the command layer.
//
// Every operation either fully applies or leaves state unchanged, and
// implementations serialize mutations per owner.
type Store interface {
	// UpsertOwner creates or refreshes the owner record keyed by Telegram id.
	UpsertOwner(ctx context.Context, owner list.Owner) error

	// CreateList creates a new, empty list. Returns list.ErrDuplicateList if
	// the owner already has a list with that (case-insensitive) name.
	CreateList(ctx context.Context, ownerID, name string) (list.ShoppingList, error)

	// DeleteList removes a list and all of its items. Returns
	// list.ErrNotFound if the list does not exist.
	DeleteList(ctx context.Context, ownerID, name string) error

	// AddItem inserts the item into the named list, or updates quantity and
	// price of an existing item with the same (case-insensitive) name.
	// Returns the stored item.
	AddItem(ctx context.Context, ownerID, listName string, item list.Item) (list.Item, error)

	// MarkPurchased sets the purchased flag of an item. Idempotent.
	MarkPurchased(ctx context.Context, ownerID, listName, itemName string, purchased bool) error

	// ListItems returns an insertion-ordered snapshot of the list's items.
	ListItems(ctx context.Context, ownerID, listName string) ([]list.Item, error)

	// ListAll returns summaries of every list the owner has, oldest first.
	ListAll(ctx context.Context, ownerID string) ([]list.ListSummary, error)

	// SearchItems returns every item across the owner's lists whose name
	// contains the query, case-insensitively, oldest list first.
	SearchItems(ctx context.Context, ownerID, query string) ([]list.FoundItem, error)

	// Close releases any resources held by the store.
	Close() error
}
