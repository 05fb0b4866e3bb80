// Package list holds the shopping-list domain model shared by every
// storage backend and by the command layer.
package list

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Sentinel errors returned by stores. Callers classify them with errors.Is
// and turn them into user-facing replies; none of them is fatal.
var (
	ErrDuplicateList = errors.New("list already exists")
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
)

// DefaultQuantity is used when the user adds an item without an amount.
const DefaultQuantity = "1"

var folder = cases.Fold()

// Key normalizes a list or item name for uniqueness checks. Case folding
// instead of ToLower so non-ASCII names ("Молоко", "Käse") compare
// correctly too.
func Key(name string) string {
	return folder.String(strings.TrimSpace(name))
}

// Owner is the Telegram user or chat that a list belongs to.
type Owner struct {
	ID        string
	Username  string
	FirstName string
}

// Item is a single entry in a shopping list. Quantity is free text ("2",
// "1 bag") on purpose; Price is optional.
type Item struct {
	ID        uuid.UUID
	Name      string
	Quantity  string
	Price     decimal.NullDecimal
	Purchased bool
	AddedAt   time.Time
}

// NewItem validates the name and fills defaults.
func NewItem(name, quantity string) (Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Item{}, fmt.Errorf("%w: item name is empty", ErrInvalidInput)
	}
	quantity = strings.TrimSpace(quantity)
	if quantity == "" {
		quantity = DefaultQuantity
	}
	return Item{
		ID:       uuid.New(),
		Name:     name,
		Quantity: quantity,
		AddedAt:  time.Now().UTC(),
	}, nil
}

// ShoppingList is a named, ordered collection of items belonging to one
// owner. Item order is insertion order and is meaningful for display.
type ShoppingList struct {
	ID        uuid.UUID
	OwnerID   string
	Name      string
	Items     []Item
	CreatedAt time.Time
}

// NewShoppingList validates the name and stamps id/creation time.
func NewShoppingList(ownerID, name string) (ShoppingList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ShoppingList{}, fmt.Errorf("%w: list name is empty", ErrInvalidInput)
	}
	return ShoppingList{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UpsertItem inserts the item or, when an item with the same folded name
// already exists, updates its quantity (and price, when provided) in place.
// Position and purchased flag of an existing item are preserved. Reports
// whether an existing item was updated.
func (l *ShoppingList) UpsertItem(it Item) (Item, bool) {
	key := Key(it.Name)
	for i := range l.Items {
		if Key(l.Items[i].Name) != key {
			continue
		}
		l.Items[i].Name = it.Name
		l.Items[i].Quantity = it.Quantity
		if it.Price.Valid {
			l.Items[i].Price = it.Price
		}
		return l.Items[i], true
	}
	l.Items = append(l.Items, it)
	return it, false
}

// Find returns a pointer to the item with the given name, nil when absent.
func (l *ShoppingList) Find(name string) *Item {
	key := Key(name)
	for i := range l.Items {
		if Key(l.Items[i].Name) == key {
			return &l.Items[i]
		}
	}
	return nil
}

// Total sums the prices of items that have one. Items without a price do
// not contribute; Priced reports how many did.
func (l *ShoppingList) Total() (total decimal.Decimal, priced int) {
	for _, it := range l.Items {
		if it.Price.Valid {
			total = total.Add(it.Price.Decimal)
			priced++
		}
	}
	return total, priced
}

// FoundItem is a search hit: an item together with the list it lives in.
type FoundItem struct {
	ListName string
	Item     Item
}

// ListSummary is what ListAll returns per list: enough for a /lists reply
// without loading every item.
type ListSummary struct {
	Name      string
	ItemCount int
	CreatedAt time.Time
}
