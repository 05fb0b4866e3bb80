// Package memory provides an in-memory Store, used by the command handler
// tests and handy for running the bot without a database.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/VladimirNagibin/shop-list-bot/internal/list"
	"github.com/VladimirNagibin/shop-list-bot/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps all state in maps. Mutations are serialized with one lock per
// owner so concurrent commands from different chats never contend, while
// commands within one chat cannot lose updates.
type Store struct {
	mu     sync.Mutex // guards owners, locks and the lists map itself
	owners map[string]list.Owner
	locks  map[string]*sync.Mutex
	lists  map[string]map[string]*list.ShoppingList // ownerID -> folded name -> list
	order  map[string][]string                      // ownerID -> folded names, creation order
}

func New() *Store {
	return &Store{
		owners: make(map[string]list.Owner),
		locks:  make(map[string]*sync.Mutex),
		lists:  make(map[string]map[string]*list.ShoppingList),
		order:  make(map[string][]string),
	}
}

// ownerLock returns the per-owner mutex, creating owner state on first use.
func (s *Store) ownerLock(ownerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[ownerID] = lock
		s.lists[ownerID] = make(map[string]*list.ShoppingList)
	}
	return lock
}

func (s *Store) UpsertOwner(_ context.Context, owner list.Owner) error {
	if owner.ID == "" {
		return fmt.Errorf("%w: owner id is empty", list.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[owner.ID] = owner
	return nil
}

func (s *Store) CreateList(_ context.Context, ownerID, name string) (list.ShoppingList, error) {
	l, err := list.NewShoppingList(ownerID, name)
	if err != nil {
		return list.ShoppingList{}, err
	}

	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	key := list.Key(name)
	if _, exists := s.lists[ownerID][key]; exists {
		return list.ShoppingList{}, fmt.Errorf("%w: %s", list.ErrDuplicateList, l.Name)
	}
	s.lists[ownerID][key] = &l
	s.order[ownerID] = append(s.order[ownerID], key)
	return snapshotList(&l), nil
}

func (s *Store) DeleteList(_ context.Context, ownerID, name string) error {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	key := list.Key(name)
	if _, exists := s.lists[ownerID][key]; !exists {
		return fmt.Errorf("%w: list %q", list.ErrNotFound, name)
	}
	delete(s.lists[ownerID], key)
	order := s.order[ownerID]
	for i, k := range order {
		if k == key {
			s.order[ownerID] = append(order[:i], order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) AddItem(_ context.Context, ownerID, listName string, item list.Item) (list.Item, error) {
	it, err := list.NewItem(item.Name, item.Quantity)
	if err != nil {
		return list.Item{}, err
	}
	it.Price = item.Price

	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	l, exists := s.lists[ownerID][list.Key(listName)]
	if !exists {
		return list.Item{}, fmt.Errorf("%w: list %q", list.ErrNotFound, listName)
	}
	stored, _ := l.UpsertItem(it)
	return stored, nil
}

func (s *Store) MarkPurchased(_ context.Context, ownerID, listName, itemName string, purchased bool) error {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	l, exists := s.lists[ownerID][list.Key(listName)]
	if !exists {
		return fmt.Errorf("%w: list %q", list.ErrNotFound, listName)
	}
	it := l.Find(itemName)
	if it == nil {
		return fmt.Errorf("%w: item %q", list.ErrNotFound, itemName)
	}
	it.Purchased = purchased
	return nil
}

func (s *Store) ListItems(_ context.Context, ownerID, listName string) ([]list.Item, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	l, exists := s.lists[ownerID][list.Key(listName)]
	if !exists {
		return nil, fmt.Errorf("%w: list %q", list.ErrNotFound, listName)
	}
	items := make([]list.Item, len(l.Items))
	copy(items, l.Items)
	return items, nil
}

func (s *Store) ListAll(_ context.Context, ownerID string) ([]list.ListSummary, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	var summaries []list.ListSummary
	for _, key := range s.order[ownerID] {
		l := s.lists[ownerID][key]
		summaries = append(summaries, list.ListSummary{
			Name:      l.Name,
			ItemCount: len(l.Items),
			CreatedAt: l.CreatedAt,
		})
	}
	return summaries, nil
}

func (s *Store) SearchItems(_ context.Context, ownerID, query string) ([]list.FoundItem, error) {
	key := list.Key(query)
	if key == "" {
		return nil, fmt.Errorf("%w: search query is empty", list.ErrInvalidInput)
	}

	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	var found []list.FoundItem
	for _, listKey := range s.order[ownerID] {
		l := s.lists[ownerID][listKey]
		for _, it := range l.Items {
			if strings.Contains(list.Key(it.Name), key) {
				found = append(found, list.FoundItem{ListName: l.Name, Item: it})
			}
		}
	}
	return found, nil
}

func (s *Store) Close() error { return nil }

// snapshotList copies the list so callers cannot mutate stored state.
func snapshotList(l *list.ShoppingList) list.ShoppingList {
	out := *l
	out.Items = make([]list.Item, len(l.Items))
	copy(out.Items, l.Items)
	return out
}
