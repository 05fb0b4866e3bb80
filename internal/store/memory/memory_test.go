package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/VladimirNagibin/shop-list-bot/internal/list"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCreateListDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateList(ctx, "u1", "Groceries"); err != nil {
		t.Fatalf("CreateList failed: %v", err)
	}
	_, err := s.CreateList(ctx, "u1", "GROCERIES")
	if !errors.Is(err, list.ErrDuplicateList) {
		t.Errorf("Expected ErrDuplicateList, got %v", err)
	}

	// Same name under another owner is fine.
	if _, err := s.CreateList(ctx, "u2", "Groceries"); err != nil {
		t.Errorf("CreateList for another owner failed: %v", err)
	}
}

func TestAddItemUpsert(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateList(ctx, "u1", "Groceries")

	if _, err := s.AddItem(ctx, "u1", "Groceries", list.Item{Name: "Milk", Quantity: "2"}); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	stored, err := s.AddItem(ctx, "u1", "groceries", list.Item{Name: "milk", Quantity: "3"})
	if err != nil {
		t.Fatalf("AddItem update failed: %v", err)
	}
	if stored.Quantity != "3" {
		t.Errorf("Expected quantity 3, got %q", stored.Quantity)
	}

	items, err := s.ListItems(ctx, "u1", "Groceries")
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}

	if _, err := s.AddItem(ctx, "u1", "Groceries", list.Item{Name: "   "}); !errors.Is(err, list.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty name, got %v", err)
	}
}

func TestMarkPurchasedIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateList(ctx, "u1", "Groceries")
	s.AddItem(ctx, "u1", "Groceries", list.Item{Name: "Milk"})

	for i := 0; i < 2; i++ {
		if err := s.MarkPurchased(ctx, "u1", "Groceries", "milk", true); err != nil {
			t.Fatalf("MarkPurchased (round %d) failed: %v", i+1, err)
		}
	}

	items, _ := s.ListItems(ctx, "u1", "Groceries")
	if !items[0].Purchased {
		t.Error("Expected item to be purchased")
	}

	if err := s.MarkPurchased(ctx, "u1", "Groceries", "Bread", true); !errors.Is(err, list.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing item, got %v", err)
	}
}

func TestDeleteListRemovesItems(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateList(ctx, "u1", "Groceries")
	s.AddItem(ctx, "u1", "Groceries", list.Item{Name: "Milk"})

	if err := s.DeleteList(ctx, "u1", "groceries"); err != nil {
		t.Fatalf("DeleteList failed: %v", err)
	}
	if _, err := s.ListItems(ctx, "u1", "Groceries"); !errors.Is(err, list.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteList(ctx, "u1", "Groceries"); !errors.Is(err, list.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListAllOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateList(ctx, "u1", "Groceries")
	s.CreateList(ctx, "u1", "Hardware")
	s.AddItem(ctx, "u1", "Groceries", list.Item{Name: "Milk"})

	summaries, err := s.ListAll(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Name != "Groceries" || summaries[0].ItemCount != 1 {
		t.Errorf("Unexpected first summary: %+v", summaries[0])
	}
	if summaries[1].Name != "Hardware" || summaries[1].ItemCount != 0 {
		t.Errorf("Unexpected second summary: %+v", summaries[1])
	}
}

func TestSearchItems(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateList(ctx, "u1", "Groceries")
	s.CreateList(ctx, "u1", "Hardware")
	s.AddItem(ctx, "u1", "Groceries", list.Item{Name: "Oat milk"})
	s.AddItem(ctx, "u1", "Hardware", list.Item{Name: "Milk frother"})
	s.AddItem(ctx, "u1", "Groceries", list.Item{Name: "Bread"})

	found, err := s.SearchItems(ctx, "u1", "MILK")
	if err != nil {
		t.Fatalf("SearchItems failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Expected 2 hits, got %d: %+v", len(found), found)
	}
	if found[0].ListName != "Groceries" || found[0].Item.Name != "Oat milk" {
		t.Errorf("Unexpected first hit: %+v", found[0])
	}
	if found[1].ListName != "Hardware" || found[1].Item.Name != "Milk frother" {
		t.Errorf("Unexpected second hit: %+v", found[1])
	}

	if found, _ := s.SearchItems(ctx, "u1", "caviar"); len(found) != 0 {
		t.Errorf("Expected no hits, got %+v", found)
	}
	if _, err := s.SearchItems(ctx, "u1", "   "); !errors.Is(err, list.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for blank query, got %v", err)
	}
}

// Adds from many goroutines to one list must not lose updates.
func TestConcurrentAdds(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateList(ctx, "u1", "Groceries")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("item-%d", i)
			if _, err := s.AddItem(ctx, "u1", "Groceries", list.Item{Name: name}); err != nil {
				t.Errorf("AddItem %s failed: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	items, err := s.ListItems(ctx, "u1", "Groceries")
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != n {
		t.Errorf("Expected %d items, got %d", n, len(items))
	}
}
