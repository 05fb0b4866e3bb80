package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/VladimirNagibin/shop-list-bot/internal/list"
	"github.com/VladimirNagibin/shop-list-bot/internal/store/postgres"
)

func startPostgres(ctx context.Context) (*tcpostgres.PostgresContainer, string, error) {
	container, err := tcpostgres.Run(ctx, "postgres:17.6-alpine3.22",
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("container.ConnectionString: %w", err)
	}

	return container, connStr, nil
}

type storeSuite struct {
	suite.Suite

	store *postgres.Store
	pool  *pgxpool.Pool
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed suite in short mode")
	}
	suite.Run(t, new(storeSuite))
}

func (s *storeSuite) SetupSuite() {
	ctx := s.T().Context()

	_, connStr, err := startPostgres(ctx)
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(ctx, connStr)
	s.Require().NoError(err)

	s.store, err = postgres.New(ctx, s.pool)
	s.Require().NoError(err)
}

func (s *storeSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *storeSuite) TestCreateList() {
	t := s.T()
	ctx := t.Context()
	owner := gofakeit.UUID()

	l, err := s.store.CreateList(ctx, owner, "Groceries")
	require.NoError(t, err)
	require.Equal(t, "Groceries", l.Name)
	require.Equal(t, owner, l.OwnerID)

	_, err = s.store.CreateList(ctx, owner, "gRoCeRiEs")
	require.ErrorIs(t, err, list.ErrDuplicateList)

	_, err = s.store.CreateList(ctx, gofakeit.UUID(), "Groceries")
	require.NoError(t, err)

	_, err = s.store.CreateList(ctx, owner, "   ")
	require.ErrorIs(t, err, list.ErrInvalidInput)
}

func (s *storeSuite) TestAddItemUpsert() {
	t := s.T()
	ctx := t.Context()
	owner := gofakeit.UUID()

	_, err := s.store.CreateList(ctx, owner, "Groceries")
	require.NoError(t, err)

	first, err := s.store.AddItem(ctx, owner, "Groceries", list.Item{Name: "Milk", Quantity: "2"})
	require.NoError(t, err)

	updated, err := s.store.AddItem(ctx, owner, "groceries", list.Item{Name: "milk", Quantity: "3"})
	require.NoError(t, err)
	require.Equal(t, first.ID, updated.ID, "update must not mint a new item")
	require.Equal(t, "3", updated.Quantity)

	items, err := s.store.ListItems(ctx, owner, "Groceries")
	require.NoError(t, err)
	require.Len(t, items, 1)

	diff := cmp.Diff(updated, items[0], cmpopts.EquateApproxTime(0))
	require.Empty(t, diff)

	_, err = s.store.AddItem(ctx, owner, "Nope", list.Item{Name: "Milk"})
	require.ErrorIs(t, err, list.ErrNotFound)
}

func (s *storeSuite) TestItemOrderAndPrice() {
	t := s.T()
	ctx := t.Context()
	owner := gofakeit.UUID()

	_, err := s.store.CreateList(ctx, owner, "Groceries")
	require.NoError(t, err)

	price := decimal.NullDecimal{Decimal: decimal.RequireFromString("1.50"), Valid: true}
	_, err = s.store.AddItem(ctx, owner, "Groceries", list.Item{Name: "Milk", Quantity: "2", Price: price})
	require.NoError(t, err)
	_, err = s.store.AddItem(ctx, owner, "Groceries", list.Item{Name: "Bread"})
	require.NoError(t, err)

	// Unpriced re-add keeps the stored price.
	stored, err := s.store.AddItem(ctx, owner, "Groceries", list.Item{Name: "milk", Quantity: "4"})
	require.NoError(t, err)
	require.True(t, stored.Price.Valid)
	require.True(t, stored.Price.Decimal.Equal(decimal.RequireFromString("1.50")))

	items, err := s.store.ListItems(ctx, owner, "Groceries")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "milk", items[0].Name, "re-added item keeps its position")
	require.Equal(t, "Bread", items[1].Name)
}

func (s *storeSuite) TestMarkPurchased() {
	t := s.T()
	ctx := t.Context()
	owner := gofakeit.UUID()

	_, err := s.store.CreateList(ctx, owner, "Groceries")
	require.NoError(t, err)
	_, err = s.store.AddItem(ctx, owner, "Groceries", list.Item{Name: "Milk"})
	require.NoError(t, err)

	for range 2 {
		require.NoError(t, s.store.MarkPurchased(ctx, owner, "Groceries", "milk", true))
	}

	items, err := s.store.ListItems(ctx, owner, "Groceries")
	require.NoError(t, err)
	require.True(t, items[0].Purchased)

	require.NoError(t, s.store.MarkPurchased(ctx, owner, "Groceries", "Milk", false))
	items, err = s.store.ListItems(ctx, owner, "Groceries")
	require.NoError(t, err)
	require.False(t, items[0].Purchased)

	err = s.store.MarkPurchased(ctx, owner, "Groceries", "Caviar", true)
	require.ErrorIs(t, err, list.ErrNotFound)
}

func (s *storeSuite) TestDeleteListCascades() {
	t := s.T()
	ctx := t.Context()
	owner := gofakeit.UUID()

	_, err := s.store.CreateList(ctx, owner, "Groceries")
	require.NoError(t, err)
	_, err = s.store.AddItem(ctx, owner, "Groceries", list.Item{Name: "Milk"})
	require.NoError(t, err)

	require.NoError(t, s.store.DeleteList(ctx, owner, "groceries"))

	_, err = s.store.ListItems(ctx, owner, "Groceries")
	require.ErrorIs(t, err, list.ErrNotFound)

	err = s.store.DeleteList(ctx, owner, "Groceries")
	require.ErrorIs(t, err, list.ErrNotFound)

	// No orphaned items behind the deleted list.
	var count int
	err = s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM items i JOIN lists l ON l.id = i.list_id WHERE l.owner_id = $1",
		owner,
	).Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}

func (s *storeSuite) TestListAll() {
	t := s.T()
	ctx := t.Context()
	owner := gofakeit.UUID()

	_, err := s.store.CreateList(ctx, owner, "Groceries")
	require.NoError(t, err)
	_, err = s.store.CreateList(ctx, owner, "Hardware")
	require.NoError(t, err)
	_, err = s.store.AddItem(ctx, owner, "Groceries", list.Item{Name: "Milk"})
	require.NoError(t, err)

	summaries, err := s.store.ListAll(ctx, owner)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "Groceries", summaries[0].Name)
	require.Equal(t, 1, summaries[0].ItemCount)
	require.Equal(t, "Hardware", summaries[1].Name)
	require.Equal(t, 0, summaries[1].ItemCount)
}

func (s *storeSuite) TestSearchItems() {
	t := s.T()
	ctx := t.Context()
	owner := gofakeit.UUID()

	_, err := s.store.CreateList(ctx, owner, "Groceries")
	require.NoError(t, err)
	_, err = s.store.CreateList(ctx, owner, "Hardware")
	require.NoError(t, err)
	_, err = s.store.AddItem(ctx, owner, "Groceries", list.Item{Name: "Oat milk"})
	require.NoError(t, err)
	_, err = s.store.AddItem(ctx, owner, "Hardware", list.Item{Name: "Milk frother"})
	require.NoError(t, err)
	_, err = s.store.AddItem(ctx, owner, "Groceries", list.Item{Name: "Bread"})
	require.NoError(t, err)

	found, err := s.store.SearchItems(ctx, owner, "MILK")
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "Groceries", found[0].ListName)
	require.Equal(t, "Oat milk", found[0].Item.Name)
	require.Equal(t, "Hardware", found[1].ListName)
	require.Equal(t, "Milk frother", found[1].Item.Name)

	found, err = s.store.SearchItems(ctx, owner, "caviar")
	require.NoError(t, err)
	require.Empty(t, found)

	_, err = s.store.SearchItems(ctx, owner, "   ")
	require.ErrorIs(t, err, list.ErrInvalidInput)
}

func (s *storeSuite) TestUpsertOwner() {
	t := s.T()
	ctx := t.Context()

	owner := list.Owner{
		ID:        gofakeit.UUID(),
		Username:  gofakeit.Username(),
		FirstName: gofakeit.FirstName(),
	}
	require.NoError(t, s.store.UpsertOwner(ctx, owner))

	owner.Username = gofakeit.Username()
	require.NoError(t, s.store.UpsertOwner(ctx, owner))

	var username string
	err := s.pool.QueryRow(ctx, "SELECT username FROM owners WHERE id = $1", owner.ID).Scan(&username)
	require.NoError(t, err)
	require.Equal(t, owner.Username, username)

	require.ErrorIs(t, s.store.UpsertOwner(ctx, list.Owner{}), list.ErrInvalidInput)
}
