package orders

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/writer"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store repository.DocumentStore) *Engine {
	t.Helper()
	w, err := writer.New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	e := NewEngine(repository.NewDatabase(store, w, zap.NewNop()), zap.NewNop())
	e.now = func() time.Time { return fixedNow }
	return e
}

func catalog(products ...models.Product) *repository.MemoryStore {
	doc := models.NewDocument()
	doc.Products = append(doc.Products, products...)
	return repository.NewMemoryStore(doc)
}

func snapshot(t *testing.T, store repository.DocumentStore) *models.Document {
	t.Helper()
	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	return doc
}

func TestPlace_TotalIsRoundedToCents(t *testing.T) {
	store := catalog(
		models.Product{ID: "p1", Name: "Mug", Price: 10.00, Stock: 5},
		models.Product{ID: "p2", Name: "Coaster", Price: 5.005, Stock: 5},
	)
	e := newTestEngine(t, store)

	order, err := e.Place(context.Background(), "u1", []ItemRequest{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}, "1 Main St")
	require.NoError(t, err)

	assert.Equal(t, 25.01, order.TotalAmount)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 20.0, order.Items[0].Subtotal)
	assert.Equal(t, "Mug", order.Items[0].ProductName)
	assert.Equal(t, 5.005, order.Items[1].Price)
}

func TestPlace_InsufficientStockLeavesCatalogUntouched(t *testing.T) {
	store := catalog(models.Product{ID: "p1", Name: "Lamp", Price: 30, Stock: 3})
	e := newTestEngine(t, store)

	_, err := e.Place(context.Background(), "u1", []ItemRequest{{ProductID: "p1", Quantity: 5}}, "1 Main St")

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, "Insufficient stock for Lamp. Available: 3, Requested: 5", err.Error())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	doc := snapshot(t, store)
	assert.Equal(t, 3, doc.Products[0].Stock)
	assert.Empty(t, doc.Orders)
}

func TestPlace_DecrementsStockAndNumbersOrders(t *testing.T) {
	store := catalog(models.Product{ID: "p1", Name: "Lamp", Price: 30, Stock: 10})
	e := newTestEngine(t, store)
	e.newID = func() string { return "order-1" }
	ctx := context.Background()

	first, err := e.Place(ctx, "u1", []ItemRequest{{ProductID: "p1", Quantity: 4}}, "1 Main St")
	require.NoError(t, err)
	assert.Equal(t, FirstOrderNumber, first.OrderNumber)
	assert.Equal(t, "order-1", first.ID)
	assert.Equal(t, models.OrderStatusPending, first.Status)
	assert.Equal(t, fixedNow, first.CreatedAt)
	assert.Nil(t, first.UpdatedAt)

	doc := snapshot(t, store)
	assert.Equal(t, 6, doc.Products[0].Stock)
	require.Len(t, doc.Orders, 1)
	assert.Equal(t, *first, doc.Orders[0])

	e.newID = func() string { return "order-2" }
	second, err := e.Place(ctx, "u2", []ItemRequest{{ProductID: "p1", Quantity: 1}}, "2 Side St")
	require.NoError(t, err)
	assert.Equal(t, FirstOrderNumber+1, second.OrderNumber)
	assert.Equal(t, 5, snapshot(t, store).Products[0].Stock)
}

func TestPlace_NumberFollowsHighestExisting(t *testing.T) {
	doc := models.NewDocument()
	doc.Products = append(doc.Products, models.Product{ID: "p1", Name: "Lamp", Price: 1, Stock: 1})
	doc.Orders = append(doc.Orders, models.Order{ID: "a", OrderNumber: 1500}, models.Order{ID: "b", OrderNumber: 1203})
	e := newTestEngine(t, repository.NewMemoryStore(doc))

	order, err := e.Place(context.Background(), "u1", []ItemRequest{{ProductID: "p1", Quantity: 1}}, "addr")
	require.NoError(t, err)
	assert.Equal(t, 1501, order.OrderNumber)
}

func TestPlace_UnknownProductRejectsWholeOrder(t *testing.T) {
	store := catalog(models.Product{ID: "p1", Name: "Lamp", Price: 30, Stock: 10})
	e := newTestEngine(t, store)

	_, err := e.Place(context.Background(), "u1", []ItemRequest{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "ghost", Quantity: 1},
	}, "1 Main St")

	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.ProductID)
	assert.Equal(t, "Product not found: ghost", err.Error())

	doc := snapshot(t, store)
	assert.Equal(t, 10, doc.Products[0].Stock)
	assert.Empty(t, doc.Orders)
}

func TestPlace_RepeatedProductCountsTowardStock(t *testing.T) {
	store := catalog(models.Product{ID: "p1", Name: "Lamp", Price: 30, Stock: 3})
	e := newTestEngine(t, store)

	_, err := e.Place(context.Background(), "u1", []ItemRequest{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p1", Quantity: 2},
	}, "1 Main St")

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 3, snapshot(t, store).Products[0].Stock)
}

func TestPlace_HugeRepeatedQuantityCannotWrapStock(t *testing.T) {
	store := catalog(models.Product{ID: "p1", Name: "Lamp", Price: 30, Stock: 5})
	e := newTestEngine(t, store)

	_, err := e.Place(context.Background(), "u1", []ItemRequest{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p1", Quantity: math.MaxInt},
	}, "1 Main St")

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, math.MaxInt, stockErr.Requested)

	doc := snapshot(t, store)
	assert.Equal(t, 5, doc.Products[0].Stock)
	assert.Empty(t, doc.Orders)
}

func TestPlace_RepeatedProductUsingAllStock(t *testing.T) {
	store := catalog(models.Product{ID: "p1", Name: "Lamp", Price: 30, Stock: 5})
	e := newTestEngine(t, store)

	_, err := e.Place(context.Background(), "u1", []ItemRequest{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p1", Quantity: 3},
	}, "1 Main St")
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot(t, store).Products[0].Stock)
}

func TestPlace_InputValidation(t *testing.T) {
	e := newTestEngine(t, catalog())

	tests := []struct {
		name    string
		items   []ItemRequest
		address string
		field   string
	}{
		{name: "no items", items: nil, address: "addr", field: "items"},
		{name: "missing product id", items: []ItemRequest{{Quantity: 1}}, address: "addr", field: "items.productId"},
		{name: "zero quantity", items: []ItemRequest{{ProductID: "p1"}}, address: "addr", field: "items.quantity"},
		{name: "blank address", items: []ItemRequest{{ProductID: "p1", Quantity: 1}}, address: "  ", field: "shippingAddress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Place(context.Background(), "u1", tt.items, tt.address)
			appErr, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			require.NotEmpty(t, appErr.Fields)
			assert.Equal(t, tt.field, appErr.Fields[0].Field)
		})
	}
}

type failingSaveStore struct {
	mock.Mock
	*repository.MemoryStore
}

func (s *failingSaveStore) Save(ctx context.Context, doc *models.Document) error {
	return s.Called(ctx, doc).Error(0)
}

func TestPlace_SaveFailureIsTransactionError(t *testing.T) {
	store := &failingSaveStore{MemoryStore: catalog(models.Product{ID: "p1", Name: "Lamp", Price: 30, Stock: 10})}
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	e := newTestEngine(t, store)

	order, err := e.Place(context.Background(), "u1", []ItemRequest{{ProductID: "p1", Quantity: 1}}, "addr")
	assert.Nil(t, order)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindTransaction, appErr.Kind)
	assert.Equal(t, "Failed to place order", appErr.Message)

	assert.Equal(t, 10, snapshot(t, store).Products[0].Stock)
	store.AssertExpectations(t)
}

func TestUpdateStatus(t *testing.T) {
	doc := models.NewDocument()
	doc.Orders = append(doc.Orders, models.Order{ID: "o1", OrderNumber: 1001, Status: models.OrderStatusDelivered})
	store := repository.NewMemoryStore(doc)
	e := newTestEngine(t, store)
	ctx := context.Background()

	order, err := e.UpdateStatus(ctx, "o1", models.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.NotNil(t, order.UpdatedAt)
	assert.Equal(t, fixedNow, *order.UpdatedAt)
	assert.Equal(t, models.OrderStatusPending, snapshot(t, store).Orders[0].Status)

	_, err = e.UpdateStatus(ctx, "missing", models.OrderStatusShipped)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = e.UpdateStatus(ctx, "o1", models.OrderStatus("refunded"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCancelDoesNotRestock(t *testing.T) {
	store := catalog(models.Product{ID: "p1", Name: "Lamp", Price: 30, Stock: 10})
	e := newTestEngine(t, store)
	ctx := context.Background()

	order, err := e.Place(ctx, "u1", []ItemRequest{{ProductID: "p1", Quantity: 4}}, "addr")
	require.NoError(t, err)

	_, err = e.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 6, snapshot(t, store).Products[0].Stock)
}

func TestQueries(t *testing.T) {
	doc := models.NewDocument()
	doc.Orders = append(doc.Orders,
		models.Order{ID: "o1", UserID: "u1"},
		models.Order{ID: "o2", UserID: "u2"},
		models.Order{ID: "o3", UserID: "u1"},
	)
	e := newTestEngine(t, repository.NewMemoryStore(doc))
	ctx := context.Background()

	all, err := e.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := e.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := e.ListByUser(ctx, "u9")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	got, err := e.Get(ctx, "o2")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.UserID)

	_, err = e.Get(ctx, "o9")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
