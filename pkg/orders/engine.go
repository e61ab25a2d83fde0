// Package orders places orders against the catalog and manages their status.
package orders

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

// FirstOrderNumber is assigned when no order exists yet.
const FirstOrderNumber = 1001

type ItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Engine struct {
	db     *repository.Database
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewEngine(db *repository.Database, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Place validates every item against one snapshot of the catalog, then
// decrements stock and appends the order in the same snapshot. Either the
// whole snapshot is saved or nothing changes.
func (e *Engine) Place(ctx context.Context, userID string, items []ItemRequest, shippingAddress string) (*models.Order, error) {
	if err := validatePlacement(items, shippingAddress); err != nil {
		return nil, err
	}

	var placed models.Order
	err := e.db.Update(ctx, func(doc *models.Document) error {
		lines, total, err := priceItems(doc, items)
		if err != nil {
			return err
		}

		placed = models.Order{
			ID:              e.newID(),
			OrderNumber:     nextOrderNumber(doc.Orders),
			UserID:          userID,
			Items:           lines,
			TotalAmount:     total,
			ShippingAddress: shippingAddress,
			Status:          models.OrderStatusPending,
			CreatedAt:       e.now().UTC(),
		}

		for _, item := range items {
			product, _ := doc.FindProduct(item.ProductID)
			product.Stock -= item.Quantity
		}

		doc.Orders = append(doc.Orders, placed)
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindTransaction {
			e.logger.Error("Failed to place order", zap.String("user_id", userID), zap.Error(err))
			return nil, apperr.Transaction("Failed to place order", err)
		}
		return nil, err
	}

	e.logger.Info("Order placed",
		zap.String("order_id", placed.ID),
		zap.Int("order_number", placed.OrderNumber),
		zap.String("user_id", userID),
		zap.Float64("total_amount", placed.TotalAmount),
	)
	return &placed, nil
}

func validatePlacement(items []ItemRequest, shippingAddress string) error {
	var fields []apperr.FieldError
	if len(items) == 0 {
		fields = append(fields, apperr.FieldError{Field: "items", Message: "Order must contain at least one item"})
	}
	for _, item := range items {
		if item.ProductID == "" {
			fields = append(fields, apperr.FieldError{Field: "items.productId", Message: "Product ID is required for each item"})
		}
		if item.Quantity < 1 {
			fields = append(fields, apperr.FieldError{Field: "items.quantity", Message: "Quantity must be at least 1"})
		}
	}
	if strings.TrimSpace(shippingAddress) == "" {
		fields = append(fields, apperr.FieldError{Field: "shippingAddress", Message: "Shipping address is required"})
	}
	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}

// priceItems checks items in input order and snapshots name and unit price.
// It does not modify doc.
func priceItems(doc *models.Document, items []ItemRequest) ([]models.OrderItem, float64, error) {
	requested := make(map[string]int, len(items))
	lines := make([]models.OrderItem, 0, len(items))
	total := decimal.Zero

	for _, item := range items {
		product, _ := doc.FindProduct(item.ProductID)
		if product == nil {
			return nil, 0, &ProductNotFoundError{ProductID: item.ProductID}
		}

		// Compare against what is left so huge quantities cannot wrap the sum.
		if item.Quantity > product.Stock-requested[product.ID] {
			return nil, 0, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.Stock,
				Requested: saturatingAdd(requested[product.ID], item.Quantity),
			}
		}
		requested[product.ID] += item.Quantity

		subtotal := decimal.NewFromFloat(product.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(subtotal)

		lines = append(lines, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    item.Quantity,
			Subtotal:    subtotal.InexactFloat64(),
		})
	}

	return lines, total.Round(2).InexactFloat64(), nil
}

func saturatingAdd(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

func nextOrderNumber(orders []models.Order) int {
	if len(orders) == 0 {
		return FirstOrderNumber
	}
	highest := orders[0].OrderNumber
	for _, o := range orders[1:] {
		if o.OrderNumber > highest {
			highest = o.OrderNumber
		}
	}
	return highest + 1
}

// UpdateStatus moves an order to any of the known states and stamps it.
// Cancelling does not return stock to the catalog.
func (e *Engine) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperr.Validation(apperr.FieldError{Field: "status", Message: "Invalid status"})
	}

	var updated models.Order
	err := e.db.Update(ctx, func(doc *models.Document) error {
		order, _ := doc.FindOrder(orderID)
		if order == nil {
			return apperr.NotFound("Order not found")
		}
		now := e.now().UTC()
		order.Status = status
		order.UpdatedAt = &now
		updated = *order
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Order status updated", zap.String("order_id", orderID), zap.String("status", string(status)))
	return &updated, nil
}

func (e *Engine) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var found models.Order
	err := e.db.View(ctx, func(doc *models.Document) error {
		order, _ := doc.FindOrder(orderID)
		if order == nil {
			return apperr.NotFound("Order not found")
		}
		found = *order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (e *Engine) List(ctx context.Context) ([]models.Order, error) {
	var all []models.Order
	err := e.db.View(ctx, func(doc *models.Document) error {
		all = doc.Orders
		return nil
	})
	return all, err
}

func (e *Engine) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var owned []models.Order
	err := e.db.View(ctx, func(doc *models.Document) error {
		owned = doc.OrdersByUser(userID)
		return nil
	})
	return owned, err
}
