package orders

import (
	"fmt"

	"github.com/example/storefront/pkg/apperr"
)

// ProductNotFoundError rejects an order line that names an unknown product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product not found: %s", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error {
	return apperr.New(apperr.KindValidation, e.Error())
}

// InsufficientStockError rejects an order line asking for more units than
// the product has. Requested counts every line of the order for that product.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", e.Name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return apperr.New(apperr.KindValidation, e.Error())
}
