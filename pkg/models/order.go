package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, status := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Order struct {
	ID              string      `json:"id" bson:"id"`
	OrderNumber     int         `json:"orderNumber" bson:"orderNumber"`
	UserID          string      `json:"userId" bson:"userId"`
	Items           []OrderItem `json:"items" bson:"items"`
	TotalAmount     float64     `json:"totalAmount" bson:"totalAmount"`
	ShippingAddress string      `json:"shippingAddress" bson:"shippingAddress"`
	Status          OrderStatus `json:"status" bson:"status"`
	CreatedAt       time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt       *time.Time  `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// OrderItem snapshots the product name and unit price at purchase time.
type OrderItem struct {
	ProductID   string  `json:"productId" bson:"productId"`
	ProductName string  `json:"productName" bson:"productName"`
	Price       float64 `json:"price" bson:"price"`
	Quantity    int     `json:"quantity" bson:"quantity"`
	Subtotal    float64 `json:"subtotal" bson:"subtotal"`
}
