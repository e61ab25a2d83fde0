package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/middleware"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/orders"
)

type orderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type placeOrderRequest struct {
	Items           []orderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress string             `json:"shippingAddress" binding:"required"`
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required,oneof=pending processing shipped delivered cancelled"`
}

func (g *Gateway) listOrders(c *gin.Context) {
	all, err := g.orders.List(c.Request.Context())
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.KindInternal, "Failed to fetch orders", err))
		return
	}
	c.JSON(http.StatusOK, all)
}

func (g *Gateway) listUserOrders(c *gin.Context) {
	owned, err := g.orders.ListByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.KindInternal, "Failed to fetch user orders", err))
		return
	}
	c.JSON(http.StatusOK, owned)
}

// getOrder checks ownership after the lookup, since the owner is only known
// from the order itself.
func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.orders.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNotFound {
			err = apperr.Wrap(apperr.KindInternal, "Failed to fetch order", err)
		}
		g.fail(c, err)
		return
	}

	user, _ := middleware.CurrentUser(c)
	if !middleware.CanAccess(user, order.UserID) {
		g.fail(c, apperr.Forbidden("Access denied: You can only access your own orders"))
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := bindJSON(c, &req); err != nil {
		g.fail(c, err)
		return
	}

	user, _ := middleware.CurrentUser(c)
	items := make([]orders.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = orders.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := g.orders.Place(c.Request.Context(), user.ID, items, req.ShippingAddress)
	if err != nil {
		if _, ok := apperr.As(err); !ok {
			err = apperr.Wrap(apperr.KindInternal, "Failed to place order", err)
		}
		g.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order placed successfully",
		"order":   order,
	})
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := bindJSON(c, &req); err != nil {
		g.fail(c, err)
		return
	}

	order, err := g.orders.UpdateStatus(c.Request.Context(), c.Param("orderId"), req.Status)
	if err != nil {
		g.fail(c, retitle(err, "Failed to update order status"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated successfully",
		"order":   order,
	})
}
