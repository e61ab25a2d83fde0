package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
)

// productRequest is used for both create and full replace. Price and Stock
// are pointers so that a missing value is told apart from zero.
type productRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Price       *float64 `json:"price" binding:"required,min=0"`
	Category    string   `json:"category" binding:"required"`
	Stock       *int     `json:"stock" binding:"required,min=0"`
	ImageURL    string   `json:"imageUrl"`
}

func (g *Gateway) listProducts(c *gin.Context) {
	var products []models.Product
	err := g.db.View(c.Request.Context(), func(doc *models.Document) error {
		products = doc.Products
		return nil
	})
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.KindInternal, "Failed to fetch products", err))
		return
	}
	c.JSON(http.StatusOK, products)
}

func (g *Gateway) getProduct(c *gin.Context) {
	id := c.Param("productId")

	var product *models.Product
	err := g.db.View(c.Request.Context(), func(doc *models.Document) error {
		product, _ = doc.FindProduct(id)
		return nil
	})
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.KindInternal, "Failed to fetch product", err))
		return
	}
	if product == nil {
		g.fail(c, apperr.NotFound("Product not found"))
		return
	}
	c.JSON(http.StatusOK, product)
}

func (g *Gateway) createProduct(c *gin.Context) {
	var req productRequest
	if err := bindJSON(c, &req); err != nil {
		g.fail(c, err)
		return
	}

	product := models.Product{
		ID:          g.newID(),
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Category:    req.Category,
		Stock:       *req.Stock,
		ImageURL:    req.ImageURL,
		CreatedAt:   g.now().UTC(),
	}
	if product.ImageURL == "" {
		product.ImageURL = models.DefaultImageURL
	}

	err := g.db.Update(c.Request.Context(), func(doc *models.Document) error {
		doc.Products = append(doc.Products, product)
		return nil
	})
	if err != nil {
		g.fail(c, retitle(err, "Failed to create product"))
		return
	}

	g.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"product": product,
	})
}

// updateProduct replaces the mutable fields. An absent imageUrl keeps the
// current one.
func (g *Gateway) updateProduct(c *gin.Context) {
	id := c.Param("productId")

	var req productRequest
	if err := bindJSON(c, &req); err != nil {
		g.fail(c, err)
		return
	}

	var updated models.Product
	err := g.db.Update(c.Request.Context(), func(doc *models.Document) error {
		product, _ := doc.FindProduct(id)
		if product == nil {
			return apperr.NotFound("Product not found")
		}

		product.Name = req.Name
		product.Description = req.Description
		product.Price = *req.Price
		product.Category = req.Category
		product.Stock = *req.Stock
		if req.ImageURL != "" {
			product.ImageURL = req.ImageURL
		}
		now := g.now().UTC()
		product.UpdatedAt = &now

		updated = *product
		return nil
	})
	if err != nil {
		g.fail(c, retitle(err, "Failed to update product"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"product": updated,
	})
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	id := c.Param("productId")

	err := g.db.Update(c.Request.Context(), func(doc *models.Document) error {
		_, idx := doc.FindProduct(id)
		if idx < 0 {
			return apperr.NotFound("Product not found")
		}
		doc.Products = append(doc.Products[:idx], doc.Products[idx+1:]...)
		return nil
	})
	if err != nil {
		g.fail(c, retitle(err, "Failed to delete product"))
		return
	}

	g.logger.Info("Product deleted", zap.String("product_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// retitle gives a failed save the operation's own message.
func retitle(err error, message string) error {
	if apperr.KindOf(err) == apperr.KindTransaction {
		return apperr.Transaction(message, err)
	}
	return err
}
