package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
)

// fieldMessages is keyed by the JSON name of the offending field, or by
// field.tag where one rule needs its own wording.
var fieldMessages = map[string]string{
	"items":           "Order must contain at least one item",
	"productId":       "Product ID is required for each item",
	"quantity":        "Quantity must be at least 1",
	"shippingAddress": "Shipping address is required",
	"status":          "Invalid status",
	"name":            "Product name is required",
	"description":     "Product description is required",
	"price":           "Price must be a positive number",
	"category":        "Category is required",
	"stock":           "Stock must be a non-negative number",
	"imageUrl":        "Image URL must be a string",
	"username":        "Username is required",
	"email":           "Valid email is required",
	"fullName":        "Full name cannot be empty",
	"password":        "Password must be at least 6 characters",
	"password.max":    msgPasswordTooLong,
}

const msgPasswordTooLong = "Password must be at most 72 bytes"

var validationOnce sync.Once

// registerValidation makes validator report JSON field names.
func registerValidation() {
	validationOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func messageFor(field, tag string) string {
	if msg, ok := fieldMessages[field+"."+tag]; ok {
		return msg
	}
	if msg, ok := fieldMessages[field]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid", field)
}

// bindJSON decodes the body into req and runs its binding rules. The body is
// cached so middleware that already peeked at it does not leave it empty.
func bindJSON(c *gin.Context, req any) error {
	err := c.ShouldBindBodyWith(req, binding.JSON)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]apperr.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: messageFor(fe.Field(), fe.Tag())})
		}
		return apperr.Validation(fields...)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if idx := strings.LastIndex(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		return apperr.Validation(apperr.FieldError{Field: field, Message: messageFor(field, "")})
	}

	if errors.Is(err, io.EOF) {
		return apperr.Validation(apperr.FieldError{Field: "body", Message: "Request body is required"})
	}
	return apperr.Validation(apperr.FieldError{Field: "body", Message: "Invalid JSON body"})
}

// fail renders err and aborts the request. Application errors keep their
// message; anything else is logged and reported generically.
func (g *Gateway) fail(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		g.internalError(c, err)
		return
	}

	status := appErr.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("kind", appErr.Kind.String()),
			zap.Error(err),
		)
	}

	if appErr.Kind == apperr.KindValidation && len(appErr.Fields) > 0 {
		c.AbortWithStatusJSON(status, gin.H{"errors": appErr.Fields})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": appErr.Message})
}

func (g *Gateway) internalError(c *gin.Context, err error) {
	g.logger.Error("Unhandled error", zap.String("path", c.Request.URL.Path), zap.Error(err))

	message := "Internal server error"
	if g.config.Server.Debug {
		message = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":   "Something went wrong!",
		"message": message,
	})
}

func (g *Gateway) recoverPanic(c *gin.Context, recovered any) {
	g.internalError(c, fmt.Errorf("panic: %v", recovered))
}
