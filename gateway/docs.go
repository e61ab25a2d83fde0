package gateway

import "github.com/swaggo/swag"

// apiDoc serves a hand-maintained OpenAPI description at /swagger/doc.json.
type apiDoc struct{}

func (apiDoc) ReadDoc() string {
	return apiDocJSON
}

func init() {
	swag.Register(swag.Name, apiDoc{})
}

const apiDocJSON = `{
  "swagger": "2.0",
  "info": {
    "title": "Online Store API",
    "version": "1.0.0"
  },
  "basePath": "/api",
  "securityDefinitions": {
    "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
  },
  "paths": {
    "/register": {"post": {"summary": "Create a customer account", "responses": {"201": {"description": "Registered"}, "400": {"description": "Validation failed or username/email taken"}}}},
    "/login": {"post": {"summary": "Exchange credentials for a token", "responses": {"200": {"description": "Token issued"}, "401": {"description": "Invalid username or password"}}}},
    "/users": {"get": {"summary": "List users (admin)", "security": [{"Bearer": []}], "responses": {"200": {"description": "Users without passwords"}}}},
    "/users/{userId}": {
      "get": {"summary": "Get a user (self or admin)", "security": [{"Bearer": []}], "responses": {"200": {"description": "User"}, "404": {"description": "User not found"}}},
      "patch": {"summary": "Update email, full name or password (self or admin)", "security": [{"Bearer": []}], "responses": {"200": {"description": "User updated"}, "400": {"description": "Validation failed or email in use"}}}
    },
    "/products": {
      "get": {"summary": "List products", "responses": {"200": {"description": "Products"}}},
      "post": {"summary": "Create a product (admin)", "security": [{"Bearer": []}], "responses": {"201": {"description": "Product created"}}}
    },
    "/products/{productId}": {
      "get": {"summary": "Get a product", "responses": {"200": {"description": "Product"}, "404": {"description": "Product not found"}}},
      "put": {"summary": "Replace a product (admin)", "security": [{"Bearer": []}], "responses": {"200": {"description": "Product updated"}}},
      "delete": {"summary": "Delete a product (admin)", "security": [{"Bearer": []}], "responses": {"200": {"description": "Product deleted"}}}
    },
    "/orders": {"get": {"summary": "List all orders (admin)", "security": [{"Bearer": []}], "responses": {"200": {"description": "Orders"}}}},
    "/orders/user/{userId}": {"get": {"summary": "List a user's orders (self or admin)", "security": [{"Bearer": []}], "responses": {"200": {"description": "Orders"}}}},
    "/orders/placeOrder": {"post": {"summary": "Place an order", "security": [{"Bearer": []}], "responses": {"201": {"description": "Order placed"}, "400": {"description": "Validation, unknown product or insufficient stock"}}}},
    "/orders/{orderId}": {"get": {"summary": "Get an order (owner or admin)", "security": [{"Bearer": []}], "responses": {"200": {"description": "Order"}, "403": {"description": "Not the owner"}, "404": {"description": "Order not found"}}}},
    "/orders/{orderId}/status": {"patch": {"summary": "Change order status (admin)", "security": [{"Bearer": []}], "responses": {"200": {"description": "Status updated"}}}}
  }
}`
