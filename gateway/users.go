package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	FullName string `json:"fullName" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// updateUserRequest fields are optional; a present field must be valid.
type updateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	FullName *string `json:"fullName" binding:"omitempty,min=1"`
	Password *string `json:"password" binding:"omitempty,min=6,max=72"`
}

func (g *Gateway) register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		g.fail(c, err)
		return
	}

	hashed, err := g.hashPassword(req.Password, "Registration failed")
	if err != nil {
		g.fail(c, err)
		return
	}

	user := models.User{
		ID:        g.newID(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashed,
		Role:      models.RoleCustomer,
		FullName:  req.FullName,
		CreatedAt: g.now().UTC(),
	}

	err = g.db.Update(c.Request.Context(), func(doc *models.Document) error {
		if doc.FindUserByUsername(user.Username) != nil {
			return apperr.Conflict("Username already exists")
		}
		if doc.EmailTaken(user.Email, "") {
			return apperr.Conflict("Email already in use")
		}
		doc.Users = append(doc.Users, user)
		return nil
	})
	if err != nil {
		g.fail(c, err)
		return
	}

	token, err := g.tokens.Issue(user.ID, user.Role)
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.KindInternal, "Registration failed", err))
		return
	}

	g.logger.Info("User registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   token,
		"user":    user.Public(),
	})
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		g.fail(c, err)
		return
	}

	var user *models.User
	err := g.db.View(c.Request.Context(), func(doc *models.Document) error {
		user = doc.FindUserByUsername(req.Username)
		return nil
	})
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.KindInternal, "Login failed", err))
		return
	}

	// Unknown usernames and wrong passwords answer the same way.
	if user == nil || !g.hasher.Verify(req.Password, user.Password) {
		g.fail(c, apperr.Unauthenticated("Invalid username or password"))
		return
	}

	token, err := g.tokens.Issue(user.ID, user.Role)
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.KindInternal, "Login failed", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    user.Public(),
	})
}

func (g *Gateway) listUsers(c *gin.Context) {
	var users []*models.PublicUser
	err := g.db.View(c.Request.Context(), func(doc *models.Document) error {
		users = models.PublicUsers(doc.Users)
		return nil
	})
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.KindInternal, "Failed to fetch users", err))
		return
	}
	c.JSON(http.StatusOK, users)
}

func (g *Gateway) getUser(c *gin.Context) {
	id := c.Param("userId")

	var user *models.PublicUser
	err := g.db.View(c.Request.Context(), func(doc *models.Document) error {
		if u, _ := doc.FindUser(id); u != nil {
			user = u.Public()
		}
		return nil
	})
	if err != nil {
		g.fail(c, apperr.Wrap(apperr.KindInternal, "Failed to fetch user", err))
		return
	}
	if user == nil {
		g.fail(c, apperr.NotFound("User not found"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// updateUser applies the present fields only. A new password is hashed
// before the write so the writer is not held by bcrypt.
func (g *Gateway) updateUser(c *gin.Context) {
	id := c.Param("userId")

	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		g.fail(c, err)
		return
	}

	var hashed string
	if req.Password != nil {
		h, err := g.hashPassword(*req.Password, "Failed to update user")
		if err != nil {
			g.fail(c, err)
			return
		}
		hashed = h
	}

	var updated *models.PublicUser
	err := g.db.Update(c.Request.Context(), func(doc *models.Document) error {
		user, _ := doc.FindUser(id)
		if user == nil {
			return apperr.NotFound("User not found")
		}
		if req.Email != nil && doc.EmailTaken(*req.Email, id) {
			return apperr.Conflict("Email already in use")
		}

		if req.Email != nil {
			user.Email = *req.Email
		}
		if req.FullName != nil {
			user.FullName = *req.FullName
		}
		if hashed != "" {
			user.Password = hashed
		}
		now := g.now().UTC()
		user.UpdatedAt = &now

		updated = user.Public()
		return nil
	})
	if err != nil {
		g.fail(c, retitle(err, "Failed to update user"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    updated,
	})
}

// hashPassword reports a password bcrypt cannot take as a validation error.
// The binding rule counts characters, bcrypt counts bytes.
func (g *Gateway) hashPassword(plaintext, failure string) (string, error) {
	hashed, err := g.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.Validation(apperr.FieldError{Field: "password", Message: msgPasswordTooLong})
		}
		return "", apperr.Wrap(apperr.KindInternal, failure, err)
	}
	return hashed, nil
}

// EnsureAdmin creates the configured administrator unless a user with that
// username already exists. It is a no-op without an admin username.
func (g *Gateway) EnsureAdmin(ctx context.Context) error {
	cfg := g.config.Auth
	if cfg.AdminUsername == "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("auth.admin_password is required when auth.admin_username is set")
	}

	hashed, err := g.hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return err
	}

	created := false
	err = g.db.Update(ctx, func(doc *models.Document) error {
		if doc.FindUserByUsername(cfg.AdminUsername) != nil {
			return nil
		}
		doc.Users = append(doc.Users, models.User{
			ID:        g.newID(),
			Username:  cfg.AdminUsername,
			Email:     cfg.AdminEmail,
			Password:  hashed,
			Role:      models.RoleAdmin,
			FullName:  "Administrator",
			CreatedAt: g.now().UTC(),
		})
		created = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	if created {
		g.logger.Info("Admin user created", zap.String("username", cfg.AdminUsername))
	}
	return nil
}
