// internal/handlers/auth.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"casebook/internal/apperrors"
	"casebook/internal/auth"
	"casebook/internal/middleware"
	"casebook/internal/models"
	"casebook/internal/records"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=6,max=72"`
	Name     *string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func Register(svc *records.Service, tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			req.Name = &name
			if name == "" {
				req.Name = nil
			}
		}

		hashedPassword, err := auth.HashPassword(req.Password)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			// max=72 counts characters, bcrypt counts bytes
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at most 72 bytes", "field": "password"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		user, err := svc.CreateUser(c.Request.Context(), req.Email, req.Name, hashedPassword)
		if err != nil {
			respondError(c, err)
			return
		}

		issueToken(c, tokens, user, http.StatusCreated)
	}
}

func Login(svc *records.Service, tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := svc.FindUserByEmail(c.Request.Context(), req.Email)
		if errors.Is(err, apperrors.ErrNotFound) {
			respondError(c, apperrors.ErrInvalidCredentials)
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		if !auth.CheckPassword(req.Password, user.Password) {
			respondError(c, apperrors.ErrInvalidCredentials)
			return
		}

		issueToken(c, tokens, user, http.StatusOK)
	}
}

func issueToken(c *gin.Context, tokens *auth.TokenManager, user *models.User, status int) {
	token, err := tokens.GenerateToken(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookie, token, int(tokens.TTL().Seconds()), "/", "", c.Request.TLS != nil, true)

	c.JSON(status, AuthResponse{
		Token: token,
		User:  user,
	})
}

func GetProfile(svc *records.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(middleware.UserIDKey)

		user, err := svc.GetUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, user)
	}
}

func Logout(c *gin.Context) {
	c.SetCookie(middleware.AuthCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
