package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"storefront-service/internal/auth"
	"storefront-service/internal/users"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Signup(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var newUser users.NewUser
	if err := c.ShouldBindJSON(&newUser); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(newUser); err != nil {
		badRequest(c, validationMessage(err), err)
		return
	}

	u, err := users.NewUserRecord(newUser, []string{auth.RoleUser})
	if err != nil {
		slog.Error("error in building user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "User creation failed"})
		return
	}
	u, err = h.users.InsertUser(c.Request.Context(), u)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": err.Error()})
			return
		}
		slog.Error("error in inserting the user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "User creation failed"})
		return
	}

	slog.Info("user created", slog.String(logkey.TraceID, traceId), slog.String(logkey.UserID, u.ID))
	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"userId":  u.ID,
	})
}

func (h *Handler) Login(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var login users.Login
	if err := c.ShouldBindJSON(&login); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(login); err != nil {
		badRequest(c, validationMessage(err), err)
		return
	}

	u, err := users.Authenticate(c.Request.Context(), h.users, login)
	if err != nil {
		if errors.Is(err, users.ErrInvalidLogin) {
			slog.Warn("login rejected", slog.String(logkey.TraceID, traceId))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}
		slog.Error("error in authenticating user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}

	token, err := h.keys.GenerateToken(u.ID, u.Roles)
	if err != nil {
		slog.Error("error in generating token", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  users.Summary{ID: u.ID, Name: u.Name, Email: u.Email},
	})
}
