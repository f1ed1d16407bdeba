package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// APIHandlers serves account registration and login.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// CredentialsRequest is the body of both register and login.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// AuthResponse carries an issued token and the account it belongs to.
type AuthResponse struct {
	Token string     `json:"token"`
	User  proto.User `json:"user"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register creates an account and signs the new user in.
// POST /api/register
func (h *APIHandlers) Register(c *gin.Context) {
	req, ok := h.bindCredentials(c)
	if !ok {
		return
	}

	token, err := h.authService.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		h.respondWithToken(c, http.StatusCreated, token)
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "username is already taken"})
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Str("username", req.Username).Msg("registration failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// Login exchanges credentials for a token.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	req, ok := h.bindCredentials(c)
	if !ok {
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		h.respondWithToken(c, http.StatusOK, token)
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.log.Debug().Str("username", req.Username).Str("client_ip", c.ClientIP()).Msg("rejected login")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	default:
		h.log.Error().Err(err).Str("username", req.Username).Msg("login failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func (h *APIHandlers) bindCredentials(c *gin.Context) (CredentialsRequest, bool) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Str("path", c.FullPath()).Msg("invalid credentials body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return req, false
	}
	return req, true
}

// respondWithToken answers with token and the user it was issued for.
func (h *APIHandlers) respondWithToken(c *gin.Context, status int, token string) {
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		h.log.Error().Err(err).Msg("issued token does not validate")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("user_id", claims.UserID).Str("username", claims.Username).Str("path", c.FullPath()).Msg("token issued")
	c.JSON(status, AuthResponse{
		Token: token,
		User:  proto.User{ID: claims.UserID, Username: claims.Username},
	})
}
