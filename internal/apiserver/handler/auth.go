package handler

import (
	"net/http"
	"time"

	"github.com/authgrid/authgrid/internal/apiserver/database"
	"github.com/authgrid/authgrid/internal/auth"
	"github.com/authgrid/authgrid/internal/common/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles client login, client registration and user
// management.
type AuthHandler struct {
	db     database.Database
	oauth  auth.OAuth2
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db database.Database, oauth auth.OAuth2, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:     db,
		oauth:  oauth,
		logger: logger.Named("apiserver.handler.auth"),
	}
}

type loginRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

// HandleLogin authenticates a client and returns the login artifact.
func (h *AuthHandler) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, errorx.ErrInvalidRequest)
		return
	}

	token, err := h.oauth.Login(c.Request.Context(), req.ClientID, req.ClientSecret)
	if err != nil {
		h.logger.Warn("client login failed",
			zap.String("client_id", req.ClientID),
			zap.String("remote_addr", c.ClientIP()))
		h.sendError(c, err)
		return
	}

	h.logger.Info("client login",
		zap.String("client_id", req.ClientID),
		zap.String("remote_addr", c.ClientIP()))

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type registerClientRequest struct {
	Username     string   `json:"username" binding:"required"`
	Password     string   `json:"password" binding:"required"`
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
	Scopes       []string `json:"scopes"`
}

// HandleRegisterClient registers a new client for the authenticated
// user. The returned secret is shown exactly once.
func (h *AuthHandler) HandleRegisterClient(c *gin.Context) {
	var req registerClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, errorx.ErrInvalidRequest)
		return
	}

	creds, err := h.oauth.RegisterClient(c.Request.Context(), &auth.RegisterClientRequest{
		Username:     req.Username,
		Password:     req.Password,
		ClientName:   req.ClientName,
		RedirectURIs: req.RedirectURIs,
		Scopes:       req.Scopes,
	})
	if err != nil {
		h.sendError(c, err)
		return
	}

	h.logger.Info("registered client",
		zap.String("client_id", creds.ClientID),
		zap.String("username", req.Username),
		zap.String("remote_addr", c.ClientIP()))

	c.JSON(http.StatusCreated, creds)
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandleCreateUser creates a new user account. The password is hashed
// before it touches the database.
func (h *AuthHandler) HandleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, errorx.ErrInvalidRequest)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.sendError(c, err)
		return
	}

	user := &database.User{
		Username:  req.Username,
		Password:  string(hashed),
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := h.db.CreateUser(c.Request.Context(), user); err != nil {
		h.logger.Warn("user creation failed",
			zap.String("username", req.Username),
			zap.Error(err))
		h.sendError(c, errorx.ErrConflict)
		return
	}

	h.logger.Info("created user",
		zap.String("username", req.Username),
		zap.Uint64("user_id", user.ID))

	c.JSON(http.StatusCreated, user)
}

// HandleListUsers returns all user accounts. Guarded by the login
// artifact middleware.
func (h *AuthHandler) HandleListUsers(c *gin.Context) {
	users, err := h.db.ListUsers(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *AuthHandler) sendError(c *gin.Context, err error) {
	oauthErr := errorx.ConvertToOAuth2Error(err)
	c.JSON(oauthErr.HTTPStatus, gin.H{
		"error":             oauthErr.ErrorType,
		"error_description": oauthErr.ErrorDescription,
		"error_code":        oauthErr.ErrorCode,
	})
}
