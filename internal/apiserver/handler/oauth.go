package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/authgrid/authgrid/internal/apiserver/database"
	"github.com/authgrid/authgrid/internal/auth"
	"github.com/authgrid/authgrid/internal/common/cnst"
	"github.com/authgrid/authgrid/internal/common/errorx"
	"github.com/authgrid/authgrid/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OAuthHandler exposes the authorization, token and revocation
// endpoints over the credential engine.
type OAuthHandler struct {
	db      database.Database
	oauth   auth.OAuth2
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewOAuthHandler creates a new OAuth handler. metrics may be nil when
// the metrics endpoint is disabled.
func NewOAuthHandler(db database.Database, oauth auth.OAuth2, m *metrics.Metrics, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		db:      db,
		oauth:   oauth,
		logger:  logger.Named("apiserver.handler.oauth"),
		metrics: m,
	}
}

// HandleAuthorize handles the authorization endpoint. GET returns the
// consent page data; POST processes the approval and redirects back to
// the client with the authorization code.
func (h *OAuthHandler) HandleAuthorize(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusOK, gin.H{
			"client_id":     c.Query("client_id"),
			"redirect_uri":  c.Query("redirect_uri"),
			"state":         c.Query("state"),
			"response_type": c.Query("response_type"),
			"scope":         c.Query("scope"),
		})
		return
	}

	redirectURI := c.PostForm("redirect_uri")

	// The approving resource owner authenticates with the form.
	user, err := h.verifyResourceOwner(c, c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		h.sendOAuthError(c, err)
		return
	}

	resp, err := h.oauth.Authorize(c.Request.Context(), &auth.AuthorizeRequest{
		ClientID:     c.PostForm("client_id"),
		RedirectURI:  redirectURI,
		ResponseType: c.PostForm("response_type"),
		Scopes:       strings.Fields(c.PostForm("scope")),
		State:        c.PostForm("state"),
		UserID:       user.ID,
	})
	if err != nil {
		h.sendOAuthError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.GrantIssued()
	}

	u, err := url.Parse(redirectURI)
	if err != nil {
		h.sendOAuthError(c, errorx.ErrInvalidRedirectURI)
		return
	}

	q := u.Query()
	q.Set("code", resp.Code)
	if resp.State != "" {
		q.Set("state", resp.State)
	}
	u.RawQuery = q.Encode()

	h.logger.Info("issued authorization code",
		zap.String("client_id", c.PostForm("client_id")),
		zap.Uint64("user_id", user.ID),
		zap.String("remote_addr", c.ClientIP()))

	c.Redirect(http.StatusFound, u.String())
}

// HandleToken handles the token endpoint for every supported grant
// type. Client credentials are accepted from the form body or HTTP
// Basic auth.
func (h *OAuthHandler) HandleToken(c *gin.Context) {
	clientID := c.PostForm("client_id")
	clientSecret := c.PostForm("client_secret")
	if basicID, basicSecret, ok := c.Request.BasicAuth(); ok {
		clientID = basicID
		clientSecret = basicSecret
	}

	req := &auth.TokenRequest{
		GrantType:    cnst.GrantType(c.PostForm("grant_type")),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Code:         c.PostForm("code"),
		RedirectURI:  c.PostForm("redirect_uri"),
		Username:     c.PostForm("username"),
		Password:     c.PostForm("password"),
		RefreshToken: c.PostForm("refresh_token"),
		Scopes:       strings.Fields(c.PostForm("scope")),
	}

	resp, err := h.oauth.Token(c.Request.Context(), req)
	if err != nil {
		h.sendOAuthError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.TokenIssued(string(req.GrantType))
	}

	h.logger.Info("issued token",
		zap.String("client_id", clientID),
		zap.String("grant_type", string(req.GrantType)),
		zap.String("remote_addr", c.ClientIP()))

	c.JSON(http.StatusOK, resp)
}

// HandleRevoke handles the token revocation endpoint. Revoking either
// token string invalidates the whole pair.
func (h *OAuthHandler) HandleRevoke(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		h.sendOAuthError(c, errorx.ErrInvalidRequest)
		return
	}

	if err := h.oauth.Revoke(c.Request.Context(), token); err != nil {
		h.sendOAuthError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// HandleValidate checks the Bearer token on the request.
func (h *OAuthHandler) HandleValidate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		h.sendOAuthError(c, errorx.ErrInvalidRequest)
		return
	}

	if err := h.oauth.ValidateToken(c.Request.Context(), parts[1]); err != nil {
		h.sendOAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"active": true})
}

func (h *OAuthHandler) verifyResourceOwner(c *gin.Context, username, password string) (*database.User, error) {
	if username == "" || password == "" {
		return nil, errorx.ErrInvalidRequest
	}

	user, err := h.db.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errorx.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		h.logger.Warn("resource owner password mismatch",
			zap.String("username", username),
			zap.String("remote_addr", c.ClientIP()))
		return nil, errorx.ErrUnauthorized
	}
	return user, nil
}

// sendOAuthError sends an OAuth error response
func (h *OAuthHandler) sendOAuthError(c *gin.Context, err error) {
	oauthErr := errorx.ConvertToOAuth2Error(err)
	if h.metrics != nil && oauthErr.HTTPStatus == http.StatusUnauthorized {
		h.metrics.AuthFailure(oauthErr.ErrorType)
	}
	c.JSON(oauthErr.HTTPStatus, gin.H{
		"error":             oauthErr.ErrorType,
		"error_description": oauthErr.ErrorDescription,
		"error_code":        oauthErr.ErrorCode,
	})
}
