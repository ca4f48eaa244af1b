package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/authgrid/authgrid/internal/apiserver/database"
	"github.com/authgrid/authgrid/internal/apiserver/middleware"
	"github.com/authgrid/authgrid/internal/auth"
	"github.com/authgrid/authgrid/internal/auth/jwt"
	"github.com/authgrid/authgrid/internal/auth/storage"
	"github.com/authgrid/authgrid/internal/common/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestServer assembles a full stack on in-memory backends: sqlite
// user database, memory credential store, the real provider and the
// gin routes.
func newTestServer(t *testing.T) (*gin.Engine, database.Database) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	jwtSvc, err := jwt.NewService(jwt.Config{
		SecretKey: "this-is-a-very-long-secret-key-for-testing",
		Duration:  time.Hour,
	})
	require.NoError(t, err)

	store := storage.NewMemoryStorage()
	oauth := auth.NewProvider(zap.NewNop(), store, NewDirectory(db), jwtSvc, time.Hour)

	authHandler := NewAuthHandler(db, oauth, zap.NewNop())
	oauthHandler := NewOAuthHandler(db, oauth, nil, zap.NewNop())

	r := gin.New()
	r.POST("/api/login", authHandler.HandleLogin)
	r.POST("/api/clients", authHandler.HandleRegisterClient)
	r.POST("/api/users", authHandler.HandleCreateUser)
	r.GET("/api/users", middleware.JWTAuthMiddleware(jwtSvc), authHandler.HandleListUsers)
	r.GET("/authorize", oauthHandler.HandleAuthorize)
	r.POST("/authorize", oauthHandler.HandleAuthorize)
	r.POST("/token", oauthHandler.HandleToken)
	r.POST("/revoke", oauthHandler.HandleRevoke)
	r.GET("/validate", oauthHandler.HandleValidate)

	return r, db
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postForm(t *testing.T, r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
