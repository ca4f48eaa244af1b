package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/authgrid/authgrid/internal/common/cnst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCreateUser(t *testing.T) {
	r, db := newTestServer(t)

	w := postJSON(t, r, "/api/users", map[string]string{"username": "admin", "password": "secret"})
	require.Equal(t, http.StatusCreated, w.Code)

	user, err := db.GetUserByUsername(context.Background(), "admin")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	// stored as a hash, never the raw password
	assert.NotEqual(t, "secret", user.Password)

	// duplicate username
	w = postJSON(t, r, "/api/users", map[string]string{"username": "admin", "password": "other"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// missing fields
	w = postJSON(t, r, "/api/users", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRegisterClientAndLogin(t *testing.T) {
	r, _ := newTestServer(t)

	w := postJSON(t, r, "/api/users", map[string]string{"username": "admin", "password": "secret"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, r, "/api/clients", map[string]any{
		"username":    "admin",
		"password":    "secret",
		"client_name": "dashboard",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	creds := decodeJSON(t, w)
	clientID := creds["client_id"].(string)
	clientSecret := creds["client_secret"].(string)
	assert.Len(t, clientID, cnst.ClientIDLength)
	assert.Len(t, clientSecret, cnst.ClientSecretLength)

	// wrong user credentials are rejected
	w = postJSON(t, r, "/api/clients", map[string]any{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// login with the fresh client credentials
	w = postJSON(t, r, "/api/login", map[string]string{
		"client_id":     clientID,
		"client_secret": clientSecret,
	})
	require.Equal(t, http.StatusOK, w.Code)
	token := decodeJSON(t, w)["token"].(string)
	assert.NotEmpty(t, token)

	// the login artifact opens the admin API
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// without it the admin API is closed
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLoginBadSecret(t *testing.T) {
	r, _ := newTestServer(t)

	postJSON(t, r, "/api/users", map[string]string{"username": "admin", "password": "secret"})
	w := postJSON(t, r, "/api/clients", map[string]any{"username": "admin", "password": "secret"})
	require.Equal(t, http.StatusCreated, w.Code)
	clientID := decodeJSON(t, w)["client_id"].(string)

	w = postJSON(t, r, "/api/login", map[string]string{
		"client_id":     clientID,
		"client_secret": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_client", decodeJSON(t, w)["error"])
}
