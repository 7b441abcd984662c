package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/road-vision/internal/auth"
	"github.com/ukydev/road-vision/internal/models"
)

func newTestAuth(t *testing.T) *auth.Service {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	service, err := auth.NewService("handler-secret", time.Hour,
		models.Operator{Username: "ops", PasswordHash: hash, Role: models.RoleAdmin})
	require.NoError(t, err)
	return service
}

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv(t, newTestAuth(t))

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid credentials", `{"username":"ops","password":"correct-horse"}`, http.StatusOK},
		{"wrong password", `{"username":"ops","password":"battery-staple"}`, http.StatusUnauthorized},
		{"unknown user", `{"username":"ghost","password":"correct-horse"}`, http.StatusUnauthorized},
		{"missing fields", `{"username":"ops"}`, http.StatusBadRequest},
		{"invalid json", `{"username":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "POST", "/api/auth/login", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusOK {
				var login models.LoginResponse
				decode(t, resp, &login)
				assert.NotEmpty(t, login.Token)
				assert.Equal(t, "ops", login.Operator.Username)
				assert.Equal(t, models.RoleAdmin, login.Operator.Role)
				assert.True(t, login.ExpiresAt.After(time.Now()))
			}
		})
	}
}

func TestRouter_WriteRoutesRequireToken(t *testing.T) {
	authService := newTestAuth(t)
	env := newTestEnv(t, authService)
	body := batchJSON(itemJSON(1, "flat", 0, ts))

	resp := env.do(t, "POST", "/processed_agent_data/", body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	viewer, _, err := authService.GenerateToken(&models.Operator{Username: "dash", Role: models.RoleViewer})
	require.NoError(t, err)
	resp = env.do(t, "POST", "/processed_agent_data/", body, "Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	agent, _, err := authService.GenerateToken(&models.Operator{Username: "edge", Role: models.RoleAgent})
	require.NoError(t, err)
	resp = env.do(t, "POST", "/processed_agent_data/", body, "Authorization", "Bearer "+agent)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Reads stay open.
	resp = env.do(t, "GET", "/processed_agent_data/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, "DELETE", "/processed_agent_data/1", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_LoginAbsentWithoutAuth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, "POST", "/api/auth/login", `{"username":"ops","password":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
