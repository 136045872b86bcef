package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kinship/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken_Claims(t *testing.T) {
	secret := "test-secret-key-12345678901234567890123456789012"
	s := &Server{config: &config.Config{JWTSecret: secret}}

	tokenStr, err := s.generateToken(42, "Ada Lovelace")
	require.NoError(t, err)

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)

	assert.Equal(t, "42", claims["sub"])
	assert.Equal(t, "Ada Lovelace", claims["name"])
	assert.Equal(t, tokenIssuer, claims["iss"])
	assert.Equal(t, tokenAudience, claims["aud"])
	assert.NotEmpty(t, claims["jti"])

	exp, ok := claims["exp"].(float64)
	require.True(t, ok)
	expiry := time.Unix(int64(exp), 0)
	assert.WithinDuration(t, time.Now().Add(tokenLifetime), expiry, time.Minute)
}

func TestGenerateToken_MissingSecret(t *testing.T) {
	s := &Server{config: &config.Config{}}
	_, err := s.generateToken(1, "x")
	assert.Error(t, err)
}

func TestGenerateJTI_Unique(t *testing.T) {
	s := &Server{config: &config.Config{JWTSecret: "x"}}
	a := s.generateJTI()
	b := s.generateJTI()
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "-")
}

func TestSignup_ValidationErrors(t *testing.T) {
	// Validation happens before any repository call, so no DB is needed.
	s := &Server{config: &config.Config{JWTSecret: "test-secret"}}
	app := fiber.New()
	app.Post("/signup", s.Signup)

	tests := []struct {
		name string
		body string
	}{
		{"Empty Body", `{}`},
		{"Missing Password", `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"}`},
		{"Bad Email", `{"first_name":"Ada","last_name":"Lovelace","email":"not-an-email","password":"Str0ngPassw0rd!"}`},
		{"Short Password", `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","password":"short"}`},
		{"Blank Name", `{"first_name":"   ","last_name":"Lovelace","email":"ada@example.com","password":"Str0ngPassw0rd!"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}

func TestLogout_BlacklistsJTI(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	secret := "test-secret-key-12345678901234567890123456789012"
	s := &Server{
		config: &config.Config{JWTSecret: secret},
		redis:  rdb,
	}

	token, err := s.generateToken(7, "Test User")
	require.NoError(t, err)

	app := fiber.New()
	app.Post("/logout", s.Logout)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The token's jti should now be blacklisted with a TTL bounded by the
	// token's remaining lifetime.
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	jti := claims["jti"].(string)

	exists, err := rdb.Exists(context.Background(), "blacklist:"+jti).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	ttl, err := rdb.TTL(context.Background(), "blacklist:"+jti).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= tokenLifetime, "blacklist TTL should track token expiry: %v", ttl)
}

func TestLogout_RequiresBearer(t *testing.T) {
	s := &Server{config: &config.Config{JWTSecret: "test-secret"}}
	app := fiber.New()
	app.Post("/logout", s.Logout)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Authorization required", body["error"])
}

func TestRefresh_RejectsInvalidToken(t *testing.T) {
	s := &Server{config: &config.Config{JWTSecret: "test-secret"}}
	app := fiber.New()
	app.Post("/refresh", s.Refresh)

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
