package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestBearerAuth_PlainSecret(t *testing.T) {
	a := BearerAuth{Token: "topsecret"}
	req := authedRequest("Bearer topsecret")
	require.True(t, a.authorized(req))

	req = authedRequest("Bearer wrong")
	require.False(t, a.authorized(req))

	req = authedRequest("")
	require.False(t, a.authorized(req))
}

func TestBearerAuth_JWT(t *testing.T) {
	secret := []byte("jwt-signing-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	a := BearerAuth{JWTSecret: secret}
	require.True(t, a.authorized(authedRequest("Bearer "+signed)))
	require.False(t, a.authorized(authedRequest("Bearer not-a-jwt")))
}

func TestBearerAuth_JWTRejectsWrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret-a"))
	require.NoError(t, err)

	a := BearerAuth{JWTSecret: []byte("secret-b")}
	require.False(t, a.authorized(authedRequest("Bearer "+signed)))
}

func TestIsLoopback(t *testing.T) {
	require.True(t, isLoopback("127.0.0.1:54321"))
	require.True(t, isLoopback("[::1]:54321"))
	require.False(t, isLoopback("203.0.113.5:54321"))
}

func TestMaskToken(t *testing.T) {
	require.Equal(t, "****", MaskToken("abcd"))
	require.Equal(t, "abcd****wxyz", MaskToken("abcdefghwxyz"))
}

func authedRequest(authHeader string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/mcp/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req
}
