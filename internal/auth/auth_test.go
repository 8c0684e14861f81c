package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hse-inspections/internal/errors"
)

const testSecret = "s3cret"

var supervisor = Principal{UserID: "u-sup", UserName: "Budi", Role: "Supervisor"}

func TestParseTokenRoundTrip(t *testing.T) {
	token, err := IssueToken(testSecret, supervisor, "k3-identity", time.Hour)
	require.NoError(t, err)

	p, err := NewVerifier(testSecret, WithIssuer("k3-identity")).ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, supervisor, *p)
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := IssueToken(testSecret, supervisor, "", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, supervisor, "", -time.Minute)
	require.NoError(t, err)
	noRole, err := IssueToken(testSecret, Principal{UserID: "u-1"}, "", time.Hour)
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "Supervisor",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"}})
	noExpStr, err := noExp.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *Verifier
		token    string
	}{
		{"wrong secret", NewVerifier("other"), valid},
		{"expired", NewVerifier(testSecret), expired},
		{"missing role", NewVerifier(testSecret), noRole},
		{"missing exp", NewVerifier(testSecret), noExpStr},
		{"wrong issuer", NewVerifier(testSecret, WithIssuer("k3-identity")), valid},
		{"garbage", NewVerifier(testSecret), "not.a.token"},
		{"unconfigured", NewVerifier(""), valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.ParseToken(tt.token)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(testSecret)
	var seen *Principal
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pending", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
	assert.Nil(t, seen)

	token, err := IssueToken(testSecret, supervisor, "", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/pending", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u-sup", seen.UserID)
}

func TestDevHeadersOnlyWhenEnabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderDevUserID, "u-dev")
	req.Header.Set(HeaderDevRole, "HSE Officer")

	_, err := NewVerifier(testSecret).Authenticate(req)
	assert.Error(t, err)

	p, err := NewVerifier(testSecret, WithDevHeaders()).Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "u-dev", p.UserID)
	assert.Equal(t, "HSE Officer", p.Role)
}
