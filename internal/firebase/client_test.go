package firebase

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testProjectID   = "demo-project"
	testClientEmail = "firebase-adminsdk@demo-project.iam.gserviceaccount.com"
	testKeyID       = "test-key-1"
	testAccessToken = "test-access-token"
)

// fakeGoogle はJWKS・OAuth2トークン・accounts:lookupの各エンドポイントを模擬する。
type fakeGoogle struct {
	server    *httptest.Server
	key       *rsa.PrivateKey
	keyPEM    string
	lookups   int
	lookupErr int
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeGoogle{
		key: key,
		keyPEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})),
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/jwks":
			json.NewEncoder(w).Encode(map[string]any{
				"keys": []map[string]string{{
					"kty": "RSA",
					"kid": testKeyID,
					"alg": "RS256",
					"use": "sig",
					"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
				}},
			})
		case "/token":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": testAccessToken,
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case "/v1/projects/" + testProjectID + "/accounts:lookup":
			f.lookups++
			if f.lookupErr != 0 {
				w.WriteHeader(f.lookupErr)
				w.Write([]byte(`{"error":{"message":"boom"}}`))
				return
			}
			if r.Header.Get("Authorization") != "Bearer "+testAccessToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			var body struct {
				LocalID []string `json:"localId"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if len(body.LocalID) == 1 && body.LocalID[0] == "uid-1" {
				w.Write([]byte(`{"users":[{"localId":"uid-1","email":"ana@example.com","emailVerified":true,
					"displayName":"Ana Silva","photoUrl":"https://example.com/a.png","disabled":false,
					"createdAt":"1700000000000","lastLoginAt":"1700000360000"}]}`))
				return
			}
			w.Write([]byte(`{"kind":"identitytoolkit#GetAccountInfoResponse"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeGoogle) config() Config {
	return Config{
		ProjectID:          testProjectID,
		ClientEmail:        testClientEmail,
		PrivateKey:         f.keyPEM,
		HTTPClient:         f.server.Client(),
		JWKSURL:            f.server.URL + "/jwks",
		TokenURL:           f.server.URL + "/token",
		IdentityToolkitURL: f.server.URL,
	}
}

// idTokenClaims は有効なIDトークンのクレームを返す。
func idTokenClaims(uid string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            "https://securetoken.google.com/" + testProjectID,
		"aud":            testProjectID,
		"sub":            uid,
		"iat":            now.Add(-time.Minute).Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"auth_time":      now.Add(-2 * time.Minute).Unix(),
		"email":          "ana@example.com",
		"email_verified": true,
		"name":           "Ana Silva",
		"picture":        "https://example.com/a.png",
		"firebase":       map[string]any{"sign_in_provider": "google.com"},
	}
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKeyID
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newTestClient(t *testing.T, f *fakeGoogle) *Client {
	t.Helper()
	c := NewClient(context.Background(), f.config(), slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
	require.True(t, c.Initialized())
	return c
}

func TestNewClient_WithoutCredentials_Uninitialized(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(context.Background(), Config{}, slog.New(slog.NewJSONHandler(&buf, nil)))

	assert.False(t, c.Initialized())
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), "FIREBASE_PROJECT_ID")

	ctx := context.Background()
	_, err := c.VerifyIDToken(ctx, "token")
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.GetUser(ctx, "uid-1")
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.CreateCustomToken(ctx, "uid-1", nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestNewClient_PartialEnvCredentials_Uninitialized(t *testing.T) {
	c := NewClient(context.Background(), Config{ProjectID: testProjectID}, nil)
	assert.False(t, c.Initialized())
}

func TestNewClient_MalformedKey_Uninitialized(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(context.Background(), Config{
		ProjectID:   testProjectID,
		ClientEmail: testClientEmail,
		PrivateKey:  "not a pem",
	}, slog.New(slog.NewJSONHandler(&buf, nil)))

	assert.False(t, c.Initialized())
	assert.Contains(t, buf.String(), "failed to initialize firebase client")
}

func TestNewClient_FromCredentialsFile(t *testing.T) {
	f := newFakeGoogle(t)

	raw, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   testProjectID,
		"client_email": testClientEmail,
		"private_key":  f.keyPEM,
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "service-account.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg := f.config()
	cfg.ProjectID, cfg.ClientEmail, cfg.PrivateKey = "", "", ""
	cfg.CredentialsFile = path

	c := NewClient(context.Background(), cfg, nil)
	require.True(t, c.Initialized())
	assert.Equal(t, testProjectID, c.ProjectID())
}

func TestNewClient_MissingCredentialsFile_Uninitialized(t *testing.T) {
	c := NewClient(context.Background(), Config{CredentialsFile: filepath.Join(t.TempDir(), "nope.json")}, nil)
	assert.False(t, c.Initialized())
}

func TestVerifyIDToken_Valid(t *testing.T) {
	f := newFakeGoogle(t)
	c := newTestClient(t, f)

	tok, err := c.VerifyIDToken(context.Background(), signIDToken(t, f.key, idTokenClaims("uid-1")))
	require.NoError(t, err)

	assert.Equal(t, "uid-1", tok.UID)
	assert.Equal(t, "ana@example.com", tok.Email)
	assert.True(t, tok.EmailVerified)
	assert.Equal(t, "Ana Silva", tok.Name)
	assert.Equal(t, "https://example.com/a.png", tok.Picture)
	assert.Equal(t, "google.com", tok.SignInProvider)
	assert.Equal(t, "https://securetoken.google.com/"+testProjectID, tok.Issuer)
	assert.False(t, tok.AuthTime.IsZero())
	assert.True(t, tok.ExpiresAt.After(time.Now()))
}

func TestVerifyIDToken_Rejected(t *testing.T) {
	f := newFakeGoogle(t)
	c := newTestClient(t, f)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
	}{
		{"空文字列", func() string { return "" }},
		{"JWT形式でない", func() string { return "not-a-jwt" }},
		{"別の鍵で署名", func() string { return signIDToken(t, otherKey, idTokenClaims("uid-1")) }},
		{"期限切れ", func() string {
			claims := idTokenClaims("uid-1")
			claims["iat"] = time.Now().Add(-3 * time.Hour).Unix()
			claims["exp"] = time.Now().Add(-2 * time.Hour).Unix()
			return signIDToken(t, f.key, claims)
		}},
		{"audienceが異なる", func() string {
			claims := idTokenClaims("uid-1")
			claims["aud"] = "other-project"
			return signIDToken(t, f.key, claims)
		}},
		{"issuerが異なる", func() string {
			claims := idTokenClaims("uid-1")
			claims["iss"] = "https://accounts.google.com"
			return signIDToken(t, f.key, claims)
		}},
		{"auth_timeが未来", func() string {
			claims := idTokenClaims("uid-1")
			claims["auth_time"] = time.Now().Add(time.Hour).Unix()
			return signIDToken(t, f.key, claims)
		}},
		{"subが長すぎる", func() string { return signIDToken(t, f.key, idTokenClaims(strings.Repeat("u", 129))) }},
		{"subが空", func() string { return signIDToken(t, f.key, idTokenClaims("")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.VerifyIDToken(context.Background(), tt.token())
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestGetUser_Found(t *testing.T) {
	f := newFakeGoogle(t)
	c := newTestClient(t, f)

	u, err := c.GetUser(context.Background(), "uid-1")
	require.NoError(t, err)

	assert.Equal(t, "uid-1", u.UID)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.True(t, u.EmailVerified)
	assert.Equal(t, "Ana Silva", u.DisplayName)
	assert.Equal(t, "https://example.com/a.png", u.PhotoURL)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), u.CreatedAt)
	assert.Equal(t, time.UnixMilli(1700000360000).UTC(), u.LastLoginAt)
}

func TestGetUser_NotFound(t *testing.T) {
	f := newFakeGoogle(t)
	c := newTestClient(t, f)

	_, err := c.GetUser(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetUser_UpstreamError(t *testing.T) {
	f := newFakeGoogle(t)
	f.lookupErr = http.StatusInternalServerError
	c := newTestClient(t, f)

	_, err := c.GetUser(context.Background(), "uid-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUserNotFound))
	assert.Contains(t, err.Error(), "500")
}

func TestGetUser_InvalidUID(t *testing.T) {
	f := newFakeGoogle(t)
	c := newTestClient(t, f)

	_, err := c.GetUser(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, 0, f.lookups)
}

func TestCreateCustomToken_SignedWithServiceAccount(t *testing.T) {
	f := newFakeGoogle(t)
	c := newTestClient(t, f)

	signed, err := c.CreateCustomToken(context.Background(), "uid-1", map[string]any{"premium": true})
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return &f.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, testClientEmail, claims["iss"])
	assert.Equal(t, testClientEmail, claims["sub"])
	assert.Equal(t, customTokenAudience, claims["aud"])
	assert.Equal(t, "uid-1", claims["uid"])
	assert.Equal(t, map[string]any{"premium": true}, claims["claims"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp.Time, time.Minute)
}

func TestCreateCustomToken_Rejects(t *testing.T) {
	f := newFakeGoogle(t)
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.CreateCustomToken(ctx, "", nil)
	assert.Error(t, err)

	_, err = c.CreateCustomToken(ctx, strings.Repeat("u", 129), nil)
	assert.Error(t, err)

	_, err = c.CreateCustomToken(ctx, "uid-1", map[string]any{"sub": "other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}
