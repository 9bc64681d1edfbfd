// Package firebase はFirebase Authenticationのトークン検証・ユーザー参照・
// カスタムトークン発行を行うクライアントを提供する。
package firebase

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	oauth2jwt "golang.org/x/oauth2/jwt"
)

// 既定のエンドポイント
const (
	DefaultJWKSURL            = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	DefaultTokenURL           = "https://oauth2.googleapis.com/token"
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com"

	issuerPrefix        = "https://securetoken.google.com/"
	customTokenAudience = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"
	jwksCacheTTL        = time.Hour
	clockSkew           = 5 * time.Minute
	maxUIDLength        = 128
)

var scopes = []string{
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/cloud-platform",
}

var (
	// ErrNotInitialized は認証情報がなくクライアントが初期化されていない場合に返す。
	ErrNotInitialized = errors.New("firebase: client is not initialized")
	// ErrInvalidToken はIDトークンの検証に失敗した場合に返す。
	ErrInvalidToken = errors.New("firebase: invalid or expired id token")
	// ErrUserNotFound は指定UIDのユーザーが存在しない場合に返す。
	ErrUserNotFound = errors.New("firebase: user not found")
)

// Config はクライアントの初期化設定。
// CredentialsFileが指定されていればサービスアカウントJSONから、
// そうでなければProjectID/ClientEmail/PrivateKeyから認証情報を読み込む。
type Config struct {
	CredentialsFile string
	ProjectID       string
	ClientEmail     string
	PrivateKey      string

	// 以下はテストや専用環境向けの上書き設定。空なら既定値を使う。
	HTTPClient         *http.Client
	JWKSURL            string
	TokenURL           string
	IdentityToolkitURL string
}

// Token は検証済みIDトークンの内容。
type Token struct {
	UID            string
	Email          string
	EmailVerified  bool
	Name           string
	Picture        string
	PhoneNumber    string
	SignInProvider string
	Issuer         string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	AuthTime       time.Time
}

// UserRecord はIdentity Toolkitから取得したユーザー情報。
type UserRecord struct {
	UID           string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
	PhoneNumber   string
	Disabled      bool
	CreatedAt     time.Time
	LastLoginAt   time.Time
}

// serviceAccount はサービスアカウントJSONのうち使用する項目。
type serviceAccount struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// Client はFirebase Authenticationのクライアント。
// 初期化されていない場合、すべてのメソッドはErrNotInitializedを返す。
type Client struct {
	logger      *slog.Logger
	projectID   string
	clientEmail string
	signingKey  *rsa.PrivateKey
	verifier    *validator.Validator
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	lookupURL   string
}

// NewClient は認証情報を読み込んでクライアントを生成する。
// 認証情報が見つからない、または不正な場合はログを出力し、未初期化のクライアントを返す。
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{logger: logger}

	sa, err := loadServiceAccount(cfg)
	if err != nil {
		logger.Error("failed to load firebase credentials", slog.String("error", err.Error()))
		return c
	}
	if sa == nil {
		logger.Warn("firebase credentials not configured; authentication is disabled",
			slog.String("required", "FIREBASE_CREDENTIALS_FILE or FIREBASE_PROJECT_ID, FIREBASE_CLIENT_EMAIL, FIREBASE_PRIVATE_KEY"),
		)
		return c
	}

	if err := c.init(ctx, cfg, sa); err != nil {
		logger.Error("failed to initialize firebase client", slog.String("error", err.Error()))
		return &Client{logger: logger}
	}

	logger.Info("firebase client initialized", slog.String("project_id", sa.ProjectID))
	return c
}

func loadServiceAccount(cfg Config) (*serviceAccount, error) {
	if cfg.CredentialsFile != "" {
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		var sa serviceAccount
		if err := json.Unmarshal(raw, &sa); err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
		if sa.ProjectID == "" || sa.ClientEmail == "" || sa.PrivateKey == "" {
			return nil, errors.New("credentials file must contain project_id, client_email and private_key")
		}
		return &sa, nil
	}

	if cfg.ProjectID != "" && cfg.ClientEmail != "" && cfg.PrivateKey != "" {
		return &serviceAccount{
			ProjectID:   cfg.ProjectID,
			ClientEmail: cfg.ClientEmail,
			PrivateKey:  cfg.PrivateKey,
		}, nil
	}

	return nil, nil
}

func (c *Client) init(ctx context.Context, cfg Config, sa *serviceAccount) error {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	jwksURL, err := url.Parse(valueOr(cfg.JWKSURL, DefaultJWKSURL))
	if err != nil {
		return fmt.Errorf("invalid jwks url: %w", err)
	}
	issuer := issuerPrefix + sa.ProjectID
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return fmt.Errorf("invalid issuer: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, jwksCacheTTL,
		jwks.WithCustomJWKSURI(jwksURL),
		jwks.WithCustomClient(httpClient),
	)

	verifier, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuer,
		[]string{sa.ProjectID},
		validator.WithCustomClaims(func() validator.CustomClaims { return &firebaseClaims{} }),
		validator.WithAllowedClockSkew(clockSkew),
	)
	if err != nil {
		return fmt.Errorf("failed to build token validator: %w", err)
	}

	jwtConfig := &oauth2jwt.Config{
		Email:      sa.ClientEmail,
		PrivateKey: []byte(sa.PrivateKey),
		Scopes:     scopes,
		TokenURL:   valueOr(cfg.TokenURL, DefaultTokenURL),
	}
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, httpClient)

	c.projectID = sa.ProjectID
	c.clientEmail = sa.ClientEmail
	c.signingKey = key
	c.verifier = verifier
	c.httpClient = httpClient
	c.tokenSource = jwtConfig.TokenSource(tokenCtx)
	c.lookupURL = fmt.Sprintf("%s/v1/projects/%s/accounts:lookup",
		valueOr(cfg.IdentityToolkitURL, DefaultIdentityToolkitURL), url.PathEscape(sa.ProjectID))
	return nil
}

// Initialized はクライアントが認証情報付きで初期化済みかを返す。
func (c *Client) Initialized() bool {
	return c != nil && c.verifier != nil
}

// ProjectID は対象のFirebaseプロジェクトIDを返す。
func (c *Client) ProjectID() string {
	return c.projectID
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
