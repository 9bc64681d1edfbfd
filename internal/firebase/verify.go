package firebase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
)

// firebaseClaims はFirebase IDトークン固有のクレーム。
type firebaseClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	PhoneNumber   string `json:"phone_number"`
	AuthTime      int64  `json:"auth_time"`
	Firebase      struct {
		SignInProvider string `json:"sign_in_provider"`
	} `json:"firebase"`
}

// Validate はauth_timeが未来でないことを検証する。
func (f *firebaseClaims) Validate(context.Context) error {
	if f.AuthTime > time.Now().Add(clockSkew).Unix() {
		return errors.New("auth_time is in the future")
	}
	return nil
}

// VerifyIDToken はIDトークンの署名・発行者・対象・有効期限を検証する。
// 検証に失敗した場合はErrInvalidTokenを返す。
func (c *Client) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	if !c.Initialized() {
		return nil, ErrNotInitialized
	}
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	raw, err := c.verifier.ValidateToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	validated, ok := raw.(*validator.ValidatedClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type %T", ErrInvalidToken, raw)
	}

	sub := validated.RegisteredClaims.Subject
	if sub == "" || len(sub) > maxUIDLength {
		return nil, fmt.Errorf("%w: invalid subject", ErrInvalidToken)
	}

	token := &Token{
		UID:       sub,
		Issuer:    validated.RegisteredClaims.Issuer,
		IssuedAt:  unixTime(validated.RegisteredClaims.IssuedAt),
		ExpiresAt: unixTime(validated.RegisteredClaims.Expiry),
	}
	if claims, ok := validated.CustomClaims.(*firebaseClaims); ok && claims != nil {
		token.Email = claims.Email
		token.EmailVerified = claims.EmailVerified
		token.Name = claims.Name
		token.Picture = claims.Picture
		token.PhoneNumber = claims.PhoneNumber
		token.SignInProvider = claims.Firebase.SignInProvider
		token.AuthTime = unixTime(claims.AuthTime)
	}

	return token, nil
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
