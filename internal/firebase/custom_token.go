package firebase

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// reservedClaims はカスタムトークンの追加クレームとして使用できない名前。
var reservedClaims = map[string]struct{}{
	"acr": {}, "amr": {}, "at_hash": {}, "aud": {}, "auth_time": {}, "azp": {}, "cnf": {}, "c_hash": {},
	"exp": {}, "firebase": {}, "iat": {}, "iss": {}, "jti": {}, "nbf": {}, "nonce": {}, "sub": {},
}

// CreateCustomToken はクライアントSDKでのサインインに使うカスタムトークンを発行する。
// サービスアカウントの秘密鍵でRS256署名し、有効期限は1時間。
func (c *Client) CreateCustomToken(ctx context.Context, uid string, claims map[string]any) (string, error) {
	if !c.Initialized() {
		return "", ErrNotInitialized
	}
	if uid == "" || len(uid) > maxUIDLength {
		return "", fmt.Errorf("firebase: uid must be 1-%d characters", maxUIDLength)
	}
	for name := range claims {
		if _, reserved := reservedClaims[name]; reserved {
			return "", fmt.Errorf("firebase: developer claim %q is reserved", name)
		}
	}

	now := time.Now()
	payload := jwt.MapClaims{
		"iss": c.clientEmail,
		"sub": c.clientEmail,
		"aud": customTokenAudience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
		"uid": uid,
	}
	if len(claims) > 0 {
		payload["claims"] = claims
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, payload).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign custom token: %w", err)
	}
	return signed, nil
}
