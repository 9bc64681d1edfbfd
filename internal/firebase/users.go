package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// lookupResponse はaccounts:lookupのレスポンス。
type lookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
		DisplayName   string `json:"displayName"`
		PhotoURL      string `json:"photoUrl"`
		PhoneNumber   string `json:"phoneNumber"`
		Disabled      bool   `json:"disabled"`
		CreatedAt     string `json:"createdAt"`
		LastLoginAt   string `json:"lastLoginAt"`
	} `json:"users"`
}

// GetUser はUIDに対応するFirebaseユーザーを取得する。
// 存在しない場合はErrUserNotFoundを返す。
func (c *Client) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	if !c.Initialized() {
		return nil, ErrNotInitialized
	}
	if uid == "" || len(uid) > maxUIDLength {
		return nil, fmt.Errorf("firebase: uid must be 1-%d characters", maxUIDLength)
	}

	body, err := json.Marshal(map[string][]string{"localId": {uid}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.lookupURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout:   c.httpClient.Timeout,
		Transport: &oauth2.Transport{Source: c.tokenSource, Base: c.httpClient.Transport},
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firebase: user lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("firebase: user lookup returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if len(decoded.Users) == 0 {
		return nil, ErrUserNotFound
	}

	u := decoded.Users[0]
	return &UserRecord{
		UID:           u.LocalID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		PhoneNumber:   u.PhoneNumber,
		Disabled:      u.Disabled,
		CreatedAt:     millisTime(u.CreatedAt),
		LastLoginAt:   millisTime(u.LastLoginAt),
	}, nil
}

// millisTime はミリ秒のUNIX時刻文字列を変換する。不正な値はゼロ値とする。
func millisTime(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
