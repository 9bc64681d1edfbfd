// Package security はプロフィール入力の無害化と外部URLの安全性検証を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses はエスケープ解除でタグが再出現した場合に繰り返す上限。
const maxSanitizePasses = 3

// ProfileSanitizer はプロフィールのテキスト項目からHTMLを取り除く。
// タグは一切許可せず、script/styleの中身も除去する。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerを生成する。
func NewProfileSanitizer() *ProfileSanitizer {
	return &ProfileSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はHTMLを除去し、前後の空白を取り除いたプレーンテキストを返す。
// bluemondayがエスケープした文字（' や & など）は元に戻す。
func (s *ProfileSanitizer) SanitizeText(raw string) string {
	out := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(out))
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}

// SanitizePtr はnil以外の値をSanitizeTextで無害化したポインタを返す。
func (s *ProfileSanitizer) SanitizePtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	v := s.SanitizeText(*raw)
	return &v
}
