package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizer はユーザープロフィールの自由入力欄を無害化する。
type ProfileSanitizer interface {
	// SanitizeText はマークアップを全て除去し、前後の空白を取り除いた文字列を返す。
	SanitizeText(s string) string
}

// profileSanitizer はbluemondayのStrictPolicyを使用するProfileSanitizerの実装。
// StrictPolicyはすべてのHTML要素と属性を除去し、テキストのみを残す。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerを生成する。
// bluemonday.PolicyはSanitize呼び出しに対してスレッドセーフなので共有してよい。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はマークアップを全て除去したテキストを返す。
func (s *profileSanitizer) SanitizeText(text string) string {
	return strings.TrimSpace(s.policy.Sanitize(text))
}
