// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はコース名などの利用者入力からHTMLマークアップを取り除き、
// クライアントで表示される際のXSSリスクを抑える。
// bluemondayのStrictPolicyを使用し、すべてのタグを除去してテキストのみを残す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト入力のサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize はテキストからHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// 文字参照はデコードして保存する。"R&D" はそのまま保持され、
	// "Networks &amp; Systems" は "Networks & Systems" になる。
	// 戻り値を再度Sanitizeしても変化しない。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーは構築後はスレッドセーフに利用できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はテキストからHTMLタグを除去する。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyは & や < をエスケープして返すため、元の文字へ戻す。
	// デコードによってタグが現れる入力（&lt;script&gt; 等）に備え、結果が変わらなくなるまで繰り返す。
	// 変化する回は文字列が短くなる。短くならない場合はデコードせずに返す。
	cleaned := raw
	for {
		next := html.UnescapeString(s.policy.Sanitize(cleaned))
		if next == cleaned {
			return strings.TrimSpace(cleaned)
		}
		if len(next) >= len(cleaned) {
			return strings.TrimSpace(s.policy.Sanitize(next))
		}
		cleaned = next
	}
}
