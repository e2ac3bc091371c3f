package security

import "testing"

func TestSanitizeText(t *testing.T) {
	sanitizer := NewProfileSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "Alice", "Alice"},
		{"前後の空白を除去", "  Alice  ", "Alice"},
		{"装飾タグを除去", "<b>Alice</b> <i>Smith</i>", "Alice Smith"},
		{"scriptタグは中身ごと除去", `Bob<script>alert("xss")</script>`, "Bob"},
		{"イベント属性付き要素を除去", `<img src="x" onerror="alert(1)">Carol`, "Carol"},
		{"リンクはテキストのみ残す", `<a href="https://evil.example">click</a>`, "click"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestProfileSanitizerInterface(t *testing.T) {
	var _ ProfileSanitizer = NewProfileSanitizer()
}
