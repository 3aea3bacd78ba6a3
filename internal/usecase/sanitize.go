package usecase

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// 理由・メモの自由入力はタグを全部落とす
var plainTextPolicy = bluemonday.StrictPolicy()

// 保存するのは平文なので、エスケープされた文字は戻してから切り詰める
func sanitizeText(s string, maxRunes int) string {
	s = strings.TrimSpace(html.UnescapeString(plainTextPolicy.Sanitize(s)))
	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		s = string([]rune(s)[:maxRunes])
	}
	return s
}
