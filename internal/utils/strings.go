package utils

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts a CamelCase name to snake_case, used for operator names.
//
// A run of upper case letters is kept as one word ("AllGather" -> "all_gather", "TP1D" -> "tp1d"),
// except for its last letter if it starts a new word ("HTTPServer" -> "http_server").
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			sb.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			startsWord := !unicode.IsUpper(prev) && prev != '_' && !unicode.IsDigit(prev)
			endsAcronym := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if startsWord || endsAcronym {
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}
