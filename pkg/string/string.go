// Package string carries the string helpers shared by request
// normalization and validation message rendering.
package string

import (
	"strings"
	"unicode"
)

// TrimStrings trims whitespace from each target in place. Used by
// request Normalize methods so handlers never see padded input.
func TrimStrings(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}

// ToSnakeCase converts a Go field name like "PhoneNumber" to its JSON
// form "phone_number". Acronym runs stay together: "AvatarURL" becomes
// "avatar_url".
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
