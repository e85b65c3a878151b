package service

import "strings"

const baseToken = "{base}"

// ReplaceTokens substitutes every {base} in template with the lowercased
// base currency code.
func ReplaceTokens(template, base string) string {
	return strings.ReplaceAll(template, baseToken, strings.ToLower(base))
}

func hasBaseToken(templates ...string) bool {
	for _, t := range templates {
		if strings.Contains(t, baseToken) {
			return true
		}
	}
	return false
}
