package auth

import "strings"

// SessionCookieName names the cookie that carries the session token.
const SessionCookieName = "session_token"

// ParseSessionToken finds the session token in a raw Cookie header. Pairs
// are split on ';' and trimmed; the value is everything after the first '='.
func ParseSessionToken(header string) (string, bool) {
	prefix := SessionCookieName + "="
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, prefix) {
			continue
		}
		_, value, _ := strings.Cut(part, "=")
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}
