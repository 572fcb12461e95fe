package payment

import (
	"strings"
	"unicode"
)

// NormalizePhone turns a local or international MSISDN into the digits-only
// form the gateway expects, e.g. "0712 345-678" -> "254712345678".
func NormalizePhone(raw, countryCode string) (string, bool) {
	s := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "+")

	if s == "" {
		return "", false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return "", false
		}
	}

	switch {
	case strings.HasPrefix(s, "0"):
		s = countryCode + s[1:]
	case !strings.HasPrefix(s, countryCode):
		s = countryCode + s
	}

	if len(s) < 10 || len(s) > 15 {
		return "", false
	}
	return s, true
}
