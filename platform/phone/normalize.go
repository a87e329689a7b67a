// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "BR"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Canonical reduces a messaging address to a stable digit string used as the
// lead identity key. Provider addresses arrive as JIDs ("5511999999999@s.whatsapp.net")
// or loosely formatted numbers; all variants of the same number must collapse
// to the same key.
func Canonical(address string) string {
	trimmed := strings.TrimSpace(strings.ToLower(address))
	if at := strings.IndexByte(trimmed, '@'); at >= 0 {
		trimmed = trimmed[:at]
	}

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	raw := digits.String()
	if raw == "" {
		return ""
	}

	normalized := NormalizeE164("+" + raw)
	return strings.TrimPrefix(normalized, "+")
}
