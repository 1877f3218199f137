// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "NL"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	if normalized, ok := ParseE164(input); ok {
		return normalized
	}
	return strings.TrimSpace(input)
}

// ParseE164 returns the E.164 form of input when it is a valid number.
func ParseE164(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return "", false
	}
	return phonenumbers.Format(number, phonenumbers.E164), true
}

// Digits returns the E.164 number without the leading plus, the form chat
// gateways address recipients by.
func Digits(input string) string {
	return strings.TrimPrefix(NormalizeE164(input), "+")
}

var candidatePattern = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)

// Find locates the first valid phone number in free text. It returns the
// number in E.164 and the text with that number cut out.
func Find(text string) (number string, rest string, ok bool) {
	for _, loc := range candidatePattern.FindAllStringIndex(text, -1) {
		candidate := text[loc[0]:loc[1]]
		if normalized, valid := ParseE164(candidate); valid {
			rest = strings.Join(strings.Fields(text[:loc[0]]+" "+text[loc[1]:]), " ")
			return normalized, rest, true
		}
	}
	return "", text, false
}
