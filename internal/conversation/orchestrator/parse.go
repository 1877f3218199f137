package orchestrator

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"cashback_backend/platform/phone"
)

var selectionPattern = regexp.MustCompile(`(?:^|\s)#(\d+)\b`)

// ParseSelection finds an explicit "#<product-id>" in text. rest is text with
// the selection removed.
func ParseSelection(text string) (productID int64, rest string, ok bool) {
	loc := selectionPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, text, false
	}
	id, err := strconv.ParseInt(text[loc[2]:loc[3]], 10, 64)
	if err != nil || id <= 0 {
		return 0, text, false
	}
	rest = strings.Join(strings.Fields(text[:loc[0]]+" "+text[loc[1]:]), " ")
	return id, rest, true
}

// PayoutDetails is what a claimant sends at the payout-details stage.
type PayoutDetails struct {
	Phone  string
	Bank   string
	Amount *int64
}

const (
	amountNumber   = `(\d{1,7})(?:[.,]\d{1,2})?`
	amountCurrency = `(?:€|\beur(?:os?)?\b|\$)`
)

var (
	// An amount needs a label word or a currency marker next to it; bare
	// numbers are left to the bank name ("N26", "bunq 2"). Patterns are tried
	// in order.
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:amount|paid|bedrag|betaald)\b[\s:]*(?:(?:is|was)\s+)?` + amountCurrency + `?\s*` + amountNumber),
		regexp.MustCompile(`(?i)` + amountCurrency + `\s*` + amountNumber),
		regexp.MustCompile(`(?i)\b` + amountNumber + `\s*` + amountCurrency),
	}
	labelWords = map[string]bool{
		"bank": true, "phone": true, "number": true, "amount": true, "paid": true,
		"i": true, "my": true, "is": true, "and": true, "the": true, "tel": true,
	}
)

// ParsePayoutDetails reads a phone number, a bank name and an optional paid
// amount from free text. ok is false when the phone or bank is missing.
func ParsePayoutDetails(text string) (PayoutDetails, bool) {
	number, rest, found := phone.Find(text)
	if !found {
		return PayoutDetails{}, false
	}
	details := PayoutDetails{Phone: number}

	for _, pattern := range amountPatterns {
		loc := pattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			continue
		}
		if value, err := strconv.ParseInt(rest[loc[2]:loc[3]], 10, 64); err == nil && value > 0 {
			details.Amount = &value
		}
		rest = rest[:loc[0]] + " " + rest[loc[1]:]
		break
	}

	words := make([]string, 0, 4)
	for _, field := range strings.Fields(rest) {
		word := strings.TrimFunc(field, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if word == "" || labelWords[strings.ToLower(word)] {
			continue
		}
		words = append(words, word)
	}
	details.Bank = strings.Join(words, " ")
	return details, details.Bank != ""
}

// Bare "yes" or "ja" never gets here: the message filter drops them as noise.
var affirmatives = map[string]bool{
	"confirm": true, "confirmed": true, "correct": true, "yes please": true,
	"yes correct": true, "yeah": true, "that's correct": true, "thats correct": true,
	"all correct": true, "klopt": true, "ja klopt": true, "jazeker": true,
}

// IsAffirmative reports whether text confirms the payout details.
func IsAffirmative(text string) bool {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) && r != '\'' {
			return ' '
		}
		return unicode.ToLower(r)
	}, text)
	return affirmatives[strings.Join(strings.Fields(normalized), " ")]
}
