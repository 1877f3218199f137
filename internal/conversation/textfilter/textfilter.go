// Package textfilter decides whether an inbound chat unit carries content
// worth classifying. It only tags; suppression happens when a batch flushes.
package textfilter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"cashback_backend/internal/chat"
)

// MinMeaningfulRunes is the shortest stripped text that still counts as content.
const MinMeaningfulRunes = 4

var noisePhrases = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "ok": {}, "okay": {}, "k": {},
	"thanks": {}, "thank you": {}, "thx": {}, "ty": {}, "yes": {}, "no": {},
	"good morning": {}, "good afternoon": {}, "good evening": {}, "bye": {},
	"got it": {}, "sure": {}, "alright": {}, "cool": {},
	"hallo": {}, "hoi": {}, "dank je": {}, "dankjewel": {}, "bedankt": {}, "ja": {}, "nee": {},
	"привет": {}, "здравствуйте": {}, "добрый день": {}, "спасибо": {}, "ок": {}, "окей": {},
	"хорошо": {}, "да": {}, "нет": {}, "понял": {}, "поняла": {},
}

// IsMeaningful reports whether text is content-bearing. It never panics and
// performs no I/O.
func IsMeaningful(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if isNoisePhrase(trimmed) {
		return false
	}

	stripped := strings.TrimSpace(StripEmoji(trimmed))
	if stripped == "" {
		return false
	}
	if isPunctuationOnly(stripped) {
		return false
	}
	return utf8.RuneCountInString(stripped) >= MinMeaningfulRunes
}

// IsMeaningfulUnit applies IsMeaningful to the unit text. Any attachment makes
// the unit meaningful regardless of its caption.
func IsMeaningfulUnit(unit chat.Unit) bool {
	if unit.HasMedia() {
		return true
	}
	return IsMeaningful(unit.Text)
}

// Meaningful returns the subset of units that carry content, preserving order.
func Meaningful(units []chat.Unit) []chat.Unit {
	out := make([]chat.Unit, 0, len(units))
	for _, unit := range units {
		if IsMeaningfulUnit(unit) {
			out = append(out, unit)
		}
	}
	return out
}

// StripEmoji removes pictographs, dingbats, variation selectors, joiners and
// skin-tone/tag modifiers.
func StripEmoji(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isEmojiRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isNoisePhrase matches the whole trimmed text, ignoring case only.
func isNoisePhrase(text string) bool {
	_, ok := noisePhrases[strings.ToLower(text)]
	return ok
}

func isPunctuationOnly(text string) bool {
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		return false
	}
	return true
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // mahjong through symbols & pictographs ext-A
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2300 && r <= 0x23FF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r >= 0xE0020 && r <= 0xE007F: // tag sequences
		return true
	case r == 0x200D || r == 0x20E3:
		return true
	}
	return false
}
