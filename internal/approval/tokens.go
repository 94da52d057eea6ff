package approval

import (
	"strings"
	"unicode"
)

// TokenKind classifies a user reply against the confirmation vocabulary.
type TokenKind int

const (
	TokenNone TokenKind = iota
	TokenAffirmative
	TokenNegative
)

// Fixed bilingual (English/Turkish) confirmation vocabulary, including
// ASCII-folded spellings for users without a Turkish keyboard. Replies are
// trimmed and lowercased before matching.
var (
	affirmativeTokens = []string{
		"yes", "y", "ok", "okay", "send", "approve", "confirm", "do it",
		"evet", "onay", "onayla", "gönder", "gonder", "tamam", "olur",
	}
	negativeTokens = []string{
		"no", "n", "cancel", "stop", "reject", "deny",
		"hayır", "hayir", "iptal", "vazgeç", "vazgec", "dur",
	}
)

// MatchToken matches a free-text reply against the affirmative and negative
// vocabularies, case-insensitively. Negative matches win when a reply
// somehow contains both. Uppercase replies are folded under both English and
// Turkish case rules so "HAYIR" reaches "hayır" and "DO IT" stays "do it".
func MatchToken(replyText string) TokenKind {
	trimmed := strings.TrimSpace(replyText)
	if trimmed == "" {
		return TokenNone
	}
	foldings := []string{
		strings.ToLower(trimmed),
		strings.ToLowerSpecial(unicode.TurkishCase, trimmed),
	}
	for _, text := range foldings {
		for _, tok := range negativeTokens {
			if text == tok {
				return TokenNegative
			}
		}
	}
	for _, text := range foldings {
		for _, tok := range affirmativeTokens {
			if text == tok {
				return TokenAffirmative
			}
		}
	}
	return TokenNone
}
