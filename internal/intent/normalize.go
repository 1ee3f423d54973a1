// Package intent turns free-form WhatsApp text and choice-list labels into
// canonical funnel intents. Matching operates on normalized text so that
// accents, emoji and stray punctuation never change the outcome.
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/funnelworks/leadpipe/internal/models"
)

// decomposer strips emoji and other symbols, decomposes accented letters and
// removes the combining marks, so "Não" and "nao" collapse to the same key.
var decomposer = transform.Chain(
	runes.Remove(runes.In(unicode.So)),
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
)

// Normalize canonicalizes a label or message for matching: emoji and
// combining marks are stripped, letters lowered, anything outside
// [a-z0-9 -:@.] dropped, and whitespace collapsed. It is total (never fails)
// and idempotent.
func Normalize(s string) string {
	out, _, err := transform.String(decomposer, s)
	if err != nil {
		// Transform only fails on malformed UTF-8; match on the raw bytes.
		out = s
	}
	out = strings.ToLower(out)

	var b strings.Builder
	b.Grow(len(out))
	space := false
	for _, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '-', r == ':', r == '@', r == '.':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// SlotOrdinal extracts the 1-based ordinal from a slot selection intent such
// as "slot_3". The second return is false for any other intent or a
// non-positive ordinal.
func SlotOrdinal(i models.Intent) (int, bool) {
	s := string(i)
	if !strings.HasPrefix(s, models.IntentSlotPrefix) {
		return 0, false
	}
	n := 0
	digits := s[len(models.IntentSlotPrefix):]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
		if n > 1000 {
			return 0, false
		}
	}
	if n < 1 {
		return 0, false
	}
	return n, true
}
