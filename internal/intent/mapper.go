package intent

import (
	"regexp"
	"strings"

	"github.com/funnelworks/leadpipe/internal/models"
)

// TableVersion identifies the phrase table revision. Bump it whenever
// entries are added or reordered so stored intents can be traced to the
// table that produced them.
const TableVersion = 1

// tableEntry binds a pre-normalized Portuguese phrase to an intent.
// Declaration order is the tie-break for substring matches, so more specific
// phrases must precede the generic ones they contain.
type tableEntry struct {
	phrase string
	intent models.Intent
}

// phraseTable is the curated label table, normalized ahead of time. Exact
// matches are unambiguous: no phrase appears twice. Whenever one phrase
// contains another with a different intent, the longer phrase is declared
// first, so a negation ("nao gostei") is never shadowed by the positive
// phrase it contains.
var phraseTable = []tableEntry{
	// feedback
	{"nao gostei", models.IntentFeedbackNegative},
	{"ruim", models.IntentFeedbackNegative},
	{"gostei muito", models.IntentFeedbackPositive},
	{"amei", models.IntentFeedbackPositive},
	{"muito bom", models.IntentFeedbackPositive},
	{"gostei", models.IntentFeedbackGood},
	{"foi ok", models.IntentFeedbackNeutral},
	{"ok", models.IntentFeedbackNeutral},
	{"legal", models.IntentFeedbackNeutral},
	{"mais ou menos", models.IntentFeedbackNeutral},
	// interest
	{"nao tenho interesse", models.IntentNoInterest},
	{"tenho muito interesse", models.IntentInterestHigh},
	{"tenho interesse", models.IntentInterestMedium},
	{"talvez futuramente", models.IntentInterestFuture},
	// meeting preference; the rendered choice-list labels are registered
	// verbatim because Twilio leads type them back as text.
	{"sim quero uma reuniao", models.IntentAcceptMeeting},
	{"agendar 15 min", models.IntentAcceptMeeting},
	{"prefiro falar por whatsapp", models.IntentPreferChannel},
	{"prefiro whatsapp", models.IntentPreferChannel},
	{"falo por whatsapp", models.IntentPreferChannel},
	{"enviem por e-mail", models.IntentPreferEmail},
	{"enviem por email", models.IntentPreferEmail},
	{"prefiro e-mail", models.IntentPreferEmail},
	{"prefiro email", models.IntentPreferEmail},
	{"sem tempo agora", models.IntentNoTime},
}

// sentiment keyword sets for free text that is not a recognizable label.
// Positives are checked first, then negatives, then neutrals.
var (
	sentimentPositive = []string{"gostei", "otimo", "excelente", "amei", "muito bom", "maravilho", "aprendi"}
	sentimentNegative = []string{"nao gostei", "ruim", "horrivel", "pessimo", "decepcion"}
	sentimentNeutral  = []string{"ok", "legal", "bom", "interessante", "mais ou menos", "neutro"}
)

// structuredCodes are the literal intent codes accepted as-is, so list-reply
// row IDs round-trip without a table lookup.
var structuredCodes = map[string]models.Intent{
	string(models.IntentFeedbackPositive): models.IntentFeedbackPositive,
	string(models.IntentFeedbackGood):     models.IntentFeedbackGood,
	string(models.IntentFeedbackNeutral):  models.IntentFeedbackNeutral,
	string(models.IntentFeedbackNegative): models.IntentFeedbackNegative,
	string(models.IntentInterestHigh):     models.IntentInterestHigh,
	string(models.IntentInterestMedium):   models.IntentInterestMedium,
	string(models.IntentInterestFuture):   models.IntentInterestFuture,
	string(models.IntentNoInterest):       models.IntentNoInterest,
	string(models.IntentAcceptMeeting):    models.IntentAcceptMeeting,
	string(models.IntentPreferChannel):    models.IntentPreferChannel,
	string(models.IntentPreferEmail):      models.IntentPreferEmail,
	string(models.IntentNoTime):           models.IntentNoTime,
}

var emailRegex = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

// ExtractEmail returns the first email address found in the message, if any.
// The input is normalized first, so "Meu E-mail: Ana@Exemplo.COM" extracts
// "ana@exemplo.com".
func ExtractEmail(raw string) (string, bool) {
	m := emailRegex.FindString(Normalize(raw))
	if m == "" {
		return "", false
	}
	return m, true
}

// Map resolves a raw inbound body (typed text or a list-reply row ID) to a
// canonical intent. Resolution order: structured codes, email address, exact
// table match, bidirectional substring match in table order, sentiment
// keywords. The second return is false when nothing matched and the message
// should go to free conversation.
func Map(raw string) (models.Intent, bool) {
	// 1) already a structured code. Row IDs come back verbatim and carry
	// underscores, which normalization strips, so check before normalizing.
	code := strings.ToLower(strings.TrimSpace(raw))
	if in, ok := structuredCodes[code]; ok {
		return in, true
	}
	if in := models.Intent(code); in.IsSlotSelection() {
		if _, ok := SlotOrdinal(in); ok {
			return in, true
		}
	}

	key := Normalize(raw)
	if key == "" {
		return "", false
	}

	// 2) an email address answers the waiting-email question
	if emailRegex.MatchString(key) {
		return models.IntentEmailProvided, true
	}

	// 3) exact label
	for _, e := range phraseTable {
		if e.phrase == key {
			return e.intent, true
		}
	}

	// 4) bidirectional substring, first declared entry wins
	for _, e := range phraseTable {
		if containsEither(key, e.phrase) {
			return e.intent, true
		}
	}

	// 5) sentiment fallback for free-form feedback
	for _, p := range sentimentPositive {
		if contains(key, p) {
			return models.IntentFeedbackPositive, true
		}
	}
	for _, n := range sentimentNegative {
		if contains(key, n) {
			return models.IntentFeedbackNegative, true
		}
	}
	for _, nu := range sentimentNeutral {
		if contains(key, nu) {
			return models.IntentFeedbackNeutral, true
		}
	}

	return "", false
}

func contains(text, phrase string) bool {
	return strings.Contains(text, phrase)
}

// containsEither matches a short typed answer against a longer table phrase
// and vice versa ("quero uma reuniao" inside "sim quero uma reuniao").
func containsEither(text, phrase string) bool {
	return strings.Contains(text, phrase) || strings.Contains(phrase, text)
}
