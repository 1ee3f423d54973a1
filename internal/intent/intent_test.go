package intent

import (
	"testing"

	"github.com/funnelworks/leadpipe/internal/models"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Gostei muito!!", "gostei muito"},
		{"NÃO GOSTEI 😠", "nao gostei"},
		{"😊 Gostei muito!", "gostei muito"},
		{"  Talvez   futuramente ", "talvez futuramente"},
		{"Sim, quero uma reunião!", "sim quero uma reuniao"},
		{"ana.silva@exemplo.com", "ana.silva@exemplo.com"},
		{"slot_3", "slot3"}, // underscore is not in the charset
		{"", ""},
		{"💬👍🎯", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Gostei muito!!", "NÃO GOSTEI 😠", "Olá, tudo bem?",
		"ana@exemplo.com", "horário às 15:30",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeAccentEmojiEquivalence(t *testing.T) {
	if Normalize("NÃO GOSTEI 😠") != Normalize("nao gostei") {
		t.Error("accent/emoji variants should normalize to the same key")
	}
	if Normalize("😊 Gostei muito!") != Normalize("gostei muito") {
		t.Error("emoji-prefixed label should normalize to the plain label")
	}
}

func TestMapExactLabels(t *testing.T) {
	cases := []struct {
		in   string
		want models.Intent
	}{
		{"Gostei muito!!", models.IntentFeedbackPositive},
		{"Amei", models.IntentFeedbackPositive},
		{"gostei", models.IntentFeedbackGood},
		{"Mais ou menos", models.IntentFeedbackNeutral},
		{"Não gostei", models.IntentFeedbackNegative},
		{"Tenho muito interesse!", models.IntentInterestHigh},
		{"tenho interesse", models.IntentInterestMedium},
		{"Talvez futuramente", models.IntentInterestFuture},
		{"não tenho interesse", models.IntentNoInterest},
		{"Sim, quero uma reunião!", models.IntentAcceptMeeting},
		{"Prefiro WhatsApp", models.IntentPreferChannel},
		{"Prefiro falar por WhatsApp", models.IntentPreferChannel},
		{"Prefiro e-mail", models.IntentPreferEmail},
		{"Enviem por e-mail", models.IntentPreferEmail},
		{"Sem tempo agora", models.IntentNoTime},
	}
	for _, c := range cases {
		got, ok := Map(c.in)
		if !ok || got != c.want {
			t.Errorf("Map(%q) = (%q, %v), want %q", c.in, got, ok, c.want)
		}
	}
}

func TestMapStructuredCodes(t *testing.T) {
	for _, code := range []models.Intent{
		models.IntentFeedbackNegative,
		models.IntentInterestFuture,
		models.IntentAcceptMeeting,
		models.IntentPreferEmail,
	} {
		got, ok := Map(string(code))
		if !ok || got != code {
			t.Errorf("Map(%q) = (%q, %v), want the code itself", code, got, ok)
		}
	}
}

func TestMapSlotSelection(t *testing.T) {
	// Normalization drops the underscore, so slot codes must survive it.
	got, ok := Map("slot_3")
	if !ok || !got.IsSlotSelection() {
		t.Fatalf("Map(slot_3) = (%q, %v), want a slot selection", got, ok)
	}
	if n, ok := SlotOrdinal(got); !ok || n != 3 {
		t.Errorf("SlotOrdinal(%q) = (%d, %v), want 3", got, n, ok)
	}
}

func TestMapEmail(t *testing.T) {
	got, ok := Map("Meu e-mail: Ana.Silva@Exemplo.com")
	if !ok || got != models.IntentEmailProvided {
		t.Fatalf("Map(email) = (%q, %v), want email_provided", got, ok)
	}
	addr, ok := ExtractEmail("Meu e-mail: Ana.Silva@Exemplo.com")
	if !ok || addr != "ana.silva@exemplo.com" {
		t.Errorf("ExtractEmail = (%q, %v), want ana.silva@exemplo.com", addr, ok)
	}
	if _, ok := ExtractEmail("sem endereco aqui"); ok {
		t.Error("ExtractEmail should not find an address in plain text")
	}
}

func TestMapSentimentFallback(t *testing.T) {
	cases := []struct {
		in   string
		want models.Intent
	}{
		{"achei excelente, aprendi demais", models.IntentFeedbackPositive},
		{"foi horrivel, que decepcionante", models.IntentFeedbackNegative},
		{"achei interessante", models.IntentFeedbackNeutral},
	}
	for _, c := range cases {
		got, ok := Map(c.in)
		if !ok || got != c.want {
			t.Errorf("Map(%q) = (%q, %v), want %q", c.in, got, ok, c.want)
		}
	}
}

func TestMapUnmatched(t *testing.T) {
	for _, in := range []string{
		"qual o valor da mensalidade?",
		"",
		"🎯🎯🎯",
	} {
		if got, ok := Map(in); ok {
			t.Errorf("Map(%q) = (%q, true), want no match", in, got)
		}
	}
}

// The curated table must be unambiguous under both matching passes: no
// phrase appears twice with different intents, every phrase resolves to its
// own intent through the full pipeline, and whenever one phrase contains
// another with a different intent the longer one is declared first, so a
// superset input ("nao gostei do evento") can never be claimed by the
// shorter phrase it contains.
func TestPhraseTableUnambiguous(t *testing.T) {
	seen := make(map[string]models.Intent)
	for _, e := range phraseTable {
		key := Normalize(e.phrase)
		if key != e.phrase {
			t.Errorf("table phrase %q is not stored normalized", e.phrase)
		}
		if prev, dup := seen[key]; dup && prev != e.intent {
			t.Errorf("phrase %q maps to both %q and %q", key, prev, e.intent)
		}
		seen[key] = e.intent

		if got, ok := Map(e.phrase); !ok || got != e.intent {
			t.Errorf("Map(%q) = (%q, %v), want the entry's own intent %q", e.phrase, got, ok, e.intent)
		}
	}

	for i, longer := range phraseTable {
		for j, shorter := range phraseTable {
			if i <= j || longer.intent == shorter.intent {
				continue
			}
			if contains(longer.phrase, shorter.phrase) {
				t.Errorf("phrase %q (%s) contains %q (%s) but is declared after it; the substring pass would pick the wrong intent",
					longer.phrase, longer.intent, shorter.phrase, shorter.intent)
			}
		}
	}
}

func TestMapNegationsBeatPositiveSubstrings(t *testing.T) {
	cases := []struct {
		in   string
		want models.Intent
	}{
		{"Não gostei do evento", models.IntentFeedbackNegative},
		{"não tenho interesse nenhum", models.IntentNoInterest},
	}
	for _, c := range cases {
		got, ok := Map(c.in)
		if !ok || got != c.want {
			t.Errorf("Map(%q) = (%q, %v), want %q", c.in, got, ok, c.want)
		}
	}
}

func TestSlotOrdinal(t *testing.T) {
	cases := []struct {
		in   models.Intent
		n    int
		ok   bool
	}{
		{"slot_1", 1, true},
		{"slot_5", 5, true},
		{"slot_12", 12, true},
		{"slot_0", 0, false},
		{"slot_", 0, false},
		{"slot_x", 0, false},
		{"accept_meeting", 0, false},
	}
	for _, c := range cases {
		n, ok := SlotOrdinal(c.in)
		if n != c.n || ok != c.ok {
			t.Errorf("SlotOrdinal(%q) = (%d, %v), want (%d, %v)", c.in, n, ok, c.n, c.ok)
		}
	}
}
