package flow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleKnowledge = `Intro text before any section is ignored.

## Valores e descontos
A pós-graduação custa R$ 450 por mês. Participantes do seminário têm 5% de desconto.

## Horários das aulas
As aulas acontecem às terças e quintas, das 19h às 22h, ao vivo e gravadas.

## Certificação
O certificado é reconhecido pelo MEC.
`

func TestKnowledgeLookupRoutesByHeading(t *testing.T) {
	kb := ParseKnowledgeBase(sampleKnowledge)

	got := kb.Lookup("quais são os valores do curso?")
	if !strings.Contains(got, "R$ 450") {
		t.Errorf("lookup missed the pricing section:\n%s", got)
	}
	if strings.Contains(got, "MEC") {
		t.Errorf("lookup pulled an unrelated section:\n%s", got)
	}

	if kb.Lookup("vocês têm estacionamento?") != "" {
		t.Error("unrelated query should match nothing")
	}
}

func TestKnowledgeLookupAccentInsensitive(t *testing.T) {
	kb := ParseKnowledgeBase(sampleKnowledge)
	if got := kb.Lookup("como funciona a CERTIFICAÇÃO?"); !strings.Contains(got, "MEC") {
		t.Errorf("accented query missed the certification section:\n%s", got)
	}
}

func TestKnowledgeLookupSectionCap(t *testing.T) {
	kb := ParseKnowledgeBase(sampleKnowledge)
	got := kb.Lookup("valores, horários e certificação, por favor")
	if n := strings.Count(got, "## "); n > MaxKnowledgeSections {
		t.Errorf("lookup returned %d sections, cap is %d", n, MaxKnowledgeSections)
	}
}

func TestLoadKnowledgeBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.md")
	if err := os.WriteFile(path, []byte(sampleKnowledge), 0o644); err != nil {
		t.Fatalf("failed to write knowledge file: %v", err)
	}

	kb, err := LoadKnowledgeBase(path)
	if err != nil {
		t.Fatalf("LoadKnowledgeBase failed: %v", err)
	}
	if len(kb.sections) != 3 {
		t.Errorf("parsed %d sections, want 3", len(kb.sections))
	}

	if _, err := LoadKnowledgeBase(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("missing file should be an error")
	}
}

func TestNilKnowledgeBaseLookup(t *testing.T) {
	var kb *KnowledgeBase
	if kb.Lookup("valores") != "" {
		t.Error("nil knowledge base must return empty context")
	}
}
