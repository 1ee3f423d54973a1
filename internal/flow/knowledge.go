package flow

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/funnelworks/leadpipe/internal/intent"
)

// MaxKnowledgeSections caps how many sections a single lookup injects into
// the generation prompt.
const MaxKnowledgeSections = 2

// KnowledgeBase is a section-keyed text file used to ground generated
// replies. Sections start with a "## Heading" line; lookup routes a query to
// sections whose heading words appear in it.
type KnowledgeBase struct {
	sections []knowledgeSection
}

type knowledgeSection struct {
	heading  string
	keywords []string
	body     string
}

// LoadKnowledgeBase parses a knowledge file from disk.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge file: %w", err)
	}
	kb := ParseKnowledgeBase(string(data))
	slog.Info("KnowledgeBase loaded", "path", path, "sections", len(kb.sections))
	return kb, nil
}

// ParseKnowledgeBase splits raw text into sections on "## " headings. Text
// before the first heading is ignored.
func ParseKnowledgeBase(raw string) *KnowledgeBase {
	kb := &KnowledgeBase{}
	var current *knowledgeSection
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "## ") {
			if current != nil {
				kb.sections = append(kb.sections, *current)
			}
			heading := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			current = &knowledgeSection{
				heading:  heading,
				keywords: headingKeywords(heading),
			}
			continue
		}
		if current != nil {
			current.body += line + "\n"
		}
	}
	if current != nil {
		kb.sections = append(kb.sections, *current)
	}
	return kb
}

// Lookup returns the sections relevant to the query, joined with their
// headings, or "" when nothing matches.
func (kb *KnowledgeBase) Lookup(query string) string {
	if kb == nil || len(kb.sections) == 0 {
		return ""
	}
	q := intent.Normalize(query)
	if q == "" {
		return ""
	}
	var out []string
	for _, sec := range kb.sections {
		if len(out) >= MaxKnowledgeSections {
			break
		}
		for _, kw := range sec.keywords {
			if strings.Contains(q, kw) {
				out = append(out, "## "+sec.heading+"\n"+strings.TrimSpace(sec.body))
				break
			}
		}
	}
	return strings.Join(out, "\n\n")
}

// headingKeywords extracts the routable words of a heading: normalized,
// longer than three characters.
func headingKeywords(heading string) []string {
	var kws []string
	for _, w := range strings.Fields(intent.Normalize(heading)) {
		if len(w) > 3 {
			kws = append(kws, w)
		}
	}
	return kws
}
