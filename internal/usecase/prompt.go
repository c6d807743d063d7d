package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"broker-agent/internal/domain"
)

const (
	contextLabel   = "Context local (FAQ/condiții):"
	questionLabel  = "Întrebare utilizator:"
	fallbackPrefix = "Eroare la interogarea modelului:"
	fallbackHint   = "Verifică PERPLEXITY_API_KEY și modelul."
	contextSep     = "\n\n"
)

func buildPromptMessages(message, kbContext string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: buildSystemPrompt()},
		{Role: "user", Content: buildUserPrompt(message, kbContext)},
	}
}

func buildSystemPrompt() string {
	return strings.Join([]string{
		"Ești un agent AI pentru un broker de asigurări din România.",
		behaviorRules(),
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"- Prioritizează căutarea în baza de cunoștințe (Context local) și folosește informațiile găsite.",
		"- Răspunde concis în română (120–180 cuvinte) și explică pe scurt: acoperiri, excluderi, fransize, limite, pașii următori.",
		"- Nu oferi consultanță juridică sau promisiuni; adaugă un scurt disclaimer și propune handoff la consultant uman când e necesar.",
		"- Dacă lipsește contextul local sau informația e incertă, comunică explicit și cere clarificări.",
		"- Respectă confidențialitatea: nu solicita CNP/IBAN/date card.",
		"- Dacă întrebarea depășește domeniul asigurărilor, spune politicos și redirecționează.",
		"- Ton profesionist, empatic, fără jargon inutil; folosește liste scurte când ajută.",
		"- Pentru tabele sau date multiple, structurează clar; pentru date/termen, fii precis.",
		"- Menține contextul conversației și evită repetarea inutilă.",
	}, "\n")
}

// buildUserPrompt places the knowledge-base block, when present, before the
// question line. The message is used verbatim.
func buildUserPrompt(message, kbContext string) string {
	var b strings.Builder
	if kbContext != "" {
		b.WriteString(contextLabel + "\n" + kbContext + "\n\n")
	}
	b.WriteString(questionLabel + " " + message + "\n")
	return b.String()
}

func fallbackAnswer(err error) string {
	return fmt.Sprintf("%s %v\n%s", fallbackPrefix, err, fallbackHint)
}

// joinFragments drops empty fragments, joins the rest with a blank line and caps
// the result at maxRunes characters.
func joinFragments(fragments []domain.ContextFragment, maxRunes int) string {
	texts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f == "" {
			continue
		}
		texts = append(texts, string(f))
	}
	return truncateRunes(strings.Join(texts, contextSep), maxRunes)
}

func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}
