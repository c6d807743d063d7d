package domain

// ContextFragment is one text snippet read from the knowledge-base table.
// An empty fragment means the row had no usable text.
type ContextFragment string

// ResponseLength is the verbosity preference selected in the chat UI.
type ResponseLength string

const (
	ResponseShort  ResponseLength = "scurt"
	ResponseMedium ResponseLength = "mediu"
)

const (
	shortMaxTokens  = 180
	mediumMaxTokens = 280
)

// MaxTokens returns the completion token budget for the preference.
// Anything other than short gets the medium budget.
func (l ResponseLength) MaxTokens() int {
	if l == ResponseShort {
		return shortMaxTokens
	}
	return mediumMaxTokens
}
