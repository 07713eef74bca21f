// Package sanitize cleans sampled screen text before it reaches the judge and
// matches it against the distraction vocabulary.
package sanitize

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultPhrases are focusd's own notification strings. Removing them keeps
// the tool's dialogs from biasing the judge when they are on screen.
var DefaultPhrases = []string{
	"Productivity Monitor",
	"Failed to determine whether you are productive or not",
	"Good job being productive",
	"GET BACK ON TASK!",
	"Take a break",
	"unproductive",
	"productive",
}

// DefaultDistractions is the distraction vocabulary.
var DefaultDistractions = []string{
	"Facebook", "Twitter", "Reddit", "YouTube", "Netflix", "Shopping sites",
}

// NoSuggestions is written to the suggestion sink when nothing matched.
const NoSuggestions = "No distracting tabs found."

// Sanitizer removes a fixed phrase list, case-insensitively.
type Sanitizer struct {
	pattern *regexp.Regexp
}

// New compiles a sanitizer for phrases. Longer phrases are matched first so a
// phrase that contains another is removed whole.
func New(phrases []string) *Sanitizer {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	if len(quoted) == 0 {
		return &Sanitizer{}
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return &Sanitizer{pattern: regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))}
}

// Sanitize returns text with every configured phrase removed.
func (s *Sanitizer) Sanitize(text string) string {
	if s == nil || s.pattern == nil {
		return text
	}
	return s.pattern.ReplaceAllString(text, "")
}

// Sanitize is a convenience wrapper around New(phrases).Sanitize(text).
func Sanitize(text string, phrases []string) string {
	return New(phrases).Sanitize(text)
}

// Suggest returns the vocabulary entries contained in text (case-insensitive),
// in vocabulary order, or a single NoSuggestions entry when none match.
func Suggest(text string, vocabulary []string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, word := range vocabulary {
		if word == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(word)) {
			matched = append(matched, word)
		}
	}
	if len(matched) == 0 {
		return []string{NoSuggestions}
	}
	return matched
}
