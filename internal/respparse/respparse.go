// Package respparse extracts closed-set labels from free-form LLM responses.
// The classification prompt asks for "属性: <label>" and "感情: <label>"
// lines, but models routinely wrap output in code fences, reorder lines, or
// answer in prose, so extraction tolerates all of that and falls back to
// scanning the whole response.
package respparse

import (
	"strings"
)

// Separators accepted between a field keyword and its value.
var separators = []string{":", "：", "="}

// StripFences removes markdown code-fence markers (```json, ```) anywhere
// in the text. Unlike a strict fence parser, stray or unbalanced markers
// are simply deleted; the surrounding content is kept.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// Collapse folds all runs of whitespace into single spaces and trims the
// ends.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TrimPunct removes trailing/embedded sentence punctuation that models
// append to labels (Japanese and ASCII periods and commas).
func TrimPunct(s string) string {
	r := strings.NewReplacer("。", "", "、", "", ".", "", ",", "")
	return strings.TrimSpace(r.Replace(s))
}

// MatchLabel resolves candidate against the closed label set. Matching is
// case-insensitive exact first, then substring containment in either
// direction. The first set entry that matches wins.
func MatchLabel(candidate string, set []string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}
	lower := strings.ToLower(candidate)
	for _, label := range set {
		labelLower := strings.ToLower(label)
		if labelLower == lower {
			return label, true
		}
		if strings.Contains(candidate, label) || strings.Contains(label, candidate) {
			return label, true
		}
		if strings.Contains(lower, labelLower) || strings.Contains(labelLower, lower) {
			return label, true
		}
	}
	return "", false
}

// ExtractLabeled finds a line containing keyword followed by a separator
// and resolves the text after the separator against the label set.
// Returns false when no line yields a valid label.
func ExtractLabeled(response, keyword string, set []string) (string, bool) {
	for _, line := range strings.Split(response, "\n") {
		line = Collapse(line)
		if !strings.Contains(line, keyword) {
			continue
		}
		for _, sep := range separators {
			_, after, ok := strings.Cut(line, sep)
			if !ok {
				continue
			}
			if label, ok := MatchLabel(TrimPunct(after), set); ok {
				return label, true
			}
		}
	}
	return "", false
}

// FindLabel scans the whole response (whitespace-collapsed) for any label
// of the set, using the MatchLabel rules.
func FindLabel(response string, set []string) (string, bool) {
	return MatchLabel(Collapse(response), set)
}
