// Package questions selects question comments out of a classified run and
// determines whether each one was answered: by the presenter (found in the
// stream transcript), by staff (an official follow-up comment or a human
// annotation), or not at all.
package questions

import (
	"strings"
	"unicode"

	"github.com/fpang/livechat-analyzer/internal/config"
	"github.com/fpang/livechat-analyzer/internal/dispatch"
)

// Question is one question-attributed comment and its answer status.
type Question struct {
	Comment dispatch.ItemResult
	Status  string // one of config.AnswerStatuses
	Method  string // free-form note on how the answer was found
}

// Answered reports whether the question has any answer status other than
// unanswered.
func (q Question) Answered() bool {
	return q.Status != config.Unanswered
}

// questionAttrs are the attributes that mark a comment as a question.
var questionAttrs = map[string]bool{
	config.AttrProductQuestion:   true,
	config.AttrPresenterQuestion: true,
}

// Extract returns the question comments from a classified run, in input
// order, all initially unanswered.
func Extract(results []dispatch.ItemResult) []Question {
	var qs []Question
	for _, r := range results {
		if questionAttrs[r.Attribute] {
			qs = append(qs, Question{Comment: r, Status: config.Unanswered})
		}
	}
	return qs
}

// MatchOfficialReplies marks a question as staff-answered when an
// official-attributed comment appears later in the same run. Questions
// already answered keep their status.
func MatchOfficialReplies(qs []Question, results []dispatch.ItemResult) {
	for i := range qs {
		if qs[i].Answered() {
			continue
		}
		for _, r := range results {
			if r.Attribute != config.AttrOfficial {
				continue
			}
			if r.Comment.Index <= qs[i].Comment.Comment.Index {
				continue
			}
			if overlap(qs[i].Comment.Comment.Text, r.Comment.Text) >= officialReplyThreshold {
				qs[i].Status = config.AnswerByStaff
				qs[i].Method = "公式コメント"
				break
			}
		}
	}
}

// Stats summarizes the answer situation of a question set.
type Stats struct {
	Total      int
	Answered   int
	ByStatus   map[string]int
	AnswerRate float64 // percent
}

// Summarize computes the question count, per-status counts and answer rate.
func Summarize(qs []Question) Stats {
	s := Stats{ByStatus: make(map[string]int)}
	s.Total = len(qs)
	for _, q := range qs {
		s.ByStatus[q.Status]++
		if q.Answered() {
			s.Answered++
		}
	}
	if s.Total > 0 {
		s.AnswerRate = float64(s.Answered) / float64(s.Total) * 100
	}
	return s
}

// answerOverlapThreshold is the bigram-overlap ratio above which a spoken
// passage is considered to address a question.
const answerOverlapThreshold = 0.4

// officialReplyThreshold is much looser: a written reply restates the
// question's topic, not the question, so only a few bigrams recur.
const officialReplyThreshold = 0.15

// overlap scores how much of the question's content appears in text, as
// the fraction of the question's rune bigrams found in it. Bigrams stand
// in for word segmentation, which Japanese chat text does not offer.
func overlap(question, text string) float64 {
	qb := bigrams(normalize(question))
	if len(qb) == 0 {
		return 0
	}
	tb := bigrams(normalize(text))
	hit := 0
	for b := range qb {
		if tb[b] {
			hit++
		}
	}
	return float64(hit) / float64(len(qb))
}

func bigrams(s string) map[string]bool {
	r := []rune(s)
	out := make(map[string]bool, len(r))
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])] = true
	}
	return out
}

// normalize lowercases and drops spaces and punctuation so surface noise
// (？ vs ?, full-width spaces) does not break matching.
func normalize(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
