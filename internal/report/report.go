// Package report aggregates a classified run into counts and writes the
// two output sheets: the full comment sheet and the question sheet. Both
// carry a statistics header block above the data so the file opens ready
// for charting.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/fpang/livechat-analyzer/internal/config"
	"github.com/fpang/livechat-analyzer/internal/dispatch"
	"github.com/fpang/livechat-analyzer/internal/questions"
)

// LabelCount pairs a label with its occurrence count.
type LabelCount struct {
	Label string
	Count int
}

// Summary holds the aggregate statistics of a classified run.
type Summary struct {
	Total           int
	AttributeCounts []LabelCount // label-set order, zero counts omitted
	SentimentCounts []LabelCount
	TopUsers        []LabelCount // top 5 commenters by volume
}

const topUserCount = 5

// Summarize counts attributes, sentiments and the most active commenters.
func Summarize(results []dispatch.ItemResult) Summary {
	attrs := make(map[string]int)
	sents := make(map[string]int)
	users := make(map[string]int)
	for _, r := range results {
		attrs[r.Attribute]++
		sents[r.Sentiment]++
		users[r.Comment.Username]++
	}

	s := Summary{Total: len(results)}
	for _, a := range config.Attributes {
		if n := attrs[a]; n > 0 {
			s.AttributeCounts = append(s.AttributeCounts, LabelCount{a, n})
		}
	}
	for _, l := range config.Sentiments {
		if n := sents[l]; n > 0 {
			s.SentimentCounts = append(s.SentimentCounts, LabelCount{l, n})
		}
	}

	ranked := make([]LabelCount, 0, len(users))
	for u, n := range users {
		ranked = append(ranked, LabelCount{u, n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Label < ranked[j].Label
	})
	if len(ranked) > topUserCount {
		ranked = ranked[:topUserCount]
	}
	s.TopUsers = ranked
	return s
}

// WriteMainCSV writes the full comment sheet: a statistics block, then
// every classified comment with its labels. The output starts with a
// UTF-8 BOM so spreadsheet tools pick up the encoding.
func WriteMainCSV(w io.Writer, results []dispatch.ItemResult, s Summary) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"統計情報"},
		{"全コメント件数", strconv.Itoa(s.Total)},
		{},
		{"チャットの属性別件数"},
		{"属性", "件数"},
	}
	for _, c := range s.AttributeCounts {
		rows = append(rows, []string{c.Label, strconv.Itoa(c.Count)})
	}
	rows = append(rows,
		[]string{},
		[]string{"チャット感情別件数"},
		[]string{"感情", "件数"},
	)
	for _, c := range s.SentimentCounts {
		rows = append(rows, []string{c.Label, strconv.Itoa(c.Count)})
	}
	rows = append(rows,
		[]string{},
		[]string{"ユーザーコメント数ランキング"},
		[]string{"ユーザー名", "コメント数"},
	)
	for _, c := range s.TopUsers {
		rows = append(rows, []string{c.Label, strconv.Itoa(c.Count)})
	}
	rows = append(rows,
		[]string{},
		[]string{"コメントデータ"},
		[]string{"guest_id", "username", "original_text", "inserted_at", "user_type", "user_id", "属性", "感情"},
	)
	for _, r := range results {
		rows = append(rows, []string{
			r.Comment.GuestID,
			r.Comment.Username,
			r.Comment.Text,
			r.Comment.InsertedAt,
			r.Comment.UserType,
			r.Comment.UserID,
			r.Attribute,
			r.Sentiment,
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write comment sheet: %w", err)
	}
	return nil
}

// WriteQuestionCSV writes the question sheet: answer-rate statistics, then
// one row per question with the answer status first and the stream time
// second. guest_id is dropped from this sheet.
func WriteQuestionCSV(w io.Writer, qs []questions.Question, stats questions.Stats) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"統計情報"},
		{"質問コメント件数", strconv.Itoa(stats.Total)},
		{"回答件数", strconv.Itoa(stats.Answered)},
		{"質問回答率", fmt.Sprintf("%.1f%%", stats.AnswerRate)},
		{},
		{"質問コメントデータ"},
		{"回答状況", "配信時間", "回答方法", "username", "original_text", "属性", "感情"},
	}
	for _, q := range qs {
		rows = append(rows, []string{
			q.Status,
			q.Comment.Comment.InsertedAt,
			q.Method,
			q.Comment.Comment.Username,
			q.Comment.Comment.Text,
			q.Comment.Attribute,
			q.Comment.Sentiment,
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write question sheet: %w", err)
	}
	return nil
}
