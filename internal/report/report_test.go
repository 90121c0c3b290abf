package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fpang/livechat-analyzer/internal/comment"
	"github.com/fpang/livechat-analyzer/internal/config"
	"github.com/fpang/livechat-analyzer/internal/dispatch"
	"github.com/fpang/livechat-analyzer/internal/questions"
)

func result(idx int, user, text, attr, sent string) dispatch.ItemResult {
	return dispatch.ItemResult{
		Comment: comment.Comment{
			Index:      idx,
			GuestID:    "g-1",
			Username:   user,
			Text:       text,
			InsertedAt: "2026-01-15 19:00:01",
		},
		Attribute: attr,
		Sentiment: sent,
	}
}

func TestSummarize(t *testing.T) {
	results := []dispatch.ItemResult{
		result(0, "alice", "かわいい", config.AttrStreamReaction, config.SentPositive),
		result(1, "alice", "すてき", config.AttrStreamReaction, config.SentPositive),
		result(2, "bob", "サイズは？", config.AttrProductQuestion, config.SentNeutral),
	}

	s := Summarize(results)

	if s.Total != 3 {
		t.Fatalf("expected total 3, got %d", s.Total)
	}
	if len(s.AttributeCounts) != 2 {
		t.Fatalf("expected 2 attribute buckets, got %+v", s.AttributeCounts)
	}
	// Label-set order: the question attribute precedes the reaction one.
	if s.AttributeCounts[0].Label != config.AttrProductQuestion || s.AttributeCounts[0].Count != 1 {
		t.Errorf("attribute bucket 0: %+v", s.AttributeCounts[0])
	}
	if s.AttributeCounts[1].Label != config.AttrStreamReaction || s.AttributeCounts[1].Count != 2 {
		t.Errorf("attribute bucket 1: %+v", s.AttributeCounts[1])
	}
	if len(s.TopUsers) != 2 || s.TopUsers[0].Label != "alice" || s.TopUsers[0].Count != 2 {
		t.Errorf("top users: %+v", s.TopUsers)
	}
}

func TestSummarizeCapsTopUsers(t *testing.T) {
	var results []dispatch.ItemResult
	for i := 0; i < 8; i++ {
		results = append(results, result(i, string(rune('a'+i)), "こんにちは", config.AttrOther, config.SentNeutral))
	}

	s := Summarize(results)

	if len(s.TopUsers) != 5 {
		t.Fatalf("expected the ranking capped at 5, got %d", len(s.TopUsers))
	}
}

func TestWriteMainCSV(t *testing.T) {
	results := []dispatch.ItemResult{
		result(0, "alice", "かわいい", config.AttrStreamReaction, config.SentPositive),
		result(1, "bob", "サイズは？", config.AttrProductQuestion, config.SentNeutral),
	}
	var buf bytes.Buffer
	if err := WriteMainCSV(&buf, results, Summarize(results)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "\ufeff") {
		t.Error("output must start with a UTF-8 BOM")
	}
	for _, want := range []string{
		"統計情報",
		"全コメント件数,2",
		"チャットの属性別件数",
		"チャット感情別件数",
		"ユーザーコメント数ランキング",
		"コメントデータ",
		"guest_id,username,original_text,inserted_at,user_type,user_id,属性,感情",
		"g-1,alice,かわいい,2026-01-15 19:00:01,,," + config.AttrStreamReaction + "," + config.SentPositive,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q\n%s", want, out)
		}
	}
	// The statistics block sits above the data.
	if strings.Index(out, "統計情報") > strings.Index(out, "コメントデータ") {
		t.Error("statistics block must precede the data block")
	}
}

func TestWriteMainCSVQuotesCommas(t *testing.T) {
	results := []dispatch.ItemResult{
		result(0, "a,b", "カンマ,入り", config.AttrOther, config.SentNeutral),
	}
	var buf bytes.Buffer
	if err := WriteMainCSV(&buf, results, Summarize(results)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"a,b"`) || !strings.Contains(buf.String(), `"カンマ,入り"`) {
		t.Fatalf("comma-bearing fields must be quoted:\n%s", buf.String())
	}
}

func TestWriteQuestionCSV(t *testing.T) {
	qs := []questions.Question{
		{
			Comment: result(1, "bob", "サイズは？", config.AttrProductQuestion, config.SentNeutral),
			Status:  config.AnswerByPresenter,
			Method:  "文字起こし",
		},
		{
			Comment: result(3, "carol", "配送はいつ？", config.AttrProductQuestion, config.SentNeutral),
			Status:  config.Unanswered,
		},
	}

	var buf bytes.Buffer
	if err := WriteQuestionCSV(&buf, qs, questions.Summarize(qs)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"質問コメント件数,2",
		"回答件数,1",
		"質問回答率,50.0%",
		"回答状況,配信時間,回答方法,username,original_text,属性,感情",
		config.AnswerByPresenter + ",2026-01-15 19:00:01,文字起こし,bob,サイズは？," + config.AttrProductQuestion + "," + config.SentNeutral,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "g-1") {
		t.Error("guest_id must not appear in the question sheet")
	}
}
