package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/livechat-analyzer/internal/comment"
	"github.com/fpang/livechat-analyzer/internal/config"
	"github.com/fpang/livechat-analyzer/internal/usage"
)

// stubModel routes on prompt content: the combined prompt asks for both
// fields, the fallbacks for exactly one.
type stubModel struct {
	combined  func() (string, error)
	attribute func() (string, error)
	sentiment func() (string, error)
	calls     []string
}

const callUsageTotal = 15

func (m *stubModel) Generate(_ context.Context, prompt string, _ int32) (string, usage.Usage, error) {
	u := usage.Usage{Prompt: 10, Completion: 5, Total: callUsageTotal}
	switch {
	case strings.Contains(prompt, "属性") && strings.Contains(prompt, "感情"):
		m.calls = append(m.calls, "combined")
		text, err := m.combined()
		return text, u, err
	case strings.Contains(prompt, "属性"):
		m.calls = append(m.calls, "attribute")
		text, err := m.attribute()
		return text, u, err
	default:
		m.calls = append(m.calls, "sentiment")
		text, err := m.sentiment()
		return text, u, err
	}
}

func ok(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func newTestClient(m TextModel) *Client {
	c := NewClient(m, ConfigForCompany(config.CompanyByName(config.DefaultCompany)), zerolog.Nop())
	c.sleep = func(time.Duration) {} // never actually back off in tests
	return c
}

func TestClassifyCombinedHappyPath(t *testing.T) {
	m := &stubModel{combined: ok("属性: その他\n感情: ポジティブ")}
	c := newTestClient(m)

	got, err := c.Classify(context.Background(), comment.Comment{Username: "guest", Text: "いいね"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Attribute != config.AttrOther || got.Sentiment != config.SentPositive {
		t.Fatalf("got (%s, %s)", got.Attribute, got.Sentiment)
	}
	if got.Usage.Total != callUsageTotal {
		t.Fatalf("expected usage from one call, got %+v", got.Usage)
	}
	if len(m.calls) != 1 || m.calls[0] != "combined" {
		t.Fatalf("expected exactly one combined call, got %v", m.calls)
	}
}

func TestClassifyShortcuts(t *testing.T) {
	cases := []struct {
		name string
		cm   comment.Comment
	}{
		{"moderator user type", comment.Comment{UserType: "Moderator", Username: "guest", Text: "配送について"}},
		{"non-empty user id", comment.Comment{UserID: "u-99", Username: "guest", Text: "配送について"}},
		{"legacy guest id", comment.Comment{GuestID: config.OfficialGuestID, Username: "guest", Text: "配送について"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &stubModel{sentiment: ok("どちらでもない")}
			c := newTestClient(m)

			got, err := c.Classify(context.Background(), tc.cm)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Attribute != config.AttrOfficial {
				t.Fatalf("expected official attribute, got %s", got.Attribute)
			}
			if got.Sentiment != config.SentNeutral {
				t.Fatalf("expected neutral sentiment, got %s", got.Sentiment)
			}
			// The shortcut must still cost exactly one sentiment-only call.
			if len(m.calls) != 1 || m.calls[0] != "sentiment" {
				t.Fatalf("expected exactly one sentiment call, got %v", m.calls)
			}
		})
	}
}

func TestClassifyStaffUsernameShortcut(t *testing.T) {
	m := &stubModel{sentiment: ok("ポジティブ")}
	cfg := ConfigForCompany(config.CompanyByName("マツココライブ"))
	c := NewClient(m, cfg, zerolog.Nop())
	c.sleep = func(time.Duration) {}

	got, err := c.Classify(context.Background(), comment.Comment{Username: "マツキヨココカラSTAFF", Text: "ご質問ありがとうございます"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Attribute != config.AttrOfficial || got.Sentiment != config.SentPositive {
		t.Fatalf("got (%s, %s)", got.Attribute, got.Sentiment)
	}
}

func TestOfficialRemapForNonOfficialAuthor(t *testing.T) {
	m := &stubModel{combined: ok("属性: 公式コメント\n感情: ポジティブ")}
	c := newTestClient(m)

	got, err := c.Classify(context.Background(), comment.Comment{Username: "random-viewer", Text: "公式です"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Attribute != config.DefaultAttribute {
		t.Fatalf("expected official remapped to %s, got %s", config.DefaultAttribute, got.Attribute)
	}
}

func TestOfficialKeptForOfficialAuthor(t *testing.T) {
	m := &stubModel{combined: ok("属性: 公式コメント\n感情: どちらでもない")}
	c := newTestClient(m)

	got, err := c.Classify(context.Background(), comment.Comment{Username: "Starbucks Coffee Japan", Text: "本日の商品はこちら"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Attribute != config.AttrOfficial {
		t.Fatalf("expected official attribute kept, got %s", got.Attribute)
	}
}

// TestLabelClosure feeds hostile responses through every path and checks
// the result is always inside the closed sets.
func TestLabelClosure(t *testing.T) {
	responses := []string{
		"",
		"まったく関係のない文章です",
		"```json\n{\"result\": \"unknown\"}\n```",
		"属性: 謎のカテゴリ\n感情: 謎の気持ち",
		"ポジティブかつネガティブ、商品に対する質問で出演者に対するリアクション",
	}
	inSet := func(label string, set []string) bool {
		for _, l := range set {
			if l == label {
				return true
			}
		}
		return false
	}
	for _, resp := range responses {
		m := &stubModel{combined: ok(resp), attribute: ok(resp), sentiment: ok(resp)}
		c := newTestClient(m)

		got, err := c.Classify(context.Background(), comment.Comment{Username: "guest", Text: "x"})
		if err != nil {
			t.Fatalf("response %q: unexpected error: %v", resp, err)
		}
		if !inSet(got.Attribute, config.Attributes) {
			t.Errorf("response %q: attribute %q outside closed set", resp, got.Attribute)
		}
		if !inSet(got.Sentiment, config.Sentiments) {
			t.Errorf("response %q: sentiment %q outside closed set", resp, got.Sentiment)
		}
	}
}

func TestRetryExhaustionReturnsRateLimited(t *testing.T) {
	m := &stubModel{combined: fail(errors.New("googleapi: Error 429: rate limit exceeded"))}
	c := newTestClient(m)

	var backoffs []time.Duration
	c.sleep = func(d time.Duration) { backoffs = append(backoffs, d) }

	_, err := c.Classify(context.Background(), comment.Comment{Username: "guest", Text: "x"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(m.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(m.calls))
	}
	want := []time.Duration{60 * time.Second, 120 * time.Second}
	if len(backoffs) != len(want) || backoffs[0] != want[0] || backoffs[1] != want[1] {
		t.Fatalf("expected exponential backoff %v, got %v", want, backoffs)
	}
}

func TestNonTransientCombinedFailureUsesLegacyPath(t *testing.T) {
	m := &stubModel{
		combined:  fail(errors.New("invalid request payload")),
		attribute: ok("商品に対する質問"),
		sentiment: ok("ややポジティブ"),
	}
	c := newTestClient(m)

	got, err := c.Classify(context.Background(), comment.Comment{Username: "guest", Text: "サイズ展開は？"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Attribute != config.AttrProductQuestion || got.Sentiment != config.SentSlightlyPositive {
		t.Fatalf("got (%s, %s)", got.Attribute, got.Sentiment)
	}
	if len(m.calls) != 3 { // combined failure + attribute + sentiment
		t.Fatalf("expected 3 calls, got %v", m.calls)
	}
}

func TestLegacyPathFailureReturnsDefaults(t *testing.T) {
	boom := errors.New("invalid request payload")
	m := &stubModel{combined: fail(boom), attribute: fail(boom), sentiment: fail(boom)}
	c := newTestClient(m)

	got, err := c.Classify(context.Background(), comment.Comment{Username: "guest", Text: "x"})
	if err != nil {
		t.Fatalf("single-item failure must not abort: %v", err)
	}
	if got.Attribute != config.DefaultAttribute || got.Sentiment != config.DefaultSentiment {
		t.Fatalf("expected default pair, got (%s, %s)", got.Attribute, got.Sentiment)
	}
	if got.Usage != (usage.Usage{}) {
		t.Fatalf("expected zero usage, got %+v", got.Usage)
	}
}

func TestContextCancellationPropagates(t *testing.T) {
	m := &stubModel{combined: fail(context.Canceled)}
	c := newTestClient(m)

	_, err := c.Classify(context.Background(), comment.Comment{Username: "guest", Text: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled to propagate, got %v", err)
	}
	if len(m.calls) != 1 {
		t.Fatalf("cancellation must not retry or fall back, got calls %v", m.calls)
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("googleapi: Error 429: quota"), true},
		{errors.New("RESOURCE_EXHAUSTED: try later"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("request timeout"), true},
		{errors.New("invalid argument"), false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
	}
	for _, tc := range cases {
		if got := transient(tc.err); got != tc.want {
			t.Errorf("transient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
