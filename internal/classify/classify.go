// Package classify turns one chat comment into an (attribute, sentiment)
// label pair using a single LLM call where possible. Model responses are
// free-form text; normalization guarantees the returned labels are always
// members of the configured closed sets.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/livechat-analyzer/internal/comment"
	"github.com/fpang/livechat-analyzer/internal/config"
	"github.com/fpang/livechat-analyzer/internal/respparse"
	"github.com/fpang/livechat-analyzer/internal/usage"
)

// ErrRateLimited marks retry exhaustion against the classification API.
// The dispatcher persists progress and stops when it sees this error; the
// caller can resume the run later.
var ErrRateLimited = errors.New("classification API rate limited")

// Keywords the combined response is parsed by.
const (
	attributeKeyword = "属性"
	sentimentKeyword = "感情"
)

// Result is one comment's classification. Labels are always members of
// the configured closed sets.
type Result struct {
	Attribute string
	Sentiment string
	Usage     usage.Usage
}

// Config carries the label sets and official-account rules for one run.
type Config struct {
	Attributes []string
	Sentiments []string

	// OfficialName is the only author allowed to carry the official
	// attribute out of model output. A model cannot grant official
	// status to an arbitrary author.
	OfficialName string

	// Official-account shortcuts, checked before any model call.
	OfficialUserType  string
	OfficialGuestIDs  []string
	OfficialUsernames []string
}

// ConfigForCompany builds a classification config from a company profile.
// The legacy guest id constant is always honored alongside the profile's
// own id.
func ConfigForCompany(c config.Company) Config {
	ids := []string{config.OfficialGuestID}
	if c.OfficialGuestID != "" {
		ids = append(ids, c.OfficialGuestID)
	}
	return Config{
		Attributes:        config.Attributes,
		Sentiments:        config.Sentiments,
		OfficialName:      c.Name,
		OfficialUserType:  c.OfficialUserType,
		OfficialGuestIDs:  ids,
		OfficialUsernames: c.OfficialUsernames,
	}
}

// Client classifies comments against a TextModel.
type Client struct {
	model TextModel
	cfg   Config

	// dbg is a caller-owned (typically first-N sampled) logger for raw
	// response inspection.
	dbg zerolog.Logger

	retries int
	backoff time.Duration
	sleep   func(time.Duration)
}

// NewClient returns a classification client. dbg receives per-comment
// debug events; pass a sampled logger (logging.FirstN) to bound the
// volume.
func NewClient(model TextModel, cfg Config, dbg zerolog.Logger) *Client {
	return &Client{
		model:   model,
		cfg:     cfg,
		dbg:     dbg,
		retries: 3,
		backoff: 60 * time.Second,
		sleep:   time.Sleep,
	}
}

// Classify produces the (attribute, sentiment, usage) triple for one
// comment. Official-account rows short-circuit the attribute and only ask
// the model for sentiment. Returns ErrRateLimited (wrapped) when retries
// are exhausted; any other model failure degrades to the legacy two-call
// path and finally to the default pair, never an error.
func (c *Client) Classify(ctx context.Context, cm comment.Comment) (Result, error) {
	if c.isOfficialRow(cm) {
		sent, u, err := c.classifySentiment(ctx, cm.Text)
		if err != nil {
			if fatal(err) {
				return Result{}, err
			}
			sent = config.DefaultSentiment
			u = usage.Usage{}
		}
		return Result{Attribute: config.AttrOfficial, Sentiment: sent, Usage: u}, nil
	}

	raw, u, err := c.generateWithRetry(ctx, combinedPrompt(c.cfg, cm.Text, cm.Username), maxCombinedTokens)
	if err != nil {
		if fatal(err) {
			return Result{}, err
		}
		// Combined call failed for a non-transient reason: legacy path.
		return c.classifyLegacy(ctx, cm)
	}

	c.dbg.Debug().
		Str("comment", truncate(cm.Text, 50)).
		Str("raw_response", raw).
		Msg("Combined classification response")

	attr, sent := c.parseCombined(raw, cm.Username)

	// Fields the combined response did not yield fall back to dedicated
	// single-label calls.
	if attr == "" {
		a, au, aerr := c.classifyAttribute(ctx, cm)
		if aerr != nil {
			return Result{}, aerr // only fatal errors propagate
		}
		attr = a
		u = u.Add(au)
	}
	if sent == "" {
		s, su, serr := c.classifySentiment(ctx, cm.Text)
		if serr != nil {
			if fatal(serr) {
				return Result{}, serr
			}
			s = config.DefaultSentiment
			su = usage.Usage{}
		}
		sent = s
		u = u.Add(su)
	}

	attr = c.vetOfficial(attr, cm.Username)
	attr = closeOver(attr, c.cfg.Attributes, config.DefaultAttribute)
	sent = closeOver(sent, c.cfg.Sentiments, config.DefaultSentiment)

	c.dbg.Debug().
		Str("attribute", attr).
		Str("sentiment", sent).
		Msg("Classification resolved")

	return Result{Attribute: attr, Sentiment: sent, Usage: u}, nil
}

// isOfficialRow applies the pre-classification shortcuts in priority
// order: platform moderator flag, non-empty secondary user id, known
// official guest id, configured staff username.
func (c *Client) isOfficialRow(cm comment.Comment) bool {
	if c.cfg.OfficialUserType != "" &&
		strings.EqualFold(strings.TrimSpace(cm.UserType), c.cfg.OfficialUserType) {
		return true
	}
	if strings.TrimSpace(cm.UserID) != "" {
		return true
	}
	guestID := strings.TrimSpace(cm.GuestID)
	for _, id := range c.cfg.OfficialGuestIDs {
		if guestID != "" && guestID == id {
			return true
		}
	}
	username := strings.TrimSpace(cm.Username)
	for _, name := range c.cfg.OfficialUsernames {
		if username == name {
			return true
		}
	}
	return false
}

// parseCombined extracts both labels from a combined response. Empty
// strings mark fields the response did not yield.
func (c *Client) parseCombined(raw, username string) (attr, sent string) {
	text := respparse.StripFences(raw)

	attr, _ = respparse.ExtractLabeled(text, attributeKeyword, c.cfg.Attributes)
	sent, _ = respparse.ExtractLabeled(text, sentimentKeyword, c.cfg.Sentiments)

	// Line-oriented extraction failed: scan the whole response.
	if attr == "" {
		attr, _ = respparse.FindLabel(text, c.cfg.Attributes)
	}
	if sent == "" {
		sent, _ = respparse.FindLabel(text, c.cfg.Sentiments)
	}

	attr = c.vetOfficial(attr, username)
	return attr, sent
}

// classifyLegacy is the two-call fallback: a dedicated attribute call and
// a dedicated sentiment call. A failure of either degrades that field to
// its default; only rate-limit exhaustion aborts.
func (c *Client) classifyLegacy(ctx context.Context, cm comment.Comment) (Result, error) {
	attr, au, err := c.classifyAttribute(ctx, cm)
	if err != nil {
		return Result{}, err
	}
	sent, su, err := c.classifySentiment(ctx, cm.Text)
	if err != nil {
		if fatal(err) {
			return Result{}, err
		}
		sent = config.DefaultSentiment
		su = usage.Usage{}
	}
	return Result{Attribute: attr, Sentiment: sent, Usage: au.Add(su)}, nil
}

// classifyAttribute resolves the attribute with a single-label call.
// Non-rate-limit failures return the default attribute with zero usage.
func (c *Client) classifyAttribute(ctx context.Context, cm comment.Comment) (string, usage.Usage, error) {
	raw, u, err := c.generateWithRetry(ctx, attributePrompt(c.cfg, cm.Text, cm.Username), maxSingleTokens)
	if err != nil {
		if fatal(err) {
			return "", usage.Usage{}, err
		}
		return config.DefaultAttribute, usage.Usage{}, nil
	}

	text := respparse.StripFences(raw)
	attr, ok := respparse.MatchLabel(respparse.TrimPunct(respparse.Collapse(text)), c.cfg.Attributes)
	if !ok {
		attr, _ = respparse.FindLabel(text, c.cfg.Attributes)
	}
	attr = c.vetOfficial(attr, cm.Username)
	return closeOver(attr, c.cfg.Attributes, config.DefaultAttribute), u, nil
}

// classifySentiment resolves the sentiment with a single-label call.
func (c *Client) classifySentiment(ctx context.Context, text string) (string, usage.Usage, error) {
	raw, u, err := c.generateWithRetry(ctx, sentimentPrompt(c.cfg, text), maxSingleTokens)
	if err != nil {
		return "", usage.Usage{}, err
	}

	resp := respparse.StripFences(raw)
	sent, ok := respparse.MatchLabel(respparse.TrimPunct(respparse.Collapse(resp)), c.cfg.Sentiments)
	if !ok {
		sent, _ = respparse.FindLabel(resp, c.cfg.Sentiments)
	}
	return closeOver(sent, c.cfg.Sentiments, config.DefaultSentiment), u, nil
}

// generateWithRetry retries transient failures (429, timeouts, dropped
// connections) with exponential backoff. Retry exhaustion wraps
// ErrRateLimited; non-transient failures return immediately.
func (c *Client) generateWithRetry(ctx context.Context, prompt string, maxTokens int32) (string, usage.Usage, error) {
	delay := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		raw, u, err := c.model.Generate(ctx, prompt, maxTokens)
		if err == nil {
			return raw, u, nil
		}
		if !transient(err) {
			return "", usage.Usage{}, err
		}
		lastErr = err
		if attempt < c.retries {
			c.dbg.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", c.retries).
				Dur("backoff", delay).
				Msg("Transient classification failure, backing off")
			c.sleep(delay)
			delay *= 2
		}
	}
	return "", usage.Usage{}, fmt.Errorf("%w after %d attempts: %v", ErrRateLimited, c.retries, lastErr)
}

// vetOfficial downgrades a model-produced official attribute when the
// author is not the configured official account.
func (c *Client) vetOfficial(attr, username string) string {
	if attr != config.AttrOfficial {
		return attr
	}
	if strings.TrimSpace(username) == c.cfg.OfficialName {
		return attr
	}
	return config.DefaultAttribute
}

// closeOver forces label into the closed set, falling back to def and
// finally to the set's first entry. Never returns a label outside set.
func closeOver(label string, set []string, def string) string {
	for _, l := range set {
		if l == label {
			return label
		}
	}
	for _, l := range set {
		if l == def {
			return def
		}
	}
	if len(set) > 0 {
		return set[0]
	}
	return def
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
