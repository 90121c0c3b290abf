package classify

import (
	"fmt"
	"strings"
)

// Output token budgets. The combined prompt answers two fields, so it gets
// a larger budget than the single-label fallbacks.
const (
	maxCombinedTokens = 200
	maxSingleTokens   = 100
)

// combinedPrompt asks for attribute and sentiment in one call; a single
// request halves latency and cost versus two separate calls.
func combinedPrompt(cfg Config, text, username string) string {
	var sb strings.Builder
	sb.WriteString("以下のライブ配信チャットのコメントを分析してください。\n\n")
	fmt.Fprintf(&sb, "コメント: %s\n", text)
	fmt.Fprintf(&sb, "投稿者: %s\n\n", username)

	sb.WriteString("1. コメントの属性を次の中から1つだけ選んでください:\n")
	writeChoices(&sb, cfg.Attributes)
	sb.WriteString("\n2. コメントの感情を次の中から1つだけ選んでください:\n")
	writeChoices(&sb, cfg.Sentiments)

	sb.WriteString("\n回答は必ず次の2行の形式で出力してください。説明は不要です。\n")
	sb.WriteString("属性: <選んだ属性>\n")
	sb.WriteString("感情: <選んだ感情>\n")
	return sb.String()
}

// attributePrompt is the single-label fallback for the attribute field.
func attributePrompt(cfg Config, text, username string) string {
	var sb strings.Builder
	sb.WriteString("以下のライブ配信チャットのコメントの属性を判定してください。\n\n")
	fmt.Fprintf(&sb, "コメント: %s\n", text)
	fmt.Fprintf(&sb, "投稿者: %s\n\n", username)
	sb.WriteString("次の中から1つだけ選び、その属性名のみを出力してください:\n")
	writeChoices(&sb, cfg.Attributes)
	return sb.String()
}

// sentimentPrompt is the single-label fallback for the sentiment field,
// also used for official-account rows that only need sentiment.
func sentimentPrompt(cfg Config, text string) string {
	var sb strings.Builder
	sb.WriteString("以下のライブ配信チャットのコメントの感情を判定してください。\n\n")
	fmt.Fprintf(&sb, "コメント: %s\n\n", text)
	sb.WriteString("次の中から1つだけ選び、その感情名のみを出力してください:\n")
	writeChoices(&sb, cfg.Sentiments)
	return sb.String()
}

func writeChoices(sb *strings.Builder, labels []string) {
	for _, label := range labels {
		fmt.Fprintf(sb, "- %s\n", label)
	}
}
