// Package config holds the closed classification label sets and per-company
// profiles used to analyze exported live-commerce chat logs. The label sets
// are kept in Japanese because the response parser matches model output
// against them verbatim (exact and substring) and the chat data is Japanese.
package config

// Attribute labels. Every classified comment carries exactly one of these.
const (
	AttrOfficial            = "公式コメント"
	AttrProductQuestion     = "商品に対する質問"
	AttrPresenterQuestion   = "出演者に対する質問"
	AttrProductReaction     = "商品に対するリアクション"
	AttrPresenterReaction   = "出演者に対するリアクション"
	AttrProductAndPresenter = "商品と出演者に対するリアクション"
	AttrStreamReaction      = "配信に対するリアクション"
	AttrEmojiOnly           = "絵文字のみ"
	AttrComplaint           = "不満の声"
	AttrPurchaseIntent      = "購入検討"
	AttrPurchaseReport      = "購入報告"
	AttrThanks              = "お礼・感謝"
	AttrOther               = "その他"
)

// Sentiment labels.
const (
	SentPositive         = "ポジティブ"
	SentSlightlyPositive = "ややポジティブ"
	SentNeutral          = "どちらでもない"
	SentSlightlyNegative = "ややネガティブ"
	SentNegative         = "ネガティブ"
	SentMixed            = "混在"
)

// Answer statuses for question comments.
const (
	AnswerByPresenter = "出演者"
	AnswerByStaff     = "運営"
	Unanswered        = "未回答"
)

// Defaults applied when a model response cannot be resolved to a valid label.
const (
	DefaultAttribute = AttrEmojiOnly
	DefaultSentiment = SentNeutral
)

// Attributes is the closed attribute label set, in prompt order.
var Attributes = []string{
	AttrOfficial,
	AttrProductQuestion,
	AttrPresenterQuestion,
	AttrProductReaction,
	AttrPresenterReaction,
	AttrProductAndPresenter,
	AttrStreamReaction,
	AttrEmojiOnly,
	AttrComplaint,
	AttrPurchaseIntent,
	AttrPurchaseReport,
	AttrThanks,
	AttrOther,
}

// Sentiments is the closed sentiment label set, in prompt order.
var Sentiments = []string{
	SentPositive,
	SentSlightlyPositive,
	SentNeutral,
	SentSlightlyNegative,
	SentNegative,
	SentMixed,
}

// AnswerStatuses is the closed answer-status set for question comments.
var AnswerStatuses = []string{
	AnswerByPresenter,
	AnswerByStaff,
	Unanswered,
}

// OfficialGuestID is a legacy numeric guest_id that identifies the official
// account in older exports. Kept for backward compatibility with data that
// predates the user_type column.
const OfficialGuestID = "555674619"

// Company describes the official-account rules for one streaming client.
type Company struct {
	// Name is the display name and also the author name allowed to carry
	// the official-comment attribute.
	Name string

	// OfficialUserType marks rows as official when the user_type column
	// equals this value (case-insensitive). Typically "moderator".
	OfficialUserType string

	// OfficialGuestID marks rows as official by guest_id. Empty disables
	// the check (the legacy OfficialGuestID constant still applies).
	OfficialGuestID string

	// OfficialUsernames are exact author names (staff accounts) treated
	// as official regardless of the other columns.
	OfficialUsernames []string
}

// DefaultCompany is used when no company is selected.
const DefaultCompany = "Starbucks Coffee Japan"

var companies = map[string]Company{
	"Starbucks Coffee Japan": {
		Name:             "Starbucks Coffee Japan",
		OfficialUserType: "moderator",
	},
	"マツココライブ": {
		Name:              "マツココライブ",
		OfficialUserType:  "moderator",
		OfficialUsernames: []string{"マツキヨココカラSTAFF"},
	},
	"ヤマダライブ": {
		Name:             "ヤマダライブ",
		OfficialUserType: "moderator",
	},
}

// CompanyByName returns the profile for name, falling back to the default
// company when the name is unknown.
func CompanyByName(name string) Company {
	if c, ok := companies[name]; ok {
		return c
	}
	return companies[DefaultCompany]
}

// CompanyNames lists the configured company names. Order is not guaranteed.
func CompanyNames() []string {
	names := make([]string, 0, len(companies))
	for n := range companies {
		names = append(names, n)
	}
	return names
}
