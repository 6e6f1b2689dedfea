package research

import (
	"encoding/json"
	"time"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// AnalysisRecord is one launched analysis for a (user, project, category).
// TaskID is the external handle used on results endpoints and subscriptions.
type AnalysisRecord struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"taskId"`
	UserID      string          `json:"userId"`
	ProjectID   string          `json:"projectId"`
	Category    Category        `json:"category"`
	Status      string          `json:"status"`
	Topic       string          `json:"topic"`
	Query       string          `json:"query"`
	Insights    json.RawMessage `json:"insights"`
	RawResponse string          `json:"rawResponse,omitempty"`
	Error       *string         `json:"error"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// InsightBase carries the fields common to every insight category. Query is
// stamped by the parser from the record's query, never trusted from the LLM.
type InsightBase struct {
	Title      string `json:"title"`
	Evidence   string `json:"evidence"`
	SourceURL  string `json:"sourceUrl"`
	Engagement string `json:"engagement"`
	Query      string `json:"query"`
}

func (b *InsightBase) stampQuery(q string) { b.Query = q }

// PainInsight is one pain or frustration finding.
type PainInsight struct {
	InsightBase
	Severity string `json:"severity"`
	Impact   string `json:"impact"`
}

// QuestionInsight is one question-and-advice finding.
type QuestionInsight struct {
	InsightBase
	QuestionType     string   `json:"questionType"`
	SuggestedAnswers []string `json:"suggestedAnswers"`
	RelatedQuestions []string `json:"relatedQuestions"`
}

// PatternInsight is one detected pattern or correlation.
type PatternInsight struct {
	InsightBase
	PatternType  string `json:"patternType"`
	Correlation  string `json:"correlation"`
	Significance string `json:"significance"`
}

// ProductInsight is one popular-product finding.
type ProductInsight struct {
	InsightBase
	Platform         string   `json:"platform"`
	Price            string   `json:"price"`
	PositiveFeedback []string `json:"positiveFeedback"`
	NegativeFeedback []string `json:"negativeFeedback"`
	MarketGap        string   `json:"marketGap"`
}

// AvatarInsight is one customer persona.
type AvatarInsight struct {
	InsightBase
	PersonaName          string `json:"personaName"`
	PersonaType          string `json:"personaType"`
	Demographics         string `json:"demographics"`
	BuyingBehavior       string `json:"buyingBehavior"`
	PurchaseDrivers      string `json:"purchaseDrivers"`
	CompetitiveLandscape string `json:"competitiveLandscape"`
}

// emptyInsights is the canonical encoding of "no insights".
var emptyInsights = json.RawMessage("[]")
