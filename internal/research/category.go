package research

// Category identifies one of the five research analysis kinds. The string
// value is the display token used on API paths and in responses.
type Category string

const (
	CategoryPainFrustration  Category = "Pain & Frustration Analysis"
	CategoryQuestionAdvice   Category = "Question & Advice Mapping"
	CategoryPatternDetection Category = "Pattern Detection"
	CategoryPopularProducts  Category = "Popular Products Analysis"
	CategoryAvatars          Category = "Avatars"
)

// Descriptor carries everything category-specific: display metadata, the
// prompt builder for the research call, and the structuring schema. One
// generic job and one store work across categories by dispatching on it.
type Descriptor struct {
	Category    Category
	Code        string
	Description string

	SystemPrompt string
	Temperature  float32
	BuildPrompt  func(PromptInput) string

	schemaHint string
	decode     func(data []byte, query string) ([]byte, int, error)
}

var descriptors = []Descriptor{
	{
		Category:     CategoryPainFrustration,
		Code:         "pain_frustration",
		Description:  "Surfaces recurring pains, frustrations and unmet needs expressed in community discussions.",
		SystemPrompt: researchSystemPrompt,
		Temperature:  0.2,
		BuildPrompt:  buildPainPrompt,
		schemaHint:   painSchemaHint,
		decode:       decodeInsightList[PainInsight],
	},
	{
		Category:     CategoryQuestionAdvice,
		Code:         "question_advice",
		Description:  "Maps the questions people ask and the advice they receive around the topic.",
		SystemPrompt: researchSystemPrompt,
		Temperature:  0.2,
		BuildPrompt:  buildQuestionPrompt,
		schemaHint:   questionSchemaHint,
		decode:       decodeInsightList[QuestionInsight],
	},
	{
		Category:     CategoryPatternDetection,
		Code:         "pattern_detection",
		Description:  "Detects behavioral and market patterns, correlations and anomalies across sources.",
		SystemPrompt: researchSystemPrompt,
		Temperature:  0.3,
		BuildPrompt:  buildPatternPrompt,
		schemaHint:   patternSchemaHint,
		decode:       decodeInsightList[PatternInsight],
	},
	{
		Category:     CategoryPopularProducts,
		Code:         "popular_products",
		Description:  "Analyzes popular products in the space, their reception and the gaps they leave.",
		SystemPrompt: researchSystemPrompt,
		Temperature:  0.2,
		BuildPrompt:  buildProductPrompt,
		schemaHint:   productSchemaHint,
		decode:       decodeInsightList[ProductInsight],
	},
	{
		Category:     CategoryAvatars,
		Code:         "avatars",
		Description:  "Builds customer personas with demographics, buying behavior and purchase drivers.",
		SystemPrompt: researchSystemPrompt,
		Temperature:  0.4,
		BuildPrompt:  buildAvatarPrompt,
		schemaHint:   avatarSchemaHint,
		decode:       decodeInsightList[AvatarInsight],
	},
}

// Descriptors returns the five category descriptors in display order.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// LookupCategory resolves a path token to its descriptor.
func LookupCategory(token string) (Descriptor, bool) {
	for _, d := range descriptors {
		if string(d.Category) == token {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ValidCategory reports whether token names a known category.
func ValidCategory(token string) bool {
	_, ok := LookupCategory(token)
	return ok
}
