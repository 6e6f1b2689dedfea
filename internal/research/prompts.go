package research

import (
	"fmt"
	"strings"
)

// PromptInput parameterizes a research prompt.
type PromptInput struct {
	Topic         string
	Query         string
	SourceURLs    []string
	ProductURLs   []string
	StrictSources bool
}

const researchSystemPrompt = "You are a market researcher who mines online communities, forums and reviews. " +
	"Ground every claim in a direct quote with its source URL and an engagement signal (upvotes, replies, review count). " +
	"Prefer recent, high-engagement discussions. Write thorough, citation-rich prose."

func buildPainPrompt(in PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research pains and frustrations people voice about %q.\n", in.Topic)
	fmt.Fprintf(&b, "The driving question is: %s\n", in.Query)
	b.WriteString("For each distinct pain point report: what hurts, a direct quote as evidence, the source URL, " +
		"an engagement signal, how severe it is, and the impact on the person's life or workflow.\n")
	writeSourceDirectives(&b, in)
	return b.String()
}

func buildQuestionPrompt(in PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Map the questions people ask about %q and the advice they receive.\n", in.Topic)
	fmt.Fprintf(&b, "The driving question is: %s\n", in.Query)
	b.WriteString("For each recurring question report: the question itself, a direct quote as evidence, the source URL, " +
		"an engagement signal, what type of question it is, the best answers suggested by the community, " +
		"and related follow-up questions.\n")
	writeSourceDirectives(&b, in)
	return b.String()
}

func buildPatternPrompt(in PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Detect behavioral and market patterns around %q.\n", in.Topic)
	fmt.Fprintf(&b, "The driving question is: %s\n", in.Query)
	b.WriteString("For each pattern report: a short name, a direct quote as evidence, the source URL, " +
		"an engagement signal, the pattern type, what it correlates with, and why it is significant.\n")
	writeSourceDirectives(&b, in)
	return b.String()
}

func buildProductPrompt(in PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze popular products related to %q and how buyers receive them.\n", in.Topic)
	fmt.Fprintf(&b, "The driving question is: %s\n", in.Query)
	b.WriteString("For each product report: its name, a direct quote as evidence, the source URL, " +
		"an engagement signal, where it sells, its price point, what buyers praise, what they complain about, " +
		"and the market gap it leaves open.\n")
	if len(in.ProductURLs) > 0 {
		fmt.Fprintf(&b, "Focus the product analysis on these product pages: %s\n", strings.Join(in.ProductURLs, ", "))
	}
	writeSourceDirectives(&b, in)
	return b.String()
}

func buildAvatarPrompt(in PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Build customer personas (avatars) for the market around %q.\n", in.Topic)
	fmt.Fprintf(&b, "The driving question is: %s\n", in.Query)
	b.WriteString("For each persona report: a memorable name, a direct quote typical of them as evidence, the source URL, " +
		"an engagement signal, the persona type, demographics, buying behavior, what drives their purchases, " +
		"and the competitive landscape they shop in.\n")
	writeSourceDirectives(&b, in)
	return b.String()
}

func writeSourceDirectives(b *strings.Builder, in PromptInput) {
	if len(in.SourceURLs) == 0 {
		return
	}
	if in.StrictSources {
		fmt.Fprintf(b, "Use ONLY these sources and no others: %s\n", strings.Join(in.SourceURLs, ", "))
		return
	}
	fmt.Fprintf(b, "Prioritize these sources: %s\n", strings.Join(in.SourceURLs, ", "))
}
