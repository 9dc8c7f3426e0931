package prompt

import "strings"

// SummaryStyle selects between the one-paragraph and the structured
// multi-section summary instruction.
type SummaryStyle string

const (
	SummaryBrief    SummaryStyle = "brief"
	SummaryDetailed SummaryStyle = "detailed"
)

const taggingSystem = "You suggest tags for notes in a personal knowledge base. " +
	"Prefer reusing tags from the existing vocabulary over inventing new ones. " +
	"Reply with a comma-separated list of at most five lowercase tags and nothing else."

const questionsSystem = "You generate study questions from a note in a personal knowledge base. " +
	"Reply with exactly five questions, each on its own line, each line prefixed with \"Q: \". " +
	"Do not add numbering, commentary, or anything else."

const summaryBriefSystem = "You summarize notes from a personal knowledge base. " +
	"Reply with a single paragraph capturing the essential content. No headings, no lists."

const summaryDetailedSystem = "You summarize notes from a personal knowledge base. " +
	"Reply with a structured summary: a one-line overview, then sections titled " +
	"\"Key points\", \"Details\", and \"Follow-ups\", each as a short bulleted list."

// RenderTaggingPrompt produces a single-shot prompt asking for tag
// suggestions, folding the existing tag vocabulary into the instruction so
// suggestions stay consistent with it.
func RenderTaggingPrompt(noteText string, existingTags []string) string {
	var b strings.Builder
	if len(existingTags) > 0 {
		b.WriteString("Existing tags: ")
		b.WriteString(strings.Join(existingTags, ", "))
		b.WriteString("\n\n")
	}
	b.WriteString("Suggest tags for this note:\n")
	b.WriteString(noteText)
	return combine(taggingSystem, nil, b.String())
}

// RenderSummaryPrompt produces a single-shot summarization prompt. Styles
// other than SummaryDetailed render the brief instruction.
func RenderSummaryPrompt(noteText string, style SummaryStyle) string {
	system := summaryBriefSystem
	if style == SummaryDetailed {
		system = summaryDetailedSystem
	}
	return combine(system, nil, "Summarize this note:\n"+noteText)
}

// RenderQuestionsPrompt produces a single-shot prompt requesting five
// questions about the note. The "Q: " line prefix is part of the contract;
// downstream parsing depends on it.
func RenderQuestionsPrompt(noteText string) string {
	return combine(questionsSystem, nil, "Generate five questions about this note:\n"+noteText)
}
