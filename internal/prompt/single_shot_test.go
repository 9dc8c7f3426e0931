package prompt

import (
	"strings"
	"testing"
)

func TestRenderTaggingPrompt(t *testing.T) {
	p := RenderTaggingPrompt("Notes on sourdough starters.", []string{"baking", "recipes"})
	if !strings.Contains(p, "Existing tags: baking, recipes") {
		t.Error("existing vocabulary missing from prompt")
	}
	if !strings.Contains(p, "Notes on sourdough starters.") {
		t.Error("note text missing from prompt")
	}
	if !strings.Contains(p, "comma-separated") {
		t.Error("output format instruction missing")
	}
}

func TestRenderTaggingPrompt_NoVocabulary(t *testing.T) {
	p := RenderTaggingPrompt("A note.", nil)
	if strings.Contains(p, "Existing tags:") {
		t.Error("empty vocabulary should not render a vocabulary line")
	}
}

func TestRenderSummaryPrompt_Styles(t *testing.T) {
	brief := RenderSummaryPrompt("note body", SummaryBrief)
	if !strings.Contains(brief, "single paragraph") {
		t.Error("brief style should ask for one paragraph")
	}
	detailed := RenderSummaryPrompt("note body", SummaryDetailed)
	if !strings.Contains(detailed, "Key points") {
		t.Error("detailed style should ask for structured sections")
	}
	if brief == detailed {
		t.Error("styles must produce different prompts")
	}
	// Unknown styles degrade to brief.
	if RenderSummaryPrompt("note body", SummaryStyle("elaborate")) != brief {
		t.Error("unknown style should render the brief instruction")
	}
}

func TestRenderQuestionsPrompt(t *testing.T) {
	p := RenderQuestionsPrompt("The water cycle involves evaporation and condensation.")
	if !strings.Contains(p, `prefixed with "Q: "`) {
		t.Error("line-prefix contract missing from instruction")
	}
	if !strings.Contains(p, "The water cycle") {
		t.Error("note text missing")
	}
}

func TestSingleShot_Deterministic(t *testing.T) {
	if RenderTaggingPrompt("x", []string{"a"}) != RenderTaggingPrompt("x", []string{"a"}) {
		t.Error("tagging prompt must be deterministic")
	}
	if RenderQuestionsPrompt("x") != RenderQuestionsPrompt("x") {
		t.Error("questions prompt must be deterministic")
	}
}
