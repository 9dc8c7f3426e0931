package prompt

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kiroku/internal/models"
)

func builtinTemplates() []*Template {
	return []*Template{
		{
			Name: DefaultTemplateName,
			System: "You are a helpful assistant integrated into a personal note-taking application. " +
				"Answer using only the provided context from the user's notes. " +
				"Do not invent information; if the context does not contain the answer, say so.",
			User: defaultUser,
		},
		{
			Name: "detailed",
			System: "You are a thorough research assistant working over a user's personal notes. " +
				"Ground every statement in the provided context and cite the note it came from by title. " +
				"If the context is insufficient, state what is missing instead of guessing.",
			User: detailedUser,
		},
		{
			Name: "concise",
			System: "You are a terse assistant for a personal note-taking application. " +
				"Answer from the provided context in at most three sentences. " +
				"If the context lacks the answer, reply with a single sentence saying so.",
			User: defaultUser,
		},
	}
}

// contextBlock renders the retrieved context and its sources. Sources are
// always listed by note title; relevance scores are added when the caller
// asked for metadata.
func contextBlock(cfg *models.PromptConfig) string {
	var b strings.Builder
	if cfg.Context.Text != "" {
		b.WriteString("Context from your notes:\n")
		b.WriteString(cfg.Context.Text)
		b.WriteString("\n\n")
	}
	if len(cfg.Context.Sources) > 0 {
		b.WriteString("Sources:\n")
		for _, src := range cfg.Context.Sources {
			b.WriteString("- ")
			b.WriteString(src.NoteTitle)
			if cfg.IncludeMetadata {
				fmt.Fprintf(&b, " (relevance %.2f)", src.Score)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func defaultUser(cfg *models.PromptConfig) string {
	var b strings.Builder
	b.WriteString(contextBlock(cfg))
	b.WriteString("Question: ")
	b.WriteString(cfg.Query)
	return b.String()
}

func detailedUser(cfg *models.PromptConfig) string {
	var b strings.Builder
	b.WriteString(contextBlock(cfg))
	b.WriteString("Answer the following question thoroughly. Structure the answer with the main ")
	b.WriteString("points first, then supporting detail, and name the source note for each point.\n\n")
	b.WriteString("Question: ")
	b.WriteString(cfg.Query)
	return b.String()
}
