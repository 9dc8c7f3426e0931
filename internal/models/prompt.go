package models

// SourceRef identifies a note that contributed context to a prompt.
type SourceRef struct {
	NoteTitle string  `json:"note_title"`
	Score     float64 `json:"score"`
}

// PromptContext is the retrieved material a prompt is grounded on.
type PromptContext struct {
	// Text is the concatenated chunk texts in retrieval order.
	Text string `json:"text"`
	// Sources lists the contributing notes in retrieval order.
	Sources []SourceRef `json:"sources"`
}

// Example is a few-shot query/answer pair included ahead of the user instruction.
type Example struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// PromptConfig is the input to prompt assembly.
type PromptConfig struct {
	Query                string        `json:"query"`
	Context              PromptContext `json:"context"`
	TemplateName         string        `json:"template_name,omitempty"`
	IncludeMetadata      bool          `json:"include_metadata,omitempty"`
	SystemPromptOverride string        `json:"system_prompt_override,omitempty"`
	Examples             []Example     `json:"examples,omitempty"`
}

// TemplateResult is a finished prompt: system instruction, optional few-shot
// examples, and user instruction combined into one provider-neutral string.
type TemplateResult struct {
	Text         string `json:"text"`
	TemplateName string `json:"template_name"`
}
