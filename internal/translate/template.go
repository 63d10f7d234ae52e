package translate

import "strings"

// DefaultPromptTemplate is used when no template is configured.
const DefaultPromptTemplate = "Translate the following text from {source_language} to {target_language}. " +
	"Output only the translation, without explanations.\n\n{text}"

// RenderPrompt substitutes the literal placeholder tokens of a prompt
// template. Unknown tokens are left as-is.
func RenderPrompt(tmpl, sourceLang, targetLang, text string) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultPromptTemplate
	}
	return strings.NewReplacer(
		"{source_language}", sourceLang,
		"{target_language}", targetLang,
		"{text}", text,
	).Replace(tmpl)
}
