package translate

import (
	"strings"
	"testing"
)

func TestRenderPrompt_SubstitutesTokens(t *testing.T) {
	got := RenderPrompt("From {source_language} into {target_language}: {text}", "English", "Chinese", "hello")
	want := "From English into Chinese: hello"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderPrompt_EmptyTemplateUsesDefault(t *testing.T) {
	got := RenderPrompt("  ", "English", "German", "hi")
	if !strings.Contains(got, "English") || !strings.Contains(got, "German") || !strings.Contains(got, "hi") {
		t.Fatalf("default template did not substitute: %q", got)
	}
	if strings.Contains(got, "{source_language}") || strings.Contains(got, "{text}") {
		t.Fatalf("placeholders left in rendered prompt: %q", got)
	}
}

func TestRenderPrompt_UnknownTokensUntouched(t *testing.T) {
	got := RenderPrompt("{text} {other}", "a", "b", "x")
	if got != "x {other}" {
		t.Fatalf("got %q", got)
	}
}
