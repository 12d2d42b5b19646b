package channel

import (
	"testing"

	"github.com/ruizzmauri/gsv-sub000/internal/session"
)

func TestParseDirectivesThinkingLevel(t *testing.T) {
	res := ParseDirectives("/t:high what is the weather")
	if res.Overrides.Thinking != session.ThinkingHigh {
		t.Fatalf("Thinking = %q, want high", res.Overrides.Thinking)
	}
	if res.Text != "what is the weather" {
		t.Fatalf("Text = %q", res.Text)
	}
	if !res.HadAny {
		t.Fatalf("HadAny = false, want true")
	}
}

func TestParseDirectivesModelAlias(t *testing.T) {
	res := ParseDirectives("/model:opus draft a reply")
	if res.Overrides.Model != "claude-opus-4-1" {
		t.Fatalf("Model = %q", res.Overrides.Model)
	}
	if res.Text != "draft a reply" {
		t.Fatalf("Text = %q", res.Text)
	}
}

func TestParseDirectivesModelLiteralPassesThroughUnaliased(t *testing.T) {
	res := ParseDirectives("/m:some-custom-model go")
	if res.Overrides.Model != "some-custom-model" {
		t.Fatalf("Model = %q", res.Overrides.Model)
	}
}

func TestParseDirectivesModelShortFormDoesNotSwallowLongForm(t *testing.T) {
	// Confirms "/model:sonnet" is read as the long form, not as the "m" alias
	// followed by a literal "odel:sonnet".
	res := ParseDirectives("/model:sonnet hello")
	if res.Overrides.Model != "claude-sonnet-4-5" {
		t.Fatalf("Model = %q", res.Overrides.Model)
	}
	if res.Text != "hello" {
		t.Fatalf("Text = %q, leftover directive fragment leaked through", res.Text)
	}
}

func TestParseDirectivesInvalidThinkingLevelLeftInText(t *testing.T) {
	res := ParseDirectives("/t:ultra do the thing")
	if res.Overrides.Thinking != "" {
		t.Fatalf("Thinking = %q, want empty for invalid level", res.Overrides.Thinking)
	}
	if res.Text != "/t:ultra do the thing" {
		t.Fatalf("Text = %q, invalid directive should be left as plain text", res.Text)
	}
}

func TestParseDirectivesStatusOnly(t *testing.T) {
	res := ParseDirectives("/status")
	if !res.Status {
		t.Fatalf("Status = false, want true")
	}
	if res.Text != "" {
		t.Fatalf("Text = %q, want empty", res.Text)
	}
}

func TestParseDirectivesNoDirectives(t *testing.T) {
	res := ParseDirectives("just a normal message")
	if res.HadAny {
		t.Fatalf("HadAny = true, want false")
	}
	if res.Text != "just a normal message" {
		t.Fatalf("Text = %q", res.Text)
	}
}
