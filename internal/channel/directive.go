package channel

import (
	"regexp"
	"strings"

	"github.com/ruizzmauri/gsv-sub000/internal/session"
)

// modelAliases resolves short names used in /m:/model: directives to the
// full model identifiers the session settings expect.
var modelAliases = map[string]string{
	"opus":   "claude-opus-4-1",
	"sonnet": "claude-sonnet-4-5",
	"haiku":  "claude-haiku-4-5",
}

// valuedDirectiveRE matches the colon-valued directives. The ':' required
// after the name keeps a single-letter alias (t, m) from matching the start
// of its long form ("/model:"), whatever the order of the alternatives.
var valuedDirectiveRE = regexp.MustCompile(`(?i)/(think|model|t|m):([a-zA-Z0-9._\-]+)`)
var statusDirectiveRE = regexp.MustCompile(`(?i)/status\b`)

// DirectiveResult is what ParseDirectives strips from a message.
type DirectiveResult struct {
	Text      string // message with directive tokens removed and whitespace collapsed
	Overrides session.Overrides
	Status    bool // /status directive requested
	HadAny    bool // at least one directive token matched
}

// ParseDirectives strips inline /t:LEVEL, /think:LEVEL, /m:NAME, /model:NAME,
// and /status tokens from text, returning the cleaned text and the resulting
// per-turn overrides. A thinking directive with an unrecognized level is left
// in place (treated as ordinary text); a model name with no alias is used
// verbatim.
func ParseDirectives(text string) DirectiveResult {
	var result DirectiveResult
	cleaned := valuedDirectiveRE.ReplaceAllStringFunc(text, func(match string) string {
		sub := valuedDirectiveRE.FindStringSubmatch(match)
		kind := strings.ToLower(sub[1])
		value := sub[2]

		switch kind {
		case "t", "think":
			if level, ok := validThinkingLevel(value); ok {
				result.Overrides.Thinking = level
				result.HadAny = true
				return ""
			}
			return match
		case "m", "model":
			if alias, ok := modelAliases[strings.ToLower(value)]; ok {
				result.Overrides.Model = alias
			} else {
				result.Overrides.Model = value
			}
			result.HadAny = true
			return ""
		}
		return match
	})

	cleaned = statusDirectiveRE.ReplaceAllStringFunc(cleaned, func(string) string {
		result.Status = true
		result.HadAny = true
		return ""
	})

	result.Text = strings.Join(strings.Fields(cleaned), " ")
	return result
}

func validThinkingLevel(raw string) (session.ThinkingLevel, bool) {
	level := session.ThinkingLevel(strings.ToLower(raw))
	switch level {
	case session.ThinkingNone, session.ThinkingMinimal, session.ThinkingLow,
		session.ThinkingMedium, session.ThinkingHigh, session.ThinkingXHigh:
		return level, true
	default:
		return "", false
	}
}
