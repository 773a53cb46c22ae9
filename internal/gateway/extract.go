package gateway

import (
	"encoding/json"
	"regexp"
	"strings"

	"bellavista/internal/intent"
	"bellavista/internal/models"
)

// minDisplayText is the length below which a reply text is replaced by the action's default.
const minDisplayText = 10

var (
	fencePattern      = regexp.MustCompile("(?i)```(?:json)?")
	jsonLabelPattern  = regexp.MustCompile(`(?im)^\s*json\s*:?\s*$|\bjson\s*:?\s*$`)
	holdPhrasePattern = regexp.MustCompile(`(?i)[,;:-]?\s*\b(?:updating (?:it |your cart )?now|please hold on)\b[.!…]*`)
	blankLinesPattern = regexp.MustCompile(`\n\s*\n\s*\n+`)
	spacesPattern     = regexp.MustCompile(`[ \t]{2,}`)
)

// ExtractAction finds the first balanced {...} block of text that decodes to an object with
// an "action" key. It returns the action and text with the block removed.
func ExtractAction(text string) (models.Action, string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end >= 0 {
			if action, ok := decodeAction(text[start : end+1]); ok {
				return action, text[:start] + text[end+1:], true
			}
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return models.Action{}, text, false
}

// matchBrace returns the index of the brace closing the one at start, skipping braces inside
// string literals, or -1 when the block is unbalanced.
func matchBrace(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodeAction(block string) (models.Action, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &probe); err != nil {
		return models.Action{}, false
	}
	if _, ok := probe["action"]; !ok {
		return models.Action{}, false
	}
	var action models.Action
	if err := json.Unmarshal([]byte(block), &action); err != nil {
		return models.Action{}, false
	}
	return action, true
}

// CleanDisplayText removes code fences, dangling "json" labels and hold-on phrases that leak
// from the model around an embedded action.
func CleanDisplayText(text string) string {
	text = fencePattern.ReplaceAllString(text, "")
	text = jsonLabelPattern.ReplaceAllString(text, "")
	text = holdPhrasePattern.ReplaceAllString(text, "")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	text = spacesPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizeReply turns a chat response into a reply. The structured action_data wins; when it
// is missing or unusable an action embedded in the text is extracted. A reachable service that
// sends no action yields a text-only reply.
func NormalizeReply(resp ChatResponse) models.Reply {
	text := resp.Response
	action, ok := decodeActionData(resp.ActionData)

	if (!ok || action.Kind == models.ActionText) && strings.Contains(text, `"action"`) {
		if extracted, rest, found := ExtractAction(text); found {
			action, text, ok = extracted, rest, true
		}
	}
	if !ok {
		action = models.TextAction()
	}

	text = CleanDisplayText(text)
	if text == "" || (len([]rune(text)) < minDisplayText && action.Kind != models.ActionText) {
		text = intent.DefaultResponse(action)
	}

	return models.Reply{
		Text:     text,
		Action:   action,
		Emotion:  resp.EmotionalState,
		Fallback: resp.FallbackMode,
	}
}

func decodeActionData(raw json.RawMessage) (models.Action, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return models.Action{}, false
	}
	var action models.Action
	if err := json.Unmarshal(raw, &action); err != nil {
		return models.Action{}, false
	}
	return action, true
}
