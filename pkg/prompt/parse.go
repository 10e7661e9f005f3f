package prompt

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

var (
	jsonBlockRe  = regexp.MustCompile("```(?:json)?\n([\\s\\S]*?)\n```")
	jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
	respondRe    = regexp.MustCompile(`(?i)^(RESPOND|IGNORE|STOP)$`)
)

// ParseContent extracts the reply content from raw model output. It
// first looks for a fenced JSON block, then for a bare JSON object
// anywhere in the text. When no JSON can be recovered the whole text is
// treated as the reply with no action.
func ParseContent(text string) (*model.Content, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, goerr.Wrap(types.ErrProvider, "empty model output")
	}

	var raw string
	if m := jsonBlockRe.FindStringSubmatch(trimmed); m != nil {
		raw = m[1]
	} else if m := jsonObjectRe.FindString(trimmed); m != "" {
		raw = m
	}

	if raw != "" {
		var payload struct {
			User   string `json:"user"`
			Text   string `json:"text"`
			Action string `json:"action"`
		}
		if err := json.Unmarshal([]byte(sanitizeJSON(raw)), &payload); err == nil && payload.Text != "" {
			return &model.Content{
				Text:   payload.Text,
				Action: strings.ToUpper(strings.TrimSpace(payload.Action)),
			}, nil
		}
	}

	// Fall back to the raw text as a plain reply
	return &model.Content{Text: trimmed}, nil
}

// sanitizeJSON repairs the damage models commonly do to JSON output:
// control characters inside strings and trailing commas.
func sanitizeJSON(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r < 0x20 && r != '\n' && r != '\t' {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	cleaned = regexp.MustCompile(`,\s*([}\]])`).ReplaceAllString(cleaned, "$1")
	return cleaned
}

// ParseShouldRespond reads a [RESPOND]/[IGNORE]/[STOP] decision from
// model output. The first line is checked for an exact option; when it
// does not match, the whole text is scanned for any option keyword in
// priority order. An empty decision means the output was unreadable.
func ParseShouldRespond(text string) types.RespondDecision {
	firstLine := text
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine = text[:idx]
	}
	normalized := strings.ToUpper(strings.NewReplacer("[", "", "]", "").Replace(strings.TrimSpace(firstLine)))
	if respondRe.MatchString(normalized) {
		return types.RespondDecision(normalized)
	}

	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "RESPOND"):
		return types.DecisionRespond
	case strings.Contains(upper, "IGNORE"):
		return types.DecisionIgnore
	case strings.Contains(upper, "STOP"):
		return types.DecisionStop
	}
	return types.DecisionUnknown
}

var (
	affirmativeWords = []string{"YES", "Y", "TRUE", "T", "1", "ON", "ENABLE"}
	negativeWords    = []string{"NO", "N", "FALSE", "F", "0", "OFF", "DISABLE"}
)

// ParseBoolean reads a YES/NO style answer. The second return value is
// false when the text matches neither list.
func ParseBoolean(text string) (bool, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if normalized == "" {
		return false, false
	}
	for _, w := range affirmativeWords {
		if normalized == w {
			return true, true
		}
	}
	for _, w := range negativeWords {
		if normalized == w {
			return false, true
		}
	}
	return false, false
}
