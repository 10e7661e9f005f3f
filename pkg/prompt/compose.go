// Package prompt renders LLM prompt templates and parses model output.
package prompt

import (
	"bytes"
	"fmt"
	"math/rand"
	"regexp"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
)

// Engine selects the template syntax used by ComposeWith.
type Engine string

const (
	// EngineSimple substitutes {{ident}} tokens from the value map.
	// Unknown tokens render as empty strings.
	EngineSimple Engine = "simple"
	// EngineTemplate renders with text/template, exposing the value map
	// as the dot context.
	EngineTemplate Engine = "template"
)

var tokenRe = regexp.MustCompile(`{{\w+}}`)

// Compose renders tmpl with the simple engine. Every {{ident}} token is
// replaced with the corresponding value, or an empty string when the
// value map has no such key.
func Compose(tmpl string, values map[string]any) string {
	return tokenRe.ReplaceAllStringFunc(tmpl, func(token string) string {
		key := token[2 : len(token)-2]
		v, ok := values[key]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	})
}

// ComposeWith renders tmpl with the selected engine.
func ComposeWith(engine Engine, tmpl string, values map[string]any) (string, error) {
	switch engine {
	case EngineTemplate:
		t, err := template.New("prompt").Option("missingkey=zero").Parse(tmpl)
		if err != nil {
			return "", goerr.Wrap(err, "failed to parse prompt template")
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, values); err != nil {
			return "", goerr.Wrap(err, "failed to render prompt template")
		}
		return buf.String(), nil
	default:
		return Compose(tmpl, values), nil
	}
}

var randomUserNames = []string{
	"Alice", "Bob", "Charlie", "Dana", "Eve",
	"Frank", "Grace", "Heidi", "Ivan", "Judy",
}

var userTokenRe = regexp.MustCompile(`{{user\d+}}`)

// ComposeRandomUser replaces {{user1}}, {{user2}}, ... tokens with
// random display names. The same token always maps to the same name
// within one call.
func ComposeRandomUser(tmpl string) string {
	assigned := map[string]string{}
	perm := rand.Perm(len(randomUserNames))
	next := 0

	return userTokenRe.ReplaceAllStringFunc(tmpl, func(token string) string {
		if name, ok := assigned[token]; ok {
			return name
		}
		var name string
		if next < len(perm) {
			name = randomUserNames[perm[next]]
		} else {
			name = fmt.Sprintf("User%d", next+1)
		}
		next++
		assigned[token] = name
		return name
	})
}

// AddHeader prepends header to body. An empty body yields an empty
// string so optional sections disappear from the prompt entirely.
func AddHeader(header, body string) string {
	if len(body) == 0 {
		return ""
	}
	if header != "" {
		return header + "\n" + body + "\n"
	}
	return body + "\n"
}
