package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Payload is a decoded model reply: a JSON object expected to carry a
// "differences" array.
type Payload map[string]any

// EmptyPayload returns the canonical empty shape.
func EmptyPayload() Payload {
	return Payload{"differences": []any{}}
}

var (
	fenceOpenRe  = regexp.MustCompile("^```[a-zA-Z]*\n")
	fenceCloseRe = regexp.MustCompile("\n```$")
)

// ExtractJSON recovers a JSON object from arbitrary, possibly decorated,
// model output text. It strips markdown code fences, falls back to the
// widest brace-delimited span when the reply embeds JSON in prose, and
// collapses anything unparseable to the canonical empty shape. Total
// function: never fails, and the result always carries a "differences" key.
func ExtractJSON(response string) Payload {
	text := strings.TrimSpace(response)
	if text == "" {
		return EmptyPayload()
	}

	if strings.HasPrefix(text, "```") {
		text = fenceOpenRe.ReplaceAllString(text, "")
		text = fenceCloseRe.ReplaceAllString(text, "")
	}

	if !strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start == -1 || end < start {
			return EmptyPayload()
		}
		text = text[start : end+1]
	}

	var payload Payload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return EmptyPayload()
	}
	if payload == nil {
		return EmptyPayload()
	}
	if _, ok := payload["differences"]; !ok {
		payload["differences"] = []any{}
	}
	return payload
}
