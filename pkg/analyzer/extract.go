package analyzer

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoOracle is returned when an analyzer has no oracle configured
var ErrNoOracle = errors.New("no oracle configured")

// ErrNoJSON is returned when no JSON object can be recovered from a response
var ErrNoJSON = errors.New("could not extract JSON from response")

var (
	fencedBlockRe   = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON tolerantly recovers a JSON object from free-form oracle text.
// It tries, in order: a fenced code block, the whole payload, and the first
// balanced {...} found by brace-depth scanning. If strict parsing of the
// balanced candidate fails, trailing commas are stripped and it is retried.
func ExtractJSON(text string) (map[string]any, error) {
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		var out map[string]any
		if err := json.Unmarshal([]byte(candidate), &out); err == nil {
			return out, nil
		}
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err == nil {
		return out, nil
	}

	start := strings.IndexByte(text, '{')
	if start != -1 {
		depth := 0
		for i := start; i < len(text); i++ {
			switch text[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := text[start : i+1]
					var obj map[string]any
					if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
						return obj, nil
					}
					cleaned := trailingCommaRe.ReplaceAllString(candidate, "$1")
					if err := json.Unmarshal([]byte(cleaned), &obj); err == nil {
						return obj, nil
					}
					return nil, ErrNoJSON
				}
			}
		}
	}

	return nil, ErrNoJSON
}
