package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedBlock   = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSONObject pulls the first JSON object out of an LLM reply. It accepts
// bare JSON, fenced code blocks, objects surrounded by prose, trailing commas
// and objects cut off before their closing braces.
func ExtractJSONObject(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty reply: %w", ErrMalformedResponse)
	}

	if obj, ok := decodeObject(content); ok {
		return obj, nil
	}

	if m := fencedBlock.FindStringSubmatch(content); m != nil {
		if obj, ok := decodeLenient(m[1]); ok {
			return obj, nil
		}
	}

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return nil, fmt.Errorf("no json object in reply: %w", ErrMalformedResponse)
	}
	candidate, open := balancedObject(content[start:])
	if open > 0 {
		candidate += strings.Repeat("}", open)
	}
	if obj, ok := decodeLenient(candidate); ok {
		return obj, nil
	}

	return nil, fmt.Errorf("cannot decode json object: %w", ErrMalformedResponse)
}

func decodeLenient(s string) (map[string]any, bool) {
	if obj, ok := decodeObject(s); ok {
		return obj, true
	}
	return decodeObject(trailingComma.ReplaceAllString(s, "$1"))
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// balancedObject returns the prefix of s up to the brace closing s[0] and the
// number of objects still open if the input ends first.
func balancedObject(s string) (string, int) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], 0
			}
		}
	}
	out := strings.TrimRight(s, " \t\r\n,")
	if inString {
		out += `"`
	}
	return out, depth
}
