package services

import (
	"encoding/json"
	"regexp"
	"strings"
)

// jsonStrategy tries to pull one JSON value out of free-form model text.
type jsonStrategy func(raw string) (any, bool)

var fencedBlock = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

func parseStrict(raw string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return nil, false
	}
	return v, true
}

func parseFenced(raw string) (any, bool) {
	m := fencedBlock.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	return parseStrict(m[1])
}

// parseBetween parses the substring from the first open to the last close.
func parseBetween(open, close string) jsonStrategy {
	return func(raw string) (any, bool) {
		s, e := strings.Index(raw, open), strings.LastIndex(raw, close)
		if s == -1 || e <= s {
			return nil, false
		}
		return parseStrict(raw[s : e+1])
	}
}

var (
	objectStrategies = []jsonStrategy{parseStrict, parseFenced, parseBetween("{", "}")}
	arrayStrategies  = []jsonStrategy{parseStrict, parseFenced, parseBetween("[", "]")}
)

// ExtractObject returns the first JSON object found by the strategies
// strict, fenced block, then first "{" to last "}".
func ExtractObject(raw string) (map[string]any, bool) {
	for _, try := range objectStrategies {
		if v, ok := try(raw); ok {
			if obj, ok := v.(map[string]any); ok {
				return obj, true
			}
		}
	}
	return nil, false
}

// ExtractArray is ExtractObject for JSON arrays.
func ExtractArray(raw string) ([]any, bool) {
	for _, try := range arrayStrategies {
		if v, ok := try(raw); ok {
			if arr, ok := v.([]any); ok {
				return arr, true
			}
		}
	}
	return nil, false
}
