package analysis

import (
	"encoding/json"
	"strings"
)

// decodeJSON decodes the first JSON object in raw into v. Models often wrap
// JSON in prose or code fences, so everything outside the outermost braces is ignored.
func decodeJSON(kind, raw string, v any) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return &ParseError{Kind: kind, Reason: "no JSON object in response"}
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return &ParseError{Kind: kind, Reason: "malformed JSON", Err: err}
	}
	return nil
}

// normalizeScore accepts a 0..1 fraction or a 0..100 percentage.
func normalizeScore(kind string, s float64) (float64, error) {
	switch {
	case s >= 0 && s <= 1:
		return s, nil
	case s > 1 && s <= 100:
		return s / 100, nil
	}
	return 0, &ParseError{Kind: kind, Reason: "score out of range"}
}

// cleanList trims, lowercases when fold is set, drops empties and duplicates and caps the length.
func cleanList(items []string, max int, fold bool) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if fold {
			it = strings.ToLower(it)
		}
		if it == "" {
			continue
		}
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
		if len(out) == max {
			break
		}
	}
	return out
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
