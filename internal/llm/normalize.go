package llm

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"
)

// Strategy names which fallback step produced a record.
type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyBraces   Strategy = "brace_scan"
	StrategyPatterns Strategy = "pattern"
	StrategyDegraded Strategy = "degraded"
)

// Outcome is the normalized form of one model reply. It is always usable: a reply nothing
// could be recovered from yields a degraded record rather than an error.
type Outcome struct {
	Record    Record
	Strategy  Strategy
	Shape     Shape // nil for pattern and degraded strategies
	Degraded  bool
	SchemaErr error // the resolved object did not match the documented shape; advisory only
}

// Normalize turns raw model text into a Record for fs. Steps, each tried only when the
// previous one found nothing: fenced/direct JSON parse, first balanced {...} substring,
// per-field patterns, degraded defaults.
func Normalize(raw string, fs FieldSet) Outcome {
	if obj, ok := parseObject(stripFence(raw)); ok {
		if out, ok := fromObject(obj, fs, StrategyDirect); ok {
			return out
		}
	}

	if sub, ok := firstBalancedObject(raw); ok {
		if obj, ok := parseObject(sub); ok {
			if out, ok := fromObject(obj, fs, StrategyBraces); ok {
				return out
			}
		}
	}

	if rec, ok := extractByPatterns(raw, fs); ok {
		return Outcome{Record: withDefaults(rec, fs), Strategy: StrategyPatterns}
	}

	return Degraded(fs)
}

// Degraded returns the all-null record with fs defaults applied.
func Degraded(fs FieldSet) Outcome {
	return Outcome{
		Record:   withDefaults(Clean(Record{}, fs), fs),
		Strategy: StrategyDegraded,
		Degraded: true,
	}
}

func fromObject(obj map[string]any, fs FieldSet, strategy Strategy) (Outcome, bool) {
	body, shape, ok := resolveShape(obj, fs)
	if !ok {
		return Outcome{}, false
	}
	return Outcome{
		Record:    Clean(project(body, fs), fs),
		Strategy:  strategy,
		Shape:     shape,
		SchemaErr: ValidateAgainstFieldSet(fs, body),
	}, true
}

func withDefaults(rec Record, fs FieldSet) Record {
	for k, v := range fs.Defaults {
		if cur, ok := rec[k]; ok && cur == nil {
			rec[k] = v
		}
	}
	return rec
}

// stripFence removes one leading ``` line (with optional language tag) and one trailing ```.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimLeft(strings.TrimPrefix(s, "```"), "jsonJSON")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseObject(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		// Some replies wrap a single object in a list.
		if len(t) > 0 {
			if m, ok := t[0].(map[string]any); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// firstBalancedObject finds the first '{' and returns the substring up to its matching '}',
// skipping braces inside JSON strings.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var patternCache sync.Map // key -> []*regexp.Regexp

func patternsFor(key string) []*regexp.Regexp {
	if v, ok := patternCache.Load(key); ok {
		return v.([]*regexp.Regexp)
	}
	k := regexp.QuoteMeta(key)
	ps := []*regexp.Regexp{
		regexp.MustCompile(`(?i)"` + k + `"\s*:\s*"((?:[^"\\]|\\.)*)"`),
		regexp.MustCompile(`(?i)"` + k + `"\s*:\s*(-?\d[\d,]*(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)"` + k + `"\s*:\s*(true|false|null)\b`),
		regexp.MustCompile(`(?i)"` + k + `"\s*:\s*(\[[^\[\]]*\])`),
		regexp.MustCompile(`(?i)'` + k + `'\s*:\s*'([^']*)'`),
	}
	patternCache.Store(key, ps)
	return ps
}

// extractByPatterns recovers individual key/value pairs from text that is not valid JSON.
// It succeeds when at least one field is non-null after cleaning.
func extractByPatterns(raw string, fs FieldSet) (Record, bool) {
	rec := make(Record, len(fs.Fields))
	for _, f := range fs.Fields {
		rec[f.Name] = nil
	fieldLoop:
		for _, key := range f.Keys() {
			for i, re := range patternsFor(key) {
				m := re.FindStringSubmatch(raw)
				if m == nil {
					continue
				}
				v := patternValue(i, m[1])
				if cleanField(v, f.Kind) == nil {
					// null or placeholder under this key; try the next alias
					break
				}
				rec[f.Name] = v
				break fieldLoop
			}
		}
	}

	rec = Clean(rec, fs)
	for _, v := range rec {
		if v != nil {
			return rec, true
		}
	}
	return nil, false
}

func patternValue(patternIndex int, s string) any {
	switch patternIndex {
	case 0:
		var out string
		if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err == nil {
			return out
		}
		return s
	case 1:
		if f, ok := ToFloat(s); ok {
			return f
		}
		return nil
	case 2:
		switch strings.ToLower(s) {
		case "true":
			return true
		case "false":
			return false
		}
		return nil
	case 3:
		var l []any
		if err := json.Unmarshal([]byte(s), &l); err == nil {
			return l
		}
		return nil
	default:
		return s
	}
}
