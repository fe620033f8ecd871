package llm

import (
	"strconv"
	"strings"
)

// placeholders are values models emit instead of real data. Compared case-insensitively.
var placeholders = map[string]struct{}{
	"not found":        {},
	"not available":    {},
	"not provided":     {},
	"tbd":              {},
	"to be determined": {},
	"unknown":          {},
	"pending":          {},
	"none":             {},
	"null":             {},
	"nil":              {},
	"n/a":              {},
	"na":               {},
	"yyyy-mm-dd":       {},
	"yyyy/mm/dd":       {},
	"mm/dd/yyyy":       {},
	"dd/mm/yyyy":       {},
	"dd-mm-yyyy":       {},
	"mm-dd-yyyy":       {},
	"value or null":    {},
	"string or null":   {},
	"number or null":   {},
}

// IsPlaceholder reports whether s is a known placeholder after trimming.
func IsPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Clean coerces every expected key to its kind and scrubs placeholders. The result holds
// exactly the keys of fs. Clean(Clean(r)) equals Clean(r).
func Clean(rec Record, fs FieldSet) Record {
	out := make(Record, len(fs.Fields))
	for _, f := range fs.Fields {
		out[f.Name] = cleanField(rec[f.Name], f.Kind)
	}
	return out
}

func cleanField(v any, kind FieldKind) any {
	switch kind {
	case FieldNumber:
		if s, ok := v.(string); ok && (strings.TrimSpace(s) == "" || IsPlaceholder(s)) {
			return nil
		}
		if f, ok := ToFloat(v); ok {
			return f
		}
		return nil
	case FieldBool:
		switch t := v.(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
				return b
			}
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "yes", "y":
				return true
			case "no", "n":
				return false
			}
		}
		return nil
	case FieldList:
		switch t := v.(type) {
		case []any:
			return cleanList(t)
		case string:
			if s, ok := cleanString(t); ok {
				return []any{s}
			}
		}
		return nil
	case FieldCode:
		if t, ok := v.(string); ok {
			if s, ok := cleanString(t); ok {
				return strings.ToUpper(s)
			}
		}
		return nil
	default:
		switch t := v.(type) {
		case string:
			if s, ok := cleanString(t); ok {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
		return nil
	}
}

func cleanString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || IsPlaceholder(s) {
		return "", false
	}
	return s, true
}

// cleanValue scrubs values nested in lists and objects, where no kind is declared.
func cleanValue(v any) any {
	switch t := v.(type) {
	case string:
		if s, ok := cleanString(t); ok {
			return s
		}
		return nil
	case []any:
		return cleanList(t)
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cleanValue(val)
		}
		return m
	default:
		return t
	}
}

func cleanList(l []any) []any {
	out := make([]any, 0, len(l))
	for _, item := range l {
		if c := cleanValue(item); c != nil {
			out = append(out, c)
		}
	}
	return out
}
