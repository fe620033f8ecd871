package llm

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reCurrencyAffix = regexp.MustCompile(`^[A-Za-z]{3}\s*|\s*[A-Za-z]{3}$`)

// FieldKind tells the normalizer how to coerce a value.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldNumber
	FieldBool
	FieldList
	FieldCode // trimmed, upper-cased string such as an ISO 4217 currency
)

// FieldSpec is one expected key in a stage reply.
type FieldSpec struct {
	Name    string
	Kind    FieldKind
	Aliases []string // alternative keys, tried in order after Name
}

// Keys returns Name followed by its aliases.
func (f FieldSpec) Keys() []string {
	return append([]string{f.Name}, f.Aliases...)
}

// FieldSet describes the reply shape of one stage.
type FieldSet struct {
	Fields []FieldSpec
	// Wrappers are the keys a WrappedShape may nest fields under.
	Wrappers []string
	// StageKeys identify this stage inside a StagedShape.
	StageKeys []string
	// Defaults fill nil keys when the record was recovered only partially.
	Defaults map[string]any
}

// Names returns the canonical field names in order.
func (fs FieldSet) Names() []string {
	out := make([]string, len(fs.Fields))
	for i, f := range fs.Fields {
		out[i] = f.Name
	}
	return out
}

// Record is a normalized stage reply: every expected key is present, values are nil when absent.
type Record map[string]any

// String returns a string field, or nil.
func (r Record) String(key string) *string {
	if s, ok := r[key].(string); ok {
		return &s
	}
	return nil
}

// Number returns a numeric field, or nil.
func (r Record) Number(key string) *float64 {
	if f, ok := ToFloat(r[key]); ok {
		return &f
	}
	return nil
}

// Bool returns a boolean field, or nil.
func (r Record) Bool(key string) *bool {
	if b, ok := r[key].(bool); ok {
		return &b
	}
	return nil
}

// List returns a list field, or nil.
func (r Record) List(key string) []any {
	if l, ok := r[key].([]any); ok {
		return l
	}
	return nil
}

// Strings returns the string elements of a list field.
func (r Record) Strings(key string) []string {
	var out []string
	for _, v := range r.List(key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ToFloat converts JSON numbers and amount-like strings ("$1,234.50", "USD 99", "(12.00)")
// into float64.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case int:
		return float64(t), true
	case string:
		return parseAmount(t)
	}
	return 0, false
}

func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(reCurrencyAffix.ReplaceAllString(strings.TrimSpace(s), ""))
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		case r == ',', r == ' ', r == '$', r == '€', r == '£', r == '¥':
			return -1
		}
		return '?'
	}, s)
	if s == "" || strings.Contains(s, "?") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}
