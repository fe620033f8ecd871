package llm

import "strings"

// Shape is where a stage's fields were found in a reply.
type Shape interface {
	shape() string
}

// FlatShape: fields at the top level.
type FlatShape struct{}

// WrappedShape: fields one level under a named wrapper key.
type WrappedShape struct {
	Key string
}

// StagedShape: fields two levels down, under a stage-keyed wrapper.
type StagedShape struct {
	Stage string
	Key   string // inner wrapper, empty when fields sit directly in the stage entry
}

func (FlatShape) shape() string      { return "flat" }
func (s WrappedShape) shape() string { return "wrapped:" + s.Key }
func (s StagedShape) shape() string {
	if s.Key == "" {
		return "staged:" + s.Stage
	}
	return "staged:" + s.Stage + "." + s.Key
}

// ShapeName renders a shape for logs; nil renders as "none".
func ShapeName(s Shape) string {
	if s == nil {
		return "none"
	}
	return s.shape()
}

// stageInnerKeys are tried inside a stage entry before the entry itself.
var stageInnerKeys = []string{"data_extracted", "data", "result", "output"}

// resolveShape tries Flat, Wrapped, then Staged and returns the object holding the most
// recognized fields. Ties go to the earlier candidate.
func resolveShape(obj map[string]any, fs FieldSet) (map[string]any, Shape, bool) {
	var (
		best      map[string]any
		bestShape Shape
		bestN     int
	)
	consider := func(m map[string]any, sh Shape) {
		if n := recognized(m, fs); n > bestN {
			best, bestShape, bestN = m, sh, n
		}
	}

	consider(obj, FlatShape{})
	for _, w := range fs.Wrappers {
		if m, ok := obj[w].(map[string]any); ok {
			consider(m, WrappedShape{Key: w})
		}
	}
	inner := append(append([]string{}, fs.Wrappers...), stageInnerKeys...)
	for _, entry := range stageEntries(obj, fs) {
		for _, k := range inner {
			if m, ok := entry.body[k].(map[string]any); ok {
				consider(m, StagedShape{Stage: entry.stage, Key: k})
			}
		}
		consider(entry.body, StagedShape{Stage: entry.stage})
	}
	return best, bestShape, bestN > 0
}

type stageEntry struct {
	stage string
	body  map[string]any
}

// stageEntries collects candidate stage objects: {"stages": {"<stage>": {...}}},
// {"stages": [{"stage_name": "<stage>", ...}]} and {"<stage>": {...}}.
func stageEntries(obj map[string]any, fs FieldSet) []stageEntry {
	var out []stageEntry
	matches := func(name string) (string, bool) {
		for _, sk := range fs.StageKeys {
			if strings.EqualFold(strings.TrimSpace(name), sk) {
				return sk, true
			}
		}
		return "", false
	}

	switch stages := obj["stages"].(type) {
	case map[string]any:
		for _, sk := range fs.StageKeys {
			if body, ok := lookupFold(stages, sk).(map[string]any); ok {
				out = append(out, stageEntry{stage: sk, body: body})
			}
		}
	case []any:
		for _, item := range stages {
			body, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for _, nameKey := range []string{"stage_name", "stage", "name"} {
				name, _ := body[nameKey].(string)
				if sk, ok := matches(name); ok {
					out = append(out, stageEntry{stage: sk, body: body})
					break
				}
			}
		}
	}

	for _, sk := range fs.StageKeys {
		if body, ok := lookupFold(obj, sk).(map[string]any); ok {
			out = append(out, stageEntry{stage: sk, body: body})
		}
	}
	return out
}

// lookupFold returns m[key], falling back to a case-insensitive match.
func lookupFold(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func recognized(m map[string]any, fs FieldSet) int {
	n := 0
	for _, f := range fs.Fields {
		for _, k := range f.Keys() {
			if _, ok := m[k]; ok {
				n++
				break
			}
		}
	}
	return n
}

// project copies the expected fields out of a resolved object, taking the first present
// key among each field's name and aliases.
func project(m map[string]any, fs FieldSet) Record {
	rec := make(Record, len(fs.Fields))
	for _, f := range fs.Fields {
		rec[f.Name] = nil
		for _, k := range f.Keys() {
			if v, ok := m[k]; ok && v != nil {
				rec[f.Name] = v
				break
			}
		}
	}
	return rec
}
