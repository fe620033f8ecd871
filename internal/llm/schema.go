package llm

// BuildJSONSchema returns the JSON Schema (draft 2020-12 subset) of a stage reply. It is
// embedded in the stage instruction and used to report drift in parsed replies.
func BuildJSONSchema(fs FieldSet) map[string]any {
	props := make(map[string]any, len(fs.Fields))
	for _, f := range fs.Fields {
		props[f.Name] = propFor(f.Kind)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   fs.Names(),
	}
}

func propFor(kind FieldKind) map[string]any {
	switch kind {
	case FieldNumber:
		return map[string]any{"type": []any{"number", "null"}}
	case FieldBool:
		return map[string]any{"type": []any{"boolean", "null"}}
	case FieldList:
		return map[string]any{"type": []any{"array", "null"}}
	default:
		return map[string]any{"type": []any{"string", "null"}}
	}
}
