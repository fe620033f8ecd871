package llm

import "testing"

func TestCompileSchema_CachedPerFieldSet(t *testing.T) {
	first, err := compileSchema(BuildJSONSchema(CaptureFields))
	if err != nil {
		t.Fatalf("compileSchema: %v", err)
	}
	second, err := compileSchema(BuildJSONSchema(CaptureFields))
	if err != nil {
		t.Fatalf("compileSchema: %v", err)
	}
	if first != second {
		t.Error("same field set compiled twice")
	}
}

func TestValidateAgainstFieldSet(t *testing.T) {
	ok := map[string]any(Clean(Record{"vendor_name": "Acme", "total_amount": 10.0}, CaptureFields))
	if err := ValidateAgainstFieldSet(CaptureFields, ok); err != nil {
		t.Errorf("cleaned record rejected: %v", err)
	}

	bad := map[string]any(Clean(Record{}, CaptureFields))
	bad["total_amount"] = "ten"
	if err := ValidateAgainstFieldSet(CaptureFields, bad); err == nil {
		t.Error("string amount accepted")
	}
}
