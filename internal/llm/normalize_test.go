package llm

import (
	"reflect"
	"testing"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding space", "  \n```json\n{\"a\":1}\n```  \n", `{"a":1}`},
		{"unterminated", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFence(tt.in); got != tt.want {
				t.Errorf("stripFence() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFirstBalancedObject(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"embedded", `Sure! Here it is: {"a": {"b": 2}} hope that helps {"c":3}`, `{"a": {"b": 2}}`, true},
		{"brace in string", `x {"note": "use } carefully", "n": 1} y`, `{"note": "use } carefully", "n": 1}`, true},
		{"escaped quote", `{"q": "say \"}\" now"}`, `{"q": "say \"}\" now"}`, true},
		{"unbalanced", `{"a": {"b": 1}`, "", false},
		{"none", "no json here", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstBalancedObject(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("firstBalancedObject() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalize_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		strategy Strategy
		shape    string
		vendor   any
		total    any
	}{
		{
			name:     "fenced json",
			raw:      "```json\n{\"vendor_name\": \"Acme Corp\", \"total_amount\": 1250.5}\n```",
			strategy: StrategyDirect, shape: "flat",
			vendor: "Acme Corp", total: 1250.5,
		},
		{
			name:     "prose around json",
			raw:      "Here is the extraction:\n{\"vendor_name\": \"Acme Corp\", \"total_amount\": \"1,250.50\"}\nLet me know!",
			strategy: StrategyBraces, shape: "flat",
			vendor: "Acme Corp", total: 1250.5,
		},
		{
			name:     "truncated json",
			raw:      `{"invoice_number": "INV-9", "vendor_name": "Acme Corp", "amount_total": 99.95, "line_items": [{"desc`,
			strategy: StrategyPatterns,
			vendor:   "Acme Corp", total: 99.95,
		},
		{
			name:     "wrapped",
			raw:      `{"status": "ok", "extracted_data": {"vendor_name": "Globex", "total_amount": 10}}`,
			strategy: StrategyDirect, shape: "wrapped:extracted_data",
			vendor: "Globex", total: 10.0,
		},
		{
			name:     "stray alias beside fuller wrapper",
			raw:      `{"vendor": "Stray", "extracted_data": {"vendor_name": "Globex", "invoice_number": "G-1", "total_amount": 10}}`,
			strategy: StrategyDirect, shape: "wrapped:extracted_data",
			vendor: "Globex", total: 10.0,
		},
		{
			name:     "null primary key falls back to alias",
			raw:      `{"vendor_name": "Acme", "total_amount": null, "amount": 1200, "notes": "cut off`,
			strategy: StrategyPatterns,
			vendor:   "Acme", total: 1200.0,
		},
		{
			name:     "staged list",
			raw:      `{"stages": [{"stage_name": "CAPTURE", "data_extracted": {"vendor_name": "Initech", "total_amount": 5}}]}`,
			strategy: StrategyDirect, shape: "staged:capture.data_extracted",
			vendor: "Initech", total: 5.0,
		},
		{
			name:     "staged map",
			raw:      `{"stages": {"capture": {"vendor_name": "Umbrella", "total_amount": 7}}}`,
			strategy: StrategyDirect, shape: "staged:capture",
			vendor: "Umbrella", total: 7.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Normalize(tt.raw, CaptureFields)
			if out.Strategy != tt.strategy {
				t.Fatalf("Strategy = %s, want %s", out.Strategy, tt.strategy)
			}
			if tt.shape != "" && ShapeName(out.Shape) != tt.shape {
				t.Errorf("Shape = %s, want %s", ShapeName(out.Shape), tt.shape)
			}
			if out.Record["vendor_name"] != tt.vendor {
				t.Errorf("vendor_name = %v, want %v", out.Record["vendor_name"], tt.vendor)
			}
			if out.Record["total_amount"] != tt.total {
				t.Errorf("total_amount = %v, want %v", out.Record["total_amount"], tt.total)
			}
			if out.Degraded {
				t.Error("Degraded = true")
			}
		})
	}
}

func TestNormalize_PatternStepAppliesDefaults(t *testing.T) {
	out := Normalize(`garbled "vendor_name": "Acme" ... "currency": "TBD"`, CaptureFields)
	if out.Strategy != StrategyPatterns {
		t.Fatalf("Strategy = %s", out.Strategy)
	}
	if out.Record["currency"] != "USD" || out.Record["confidence"] != "low" {
		t.Errorf("defaults not applied: currency=%v confidence=%v", out.Record["currency"], out.Record["confidence"])
	}
}

func TestNormalize_NeverFailsAndKeepsAllKeys(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"I could not read this document, sorry.",
		"{",
		"}{",
		`"`,
		`{"vendor_name": `,
		"```json\n```",
		`[1, 2, 3]`,
		`{"unrelated": true}`,
		"null",
	}
	for _, in := range inputs {
		out := Normalize(in, CaptureFields)
		if out.Record == nil {
			t.Fatalf("Normalize(%q) returned nil record", in)
		}
		if len(out.Record) != len(CaptureFields.Fields) {
			t.Errorf("Normalize(%q) has %d keys, want %d", in, len(out.Record), len(CaptureFields.Fields))
		}
		for _, name := range CaptureFields.Names() {
			if _, ok := out.Record[name]; !ok {
				t.Errorf("Normalize(%q) missing key %s", in, name)
			}
		}
	}

	out := Normalize("no json at all", CaptureFields)
	if !out.Degraded || out.Strategy != StrategyDegraded {
		t.Fatalf("want degraded outcome, got %+v", out)
	}
	if out.Record["currency"] != "USD" || out.Record["confidence"] != "low" {
		t.Errorf("degraded defaults: currency=%v confidence=%v", out.Record["currency"], out.Record["confidence"])
	}
	if out.Record["vendor_name"] != nil || out.Record["total_amount"] != nil {
		t.Errorf("degraded record should be null: %+v", out.Record)
	}
}

func TestNormalize_RoundTrip(t *testing.T) {
	raw := `{
		"invoice_number": "INV-2025-001",
		"vendor_name": "Acme Corp",
		"invoice_date": "2025-11-17",
		"due_date": "YYYY-MM-DD",
		"total_amount": 100000,
		"subtotal": 92000,
		"tax_amount": 8000,
		"currency": "EUR",
		"payment_terms": "2/10 Net 30",
		"po_number": "TBD",
		"line_items": [{"description": "Widgets", "quantity": 10, "unit_price": 9200, "amount": 92000}],
		"confidence": "high",
		"document_type": "Not Found",
		"notes": "  "
	}`
	out := Normalize(raw, CaptureFields)
	if out.Strategy != StrategyDirect {
		t.Fatalf("Strategy = %s", out.Strategy)
	}

	want := Record{
		"invoice_number": "INV-2025-001",
		"vendor_name":    "Acme Corp",
		"invoice_date":   "2025-11-17",
		"due_date":       nil,
		"total_amount":   100000.0,
		"subtotal":       92000.0,
		"tax_amount":     8000.0,
		"currency":       "EUR",
		"payment_terms":  "2/10 Net 30",
		"po_number":      nil,
		"line_items": []any{map[string]any{
			"description": "Widgets", "quantity": 10.0, "unit_price": 9200.0, "amount": 92000.0,
		}},
		"confidence":    "high",
		"document_type": nil,
		"notes":         nil,
	}
	if !reflect.DeepEqual(out.Record, want) {
		t.Errorf("record mismatch\n got: %#v\nwant: %#v", out.Record, want)
	}
	if out.SchemaErr != nil {
		t.Errorf("well-formed reply should match the schema: %v", out.SchemaErr)
	}
}

func TestNormalize_CurrencyCodeUpperCased(t *testing.T) {
	for _, in := range []string{"usd", " Usd ", "USD"} {
		raw := `{"vendor_name": "Acme", "total_amount": 10, "currency": "` + in + `"}`
		out := Normalize(raw, CaptureFields)
		if out.Record["currency"] != "USD" {
			t.Errorf("currency %q normalized to %v, want USD", in, out.Record["currency"])
		}
	}
}

func TestNormalize_SchemaDriftIsAdvisory(t *testing.T) {
	out := Normalize(`{"vendor_name": "Acme", "total_amount": "1,000.00"}`, CaptureFields)
	if out.SchemaErr == nil {
		t.Error("expected SchemaErr for a string amount and missing keys")
	}
	if out.Record["total_amount"] != 1000.0 {
		t.Errorf("total_amount = %v, want 1000", out.Record["total_amount"])
	}
}

func TestClean_Idempotent(t *testing.T) {
	records := []Record{
		{},
		{"vendor_name": "  Acme  ", "total_amount": "$1,234.50", "currency": "unknown"},
		{"currency": " eur ", "currency_code": "gbp"},
		{"invoice_number": 12345.0, "tax_amount": 0.0, "confidence": "LOW"},
		{"line_items": []any{"TBD", map[string]any{"description": " pending ", "amount": "12"}}, "notes": "n/a"},
		{"line_items": "single line", "due_date": "mm/dd/yyyy", "po_number": true},
		{"total_amount": "(12.00)", "subtotal": "abc", "vendor_name": map[string]any{"x": 1}},
	}
	for i, r := range records {
		once := Clean(r, CaptureFields)
		twice := Clean(once, CaptureFields)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("record %d: Clean not idempotent\n once: %#v\ntwice: %#v", i, once, twice)
		}
	}
}

func TestClean_Placeholders(t *testing.T) {
	for _, p := range []string{"Not Found", "TBD", "to be determined", "UNKNOWN", "Pending", "none", "YYYY-MM-DD", "N/A", "  tbd  "} {
		got := Clean(Record{"vendor_name": p}, CaptureFields)
		if got["vendor_name"] != nil {
			t.Errorf("Clean(%q) = %v, want nil", p, got["vendor_name"])
		}
	}
	got := Clean(Record{"tax_amount": 0.0}, CaptureFields)
	if got["tax_amount"] != 0.0 {
		t.Errorf("zero amounts are kept in the record, got %v", got["tax_amount"])
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{12.5, 12.5, true},
		{"1,234.56", 1234.56, true},
		{"$99", 99, true},
		{"USD 100.10", 100.10, true},
		{"250 EUR", 250, true},
		{"(12.00)", -12, true},
		{"twelve", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToFloat(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("ToFloat(%#v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
