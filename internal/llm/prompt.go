package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stage identifies a prompt in the library.
type Stage string

const (
	StageCaptureHandwritten Stage = "capture_handwritten"
	StageCaptureDigital     Stage = "capture_digital"
	StageValidate           Stage = "validate"
	StageRoute              Stage = "route"
	StageOptimize           Stage = "optimize"
	StageException          Stage = "exception"
)

// PromptVersion changes whenever an instruction or its reply shape changes.
const PromptVersion = "2025-06.1"

// Prompt is an instruction plus the reply shape it asks for.
type Prompt struct {
	Stage       Stage
	Version     string
	Instruction string
	Fields      FieldSet
}

// PromptLibrary is a fixed lookup from stage to prompt.
type PromptLibrary struct {
	prompts map[Stage]Prompt
}

// NewPromptLibrary builds the library with every stage prompt.
func NewPromptLibrary() *PromptLibrary {
	lib := &PromptLibrary{prompts: map[Stage]Prompt{}}
	lib.add(StageCaptureHandwritten, CaptureFields, captureInstruction(true))
	lib.add(StageCaptureDigital, CaptureFields, captureInstruction(false))
	lib.add(StageValidate, ValidateFields, validateInstruction())
	lib.add(StageRoute, RouteFields, routeInstruction())
	lib.add(StageOptimize, OptimizeFields, optimizeInstruction())
	lib.add(StageException, ExceptionFields, exceptionInstruction())
	return lib
}

func (l *PromptLibrary) add(stage Stage, fs FieldSet, body []string) {
	parts := append(body,
		"Reply with ONLY a JSON object. No prose, no markdown.",
		"If a value is not present, use null. Never use an empty string or a placeholder such as \"unknown\" or \"N/A\".",
		"JSON Schema:\n"+mustJSON(BuildJSONSchema(fs)),
	)
	l.prompts[stage] = Prompt{
		Stage:       stage,
		Version:     PromptVersion,
		Instruction: strings.Join(parts, "\n"),
		Fields:      fs,
	}
}

// Get returns the prompt for stage. Unknown stages panic: the set is closed and compiled in.
func (l *PromptLibrary) Get(stage Stage) Prompt {
	p, ok := l.prompts[stage]
	if !ok {
		panic(fmt.Sprintf("llm: no prompt for stage %q", stage))
	}
	return p
}

var (
	// CaptureFields is shared by the handwritten and digital capture prompts.
	CaptureFields = FieldSet{
		Fields: []FieldSpec{
			{Name: "invoice_number", Aliases: []string{"invoice_no", "invoice_id", "invoice_num"}},
			{Name: "vendor_name", Aliases: []string{"vendor", "supplier_name", "supplier", "company_name"}},
			{Name: "invoice_date", Aliases: []string{"date", "issue_date"}},
			{Name: "due_date", Aliases: []string{"payment_due_date"}},
			{Name: "total_amount", Kind: FieldNumber, Aliases: []string{"amount_total", "amount", "total"}},
			{Name: "subtotal", Kind: FieldNumber, Aliases: []string{"sub_total"}},
			{Name: "tax_amount", Kind: FieldNumber, Aliases: []string{"tax", "vat_amount", "vat"}},
			{Name: "currency", Kind: FieldCode, Aliases: []string{"currency_code"}},
			{Name: "payment_terms", Aliases: []string{"terms"}},
			{Name: "po_number", Aliases: []string{"purchase_order", "po"}},
			{Name: "line_items", Kind: FieldList, Aliases: []string{"items"}},
			{Name: "confidence", Aliases: []string{"extraction_confidence"}},
			{Name: "document_type"},
			{Name: "notes"},
		},
		Wrappers:  []string{"extracted_data", "invoice", "invoice_data", "fields", "data", "result"},
		StageKeys: []string{"capture", "extraction", "capture_agent"},
		Defaults:  map[string]any{"currency": "USD", "confidence": "low"},
	}

	ValidateFields = FieldSet{
		Fields: []FieldSpec{
			{Name: "status", Aliases: []string{"validation_status"}},
			{Name: "overall_confidence"},
			{Name: "flags", Kind: FieldList},
			{Name: "issues", Kind: FieldList},
			{Name: "recommendation"},
			{Name: "human_review_required", Kind: FieldBool},
		},
		Wrappers:  []string{"validation_result", "validation", "result"},
		StageKeys: []string{"validate", "validation", "validation_agent"},
	}

	RouteFields = FieldSet{
		Fields: []FieldSpec{
			{Name: "routing_decision"},
			{Name: "approver_role"},
			{Name: "approval_notes", Aliases: []string{"justification", "rationale", "notes"}},
			{Name: "gl_account_suggested", Aliases: []string{"gl_account"}},
		},
		Wrappers:  []string{"routing", "route", "result"},
		StageKeys: []string{"route", "routing", "routing_agent"},
	}

	OptimizeFields = FieldSet{
		Fields: []FieldSpec{
			{Name: "payment_terms_parsed", Kind: FieldBool},
			{Name: "discount_available", Kind: FieldBool},
			{Name: "discount_percent", Kind: FieldNumber},
			{Name: "discount_days", Kind: FieldNumber},
			{Name: "net_days", Kind: FieldNumber, Aliases: []string{"full_payment_days"}},
			{Name: "discount_amount", Kind: FieldNumber},
			{Name: "early_payment_date"},
			{Name: "full_payment_date"},
			{Name: "recommended_payment_date"},
			{Name: "annualized_roi_percent", Kind: FieldNumber, Aliases: []string{"annualized_roi", "roi"}},
			{Name: "savings_opportunity", Kind: FieldNumber},
			{Name: "recommendation"},
		},
		Wrappers:  []string{"payment_optimization", "optimization", "result"},
		StageKeys: []string{"optimize", "optimization", "optimizer_agent"},
	}

	ExceptionFields = FieldSet{
		Fields: []FieldSpec{
			{Name: "exceptions", Kind: FieldList},
			{Name: "exception_type"},
			{Name: "action_required"},
			{Name: "next_steps", Kind: FieldList},
			{Name: "estimated_resolution_time"},
		},
		Wrappers:  []string{"exception_handling", "exception", "result"},
		StageKeys: []string{"exception", "exceptions", "exception_handler"},
	}
)

func captureInstruction(handwritten bool) []string {
	opening := "You are an accounts-payable clerk reading a digital invoice (PDF or generated document)."
	reading := "Read the text layer and tables carefully; prefer printed totals over recomputed ones."
	if handwritten {
		opening = "You are an accounts-payable clerk reading a photographed or handwritten invoice."
		reading = "Handwriting may be unclear: read every digit carefully, and lower the confidence when you had to guess."
	}
	return []string{
		opening,
		reading,
		"Extract: invoice_number, vendor_name, invoice_date, due_date, total_amount, subtotal, tax_amount, currency, payment_terms, po_number, line_items, confidence, document_type, notes.",
		"line_items is a list of objects with description, quantity, unit_price and amount.",
		"Dates must be ISO 8601 (YYYY-MM-DD).",
		"Amounts must be bare numbers without currency symbols or thousands separators.",
		"currency must be a 3-letter ISO 4217 code.",
		"payment_terms should be copied as printed, for example \"2/10 Net 30\".",
		"confidence is one of high, medium, low.",
	}
}

func validateInstruction() []string {
	return []string{
		"You are an invoice validation specialist. The invoice data and the results of automated checks come first.",
		"Review the invoice for data quality problems and fraud signals that the automated checks could have missed,",
		"such as unusual payment terms or a remittance email that does not match the vendor.",
		"flags is a list of objects with type, severity (LOW, MEDIUM, HIGH) and description. Allowed types: UNUSUAL_TERMS, EMAIL_MISMATCH.",
		"status is one of PASS, REVIEW, FAIL. recommendation is one short sentence for the approver.",
	}
}

func routeInstruction() []string {
	return []string{
		"You are an accounts-payable routing assistant. The invoice, its validation outcome and the routing decision already taken come first.",
		"Do not change the routing decision. Write approval_notes: two sentences explaining the decision to the approver.",
		"Suggest a general-ledger account in gl_account_suggested when the line items make one obvious.",
	}
}

func optimizeInstruction() []string {
	return []string{
		"You are a treasury analyst. The invoice data comes first; its payment terms could not be parsed automatically.",
		"Interpret the payment terms. If an early-payment discount exists, give discount_percent, discount_days and net_days,",
		"discount_amount = total_amount * discount_percent / 100, and annualized_roi_percent = discount_percent / (net_days - discount_days) * 365.",
		"Dates must be ISO 8601 (YYYY-MM-DD). Amounts must be bare numbers.",
	}
}

func exceptionInstruction() []string {
	return []string{
		"You are an accounts-payable exception handler. The invoice and the list of exceptions already assigned come first.",
		"For each exception write action_required (one sentence) and next_steps (a short list).",
		"Reply with exceptions: a list of objects with exception_type, action_required, next_steps and estimated_resolution_time.",
		"Do not add exception types and do not change assignees or priorities.",
	}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
