package entity

import "github.com/joseph-ayodele/invoice-pipeline/constants"

// Where an OptimizationResult's numbers came from.
const (
	OptimizationLocal = "local"
	OptimizationModel = "model"
	OptimizationNone  = "none"
)

// OptimizationResult is derived from ExtractedFields only.
type OptimizationResult struct {
	TermsParsed            bool                   `json:"payment_terms_parsed"`
	Source                 string                 `json:"source"`
	DiscountAvailable      bool                   `json:"discount_available"`
	DiscountPercent        float64                `json:"discount_percent"`
	DiscountDays           int                    `json:"discount_days"`
	NetDays                int                    `json:"net_days"`
	DiscountAmount         float64                `json:"discount_amount"`
	AnnualizedROI          float64                `json:"annualized_roi_percent"`
	EarlyPaymentDate       string                 `json:"early_payment_date,omitempty"`
	FullPaymentDate        string                 `json:"full_payment_date,omitempty"`
	RecommendedPaymentDate string                 `json:"recommended_payment_date,omitempty"`
	PayEarly               bool                   `json:"pay_early"`
	SavingsOpportunity     float64                `json:"savings_opportunity"`
	Recommendation         string                 `json:"recommendation,omitempty"`
	StageStatus            constants.ResultStatus `json:"stage_status"`
	Error                  string                 `json:"error,omitempty"`
}
