package types

import "github.com/shopspring/decimal"

// ScoreAdjustmentRequest is an administrative ledger write.  Points are
// signed and decoded from either a JSON number or string.
type ScoreAdjustmentRequest struct {
	UserID        int64           `json:"user_id"`
	Points        decimal.Decimal `json:"points"`
	Reason        string          `json:"reason"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   *int64          `json:"reference_id,omitempty"`
	CreatedBy     *int64          `json:"created_by,omitempty"`
}

type ScoreEntryView struct {
	ID            int64           `json:"id"`
	Points        decimal.Decimal `json:"points"`
	Reason        string          `json:"reason"`
	Category      string          `json:"category"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   *int64          `json:"reference_id,omitempty"`
	CreatedAt     string          `json:"created_at"`
	CreatedBy     *int64          `json:"created_by,omitempty"`
}

// ScoreHistoryResponse pairs the ledger rows with the running-total audit.
type ScoreHistoryResponse struct {
	UserID     int64            `json:"user_id"`
	TotalScore decimal.Decimal  `json:"total_score"`
	LedgerSum  decimal.Decimal  `json:"ledger_sum"`
	Consistent bool             `json:"consistent"`
	Since      string           `json:"since,omitempty"`
	Entries    []ScoreEntryView `json:"entries"`
}

type TaskAwardRequest struct {
	AwardedBy *int64 `json:"awarded_by,omitempty"`
}

type TaskAwardResponse struct {
	TaskID           int64           `json:"task_id"`
	UserID           int64           `json:"user_id"`
	Points           decimal.Decimal `json:"points"`
	AlreadyProcessed bool            `json:"already_processed"`
}
