package types

// ModelList is the /v1/models body.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Model is one catalog entry. The first four fields match OpenAI's model
// object; the rest describe limits clients use to size requests.
type Model struct {
	ID              string `json:"id"`
	Object          string `json:"object"`
	Created         int64  `json:"created"`
	OwnedBy         string `json:"owned_by"`
	DisplayName     string `json:"display_name,omitempty"`
	ContextWindow   int    `json:"context_window,omitempty"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
	SupportsTools   bool   `json:"supports_tools"`
}

// RecommendedModel is a catalog entry tagged with the slot it fills and,
// when the model is priced, its per-1K token prices in USD.
type RecommendedModel struct {
	Model
	Slot            string   `json:"slot"`
	InputCostPer1K  *float64 `json:"input_cost_per_1k,omitempty"`
	OutputCostPer1K *float64 `json:"output_cost_per_1k,omitempty"`
}

// RecommendedModelList is the /v1/models/recommended body. Slots maps each
// filled slot to its model id.
type RecommendedModelList struct {
	Object string             `json:"object"`
	Data   []RecommendedModel `json:"data"`
	Slots  map[string]string  `json:"slots"`
}

// BudgetResponse is the /v1/budget body.
type BudgetResponse struct {
	UserID       string `json:"user_id"`
	AvailableUSD string `json:"available_usd"`
}

// AccountResponse is the admin view of one ledger entry.
type AccountResponse struct {
	UserID       string `json:"user_id"`
	BalanceUSD   string `json:"balance_usd"`
	ReservedUSD  string `json:"reserved_usd"`
	AvailableUSD string `json:"available_usd"`
	UnflushedUSD string `json:"unflushed_usd"`
	Holds        int    `json:"holds"`

	// Known is false for a user the ledger has not seen; the numbers are
	// then the default starting balance.
	Known bool `json:"known"`
}

// CreditRequest is the body of POST /internal/budgets/{user_id}/credit.
type CreditRequest struct {
	AmountUSD string `json:"amount_usd"`
}

// SetBalanceRequest is the body of PUT /internal/budgets/{user_id}.
type SetBalanceRequest struct {
	BalanceUSD string `json:"balance_usd"`
}
