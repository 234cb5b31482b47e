package funding

// CardInRequest tops up the caller's external funds from a card.
type CardInRequest struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	Amount     uint64 `json:"amount"`
	ClientTxID string `json:"client_tx_id"`
}

// CardOutRequest pays the caller's external funds out to a card.
type CardOutRequest struct {
	CardNumber string `json:"card_number"`
	Amount     uint64 `json:"amount"`
	ClientTxID string `json:"client_tx_id"`
}

// FundingResponse represents the API response for card funding actions.
type FundingResponse struct {
	TransactionID     string `json:"transaction_id"`
	Status            string `json:"status"`
	Balance           int64  `json:"balance"`
	AcquirerReference string `json:"acquirer_reference,omitempty"`
}

// BalanceResponse reports an identity's external funds.
type BalanceResponse struct {
	Owner   string `json:"owner"`
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}
