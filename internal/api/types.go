package api

import "cryptoadvisor/pkg/advisor"

type advicePayload struct {
	Prompt    string                     `json:"prompt"`
	Portfolio []advisor.PortfolioHolding `json:"portfolio"`
}

type coinAnalysisPayload struct {
	Crypto string         `json:"crypto"`
	Action string         `json:"action"`
	Amount advisor.Amount `json:"amount"`
}
