package advisor

import "strings"

// CashTicker is the sentinel ticker for fiat balances inside a portfolio.
const CashTicker = "CASH"

// TradeAction is one of the trade verbs the advisor may propose.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
	ActionSend TradeAction = "send"
)

// ParseTradeAction normalizes a model-emitted action string. The model returns
// actions as free text, so casing and surrounding whitespace are tolerated.
func ParseTradeAction(raw string) (TradeAction, bool) {
	switch TradeAction(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	case ActionSend:
		return ActionSend, true
	}
	return "", false
}

// PortfolioHolding is one entry of the caller-supplied portfolio snapshot.
// Field names follow the client payload (camelCase). The portfolio is
// read-only input; entries are rendered into the prompt verbatim, duplicates
// included.
type PortfolioHolding struct {
	Ticker     string `json:"ticker"`
	Quantity   Amount `json:"quantity"`
	TotalValue Amount `json:"totalValue"`
}

// Plan is one proposed trade action with a rationale.
type Plan struct {
	Action TradeAction `json:"action"`
	Crypto string      `json:"crypto"`
	Amount Amount      `json:"amount"`
	Reason string      `json:"reason,omitempty"`
}

// StructuredResult is the advisor's response envelope: commentary plus zero or
// more plans. Invariant: IsPlan is true exactly when Plans is non-empty.
type StructuredResult struct {
	Research string `json:"research"`
	IsPlan   bool   `json:"is_plan"`
	Plans    []Plan `json:"plans"`
}

// FailureKind classifies why a model reply could not be coerced into a
// StructuredResult.
type FailureKind string

const (
	FailureMalformedSyntax    FailureKind = "malformed_syntax"
	FailureMissingField       FailureKind = "missing_field"
	FailureInvariantViolation FailureKind = "invariant_violation"
)

// ExtractionFailure is the typed failure value returned by the extractor. It
// never escapes the pipeline as a caller-visible error; it only routes the
// request to the fallback responder.
type ExtractionFailure struct {
	Kind FailureKind
	Err  error
}

// Error implements the error interface for logging.
func (f *ExtractionFailure) Error() string {
	if f.Err != nil {
		return string(f.Kind) + ": " + f.Err.Error()
	}
	return string(f.Kind)
}
