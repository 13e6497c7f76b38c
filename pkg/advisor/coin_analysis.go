package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const coinAnalysisPromptTemplate = `You are a cryptocurrency market analyst. Analyze %s for a potential %s decision.

Provide a detailed analysis in JSON format with the following structure:
{
  "summary": "2-3 sentence overview of the cryptocurrency",
  "market_context": {
    "current_trend": "bullish/bearish/neutral",
    "volatility": "high/medium/low",
    "market_sentiment": "brief description"
  },
  "pros": ["Pro point 1", "Pro point 2", "Pro point 3"],
  "cons": ["Con point 1", "Con point 2", "Con point 3"],
  "recommendation": {
    "decision": "buy/sell/hold",
    "confidence": 75,
    "risk_level": "low/medium/high"
  }
}

Important:
- Be realistic and balanced
- Base analysis on general market knowledge
- Confidence should be 0-100
- For a %s action of %s %s, provide relevant context

Respond with ONLY the JSON object, no additional text.`

// CoinAnalysisRequest defines inputs for a single-coin analysis.
type CoinAnalysisRequest struct {
	Crypto string
	Action string
	Amount Amount
}

// CoinAnalysisMarketContext summarizes market conditions for the coin.
type CoinAnalysisMarketContext struct {
	CurrentTrend    string `json:"current_trend"`
	Volatility      string `json:"volatility"`
	MarketSentiment string `json:"market_sentiment"`
}

// CoinAnalysisRecommendation is the analyst model's verdict.
type CoinAnalysisRecommendation struct {
	Decision   string `json:"decision"`
	Confidence int    `json:"confidence"`
	RiskLevel  string `json:"risk_level"`
}

// UnmarshalJSON tolerates the model returning confidence as a float or a
// quoted string instead of an integer.
func (r *CoinAnalysisRecommendation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Decision   string `json:"decision"`
		Confidence any    `json:"confidence"`
		RiskLevel  string `json:"risk_level"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Decision = raw.Decision
	r.RiskLevel = raw.RiskLevel
	r.Confidence = anyToInt(raw.Confidence)
	return nil
}

func anyToInt(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return 0
}

// CoinAnalysisEcho repeats the request details inside the response.
type CoinAnalysisEcho struct {
	Crypto string `json:"crypto"`
	Action string `json:"action"`
	Amount Amount `json:"amount"`
}

// CoinAnalysis is the full single-coin analysis returned to clients.
type CoinAnalysis struct {
	Summary        string                     `json:"summary"`
	MarketContext  CoinAnalysisMarketContext  `json:"market_context"`
	Pros           []string                   `json:"pros"`
	Cons           []string                   `json:"cons"`
	Recommendation CoinAnalysisRecommendation `json:"recommendation"`
	Request        CoinAnalysisEcho           `json:"request"`
}

// AnalyzeCoin asks the generation service for a structured analysis of one
// coin. Unlike Advise there is no degraded path here: an off-schema reply is
// reported as an upstream error.
func (c *Core) AnalyzeCoin(ctx context.Context, req CoinAnalysisRequest) (*CoinAnalysis, error) {
	crypto := strings.ToUpper(strings.TrimSpace(req.Crypto))
	if crypto == "" {
		return nil, NewError(ErrCodeInvalidRequest, "crypto symbol is required")
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action == "" {
		action = "hold"
	}
	if strings.TrimSpace(c.gemini.APIKey) == "" {
		return nil, NewError(ErrCodeServiceUnavailable, "generation service API key not set")
	}

	prompt := fmt.Sprintf(coinAnalysisPromptTemplate, crypto, action, action, req.Amount.String(), crypto)

	genCtx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()
	raw, err := c.generate(genCtx, generationRequest{Prompt: prompt, JSONOutput: true})
	if err != nil {
		return nil, WrapError(ErrCodeServiceUnavailable, "generation request failed", err)
	}

	var analysis CoinAnalysis
	if err := json.Unmarshal([]byte(cleanupModelReply(raw)), &analysis); err != nil {
		c.logger.Warn("coin analysis reply was not valid JSON", "err", err)
		return nil, WrapError(ErrCodeUpstream, "failed to parse analysis response", err)
	}

	analysis.Request = CoinAnalysisEcho{Crypto: crypto, Action: action, Amount: req.Amount}
	return &analysis, nil
}
