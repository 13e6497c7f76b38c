package advisor

import (
	"strings"

	"github.com/shopspring/decimal"
)

// refusalLine is the exact reply requested for off-topic questions.
const refusalLine = `Sorry, I'm a crypto bot. I can not answer that.`

const advicePersonaPrompt = `You are a cryptocurrency investment assistant. Your only role is to answer
questions about cryptocurrency and blockchain topics and, when the user asks
for trades, to propose concrete trade plans.

You must respond with a single JSON object and nothing else. No Markdown, no
code fences, no text outside the object. The object has exactly these fields:
- "research": string. Commentary in complete, well-written sentences, one or
  two concise paragraphs, at most five sentences. No bullet points or lists.
- "is_plan": boolean. True only when you propose at least one trade.
- "plans": array of plan objects. Each plan has "action" (one of "buy",
  "sell", "send"), "crypto" (uppercase ticker symbol), "amount" (positive
  number), and "reason" (short string). The array must be empty when
  "is_plan" is false and non-empty when it is true.

If the user's question is not related to cryptocurrency or blockchain, set
"is_plan" to false, "plans" to [] and "research" to exactly:
"` + refusalLine + `"

Example 1 — user asks: "buy 0.5 BTC"
{"research":"Bitcoin remains the most liquid cryptocurrency and a 0.5 BTC purchase is straightforward to execute on any major exchange. Consider splitting the order if you want to reduce timing risk.","is_plan":true,"plans":[{"action":"buy","crypto":"BTC","amount":0.5,"reason":"Requested purchase of 0.5 BTC"}]}

Example 2 — user asks: "should I rotate some ETH into SOL?"
{"research":"Ethereum and Solana serve different niches: Ethereum has the deepest ecosystem while Solana offers higher throughput at lower fees. A partial rotation keeps exposure to both while capturing Solana's momentum.","is_plan":true,"plans":[{"action":"sell","crypto":"ETH","amount":1,"reason":"Free up capital for the rotation"},{"action":"buy","crypto":"SOL","amount":20,"reason":"Gain Solana exposure with the proceeds"}]}`

// composeAdvicePrompt builds the single instruction string for the primary
// generation call: persona and output contract, the user's message, and an
// optional portfolio summary. Pure function of its inputs.
func composeAdvicePrompt(message string, portfolio []PortfolioHolding) string {
	var sb strings.Builder
	sb.WriteString(advicePersonaPrompt)
	sb.WriteString("\n\nUser's message: ")
	sb.WriteString(message)
	if block := renderPortfolio(portfolio); block != "" {
		sb.WriteString("\n\n")
		sb.WriteString(block)
	}
	return sb.String()
}

// renderPortfolio formats the caller's holdings for the prompt. Entries are
// listed verbatim in order; the total sums every totalValue including the
// CASH sentinel. The cash/holdings constraints below are instructions to the
// model only — nothing downstream verifies a returned plan against them.
func renderPortfolio(portfolio []PortfolioHolding) string {
	if len(portfolio) == 0 {
		return ""
	}

	total := decimal.Zero
	var sb strings.Builder
	sb.WriteString("The user's current portfolio:\n")
	for _, holding := range portfolio {
		sb.WriteString("- ")
		sb.WriteString(strings.ToUpper(strings.TrimSpace(holding.Ticker)))
		sb.WriteString(": quantity ")
		sb.WriteString(holding.Quantity.String())
		sb.WriteString(", value ")
		sb.WriteString(holding.TotalValue.String())
		sb.WriteString("\n")
		total = total.Add(holding.TotalValue.Decimal)
	}
	sb.WriteString("Total portfolio value: ")
	sb.WriteString(total.String())
	sb.WriteString("\n\nWhen proposing plans, respect the portfolio: ")
	sb.WriteString("buy amounts must fit within the available CASH balance, ")
	sb.WriteString("and sell or send plans may only reference tickers the user currently holds.")
	return sb.String()
}

// composeFallbackPrompt builds the secondary prompt for the degraded path. It
// asks for plain commentary only, no structure, so even a misbehaving model
// can satisfy it.
func composeFallbackPrompt(message string) string {
	var sb strings.Builder
	sb.WriteString("You are a cryptocurrency explanation bot. Answer the question below in ")
	sb.WriteString("complete, well-written sentences organized into one or two concise ")
	sb.WriteString("paragraphs, at most five sentences. Plain text only: no JSON, no bullet ")
	sb.WriteString("points, no Markdown, no formatting of any kind.\n")
	sb.WriteString("If the question is not related to cryptocurrency or blockchain, respond with exactly:\n")
	sb.WriteString(`"` + refusalLine + `"`)
	sb.WriteString("\n\nUser's question: ")
	sb.WriteString(message)
	return sb.String()
}
