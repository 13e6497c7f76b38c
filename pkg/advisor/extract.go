package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
)

const codeFence = "```"

// quoteNormalizer maps typographic quote characters to their ASCII
// equivalents. The generation service intermittently emits curly quotes
// inside otherwise valid JSON, which encoding/json rejects.
var quoteNormalizer = strings.NewReplacer(
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
	"„", `"`, // double low-9 quotation mark
	"‘", "'", // left single quotation mark
	"’", "'", // right single quotation mark
	"‚", "'", // single low-9 quotation mark
)

// cleanupModelReply normalizes a raw model reply before parsing: the first
// fenced code block (preferring a json-tagged fence) replaces the whole text,
// typographic quotes become ASCII, and surrounding whitespace is trimmed.
// Content outside the first fence pair is discarded.
func cleanupModelReply(raw string) string {
	cleaned := stripCodeFence(raw)
	cleaned = quoteNormalizer.Replace(cleaned)
	return strings.TrimSpace(cleaned)
}

func stripCodeFence(s string) string {
	for _, marker := range []string{codeFence + "json", codeFence} {
		start := strings.Index(s, marker)
		if start < 0 {
			continue
		}
		inner := s[start+len(marker):]
		if end := strings.Index(inner, codeFence); end >= 0 {
			return inner[:end]
		}
		// Unterminated fence: keep everything after the opening marker.
		return inner
	}
	return s
}

// rawStructuredResult mirrors the model's reply with pointer fields so that
// absent and present-but-zero values can be told apart during validation.
type rawStructuredResult struct {
	Research *string   `json:"research"`
	IsPlan   *bool     `json:"is_plan"`
	Plans    []rawPlan `json:"plans"`
}

type rawPlan struct {
	Action string  `json:"action"`
	Crypto string  `json:"crypto"`
	Amount *Amount `json:"amount"`
	Reason string  `json:"reason"`
}

// extractStructuredResult coerces a raw model reply into a StructuredResult.
// On failure it returns a typed ExtractionFailure; it never panics and never
// returns a plain error, so the caller always gets a definite signal for the
// fallback decision.
func extractStructuredResult(raw string) (*StructuredResult, *ExtractionFailure) {
	cleaned := cleanupModelReply(raw)

	var parsed rawStructuredResult
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, &ExtractionFailure{Kind: FailureMalformedSyntax, Err: err}
	}

	if parsed.Research == nil || strings.TrimSpace(*parsed.Research) == "" {
		return nil, &ExtractionFailure{Kind: FailureMissingField, Err: fmt.Errorf("research field is missing or empty")}
	}
	if parsed.IsPlan == nil {
		return nil, &ExtractionFailure{Kind: FailureMissingField, Err: fmt.Errorf("is_plan field is missing")}
	}

	result := &StructuredResult{
		Research: strings.TrimSpace(*parsed.Research),
		IsPlan:   *parsed.IsPlan,
		Plans:    []Plan{},
	}

	if !result.IsPlan {
		// Stray plans alongside is_plan=false are extraneous content; drop
		// them rather than escalate, matching the no-plan response shape.
		return result, nil
	}

	if len(parsed.Plans) == 0 {
		return nil, &ExtractionFailure{
			Kind: FailureInvariantViolation,
			Err:  fmt.Errorf("is_plan is true but plans is empty"),
		}
	}

	plans := make([]Plan, 0, len(parsed.Plans))
	for i, p := range parsed.Plans {
		action, ok := ParseTradeAction(p.Action)
		if !ok {
			return nil, &ExtractionFailure{
				Kind: FailureInvariantViolation,
				Err:  fmt.Errorf("plan %d has unknown action %q", i, p.Action),
			}
		}
		crypto := strings.ToUpper(strings.TrimSpace(p.Crypto))
		if crypto == "" {
			return nil, &ExtractionFailure{
				Kind: FailureInvariantViolation,
				Err:  fmt.Errorf("plan %d has empty crypto ticker", i),
			}
		}
		if p.Amount == nil || !p.Amount.Positive() {
			return nil, &ExtractionFailure{
				Kind: FailureInvariantViolation,
				Err:  fmt.Errorf("plan %d has missing or non-positive amount", i),
			}
		}
		plans = append(plans, Plan{
			Action: action,
			Crypto: crypto,
			Amount: *p.Amount,
			Reason: strings.TrimSpace(p.Reason),
		})
	}
	result.Plans = plans
	return result, nil
}
