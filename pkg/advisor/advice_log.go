package advisor

import "database/sql"

// Advice audit statuses.
const (
	adviceStatusOK       = "ok"
	adviceStatusDegraded = "degraded"
)

// Audit rows keep only a prompt excerpt; full prompts can be long and the log
// is for operators, not replay.
const adviceLogPromptLimit = 500

// AdviceLog is one recorded advisory exchange. Degraded rows carry the
// extraction failure kind so operators can tell fallback responses apart from
// fully structured ones.
type AdviceLog struct {
	ID          int64   `json:"id"`
	Prompt      string  `json:"prompt"`
	Status      string  `json:"status"`
	Model       string  `json:"model,omitempty"`
	PlanCount   int     `json:"plan_count"`
	FailureKind *string `json:"failure_kind,omitempty"`
	CreatedAt   *string `json:"created_at,omitempty"`
}

// recordAdvice persists an audit row. Failures are logged, never surfaced; the
// advisory response must not depend on the audit store.
func (c *Core) recordAdvice(prompt, status string, planCount int, failureKind string) {
	if len(prompt) > adviceLogPromptLimit {
		prompt = prompt[:adviceLogPromptLimit]
	}
	var kind any
	if failureKind != "" {
		kind = failureKind
	}
	_, err := c.db.Exec(`
		INSERT INTO advice_logs (prompt, status, model, plan_count, failure_kind)
		VALUES (?, ?, ?, ?, ?)
	`, prompt, status, c.gemini.Model, planCount, kind)
	if err != nil {
		c.logger.Warn("failed to record advice log", "err", err)
	}
}

// GetAdviceLogs returns recent advisory exchanges, newest first.
func (c *Core) GetAdviceLogs(limit, offset int) ([]AdviceLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := c.db.Query(
		"SELECT id, prompt, status, model, plan_count, failure_kind, created_at FROM advice_logs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "query advice logs", err)
	}
	defer rows.Close()

	var logs []AdviceLog
	for rows.Next() {
		var log AdviceLog
		var model, failureKind, createdAt sql.NullString
		if err := rows.Scan(&log.ID, &log.Prompt, &log.Status, &model, &log.PlanCount, &failureKind, &createdAt); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan advice log row", err)
		}
		if model.Valid {
			log.Model = model.String
		}
		if failureKind.Valid {
			log.FailureKind = &failureKind.String
		}
		if createdAt.Valid {
			log.CreatedAt = &createdAt.String
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "iterate advice log rows", err)
	}
	if logs == nil {
		logs = []AdviceLog{}
	}
	return logs, nil
}
