package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes an entry to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (version_id, kind, decision, reason, detail_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.VersionID),
		entry.Kind,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.DetailJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// LogAdapt records a gated adaptation with its full inputs.
func LogAdapt(db *sql.DB, versionID string, rec AdaptRecord) error {
	detail, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal adapt record: %w", err)
	}
	return LogDecision(db, DecisionEntry{
		VersionID:  versionID,
		Kind:       KindAdapt,
		Decision:   rec.GateAction,
		Reason:     rec.GateReason,
		DetailJSON: string(detail),
	})
}

// #endregion log-decision

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
