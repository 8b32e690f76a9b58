package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/plataa/triagem/internal/screening"
)

// timeLayout is fixed width so stored text sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written by hand or by older builds
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func int64ToBool(v int64) bool { return v != 0 }

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullInt(i int) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(i), Valid: true}
}

func encodeAnswers(a screening.AnswerSet) ([]byte, error) {
	if len(a) == 0 {
		return nil, nil
	}
	return json.Marshal(a)
}

func encodeItems(items []screening.ItemScore) ([]byte, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return json.Marshal(items)
}

// decodeAnswers logs and drops a column that no longer parses; the score
// and risk stored next to it stay authoritative.
func decodeAnswers(log zerolog.Logger, id string, raw []byte) screening.AnswerSet {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var out screening.AnswerSet
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Warn().Err(err).Str("result_id", id).Msg("decode answers")
		return nil
	}
	return out
}

func decodeItems(log zerolog.Logger, id string, raw []byte) []screening.ItemScore {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var out []screening.ItemScore
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Warn().Err(err).Str("result_id", id).Msg("decode items")
		return nil
	}
	return out
}

// parseRisk keeps unknown labels as written so aggregation can skip them.
func parseRisk(log zerolog.Logger, id, label string) screening.RiskCategory {
	c, err := screening.ParseRiskCategory(label)
	if err != nil {
		log.Warn().Str("result_id", id).Str("risk", label).Msg("unknown risk label")
		return screening.RiskCategory(label)
	}
	return c
}
