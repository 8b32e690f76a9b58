package screening

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnswerSet maps item ids to raw answers. Raw answers are tokens:
// "yes"/"no" for binary items, "0".."N" for graded items and one of the four
// Likert buckets for Likert items.
type AnswerSet map[int]string

// YesNo is the raw answer domain of binary items.
type YesNo string

const (
	Yes YesNo = "yes"
	No  YesNo = "no"
)

// LikertSide is the agree/disagree collapse of a 4-point Likert answer.
type LikertSide string

const (
	Agree    LikertSide = "agree"
	Disagree LikertSide = "disagree"
)

// Likert buckets. Intensity is kept for audit only.
const (
	AgreeStrongly    = "agree_strongly"
	AgreeSlightly    = "agree_slightly"
	DisagreeSlightly = "disagree_slightly"
	DisagreeStrongly = "disagree_strongly"
)

const (
	IntensityStrong = "strong"
	IntensitySlight = "slight"
)

func parseYesNo(raw string) (YesNo, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "1", "sim", "s":
		return Yes, true
	case "no", "n", "false", "0", "nao", "não":
		return No, true
	}
	return "", false
}

func parseLikert(raw string) (string, LikertSide, string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case AgreeStrongly, "concordo_totalmente":
		return AgreeStrongly, Agree, IntensityStrong, true
	case AgreeSlightly, "concordo_pouco", "concordo_parcialmente":
		return AgreeSlightly, Agree, IntensitySlight, true
	case DisagreeSlightly, "discordo_pouco", "discordo_parcialmente":
		return DisagreeSlightly, Disagree, IntensitySlight, true
	case DisagreeStrongly, "discordo_totalmente":
		return DisagreeStrongly, Disagree, IntensityStrong, true
	}
	return "", "", "", false
}

// ItemScore is the audited contribution of a single item.
type ItemScore struct {
	ItemID    int        `json:"item_id"`
	Answer    string     `json:"answer"`
	Points    int        `json:"points"`
	Side      LikertSide `json:"side,omitempty"`
	Intensity string     `json:"intensity,omitempty"`
}

func (d *Definition) scoreItem(it Item, raw string) (ItemScore, error) {
	invalid := func(reason string) error {
		return &InvalidAnswerError{Test: d.Test, ItemID: it.ID, Value: raw, Reason: reason}
	}
	switch d.Scoring {
	case ScoringBinary:
		v, ok := parseYesNo(raw)
		if !ok {
			return ItemScore{}, invalid("want yes or no")
		}
		pts := 0
		if v == it.RiskAnswer {
			pts = 1
		}
		return ItemScore{ItemID: it.ID, Answer: string(v), Points: pts}, nil
	case ScoringGraded:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 || n > d.PointsPerItem {
			return ItemScore{}, invalid(fmt.Sprintf("want an integer in [0,%d]", d.PointsPerItem))
		}
		return ItemScore{ItemID: it.ID, Answer: strconv.Itoa(n), Points: n}, nil
	case ScoringLikert:
		bucket, side, intensity, ok := parseLikert(raw)
		if !ok {
			return ItemScore{}, invalid("want a 4-point likert answer")
		}
		pts := 0
		if side == it.ScoresOn {
			pts = 1
		}
		return ItemScore{ItemID: it.ID, Answer: bucket, Points: pts, Side: side, Intensity: intensity}, nil
	}
	return ItemScore{}, fmt.Errorf("definition %s: unknown scoring %q", d.Test, d.Scoring)
}

// DecodeAnswers turns a JSON object keyed by item id into an AnswerSet.
// Values may be booleans, numbers or strings.
func DecodeAnswers(data []byte) (AnswerSet, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: answers must be an object keyed by item id", ErrInvalidAnswerValue)
	}
	out := make(AnswerSet, len(raw))
	seen := make(map[int]bool, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("%w: item key %q is not a number", ErrInvalidAnswerValue, k)
		}
		// "2" and "02" name the same item
		if seen[id] {
			return nil, &InvalidAnswerError{ItemID: id, Value: k, Reason: "duplicate item"}
		}
		seen[id] = true
		var (
			b bool
			n float64
			s string
		)
		switch {
		case strings.TrimSpace(string(v)) == "null":
			// an explicit null is a missing answer, not "no"
			continue
		case json.Unmarshal(v, &b) == nil:
			if b {
				out[id] = string(Yes)
			} else {
				out[id] = string(No)
			}
		case json.Unmarshal(v, &n) == nil:
			if n != float64(int(n)) {
				return nil, &InvalidAnswerError{ItemID: id, Value: string(v), Reason: "not an integer"}
			}
			out[id] = strconv.Itoa(int(n))
		case json.Unmarshal(v, &s) == nil:
			out[id] = s
		default:
			return nil, &InvalidAnswerError{ItemID: id, Value: string(v), Reason: "unsupported answer type"}
		}
	}
	return out, nil
}
