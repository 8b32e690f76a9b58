package screening

import (
	"fmt"
	"sort"
	"sync"
)

// Outcome is what the engine produces for a complete AnswerSet.
type Outcome struct {
	Test              TestType     `json:"test_type"`
	DefinitionVersion string       `json:"definition_version"`
	RawScore          int          `json:"raw_score"`
	Risk              RiskCategory `json:"risk_category"`
	Items             []ItemScore  `json:"items"`
}

// Engine scores and classifies answer sets. It holds only immutable
// definitions and is safe for concurrent use.
type Engine struct {
	defs map[TestType]*Definition
}

// NewEngine validates defs and indexes them by test type.
func NewEngine(defs ...*Definition) (*Engine, error) {
	e := &Engine{defs: make(map[TestType]*Definition, len(defs))}
	for _, d := range defs {
		if d == nil {
			continue
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := e.defs[d.Test]; dup {
			return nil, fmt.Errorf("duplicate definition for %s", d.Test)
		}
		e.defs[d.Test] = d
	}
	return e, nil
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultErr    error
)

// DefaultEngine returns an engine over the built-in questionnaires.
func DefaultEngine() (*Engine, error) {
	defaultOnce.Do(func() {
		defs, err := BuiltinDefinitions()
		if err != nil {
			defaultErr = err
			return
		}
		defaultEngine, defaultErr = NewEngine(defs...)
	})
	return defaultEngine, defaultErr
}

// Definition returns the questionnaire for test.
func (e *Engine) Definition(test TestType) (*Definition, error) {
	d, ok := e.defs[test]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTestType, test)
	}
	return d, nil
}

// Definitions lists all known questionnaires ordered by test type.
func (e *Engine) Definitions() []*Definition {
	out := make([]*Definition, 0, len(e.defs))
	for _, d := range e.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Test < out[j].Test })
	return out
}

// Score sums item contributions. Every item must have an answer; missing
// answers are never defaulted to zero.
func (e *Engine) Score(test TestType, answers AnswerSet) (int, error) {
	d, err := e.Definition(test)
	if err != nil {
		return 0, err
	}
	items, err := d.score(answers)
	if err != nil {
		return 0, err
	}
	return sumPoints(items), nil
}

// Classify maps a raw score to its risk category. It is total over the
// integers: scores below the first limit fall in the first band.
func (e *Engine) Classify(test TestType, rawScore int) (RiskCategory, error) {
	d, err := e.Definition(test)
	if err != nil {
		return "", err
	}
	return d.classify(rawScore), nil
}

// ScoreAndClassify is the entry point for submissions.
func (e *Engine) ScoreAndClassify(test TestType, answers AnswerSet) (*Outcome, error) {
	d, err := e.Definition(test)
	if err != nil {
		return nil, err
	}
	items, err := d.score(answers)
	if err != nil {
		return nil, err
	}
	raw := sumPoints(items)
	return &Outcome{
		Test:              d.Test,
		DefinitionVersion: d.Version,
		RawScore:          raw,
		Risk:              d.classify(raw),
		Items:             items,
	}, nil
}

func (d *Definition) score(answers AnswerSet) ([]ItemScore, error) {
	var missing []int
	for _, it := range d.Items {
		if _, ok := answers[it.ID]; !ok {
			missing = append(missing, it.ID)
		}
	}
	if len(missing) > 0 {
		return nil, &IncompleteAnswersError{Test: d.Test, Missing: missing}
	}
	if len(answers) != len(d.Items) {
		extra := make([]int, 0, len(answers)-len(d.Items))
		for id := range answers {
			if _, ok := d.Item(id); !ok {
				extra = append(extra, id)
			}
		}
		sort.Ints(extra)
		return nil, &InvalidAnswerError{Test: d.Test, ItemID: extra[0], Value: answers[extra[0]], Reason: "no such item"}
	}
	out := make([]ItemScore, 0, len(d.Items))
	for _, it := range d.Items {
		s, err := d.scoreItem(it, answers[it.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *Definition) classify(raw int) RiskCategory {
	for _, b := range d.Bands {
		if b.Max == nil || raw <= *b.Max {
			return b.Risk
		}
	}
	// unreachable for validated definitions
	return d.Bands[len(d.Bands)-1].Risk
}

func sumPoints(items []ItemScore) int {
	total := 0
	for _, s := range items {
		total += s.Points
	}
	return total
}
