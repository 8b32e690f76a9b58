package screening

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var embeddedDefinitions embed.FS

// ScoringKind selects how a raw answer becomes an item contribution.
type ScoringKind string

const (
	// ScoringBinary items score 1 when the yes/no answer matches RiskAnswer.
	ScoringBinary ScoringKind = "binary"
	// ScoringGraded items score the literal answer in [0, PointsPerItem].
	ScoringGraded ScoringKind = "graded"
	// ScoringLikert items score 1 when a 4-point Likert answer falls on ScoresOn.
	ScoringLikert ScoringKind = "likert"
)

// Item is one questionnaire statement with its fixed scoring direction.
type Item struct {
	ID         int        `yaml:"id" json:"id"`
	Prompt     string     `yaml:"prompt" json:"prompt"`
	RiskAnswer YesNo      `yaml:"risk_answer,omitempty" json:"risk_answer,omitempty"`
	ScoresOn   LikertSide `yaml:"scores_on,omitempty" json:"scores_on,omitempty"`
}

// Band maps every score up to Max (inclusive) to Risk. A nil Max closes the
// domain; bands are evaluated in order.
type Band struct {
	Max  *int         `yaml:"max,omitempty" json:"max,omitempty"`
	Risk RiskCategory `yaml:"risk" json:"risk"`
}

// AgeBand labels ages up to Max (inclusive). A nil Max catches the rest.
type AgeBand struct {
	Max   *int   `yaml:"max,omitempty" json:"max,omitempty"`
	Label string `yaml:"label" json:"label"`
}

// AgeSpec describes the age input a questionnaire collects.
type AgeSpec struct {
	Unit     string    `yaml:"unit" json:"unit"`
	Required bool      `yaml:"required" json:"required"`
	Min      int       `yaml:"min,omitempty" json:"min,omitempty"`
	Max      int       `yaml:"max,omitempty" json:"max,omitempty"`
	Bands    []AgeBand `yaml:"bands" json:"bands"`
}

// Definition is the static, versioned description of one questionnaire.
type Definition struct {
	Test          TestType    `yaml:"test" json:"test_type"`
	Name          string      `yaml:"name" json:"name"`
	Version       string      `yaml:"version" json:"version"`
	Scoring       ScoringKind `yaml:"scoring" json:"scoring"`
	PointsPerItem int         `yaml:"points_per_item" json:"points_per_item"`
	Respondents   []string    `yaml:"respondents,omitempty" json:"respondents,omitempty"`
	Age           *AgeSpec    `yaml:"age,omitempty" json:"age,omitempty"`
	Bands         []Band      `yaml:"bands" json:"bands"`
	Items         []Item      `yaml:"items" json:"items"`
}

// MaxScore is the upper end of the closed raw score range.
func (d *Definition) MaxScore() int { return len(d.Items) * d.PointsPerItem }

// Item returns the item with the given id.
func (d *Definition) Item(id int) (Item, bool) {
	for _, it := range d.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Validate checks the definition is internally consistent: unique item ids,
// a scoring direction on every item and a band list that ends unbounded.
func (d *Definition) Validate() error {
	if d.Test == "" {
		return errors.New("definition: test is required")
	}
	if len(d.Items) == 0 {
		return fmt.Errorf("definition %s: no items", d.Test)
	}
	switch d.Scoring {
	case ScoringBinary, ScoringLikert:
		if d.PointsPerItem != 1 {
			return fmt.Errorf("definition %s: %s items score 1 point, got %d", d.Test, d.Scoring, d.PointsPerItem)
		}
	case ScoringGraded:
		if d.PointsPerItem < 1 {
			return fmt.Errorf("definition %s: graded items need points_per_item", d.Test)
		}
	default:
		return fmt.Errorf("definition %s: unknown scoring %q", d.Test, d.Scoring)
	}
	seen := make(map[int]struct{}, len(d.Items))
	for _, it := range d.Items {
		if it.ID <= 0 {
			return fmt.Errorf("definition %s: item id must be positive, got %d", d.Test, it.ID)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("definition %s: duplicate item %d", d.Test, it.ID)
		}
		seen[it.ID] = struct{}{}
		switch d.Scoring {
		case ScoringBinary:
			if it.RiskAnswer != Yes && it.RiskAnswer != No {
				return fmt.Errorf("definition %s: item %d has no risk_answer", d.Test, it.ID)
			}
		case ScoringLikert:
			if it.ScoresOn != Agree && it.ScoresOn != Disagree {
				return fmt.Errorf("definition %s: item %d has no scores_on", d.Test, it.ID)
			}
		}
	}
	if len(d.Bands) == 0 {
		return fmt.Errorf("definition %s: no risk bands", d.Test)
	}
	prev := -1
	for i, b := range d.Bands {
		if !b.Risk.Valid() {
			return fmt.Errorf("definition %s: band %d has unknown risk %q", d.Test, i, b.Risk)
		}
		last := i == len(d.Bands)-1
		if b.Max == nil {
			if !last {
				return fmt.Errorf("definition %s: only the last band may be unbounded", d.Test)
			}
			continue
		}
		if last {
			return fmt.Errorf("definition %s: last band must be unbounded", d.Test)
		}
		if *b.Max <= prev {
			return fmt.Errorf("definition %s: band limits must increase", d.Test)
		}
		prev = *b.Max
	}
	if d.Age != nil {
		if len(d.Age.Bands) == 0 || d.Age.Bands[len(d.Age.Bands)-1].Max != nil {
			return fmt.Errorf("definition %s: age bands must end unbounded", d.Test)
		}
		if d.Age.Required && d.Age.Min > d.Age.Max {
			return fmt.Errorf("definition %s: age min above max", d.Test)
		}
	}
	return nil
}

// ValidateContext checks the respondent and age collected with a submission.
func (d *Definition) ValidateContext(age int, respondent string) error {
	if len(d.Respondents) > 0 {
		ok := false
		for _, r := range d.Respondents {
			if r == respondent {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: %s respondent %q not one of %s", ErrInvalidAnswerValue, d.Test, respondent, strings.Join(d.Respondents, ","))
		}
	}
	if d.Age != nil && d.Age.Required {
		if age < d.Age.Min || age > d.Age.Max {
			return fmt.Errorf("%w: %s age %d %s outside [%d,%d]", ErrInvalidAnswerValue, d.Test, age, d.Age.Unit, d.Age.Min, d.Age.Max)
		}
	}
	return nil
}

// AgeBand returns the reporting band for an age in the definition's unit.
func (d *Definition) AgeBand(age int) string {
	if d.Age == nil {
		return ""
	}
	for _, b := range d.Age.Bands {
		if b.Max == nil || age <= *b.Max {
			return b.Label
		}
	}
	return ""
}

// LoadDefinitions parses every *.yaml file under dir in fsys.
func LoadDefinitions(fsys fs.FS, dir string) ([]*Definition, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	var defs []*Definition
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read definition %s: %w", e.Name(), err)
		}
		var d Definition
		if err := yaml.Unmarshal(b, &d); err != nil {
			return nil, fmt.Errorf("parse definition %s: %w", e.Name(), err)
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		defs = append(defs, &d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Test < defs[j].Test })
	return defs, nil
}

// BuiltinDefinitions returns the definitions shipped with the binary.
func BuiltinDefinitions() ([]*Definition, error) {
	return LoadDefinitions(embeddedDefinitions, "definitions")
}
