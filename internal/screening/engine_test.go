package screening

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := DefaultEngine()
	require.NoError(t, err)
	return e
}

// mchatNoRisk answers every item in its non-risk direction.
func mchatNoRisk(t *testing.T, e *Engine) AnswerSet {
	t.Helper()
	d, err := e.Definition(MCHAT)
	require.NoError(t, err)
	out := AnswerSet{}
	for _, it := range d.Items {
		if it.RiskAnswer == Yes {
			out[it.ID] = "no"
		} else {
			out[it.ID] = "yes"
		}
	}
	return out
}

func uniform(n int, v string) AnswerSet {
	out := AnswerSet{}
	for i := 1; i <= n; i++ {
		out[i] = v
	}
	return out
}

func TestBuiltinDefinitions(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		test     TestType
		items    int
		maxScore int
	}{
		{MCHAT, 20, 20},
		{ASSQ, 27, 54},
		{AQ10, 10, 10},
	}
	for _, c := range cases {
		d, err := e.Definition(c.test)
		require.NoError(t, err)
		assert.Len(t, d.Items, c.items, string(c.test))
		assert.Equal(t, c.maxScore, d.MaxScore(), string(c.test))
		assert.NotEmpty(t, d.Version)
	}
	_, err := e.Definition("ados")
	assert.ErrorIs(t, err, ErrUnknownTestType)
}

func TestMCHATScenario(t *testing.T) {
	e := newTestEngine(t)
	answers := mchatNoRisk(t, e)
	answers[2] = "sim"
	answers[5] = "sim"

	out, err := e.ScoreAndClassify(MCHAT, answers)
	require.NoError(t, err)
	assert.Equal(t, 2, out.RawScore)
	assert.Equal(t, RiskLow, out.Risk)

	answers[12] = "yes"
	out, err = e.ScoreAndClassify(MCHAT, answers)
	require.NoError(t, err)
	assert.Equal(t, 3, out.RawScore)
	assert.Equal(t, RiskModerate, out.Risk)
}

func TestMCHATNoDirectionScoresOnNo(t *testing.T) {
	e := newTestEngine(t)
	answers := mchatNoRisk(t, e)
	answers[1] = "nao"
	score, err := e.Score(MCHAT, answers)
	require.NoError(t, err)
	assert.Equal(t, 1, score)
}

func TestASSQScenario(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.ScoreAndClassify(ASSQ, uniform(27, "1"))
	require.NoError(t, err)
	assert.Equal(t, 27, out.RawScore)
	assert.Equal(t, RiskHigh, out.Risk)

	out, err = e.ScoreAndClassify(ASSQ, uniform(27, "0"))
	require.NoError(t, err)
	assert.Equal(t, 0, out.RawScore)
	assert.Equal(t, RiskLow, out.Risk)

	out, err = e.ScoreAndClassify(ASSQ, uniform(27, "2"))
	require.NoError(t, err)
	assert.Equal(t, 54, out.RawScore)
}

func TestAQ10Scenario(t *testing.T) {
	e := newTestEngine(t)
	answers := AnswerSet{}
	for _, id := range []int{1, 2, 4, 7, 10} {
		answers[id] = AgreeStrongly
	}
	for _, id := range []int{3, 5, 6, 8, 9} {
		answers[id] = DisagreeStrongly
	}
	out, err := e.ScoreAndClassify(AQ10, answers)
	require.NoError(t, err)
	assert.Equal(t, 10, out.RawScore)
	assert.Equal(t, RiskPositive, out.Risk)
}

func TestAQ10IntensityDoesNotChangePoints(t *testing.T) {
	e := newTestEngine(t)
	strong := AnswerSet{}
	slight := AnswerSet{}
	for i := 1; i <= 10; i++ {
		strong[i] = AgreeStrongly
		slight[i] = AgreeSlightly
	}
	a, err := e.ScoreAndClassify(AQ10, strong)
	require.NoError(t, err)
	b, err := e.ScoreAndClassify(AQ10, slight)
	require.NoError(t, err)
	assert.Equal(t, a.RawScore, b.RawScore)
	assert.Equal(t, 5, a.RawScore)
	assert.Equal(t, RiskNegative, a.Risk)
	assert.Equal(t, IntensityStrong, a.Items[0].Intensity)
	assert.Equal(t, IntensitySlight, b.Items[0].Intensity)
	assert.Equal(t, Agree, b.Items[0].Side)
}

func TestClassifyBoundaries(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		test  TestType
		score int
		want  RiskCategory
	}{
		{MCHAT, 0, RiskLow},
		{MCHAT, 2, RiskLow},
		{MCHAT, 3, RiskModerate},
		{MCHAT, 7, RiskModerate},
		{MCHAT, 8, RiskHigh},
		{MCHAT, 20, RiskHigh},
		{ASSQ, 12, RiskLow},
		{ASSQ, 13, RiskModerate},
		{ASSQ, 19, RiskModerate},
		{ASSQ, 20, RiskHigh},
		{ASSQ, 54, RiskHigh},
		{AQ10, 5, RiskNegative},
		{AQ10, 6, RiskPositive},
		{AQ10, 10, RiskPositive},
	}
	for _, c := range cases {
		got, err := e.Classify(c.test, c.score)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%s score %d", c.test, c.score)
	}
}

func TestClassifyIsTotalAndMonotonic(t *testing.T) {
	e := newTestEngine(t)
	for _, d := range e.Definitions() {
		prev := -1
		for score := -5; score <= d.MaxScore()+5; score++ {
			got, err := e.Classify(d.Test, score)
			require.NoError(t, err)
			require.True(t, got.Valid(), "%s score %d unclassified", d.Test, score)
			assert.GreaterOrEqual(t, got.Rank(), prev, "%s score %d", d.Test, score)
			prev = got.Rank()
		}
	}
}

func TestScoreIncompleteAnswers(t *testing.T) {
	e := newTestEngine(t)
	answers := uniform(27, "0")
	delete(answers, 4)
	delete(answers, 20)

	_, err := e.Score(ASSQ, answers)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteAnswers)
	var inc *IncompleteAnswersError
	require.True(t, errors.As(err, &inc))
	assert.Equal(t, []int{4, 20}, inc.Missing)
	assert.Equal(t, CategoryIncomplete, Categorize(err))

	_, err = e.ScoreAndClassify(MCHAT, AnswerSet{})
	assert.ErrorIs(t, err, ErrIncompleteAnswers)
}

func TestScoreInvalidAnswerValue(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		name    string
		test    TestType
		answers AnswerSet
	}{
		{"assq out of range", ASSQ, func() AnswerSet { a := uniform(27, "1"); a[3] = "3"; return a }()},
		{"assq negative", ASSQ, func() AnswerSet { a := uniform(27, "1"); a[3] = "-1"; return a }()},
		{"assq text", ASSQ, func() AnswerSet { a := uniform(27, "1"); a[3] = "muito"; return a }()},
		{"mchat maybe", MCHAT, func() AnswerSet { a := uniform(20, "yes"); a[7] = "maybe"; return a }()},
		{"aq10 neutral", AQ10, func() AnswerSet { a := uniform(10, AgreeSlightly); a[2] = "neutral"; return a }()},
		{"unknown item", AQ10, func() AnswerSet { a := uniform(10, AgreeSlightly); a[11] = AgreeSlightly; return a }()},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := e.ScoreAndClassify(c.test, c.answers)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidAnswerValue)
			assert.Equal(t, CategoryInvalid, Categorize(err))
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	answers := AnswerSet{}
	for i := 1; i <= 27; i++ {
		answers[i] = strconv.Itoa(i % 3)
	}
	first, err := e.Score(ASSQ, answers)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := e.Score(ASSQ, answers)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 27, first)
}

func TestNewEngineRejectsBadDefinitions(t *testing.T) {
	two := 2
	base := func() *Definition {
		return &Definition{
			Test:          "demo",
			Version:       "1",
			Scoring:       ScoringBinary,
			PointsPerItem: 1,
			Bands:         []Band{{Max: &two, Risk: RiskLow}, {Risk: RiskHigh}},
			Items:         []Item{{ID: 1, RiskAnswer: Yes}, {ID: 2, RiskAnswer: No}},
		}
	}
	_, err := NewEngine(base())
	require.NoError(t, err)

	d := base()
	d.Items[1].ID = 1
	_, err = NewEngine(d)
	assert.Error(t, err, "duplicate item ids")

	d = base()
	d.Items[0].RiskAnswer = ""
	_, err = NewEngine(d)
	assert.Error(t, err, "missing direction")

	d = base()
	d.Bands = []Band{{Max: &two, Risk: RiskLow}}
	_, err = NewEngine(d)
	assert.Error(t, err, "bounded last band")

	d = base()
	d.Bands = []Band{{Risk: RiskLow}, {Max: &two, Risk: RiskHigh}}
	_, err = NewEngine(d)
	assert.Error(t, err, "unbounded band first")

	_, err = NewEngine(base(), base())
	assert.Error(t, err, "duplicate definitions")
}

func TestDecodeAnswers(t *testing.T) {
	got, err := DecodeAnswers([]byte(`{"1": true, "2": false, "3": 2, "4": "concordo_totalmente", "5": null}`))
	require.NoError(t, err)
	assert.Equal(t, AnswerSet{1: "yes", 2: "no", 3: "2", 4: "concordo_totalmente"}, got)

	_, err = DecodeAnswers([]byte(`{"x": true}`))
	assert.ErrorIs(t, err, ErrInvalidAnswerValue)
	_, err = DecodeAnswers([]byte(`{"1": 1.5}`))
	assert.ErrorIs(t, err, ErrInvalidAnswerValue)
	_, err = DecodeAnswers([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidAnswerValue)

	// keys that parse to the same item id are refused on every run
	for i := 0; i < 50; i++ {
		_, err = DecodeAnswers([]byte(`{"2": "yes", "02": "no", " 3": 1}`))
		var inv *InvalidAnswerError
		require.ErrorAs(t, err, &inv)
		assert.Equal(t, 2, inv.ItemID)
		assert.Equal(t, "duplicate item", inv.Reason)
	}
	_, err = DecodeAnswers([]byte(`{"4": null, "04": "yes"}`))
	assert.ErrorIs(t, err, ErrInvalidAnswerValue)
}

func TestAgeBandsAndContext(t *testing.T) {
	e := newTestEngine(t)
	mchat, _ := e.Definition(MCHAT)
	assert.Equal(t, "16-18 months", mchat.AgeBand(18))
	assert.Equal(t, "19-24 months", mchat.AgeBand(19))
	assert.Equal(t, "37-48 months", mchat.AgeBand(48))
	assert.Equal(t, "48+ months", mchat.AgeBand(60))
	assert.NoError(t, mchat.ValidateContext(24, "parents"))
	assert.ErrorIs(t, mchat.ValidateContext(12, "parents"), ErrInvalidAnswerValue)
	assert.ErrorIs(t, mchat.ValidateContext(24, "teachers"), ErrInvalidAnswerValue)

	assq, _ := e.Definition(ASSQ)
	assert.Equal(t, "6-8 years", assq.AgeBand(8))
	assert.Equal(t, "9-11 years", assq.AgeBand(11))
	assert.Equal(t, "15-17 years", assq.AgeBand(16))

	aq, _ := e.Definition(AQ10)
	assert.Equal(t, "adult 16+", aq.AgeBand(0))
	assert.NoError(t, aq.ValidateContext(0, ""))
}

func TestParseHelpers(t *testing.T) {
	for in, want := range map[string]TestType{"M-CHAT-R/F": MCHAT, "mchat-rf": MCHAT, "ASSQ": ASSQ, "AQ-10": AQ10} {
		got, err := ParseTestType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseTestType("cars")
	assert.ErrorIs(t, err, ErrUnknownTestType)

	for in, want := range map[string]RiskCategory{"alto": RiskHigh, "Moderado": RiskModerate, " baixo ": RiskLow, "positivo": RiskPositive} {
		got, err := ParseRiskCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err = ParseRiskCategory("grave")
	assert.Error(t, err)

	r, err := ParseRole("especialista")
	require.NoError(t, err)
	assert.Equal(t, RoleSpecialist, r)
}
