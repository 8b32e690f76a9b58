package screening

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoYAML = `
test: demo
name: Demo
version: "1"
scoring: graded
points_per_item: 3
bands:
  - {max: 2, risk: low}
  - {risk: high}
items:
  - {id: 1, prompt: "a"}
  - {id: 2, prompt: "b"}
`

func TestLoadDefinitions(t *testing.T) {
	fsys := fstest.MapFS{
		"defs/demo.yaml":  {Data: []byte(demoYAML)},
		"defs/README.txt": {Data: []byte("ignored")},
	}
	defs, err := LoadDefinitions(fsys, "defs")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	d := defs[0]
	assert.Equal(t, TestType("demo"), d.Test)
	assert.Equal(t, 6, d.MaxScore())
	assert.Equal(t, "", d.AgeBand(10))

	e, err := NewEngine(defs...)
	require.NoError(t, err)
	out, err := e.ScoreAndClassify("demo", AnswerSet{1: "3", 2: "0"})
	require.NoError(t, err)
	assert.Equal(t, 3, out.RawScore)
	assert.Equal(t, RiskHigh, out.Risk)
}

func TestLoadDefinitionsRejectsBrokenFiles(t *testing.T) {
	_, err := LoadDefinitions(fstest.MapFS{"defs/x.yaml": {Data: []byte("test: [")}}, "defs")
	assert.Error(t, err)

	_, err = LoadDefinitions(fstest.MapFS{"defs/x.yaml": {Data: []byte("test: x\nscoring: binary\npoints_per_item: 1\n")}}, "defs")
	assert.Error(t, err)

	_, err = LoadDefinitions(fstest.MapFS{}, "missing")
	assert.Error(t, err)
}

func TestBuiltinItemDirections(t *testing.T) {
	e := newTestEngine(t)
	mchat, err := e.Definition(MCHAT)
	require.NoError(t, err)
	var yesItems []int
	for _, it := range mchat.Items {
		if it.RiskAnswer == Yes {
			yesItems = append(yesItems, it.ID)
		}
	}
	assert.Equal(t, []int{2, 5, 12}, yesItems)

	aq, err := e.Definition(AQ10)
	require.NoError(t, err)
	var agree []int
	for _, it := range aq.Items {
		if it.ScoresOn == Agree {
			agree = append(agree, it.ID)
		}
	}
	assert.Equal(t, []int{1, 2, 4, 7, 10}, agree)
}
