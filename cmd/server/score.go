package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/plataa/triagem/internal/screening"
)

type scoreReport struct {
	*screening.Outcome
	Age        int    `json:"age,omitempty"`
	AgeBand    string `json:"age_band,omitempty"`
	Respondent string `json:"respondent,omitempty"`
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a JSON answer file offline",
		Example: `  triagem score --test assq --age 9 --respondent parents --file answers.json
  echo '{"1":"agree_strongly", ...}' | triagem score --test aq10 --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			testName, _ := cmd.Flags().GetString("test")
			file, _ := cmd.Flags().GetString("file")
			age, _ := cmd.Flags().GetInt("age")
			respondent, _ := cmd.Flags().GetString("respondent")
			defsDir, _ := cmd.Flags().GetString("definitions")

			test, err := screening.ParseTestType(testName)
			if err != nil {
				return err
			}
			engine, err := scoreEngine(defsDir)
			if err != nil {
				return err
			}
			def, err := engine.Definition(test)
			if err != nil {
				return err
			}

			raw, err := readAnswerFile(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			answers, err := screening.DecodeAnswers(raw)
			if err != nil {
				return err
			}
			if err := def.ValidateContext(age, respondent); err != nil {
				return err
			}
			out, err := engine.ScoreAndClassify(test, answers)
			if err != nil {
				return err
			}

			report := scoreReport{Outcome: out, Respondent: respondent}
			if age > 0 {
				report.Age = age
				report.AgeBand = def.AgeBand(age)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().String("test", "", "Questionnaire: mchat, assq or aq10")
	cmd.Flags().String("file", "-", "Answer file (JSON object of item id to answer), - for stdin")
	cmd.Flags().Int("age", 0, "Age in the questionnaire's unit")
	cmd.Flags().String("respondent", "", "Who answered the questionnaire")
	cmd.Flags().String("definitions", "", "Directory of questionnaire YAML files (default: built-in)")
	_ = cmd.MarkFlagRequired("test")
	return cmd
}

func scoreEngine(dir string) (*screening.Engine, error) {
	if dir == "" {
		return screening.DefaultEngine()
	}
	defs, err := screening.LoadDefinitions(os.DirFS(dir), ".")
	if err != nil {
		return nil, err
	}
	return screening.NewEngine(defs...)
}

func readAnswerFile(stdin io.Reader, name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(stdin)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	return b, nil
}
