package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"github.com/plataa/triagem/internal/screening"
)

// ExportDashboardCSV renders exactly the given dashboard rows, one per subject.
func ExportDashboardCSV(rows []screening.Row) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{
		"subject_id", "full_name", "national_id", "region", "phone", "email",
		"test_type", "raw_score", "risk_category", "research_consent", "created_at",
	})
	for _, r := range rows {
		rec := []string{
			r.Subject.ID,
			cell(r.Subject.FullName),
			r.Subject.NationalID,
			cell(r.Subject.Region),
			r.Subject.Phone,
			cell(r.Subject.Email),
			string(r.Result.Test),
			strconv.Itoa(r.Result.RawScore),
			string(r.Result.Risk),
			strconv.FormatBool(r.Result.ResearchConsent),
			r.Result.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportResearchCSV renders anonymised research records. No name or
// national id column exists.
func ExportResearchCSV(recs []screening.ResearchRecord) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"record_id", "test_type", "age_band", "region", "raw_score", "created_at"})
	for _, r := range recs {
		rec := []string{
			r.ID,
			string(r.Test),
			r.AgeBand,
			cell(r.Region),
			strconv.Itoa(r.RawScore),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportItemsCSV renders the per-item contributions of results in wide
// format: one row per result, one column per item id.
func ExportItemsCSV(def *screening.Definition, results []screening.ResultRecord) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"result_id", "subject_id", "raw_score"}
	for _, it := range def.Items {
		header = append(header, "item_"+strconv.Itoa(it.ID))
	}
	_ = w.Write(header)
	for _, r := range results {
		byItem := make(map[int]screening.ItemScore, len(r.Items))
		for _, sc := range r.Items {
			byItem[sc.ItemID] = sc
		}
		row := make([]string, 0, len(header))
		row = append(row, r.ID, r.SubjectID, strconv.Itoa(r.RawScore))
		for _, it := range def.Items {
			sc, ok := byItem[it.ID]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, sc.Answer)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// cell neutralises values a spreadsheet would evaluate as a formula.
func cell(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}
